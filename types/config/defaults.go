package config

import "time"

const (
	DefaultStorageDriver     = Postgres
	DefaultLockDriver        = PostgresLock
	DefaultPollInterval      = 60 * time.Second
	DefaultMaxConcurrentJobs = 10
	DefaultDueBatchSize      = 100
	DefaultAIProvider        = "openai"
	DefaultAIModel           = "gpt-4o-mini"
	DefaultAIMaxTurns        = 5
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
)
