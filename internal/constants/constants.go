package constants

import "time"

// Advisory lock keys.
const (
	MigrationLock = iota + 1
	StartSchedulerLock
)

var Locks = []int{
	MigrationLock,
	StartSchedulerLock,
}

const (
	PollInterval   = 60 * time.Second
	WebhookTimeout = 20 * time.Second
	// ExportDays is how much history data_export jobs load.
	ExportDays = 365
	// LockTimeout bounds how long a distributed lock is held.
	LockTimeout = 5 * time.Second
)
