package types

import (
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/cronfire/internal/state"
)

type JobType string

const (
	JobTypeOneTime   JobType = "one_time"
	JobTypeRecurring JobType = "recurring"
	JobTypeCron      JobType = "cron"
)

type ActionType string

const (
	ActionReportGeneration ActionType = "report_generation"
	ActionWebhook          ActionType = "webhook"
	ActionDataExport       ActionType = "data_export"
	ActionChatMessage      ActionType = "chat_message"
)

// Job is a persisted scheduled job definition.
type Job struct {
	ID     string
	UserID string
	Name   string

	JobType JobType
	Status  state.JobStatus

	ExecuteAt       *time.Time // one_time
	IntervalSeconds *int64     // recurring
	CronExpression  *string    // cron

	ActionType   ActionType
	ActionConfig json.RawMessage

	NextRunAt *time.Time
	LastRunAt *time.Time
	RunCount  int64
	LastError *string

	// LeaseExpiresAt is set while a poller holds the claim on the job.
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Claimed reports whether the job is held by an unexpired claim at now.
func (j *Job) Claimed(now time.Time) bool {
	return j.LeaseExpiresAt != nil && j.LeaseExpiresAt.After(now)
}
