package types

import (
	"encoding/json"
	"time"

	"github.com/alecthomas/types/optional"

	"github.com/RezaEskandarii/cronfire/internal/state"
)

// JobExecution is one attempt at running a job.
type JobExecution struct {
	ID          string
	JobID       string
	UserID      string
	Status      state.ExecutionStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	DurationMs  *int64
	Result      json.RawMessage
	Error       *string
}

// JobUpdate lists the job fields a store write should change. Unset options
// are left alone. NextRunAt and LastError use Some(nil) to clear the column.
type JobUpdate struct {
	Status    optional.Option[state.JobStatus]
	NextRunAt optional.Option[*time.Time]
	LastRunAt optional.Option[time.Time]
	LastError optional.Option[*string]

	// IncrementRunCount adds one to the stored run count.
	IncrementRunCount bool
	// ReleaseClaim clears the claim lease.
	ReleaseClaim bool
}

// IsEmpty reports whether the update would change nothing.
func (u JobUpdate) IsEmpty() bool {
	return !u.Status.Ok() && !u.NextRunAt.Ok() && !u.LastRunAt.Ok() &&
		!u.IncrementRunCount && !u.LastError.Ok() && !u.ReleaseClaim
}

// ExecutionUpdate finalizes an execution.
type ExecutionUpdate struct {
	Status      state.ExecutionStatus
	CompletedAt time.Time
	DurationMs  int64
	Result      json.RawMessage
	Error       *string
}

// ExecutionEvent is published when an execution finishes.
type ExecutionEvent struct {
	ExecutionID string                `json:"executionId"`
	JobID       string                `json:"jobId"`
	UserID      string                `json:"userId"`
	ActionType  ActionType            `json:"actionType"`
	Status      state.ExecutionStatus `json:"status"`
	StartedAt   time.Time             `json:"startedAt"`
	CompletedAt time.Time             `json:"completedAt"`
	DurationMs  int64                 `json:"durationMs"`
	Error       *string               `json:"error,omitempty"`
}
