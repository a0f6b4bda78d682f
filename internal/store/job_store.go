package store

import (
	"context"
	"time"

	"github.com/RezaEskandarii/cronfire/types"
)

// JobStore persists job definitions and their executions. All cross-process
// coordination goes through ClaimDueJob.
type JobStore interface {
	// CreateJob inserts a job definition. The host application owns job creation;
	// the scheduler never calls it.
	CreateJob(ctx context.Context, job *types.Job) (*types.Job, error)

	// GetActiveJobs returns every job with status active.
	GetActiveJobs(ctx context.Context) ([]*types.Job, error)

	// GetDueJobs returns up to limit active jobs whose NextRunAt <= now, oldest first.
	GetDueJobs(ctx context.Context, now time.Time, limit int) ([]*types.Job, error)

	// ClaimDueJob atomically takes a due job if its NextRunAt still equals
	// expectedNextRunAt. It clears NextRunAt and records a lease. A job that
	// was already claimed returns nil, nil.
	ClaimDueJob(ctx context.Context, jobID, userID string, expectedNextRunAt time.Time, lease time.Duration) (*types.Job, error)

	// RecoverStaleRunningJobs fails running executions older than lease and
	// makes jobs whose claim lease expired due again. It returns the number of
	// jobs made due.
	RecoverStaleRunningJobs(ctx context.Context, lease time.Duration) (int64, error)

	// GetJob returns custom_errors.ErrJobNotFound when no job with that id is
	// owned by userID.
	GetJob(ctx context.Context, jobID, userID string) (*types.Job, error)

	UpdateJob(ctx context.Context, jobID, userID string, update types.JobUpdate) error

	// AddJobExecution records a running execution started at startedAt.
	AddJobExecution(ctx context.Context, jobID, userID string, startedAt time.Time) (*types.JobExecution, error)

	UpdateJobExecution(ctx context.Context, executionID string, update types.ExecutionUpdate) error

	// GetJobExecutions returns the latest executions of a job, newest first.
	GetJobExecutions(ctx context.Context, jobID, userID string, limit int) ([]*types.JobExecution, error)

	// Close closes the database
	Close() error
}
