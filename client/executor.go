package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/types/optional"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/internal/ai"
	"github.com/RezaEskandarii/cronfire/internal/logging"
	"github.com/RezaEskandarii/cronfire/internal/state"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/pgk/webhook"
	"github.com/RezaEskandarii/cronfire/types"
)

// ProviderRegistry resolves AI providers by name. An empty name selects the
// default provider.
type ProviderRegistry interface {
	Get(name string) (ai.Provider, error)
}

// JobExecutor runs a claimed job's action and records the outcome.
type JobExecutor struct {
	jobs       store.JobStore
	reports    store.ReportStore
	providers  ProviderRegistry
	validator  *webhook.Validator
	httpClient *http.Client
	publisher  ExecutionPublisher
	clock      clock.Clock
	location   *time.Location
	log        zerolog.Logger
}

type ExecutorOption func(*JobExecutor)

func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *JobExecutor) { e.httpClient = c }
}

func WithPublisher(p ExecutionPublisher) ExecutorOption {
	return func(e *JobExecutor) { e.publisher = p }
}

func WithExecutorClock(c clock.Clock) ExecutorOption {
	return func(e *JobExecutor) { e.clock = c }
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) ExecutorOption {
	return func(e *JobExecutor) {
		if loc != nil {
			e.location = loc
		}
	}
}

func NewJobExecutor(jobs store.JobStore, reports store.ReportStore, providers ProviderRegistry,
	validator *webhook.Validator, log zerolog.Logger, opts ...ExecutorOption) *JobExecutor {
	e := &JobExecutor{
		jobs:       jobs,
		reports:    reports,
		providers:  providers,
		validator:  validator,
		httpClient: &http.Client{Transport: webhook.NewSafeTransport()},
		clock:      clock.New(),
		location:   time.UTC,
		log:        logging.Component(log, "executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.validator == nil {
		e.validator = webhook.NewValidator(nil)
	}
	return e
}

// ExecuteJob runs job's action once and finalizes both the execution and the
// job. Action failures are recorded, not returned; an error means the store
// could not be written.
func (e *JobExecutor) ExecuteJob(ctx context.Context, job *types.Job) (*types.JobExecution, error) {
	log := e.log.With().Str("job_id", job.ID).Str("action", string(job.ActionType)).Logger()

	startedAt := e.clock.Now()
	exec, err := e.jobs.AddJobExecution(ctx, job.ID, job.UserID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("create execution for job %s: %w", job.ID, err)
	}

	result, runErr := e.runAction(ctx, job)

	// Finalize even when the caller is shutting down.
	ctx = context.WithoutCancel(ctx)
	completedAt := e.clock.Now()
	update := types.ExecutionUpdate{
		Status:      state.ExecutionSuccess,
		CompletedAt: completedAt,
		DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
		Result:      result,
	}
	if runErr != nil {
		msg := runErr.Error()
		update.Status = state.ExecutionFailed
		update.Result = nil
		update.Error = &msg
		log.Warn().Err(runErr).Msg("job execution failed")
	} else {
		log.Info().Int64("duration_ms", update.DurationMs).Msg("job executed")
	}

	err = e.jobs.UpdateJobExecution(ctx, exec.ID, update)
	if errors.Is(err, custom_errors.ErrExecutionNotRunning) {
		// Recovery failed the execution and re-armed the job while the action
		// ran. Record the run but leave the schedule and claim to recovery.
		log.Warn().Str("execution_id", exec.ID).Msg("execution outlived its claim lease")
		exec.Status = state.ExecutionFailed
		jobUpdate := types.JobUpdate{
			LastRunAt:         optional.Some(completedAt),
			LastError:         optional.Some(update.Error),
			IncrementRunCount: true,
		}
		if err := e.jobs.UpdateJob(ctx, job.ID, job.UserID, jobUpdate); err != nil {
			return exec, fmt.Errorf("update job %s after run: %w", job.ID, err)
		}
		return exec, nil
	}
	if err != nil {
		return exec, fmt.Errorf("finalize execution %s: %w", exec.ID, err)
	}
	exec.Status = update.Status
	exec.CompletedAt = &completedAt
	exec.DurationMs = &update.DurationMs
	exec.Result = update.Result
	exec.Error = update.Error

	if err := e.jobs.UpdateJob(ctx, job.ID, job.UserID, e.completionUpdate(job, update, log)); err != nil {
		return exec, fmt.Errorf("update job %s after run: %w", job.ID, err)
	}

	e.publish(ctx, job, exec, log)
	return exec, nil
}

// completionUpdate counts the run, records its error and moves the schedule on.
func (e *JobExecutor) completionUpdate(job *types.Job, exec types.ExecutionUpdate, log zerolog.Logger) types.JobUpdate {
	update := types.JobUpdate{
		LastRunAt:    optional.Some(exec.CompletedAt),
		LastError:         optional.Some(exec.Error),
		IncrementRunCount: true,
		ReleaseClaim:      true,
	}

	if job.JobType == types.JobTypeOneTime {
		update.Status = optional.Some(state.StatusCompleted)
		update.NextRunAt = optional.Some[*time.Time](nil)
		return update
	}

	next, err := CalculateNextRun(job, exec.CompletedAt.In(e.location))
	if err != nil {
		// NextRunAt stays cleared from the claim, so the job is no longer due.
		log.Warn().Err(err).Msg("could not compute next run, job will not run again")
		return update
	}
	update.NextRunAt = optional.Some(next)
	return update
}

func (e *JobExecutor) runAction(ctx context.Context, job *types.Job) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	var out any
	switch job.ActionType {
	case types.ActionReportGeneration:
		out, err = e.generateReport(ctx, job)
	case types.ActionWebhook:
		out, err = e.callWebhook(ctx, job)
	case types.ActionDataExport:
		out, err = e.exportData(ctx, job)
	case types.ActionChatMessage:
		out, err = e.sendChatMessage(ctx, job)
	default:
		return nil, errors.New("Unknown action type: " + string(job.ActionType))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (e *JobExecutor) publish(ctx context.Context, job *types.Job, exec *types.JobExecution, log zerolog.Logger) {
	if e.publisher == nil {
		return
	}
	event := types.ExecutionEvent{
		ExecutionID: exec.ID,
		JobID:       job.ID,
		UserID:      job.UserID,
		ActionType:  job.ActionType,
		Status:      exec.Status,
		StartedAt:   exec.StartedAt,
		CompletedAt: *exec.CompletedAt,
		DurationMs:  *exec.DurationMs,
		Error:       exec.Error,
	}
	if err := e.publisher.PublishExecution(ctx, event); err != nil {
		log.Error().Err(err).Str("execution_id", exec.ID).Msg("failed to publish execution event")
	}
}
