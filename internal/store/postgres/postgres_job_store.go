package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/internal/state"
	"github.com/RezaEskandarii/cronfire/types"
)

const jobColumns = `id, user_id, name, job_type, status,
		       execute_at, interval_seconds, cron_expression,
		       action_type, action_config,
		       next_run_at, last_run_at, run_count, last_error,
		       lease_expires_at, created_at, updated_at`

const executionColumns = `id, job_id, user_id, status, started_at,
		       completed_at, duration_ms, result, error`

// leaseExpiredError is stored on executions abandoned by a crashed poller.
const leaseExpiredError = "execution lease expired"

type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*types.Job, error) {
	var job types.Job
	var config []byte
	err := s.Scan(
		&job.ID, &job.UserID, &job.Name, &job.JobType, &job.Status,
		&job.ExecuteAt, &job.IntervalSeconds, &job.CronExpression,
		&job.ActionType, &config,
		&job.NextRunAt, &job.LastRunAt, &job.RunCount, &job.LastError,
		&job.LeaseExpiresAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.ActionConfig = config
	return &job, nil
}

func scanExecution(s scanner) (*types.JobExecution, error) {
	var exec types.JobExecution
	var result []byte
	err := s.Scan(
		&exec.ID, &exec.JobID, &exec.UserID, &exec.Status, &exec.StartedAt,
		&exec.CompletedAt, &exec.DurationMs, &result, &exec.Error,
	)
	if err != nil {
		return nil, err
	}
	exec.Result = result
	return &exec, nil
}

func (r *PostgresJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]*types.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *PostgresJobStore) CreateJob(ctx context.Context, job *types.Job) (*types.Job, error) {
	config := job.ActionConfig
	if len(config) == 0 {
		config = []byte("{}")
	}
	status := job.Status
	if status == "" {
		status = state.StatusActive
	}

	query := `
		INSERT INTO cronfire_schema.jobs (
			user_id, name, job_type, status, execute_at, interval_seconds, cron_expression,
			action_type, action_config, next_run_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING ` + jobColumns

	created, err := scanJob(r.db.QueryRowContext(ctx, query,
		job.UserID, job.Name, job.JobType, status, job.ExecuteAt, job.IntervalSeconds, job.CronExpression,
		job.ActionType, []byte(config), job.NextRunAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return created, nil
}

func (r *PostgresJobStore) GetActiveJobs(ctx context.Context) ([]*types.Job, error) {
	jobs, err := r.queryJobs(ctx, `
		SELECT `+jobColumns+`
		FROM cronfire_schema.jobs
		WHERE status = $1
		ORDER BY created_at ASC`, state.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active jobs: %w", err)
	}
	return jobs, nil
}

func (r *PostgresJobStore) GetDueJobs(ctx context.Context, now time.Time, limit int) ([]*types.Job, error) {
	jobs, err := r.queryJobs(ctx, `
		SELECT `+jobColumns+`
		FROM cronfire_schema.jobs
		WHERE status = $1
		  AND next_run_at IS NOT NULL
		  AND next_run_at <= $2
		ORDER BY next_run_at ASC
		LIMIT $3`, state.StatusActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due jobs: %w", err)
	}
	return jobs, nil
}

func (r *PostgresJobStore) ClaimDueJob(ctx context.Context, jobID, userID string, expectedNextRunAt time.Time, lease time.Duration) (*types.Job, error) {
	query := `
		UPDATE cronfire_schema.jobs
		SET next_run_at = NULL,
		    claimed_at = now(),
		    lease_expires_at = now() + make_interval(secs => $1),
		    updated_at = now()
		WHERE id = $2
		  AND user_id = $3
		  AND status = $4
		  AND next_run_at = $5
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRowContext(ctx, query,
		lease.Seconds(), jobID, userID, state.StatusActive, expectedNextRunAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	return job, nil
}

func (r *PostgresJobStore) RecoverStaleRunningJobs(ctx context.Context, lease time.Duration) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE cronfire_schema.job_executions
		SET status = $1,
		    completed_at = now(),
		    duration_ms = (EXTRACT(EPOCH FROM now() - started_at) * 1000)::bigint,
		    error = $2
		WHERE status = $3
		  AND started_at < now() - make_interval(secs => $4)`,
		state.ExecutionFailed, leaseExpiredError, state.ExecutionRunning, lease.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to expire running executions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE cronfire_schema.jobs
		SET next_run_at = now(),
		    claimed_at = NULL,
		    lease_expires_at = NULL,
		    updated_at = now()
		WHERE status = $1
		  AND next_run_at IS NULL
		  AND lease_expires_at IS NOT NULL
		  AND lease_expires_at < now()`, state.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to re-arm stale jobs: %w", err)
	}
	recovered, _ := res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return recovered, nil
}

func (r *PostgresJobStore) GetJob(ctx context.Context, jobID, userID string) (*types.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM cronfire_schema.jobs
		WHERE id = $1 AND user_id = $2`, jobID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", custom_errors.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", jobID, err)
	}
	return job, nil
}

func (r *PostgresJobStore) UpdateJob(ctx context.Context, jobID, userID string, update types.JobUpdate) error {
	var sets []string
	var args []any
	argIndex := 1
	set := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if status, ok := update.Status.Get(); ok {
		set("status", status)
	}
	if next, ok := update.NextRunAt.Get(); ok {
		set("next_run_at", next)
	}
	if last, ok := update.LastRunAt.Get(); ok {
		set("last_run_at", last)
	}
	if update.IncrementRunCount {
		sets = append(sets, "run_count = run_count + 1")
	}
	if lastErr, ok := update.LastError.Get(); ok {
		set("last_error", lastErr)
	}
	if update.ReleaseClaim {
		sets = append(sets, "claimed_at = NULL", "lease_expires_at = NULL")
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`
		UPDATE cronfire_schema.jobs
		SET %s
		WHERE id = $%d AND user_id = $%d`, strings.Join(sets, ", "), argIndex, argIndex+1)
	args = append(args, jobID, userID)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", custom_errors.ErrJobNotFound, jobID)
	}
	return nil
}

func (r *PostgresJobStore) AddJobExecution(ctx context.Context, jobID, userID string, startedAt time.Time) (*types.JobExecution, error) {
	exec, err := scanExecution(r.db.QueryRowContext(ctx, `
		INSERT INTO cronfire_schema.job_executions (id, job_id, user_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+executionColumns,
		uuid.NewString(), jobID, userID, state.ExecutionRunning, startedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert execution for job %s: %w", jobID, err)
	}
	return exec, nil
}

// UpdateJobExecution only touches executions that are still running so a
// terminal status is written once.
func (r *PostgresJobStore) UpdateJobExecution(ctx context.Context, executionID string, update types.ExecutionUpdate) error {
	var result any
	if len(update.Result) > 0 {
		result = []byte(update.Result)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE cronfire_schema.job_executions
		SET status = $1, completed_at = $2, duration_ms = $3, result = $4, error = $5
		WHERE id = $6 AND status = $7`,
		update.Status, update.CompletedAt, update.DurationMs, result, update.Error,
		executionID, state.ExecutionRunning)
	if err != nil {
		return fmt.Errorf("failed to update execution %s: %w", executionID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", custom_errors.ErrExecutionNotRunning, executionID)
	}
	return nil
}

func (r *PostgresJobStore) GetJobExecutions(ctx context.Context, jobID, userID string, limit int) ([]*types.JobExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+executionColumns+`
		FROM cronfire_schema.job_executions
		WHERE job_id = $1 AND user_id = $2
		ORDER BY started_at DESC
		LIMIT $3`, jobID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch executions: %w", err)
	}
	defer rows.Close()

	var execs []*types.JobExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

func (r *PostgresJobStore) Close() error {
	return r.db.Close()
}
