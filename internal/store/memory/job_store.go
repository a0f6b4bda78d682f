// Package memory implements the stores in process memory. It is meant for a
// single scheduler process and for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/internal/state"
	"github.com/RezaEskandarii/cronfire/types"
)

const leaseExpiredError = "execution lease expired"

type JobStore struct {
	clock clock.Clock

	mu         sync.Mutex
	jobs       map[string]*types.Job
	executions map[string]*types.JobExecution
}

func NewJobStore(clk clock.Clock) *JobStore {
	if clk == nil {
		clk = clock.New()
	}
	return &JobStore{
		clock:      clk,
		jobs:       map[string]*types.Job{},
		executions: map[string]*types.JobExecution{},
	}
}

func copyJob(j *types.Job) *types.Job {
	c := *j
	c.ActionConfig = append([]byte(nil), j.ActionConfig...)
	return &c
}

func copyExecution(e *types.JobExecution) *types.JobExecution {
	c := *e
	c.Result = append([]byte(nil), e.Result...)
	return &c
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func (s *JobStore) CreateJob(_ context.Context, job *types.Job) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyJob(job)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.jobs[c.ID]; exists {
		return nil, fmt.Errorf("job %s already exists", c.ID)
	}
	if c.Status == "" {
		c.Status = state.StatusActive
	}
	if len(c.ActionConfig) == 0 {
		c.ActionConfig = []byte("{}")
	}
	now := s.clock.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.jobs[c.ID] = c
	return copyJob(c), nil
}

func (s *JobStore) GetActiveJobs(_ context.Context) ([]*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.Job
	for _, j := range s.jobs {
		if j.Status == state.StatusActive {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *JobStore) GetDueJobs(_ context.Context, now time.Time, limit int) ([]*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.Job
	for _, j := range s.jobs {
		if j.Status == state.StatusActive && j.NextRunAt != nil && !j.NextRunAt.After(now) {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].NextRunAt.Before(*out[b].NextRunAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobStore) ClaimDueJob(_ context.Context, jobID, userID string, expectedNextRunAt time.Time, lease time.Duration) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || j.UserID != userID || j.Status != state.StatusActive {
		return nil, nil
	}
	if j.NextRunAt == nil || !j.NextRunAt.Equal(expectedNextRunAt) {
		return nil, nil
	}

	now := s.clock.Now()
	j.NextRunAt = nil
	j.LeaseExpiresAt = timePtr(now.Add(lease))
	j.UpdatedAt = now
	return copyJob(j), nil
}

func (s *JobStore) RecoverStaleRunningJobs(_ context.Context, lease time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-lease)
	for _, e := range s.executions {
		if e.Status == state.ExecutionRunning && e.StartedAt.Before(cutoff) {
			msg := leaseExpiredError
			duration := now.Sub(e.StartedAt).Milliseconds()
			e.Status = state.ExecutionFailed
			e.CompletedAt = timePtr(now)
			e.DurationMs = &duration
			e.Error = &msg
		}
	}

	var recovered int64
	for _, j := range s.jobs {
		if j.Status != state.StatusActive || j.NextRunAt != nil || j.LeaseExpiresAt == nil {
			continue
		}
		if j.LeaseExpiresAt.Before(now) {
			j.NextRunAt = timePtr(now)
			j.LeaseExpiresAt = nil
			j.UpdatedAt = now
			recovered++
		}
	}
	return recovered, nil
}

func (s *JobStore) GetJob(_ context.Context, jobID, userID string) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || j.UserID != userID {
		return nil, fmt.Errorf("%w: %s", custom_errors.ErrJobNotFound, jobID)
	}
	return copyJob(j), nil
}

func (s *JobStore) UpdateJob(_ context.Context, jobID, userID string, update types.JobUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || j.UserID != userID {
		return fmt.Errorf("%w: %s", custom_errors.ErrJobNotFound, jobID)
	}
	if status, ok := update.Status.Get(); ok {
		j.Status = status
	}
	if next, ok := update.NextRunAt.Get(); ok {
		j.NextRunAt = nil
		if next != nil {
			j.NextRunAt = timePtr(*next)
		}
	}
	if last, ok := update.LastRunAt.Get(); ok {
		j.LastRunAt = timePtr(last)
	}
	if update.IncrementRunCount {
		j.RunCount++
	}
	if lastErr, ok := update.LastError.Get(); ok {
		j.LastError = nil
		if lastErr != nil {
			msg := *lastErr
			j.LastError = &msg
		}
	}
	if update.ReleaseClaim {
		j.LeaseExpiresAt = nil
	}
	j.UpdatedAt = s.clock.Now()
	return nil
}

func (s *JobStore) AddJobExecution(_ context.Context, jobID, userID string, startedAt time.Time) (*types.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return nil, fmt.Errorf("%w: %s", custom_errors.ErrJobNotFound, jobID)
	}
	for _, e := range s.executions {
		if e.JobID == jobID && e.Status == state.ExecutionRunning {
			return nil, fmt.Errorf("job %s already has a running execution", jobID)
		}
	}

	e := &types.JobExecution{
		ID:        uuid.NewString(),
		JobID:     jobID,
		UserID:    userID,
		Status:    state.ExecutionRunning,
		StartedAt: startedAt,
	}
	s.executions[e.ID] = e
	return copyExecution(e), nil
}

func (s *JobStore) UpdateJobExecution(_ context.Context, executionID string, update types.ExecutionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.executions[executionID]
	if !ok {
		return fmt.Errorf("execution %s not found", executionID)
	}
	if !state.IsValidExecutionTransition(e.Status, update.Status) {
		return fmt.Errorf("%w: %s", custom_errors.ErrExecutionNotRunning, executionID)
	}
	duration := update.DurationMs
	e.Status = update.Status
	e.CompletedAt = timePtr(update.CompletedAt)
	e.DurationMs = &duration
	e.Result = append([]byte(nil), update.Result...)
	e.Error = update.Error
	return nil
}

func (s *JobStore) GetJobExecutions(_ context.Context, jobID, userID string, limit int) ([]*types.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.JobExecution
	for _, e := range s.executions {
		if e.JobID == jobID && e.UserID == userID {
			out = append(out, copyExecution(e))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobStore) Close() error {
	return nil
}
