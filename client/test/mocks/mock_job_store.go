package mocks

import (
	"context"
	"time"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/types"
)

// MockJobStore is a mock implementation of store.JobStore for testing.
type MockJobStore struct {
	CreateJobFunc               func(ctx context.Context, job *types.Job) (*types.Job, error)
	GetActiveJobsFunc           func(ctx context.Context) ([]*types.Job, error)
	GetDueJobsFunc              func(ctx context.Context, now time.Time, limit int) ([]*types.Job, error)
	ClaimDueJobFunc             func(ctx context.Context, jobID, userID string, expectedNextRunAt time.Time, lease time.Duration) (*types.Job, error)
	RecoverStaleRunningJobsFunc func(ctx context.Context, lease time.Duration) (int64, error)
	GetJobFunc                  func(ctx context.Context, jobID, userID string) (*types.Job, error)
	UpdateJobFunc               func(ctx context.Context, jobID, userID string, update types.JobUpdate) error
	AddJobExecutionFunc         func(ctx context.Context, jobID, userID string, startedAt time.Time) (*types.JobExecution, error)
	UpdateJobExecutionFunc      func(ctx context.Context, executionID string, update types.ExecutionUpdate) error
	GetJobExecutionsFunc        func(ctx context.Context, jobID, userID string, limit int) ([]*types.JobExecution, error)
	CloseFunc                   func() error
}

func (m *MockJobStore) CreateJob(ctx context.Context, job *types.Job) (*types.Job, error) {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, job)
	}
	return job, nil
}

func (m *MockJobStore) GetActiveJobs(ctx context.Context) ([]*types.Job, error) {
	if m.GetActiveJobsFunc != nil {
		return m.GetActiveJobsFunc(ctx)
	}
	return nil, nil
}

func (m *MockJobStore) GetDueJobs(ctx context.Context, now time.Time, limit int) ([]*types.Job, error) {
	if m.GetDueJobsFunc != nil {
		return m.GetDueJobsFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *MockJobStore) ClaimDueJob(ctx context.Context, jobID, userID string, expectedNextRunAt time.Time, lease time.Duration) (*types.Job, error) {
	if m.ClaimDueJobFunc != nil {
		return m.ClaimDueJobFunc(ctx, jobID, userID, expectedNextRunAt, lease)
	}
	return nil, nil
}

func (m *MockJobStore) RecoverStaleRunningJobs(ctx context.Context, lease time.Duration) (int64, error) {
	if m.RecoverStaleRunningJobsFunc != nil {
		return m.RecoverStaleRunningJobsFunc(ctx, lease)
	}
	return 0, nil
}

func (m *MockJobStore) GetJob(ctx context.Context, jobID, userID string) (*types.Job, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, jobID, userID)
	}
	return nil, custom_errors.ErrJobNotFound
}

func (m *MockJobStore) UpdateJob(ctx context.Context, jobID, userID string, update types.JobUpdate) error {
	if m.UpdateJobFunc != nil {
		return m.UpdateJobFunc(ctx, jobID, userID, update)
	}
	return nil
}

func (m *MockJobStore) AddJobExecution(ctx context.Context, jobID, userID string, startedAt time.Time) (*types.JobExecution, error) {
	if m.AddJobExecutionFunc != nil {
		return m.AddJobExecutionFunc(ctx, jobID, userID, startedAt)
	}
	return &types.JobExecution{ID: "exec-1", JobID: jobID, UserID: userID, StartedAt: startedAt}, nil
}

func (m *MockJobStore) UpdateJobExecution(ctx context.Context, executionID string, update types.ExecutionUpdate) error {
	if m.UpdateJobExecutionFunc != nil {
		return m.UpdateJobExecutionFunc(ctx, executionID, update)
	}
	return nil
}

func (m *MockJobStore) GetJobExecutions(ctx context.Context, jobID, userID string, limit int) ([]*types.JobExecution, error) {
	if m.GetJobExecutionsFunc != nil {
		return m.GetJobExecutionsFunc(ctx, jobID, userID, limit)
	}
	return nil, nil
}

func (m *MockJobStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
