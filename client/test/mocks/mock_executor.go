package mocks

import (
	"context"
	"sync"

	"github.com/RezaEskandarii/cronfire/types"
)

// MockExecutor is a mock implementation of client.Executor that records the
// jobs it was asked to run.
type MockExecutor struct {
	ExecuteJobFunc func(ctx context.Context, job *types.Job) (*types.JobExecution, error)

	mu   sync.Mutex
	jobs []*types.Job
}

func (m *MockExecutor) ExecuteJob(ctx context.Context, job *types.Job) (*types.JobExecution, error) {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	if m.ExecuteJobFunc != nil {
		return m.ExecuteJobFunc(ctx, job)
	}
	return &types.JobExecution{JobID: job.ID, UserID: job.UserID}, nil
}

func (m *MockExecutor) Executed() []*types.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Job(nil), m.jobs...)
}
