package test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/cronfire/types"
	"github.com/RezaEskandarii/cronfire/types/config"
)

var baseTime = time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)

func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(baseTime)
	return clk
}

type fakeResolver map[string]string

func (f fakeResolver) LookupNetIP(_ context.Context, _ string, host string) ([]netip.Addr, error) {
	addr, ok := f[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return []netip.Addr{netip.MustParseAddr(addr)}, nil
}

var publicDNS = fakeResolver{
	"hooks.example.com": "93.184.216.34",
	"loop.example.com":  "127.0.0.1",
}

// clientTo returns an http.Client that sends every request to addr,
// whatever host the URL names.
func clientTo(addr string) *http.Client {
	dialer := &net.Dialer{Timeout: time.Second}
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}}
}

// recorder captures the writes an executor makes to the job store.
type recorder struct {
	mu         sync.Mutex
	executions []types.ExecutionUpdate
	jobs       []types.JobUpdate
}

func (r *recorder) updateExecution(_ context.Context, _ string, u types.ExecutionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, u)
	return nil
}

func (r *recorder) updateJob(_ context.Context, _, _ string, u types.JobUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, u)
	return nil
}

func (r *recorder) lastExecution(t *testing.T) types.ExecutionUpdate {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.executions)
	return r.executions[len(r.executions)-1]
}

func (r *recorder) lastJob(t *testing.T) types.JobUpdate {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.jobs)
	return r.jobs[len(r.jobs)-1]
}

func rawConfig(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func cronJob(expr string, action types.ActionType, cfg json.RawMessage) *types.Job {
	return &types.Job{
		ID:             "job-1",
		UserID:         "user-1",
		Name:           "job",
		JobType:        types.JobTypeCron,
		CronExpression: &expr,
		ActionType:     action,
		ActionConfig:   cfg,
		RunCount:       3,
	}
}

func oneTimeJob(action types.ActionType, cfg json.RawMessage) *types.Job {
	at := baseTime.Add(-time.Minute)
	return &types.Job{
		ID:           "job-1",
		UserID:       "user-1",
		Name:         "once",
		JobType:      types.JobTypeOneTime,
		ExecuteAt:    &at,
		ActionType:   action,
		ActionConfig: cfg,
	}
}

func testConfig(t *testing.T, opts ...config.ContainerOption) *config.SchedulerConfig {
	t.Helper()
	opts = append([]config.ContainerOption{config.WithStorageDriver(config.Memory)}, opts...)
	cfg, err := config.NewSchedulerConfig("test-instance", opts...)
	require.NoError(t, err)
	return cfg
}
