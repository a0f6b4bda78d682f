package test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/cronfire/client"
	"github.com/RezaEskandarii/cronfire/client/test/mocks"
	"github.com/RezaEskandarii/cronfire/internal/ai"
	"github.com/RezaEskandarii/cronfire/internal/constants"
	"github.com/RezaEskandarii/cronfire/internal/state"
	"github.com/RezaEskandarii/cronfire/internal/store/memory"
	"github.com/RezaEskandarii/cronfire/pgk/webhook"
	"github.com/RezaEskandarii/cronfire/types"
)

type executorFixture struct {
	jobs     *mocks.MockJobStore
	reports  *mocks.MockReportStore
	provider *mocks.MockProvider
	rec      *recorder
	executor *client.JobExecutor
}

func newExecutorFixture(t *testing.T, opts ...client.ExecutorOption) *executorFixture {
	t.Helper()
	rec := &recorder{}
	f := &executorFixture{
		jobs: &mocks.MockJobStore{
			UpdateJobExecutionFunc: rec.updateExecution,
			UpdateJobFunc:          rec.updateJob,
		},
		reports:  &mocks.MockReportStore{},
		provider: &mocks.MockProvider{ProviderName: "openai"},
		rec:      rec,
	}
	registry := ai.NewRegistry("openai", f.provider)
	validator := webhook.NewValidator(nil, webhook.WithResolver(publicDNS))
	opts = append([]client.ExecutorOption{client.WithExecutorClock(newMockClock())}, opts...)
	f.executor = client.NewJobExecutor(f.jobs, f.reports, registry, validator, zerolog.Nop(), opts...)
	return f
}

func (f *executorFixture) run(t *testing.T, job *types.Job) *types.JobExecution {
	t.Helper()
	exec, err := f.executor.ExecuteJob(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, exec)
	return exec
}

func TestExecuteJob_OneTimeCompletes(t *testing.T) {
	for _, action := range []types.ActionType{types.ActionDataExport, "bogus"} {
		t.Run(string(action), func(t *testing.T) {
			f := newExecutorFixture(t)
			f.run(t, oneTimeJob(action, nil))

			update := f.rec.lastJob(t)
			status, ok := update.Status.Get()
			require.True(t, ok)
			assert.Equal(t, state.StatusCompleted, status)
			next, ok := update.NextRunAt.Get()
			require.True(t, ok)
			assert.Nil(t, next)
			assert.True(t, update.IncrementRunCount)
			assert.True(t, update.ReleaseClaim)
		})
	}
}

func TestExecuteJob_UnknownAction(t *testing.T) {
	f := newExecutorFixture(t)
	exec := f.run(t, cronJob("0 * * * *", "send_fax", nil))

	assert.Equal(t, state.ExecutionFailed, exec.Status)
	require.NotNil(t, exec.Error)
	assert.Equal(t, "Unknown action type: send_fax", *exec.Error)

	update := f.rec.lastJob(t)
	assert.True(t, update.IncrementRunCount)
	lastErr := update.LastError.MustGet()
	require.NotNil(t, lastErr)
	assert.Equal(t, "Unknown action type: send_fax", *lastErr)
	assert.False(t, update.Status.Ok(), "recurring jobs stay active after a failure")
	next := update.NextRunAt.MustGet()
	require.NotNil(t, next)
	assert.Equal(t, baseTime.Add(time.Hour), *next)
	assert.Equal(t, baseTime, update.LastRunAt.MustGet())
}

func TestExecuteJob_InvalidCronLeavesNextRunUnset(t *testing.T) {
	f := newExecutorFixture(t)
	f.run(t, cronJob("0 0 31 2 mon#9", types.ActionDataExport, nil))

	update := f.rec.lastJob(t)
	assert.False(t, update.NextRunAt.Ok())
	assert.False(t, update.Status.Ok())
	assert.True(t, update.IncrementRunCount)
}

func TestExecuteJob_Recurring(t *testing.T) {
	f := newExecutorFixture(t)
	interval := int64(300)
	job := cronJob("", types.ActionDataExport, nil)
	job.JobType = types.JobTypeRecurring
	job.CronExpression = nil
	job.IntervalSeconds = &interval

	exec := f.run(t, job)
	assert.Equal(t, state.ExecutionSuccess, exec.Status)

	update := f.rec.lastJob(t)
	assert.Equal(t, baseTime.Add(5*time.Minute), *update.NextRunAt.MustGet())
	assert.Nil(t, update.LastError.MustGet(), "success clears the last error")
}

func TestExecuteJob_WebhookRejectsLoopback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	f := newExecutorFixture(t, client.WithHTTPClient(clientTo(srv.Listener.Addr().String())))
	for _, url := range []string{"http://127.0.0.1:8080/hook", "http://loop.example.com/hook", "http://localhost/hook"} {
		exec := f.run(t, cronJob("* * * * *", types.ActionWebhook, rawConfig(t, types.WebhookConfig{URL: url})))
		assert.Equal(t, state.ExecutionFailed, exec.Status, url)
	}
	assert.False(t, called)
}

func TestExecuteJob_Webhook(t *testing.T) {
	type received struct {
		method, contentType, token, body string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{r.Method, r.Header.Get("Content-Type"), r.Header.Get("X-Token"), string(body)}
		_, _ = w.Write([]byte("accepted"))
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		cfg    types.WebhookConfig
		expect received
	}{
		{
			name:   "string body is sent verbatim",
			cfg:    types.WebhookConfig{URL: "http://hooks.example.com/notify", Body: json.RawMessage(`"plain text"`), Headers: map[string]string{"X-Token": "t1"}},
			expect: received{"POST", "application/json", "t1", "plain text"},
		},
		{
			name:   "object body is sent as json",
			cfg:    types.WebhookConfig{URL: "http://hooks.example.com/notify", Method: "post", Body: json.RawMessage(`{"a":1}`)},
			expect: received{"POST", "application/json", "", `{"a":1}`},
		},
		{
			name:   "get without body",
			cfg:    types.WebhookConfig{URL: "http://hooks.example.com/notify", Method: "GET", Headers: map[string]string{"Content-Type": "text/plain"}},
			expect: received{"GET", "text/plain", "", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(t, client.WithHTTPClient(clientTo(srv.Listener.Addr().String())))
			exec := f.run(t, cronJob("* * * * *", types.ActionWebhook, rawConfig(t, tt.cfg)))
			require.Equal(t, state.ExecutionSuccess, exec.Status, "error: %v", exec.Error)
			assert.Equal(t, tt.expect, <-got)

			var result types.WebhookResult
			require.NoError(t, json.Unmarshal(exec.Result, &result))
			assert.Equal(t, types.WebhookResult{Status: 200, StatusText: "OK", Body: "accepted"}, result)
		})
	}
}

func TestExecuteJob_WebhookFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	f := newExecutorFixture(t, client.WithHTTPClient(clientTo(srv.Listener.Addr().String())))

	tests := []struct {
		name   string
		cfg    types.WebhookConfig
		expect string
	}{
		{"non 2xx", types.WebhookConfig{URL: "http://hooks.example.com/x"}, "503 Service Unavailable"},
		{"method", types.WebhookConfig{URL: "http://hooks.example.com/x", Method: "PUT"}, "unsupported webhook method"},
		{"missing url", types.WebhookConfig{}, "url is required"},
		{"scheme", types.WebhookConfig{URL: "ftp://hooks.example.com/x"}, webhook.ErrUnsupportedScheme.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := f.run(t, cronJob("* * * * *", types.ActionWebhook, rawConfig(t, tt.cfg)))
			assert.Equal(t, state.ExecutionFailed, exec.Status)
			require.NotNil(t, exec.Error)
			assert.Contains(t, *exec.Error, tt.expect)
		})
	}
}

func TestExecuteJob_DataExportCSVRoundTrip(t *testing.T) {
	f := newExecutorFixture(t)
	f.reports.GetProviderUsageFunc = func(_ context.Context, userID string, days int) ([]*types.Row, error) {
		assert.Equal(t, "user-1", userID)
		assert.Equal(t, constants.ExportDays, days)
		return []*types.Row{
			types.RowOf("provider", "acme, inc", "messages", int64(2)),
			types.RowOf("provider", `say "hi"`, "messages", int64(3), "model", "multi\nline"),
			types.RowOf("model", "plain"),
		}, nil
	}

	exec := f.run(t, cronJob("* * * * *", types.ActionDataExport,
		rawConfig(t, types.DataExportConfig{Source: "provider_usage", Format: "csv"})))
	require.Equal(t, state.ExecutionSuccess, exec.Status)

	var result types.DataExportResult
	require.NoError(t, json.Unmarshal(exec.Result, &result))
	assert.Equal(t, "csv", result.Format)
	assert.Equal(t, 3, result.RowCount)
	assert.Equal(t, "provider_usage", result.Source)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Data, "provider,messages,model\n"))

	records, err := csv.NewReader(strings.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"provider", "messages", "model"},
		{"acme, inc", "2", ""},
		{`say "hi"`, "3", "multi\nline"},
		{"", "", "plain"},
	}, records)
}

func TestExecuteJob_DataExportJSON(t *testing.T) {
	f := newExecutorFixture(t)
	f.reports.GetDailyMessagesFunc = func(_ context.Context, _ string, _ int) ([]*types.Row, error) {
		return []*types.Row{types.RowOf("day", "2025-06-18", "messages", int64(4))}, nil
	}

	exec := f.run(t, cronJob("* * * * *", types.ActionDataExport, nil))
	var result types.DataExportResult
	require.NoError(t, json.Unmarshal(exec.Result, &result))
	assert.Equal(t, "json", result.Format)
	assert.Equal(t, "messages", result.Source)
	assert.JSONEq(t, `[{"day":"2025-06-18","messages":4}]`, result.Data)

	exec = f.run(t, cronJob("* * * * *", types.ActionDataExport, rawConfig(t, types.DataExportConfig{Format: "xml"})))
	assert.Equal(t, state.ExecutionFailed, exec.Status)
}

func TestExecuteJob_ReportGeneration(t *testing.T) {
	f := newExecutorFixture(t)
	query := types.QueryConfig{Source: "messages", GroupBy: "chat"}
	var saved []*types.Row
	f.reports.GetSavedReportFunc = func(_ context.Context, reportID, userID string) (*types.SavedReport, error) {
		return &types.SavedReport{ID: reportID, UserID: userID, Query: query}, nil
	}
	f.reports.ExecuteCustomQueryFunc = func(_ context.Context, _ string, q types.QueryConfig) ([]*types.Row, error) {
		assert.Equal(t, query, q)
		return []*types.Row{types.RowOf("chat_id", "c1"), types.RowOf("chat_id", "c2")}, nil
	}
	f.reports.UpdateReportResultFunc = func(_ context.Context, _ string, rows []*types.Row) error {
		saved = rows
		return nil
	}

	exec := f.run(t, cronJob("* * * * *", types.ActionReportGeneration, rawConfig(t, types.ReportGenerationConfig{ReportID: "r-1"})))
	require.Equal(t, state.ExecutionSuccess, exec.Status)
	assert.JSONEq(t, `{"reportId":"r-1","rowCount":2}`, string(exec.Result))
	assert.Len(t, saved, 2)
}

func TestExecuteJob_ReportNotFound(t *testing.T) {
	f := newExecutorFixture(t)
	exec := f.run(t, cronJob("* * * * *", types.ActionReportGeneration, rawConfig(t, types.ReportGenerationConfig{ReportID: "r-9"})))
	require.NotNil(t, exec.Error)
	assert.Equal(t, "report not found: r-9", *exec.Error)
}

func TestExecuteJob_ChatMessage(t *testing.T) {
	f := newExecutorFixture(t)
	f.provider.Chunks = []ai.Chunk{
		{Type: ai.ChunkText, Content: "Good "},
		{Type: ai.ChunkText, Content: "morning"},
	}

	exec := f.run(t, cronJob("* * * * *", types.ActionChatMessage, rawConfig(t, types.ChatMessageConfig{Prompt: "greet me"})))
	require.Equal(t, state.ExecutionSuccess, exec.Status)

	var result types.ChatMessageResult
	require.NoError(t, json.Unmarshal(exec.Result, &result))
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "Good morning", result.Response)
	assert.Equal(t, len("Good morning"), result.ResponseLength)
	_, err := uuid.Parse(result.ChatID)
	assert.NoError(t, err)
	assert.Equal(t, result.ChatID, f.provider.LastRequest.ChatID)
	assert.Equal(t, "user-1", f.provider.LastRequest.UserID)
}

func TestExecuteJob_ChatMessageFailures(t *testing.T) {
	f := newExecutorFixture(t)
	f.provider.Chunks = []ai.Chunk{
		{Type: ai.ChunkText, Content: "partial"},
		{Type: ai.ChunkError, Message: "rate limited"},
	}

	exec := f.run(t, cronJob("* * * * *", types.ActionChatMessage, rawConfig(t, types.ChatMessageConfig{Prompt: "hi", ChatID: "c1"})))
	require.NotNil(t, exec.Error)
	assert.Equal(t, "rate limited", *exec.Error)

	exec = f.run(t, cronJob("* * * * *", types.ActionChatMessage, rawConfig(t, types.ChatMessageConfig{Prompt: "  "})))
	require.NotNil(t, exec.Error)
	assert.Equal(t, "prompt is required", *exec.Error)

	exec = f.run(t, cronJob("* * * * *", types.ActionChatMessage, rawConfig(t, types.ChatMessageConfig{Prompt: "hi", Provider: "nope"})))
	assert.Equal(t, state.ExecutionFailed, exec.Status)
}

func TestExecuteJob_RecoversPanics(t *testing.T) {
	f := newExecutorFixture(t)
	f.reports.GetDailyMessagesFunc = func(context.Context, string, int) ([]*types.Row, error) {
		panic("boom")
	}

	exec := f.run(t, cronJob("* * * * *", types.ActionDataExport, nil))
	assert.Equal(t, state.ExecutionFailed, exec.Status)
	assert.Contains(t, *exec.Error, "boom")
	assert.True(t, f.rec.lastJob(t).IncrementRunCount)
}

func TestExecuteJob_StoreFailure(t *testing.T) {
	f := newExecutorFixture(t)
	f.jobs.AddJobExecutionFunc = func(context.Context, string, string, time.Time) (*types.JobExecution, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.executor.ExecuteJob(context.Background(), cronJob("* * * * *", types.ActionDataExport, nil))
	assert.Error(t, err)
	assert.Empty(t, f.rec.jobs)
}

func TestExecuteJob_PublishesEvent(t *testing.T) {
	var published []byte
	broker := &mocks.MockMessageBroker{PublishFunc: func(_ context.Context, msg []byte) error {
		published = msg
		return nil
	}}
	f := newExecutorFixture(t, client.WithPublisher(client.NewBrokerPublisher(broker)))

	f.run(t, cronJob("* * * * *", "bogus", nil))

	var event types.ExecutionEvent
	require.NoError(t, json.Unmarshal(published, &event))
	assert.Equal(t, "job-1", event.JobID)
	assert.Equal(t, "exec-1", event.ExecutionID)
	assert.Equal(t, state.ExecutionFailed, event.Status)
	require.NotNil(t, event.Error)
	assert.Equal(t, "Unknown action type: bogus", *event.Error)
}

func TestExecuteJob_RunOutlivesLease(t *testing.T) {
	ctx := context.Background()
	clk := newMockClock()
	jobStore := memory.NewJobStore(clk)
	due := clk.Now()
	expr := "0 * * * *"
	_, err := jobStore.CreateJob(ctx, &types.Job{
		ID: "job-1", UserID: "user-1", JobType: types.JobTypeCron, CronExpression: &expr, NextRunAt: &due,
		ActionType:   types.ActionChatMessage,
		ActionConfig: rawConfig(t, types.ChatMessageConfig{Prompt: "summarize"}),
	})
	require.NoError(t, err)

	started := make(chan struct{})
	stream := make(chan ai.Chunk, 1)
	provider := &mocks.MockProvider{
		ProviderName: "openai",
		QueryFunc: func(context.Context, ai.QueryRequest) (<-chan ai.Chunk, error) {
			close(started)
			return stream, nil
		},
	}
	executor := client.NewJobExecutor(jobStore, memory.NewReportStore(clk), ai.NewRegistry("openai", provider),
		webhook.NewValidator(nil), zerolog.Nop(), client.WithExecutorClock(clk))

	claimed, err := jobStore.ClaimDueJob(ctx, "job-1", "user-1", due, 2*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	type outcome struct {
		exec *types.JobExecution
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		exec, err := executor.ExecuteJob(ctx, claimed)
		done <- outcome{exec, err}
	}()
	<-started

	clk.Add(3 * time.Minute)
	recovered, err := jobStore.RecoverStaleRunningJobs(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	stream <- ai.Chunk{Type: ai.ChunkText, Content: "done"}
	close(stream)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, state.ExecutionFailed, res.exec.Status)

	job, err := jobStore.GetJob(ctx, "job-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.RunCount)
	require.NotNil(t, job.LastRunAt)
	assert.Equal(t, baseTime.Add(3*time.Minute), *job.LastRunAt)
	assert.Nil(t, job.LastError)
	require.NotNil(t, job.NextRunAt, "the re-armed next run is kept")
	assert.Equal(t, baseTime.Add(3*time.Minute), *job.NextRunAt)

	execs, err := jobStore.GetJobExecutions(ctx, "job-1", "user-1", 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, state.ExecutionFailed, execs[0].Status)
	require.NotNil(t, execs[0].Error)
	assert.Equal(t, "execution lease expired", *execs[0].Error)
}
