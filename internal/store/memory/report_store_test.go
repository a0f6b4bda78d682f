package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/types"
)

func seededReportStore(t *testing.T) *ReportStore {
	t.Helper()
	clk := newClock()
	s := NewReportStore(clk)
	now := clk.Now()
	s.AddMessages(
		Message{UserID: "user-1", ChatID: "c1", Provider: "openai", Model: "gpt-4o", TokensIn: 10, TokensOut: 30, CreatedAt: now.Add(-time.Hour)},
		Message{UserID: "user-1", ChatID: "c2", Provider: "openai", Model: "gpt-4o-mini", TokensIn: 5, TokensOut: 5, CreatedAt: now.Add(-time.Hour)},
		Message{UserID: "user-1", ChatID: "c1", Provider: "anthropic", Model: "claude", TokensIn: 1, TokensOut: 2, CreatedAt: now.AddDate(0, 0, -2)},
		Message{UserID: "user-1", ChatID: "c3", Provider: "openai", Model: "gpt-4o", CreatedAt: now.AddDate(0, 0, -400)},
		Message{UserID: "user-2", ChatID: "x", Provider: "openai", Model: "gpt-4o", CreatedAt: now},
	)
	return s
}

func TestReportStore_GetDailyMessages(t *testing.T) {
	s := seededReportStore(t)

	rows, err := s.GetDailyMessages(context.Background(), "user-1", 365)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"day", "messages", "chats"}, rows[0].Keys())

	day, _ := rows[1].Get("day")
	assert.Equal(t, "2025-06-18", day)
	messages, _ := rows[1].Get("messages")
	assert.Equal(t, int64(2), messages)
}

func TestReportStore_GetProviderUsage(t *testing.T) {
	s := seededReportStore(t)

	rows, err := s.GetProviderUsage(context.Background(), "user-1", 365)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	provider, _ := rows[0].Get("provider")
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, []string{"provider", "model", "messages", "tokens_in", "tokens_out"}, rows[0].Keys())
}

func TestReportStore_SavedReports(t *testing.T) {
	s := seededReportStore(t)
	ctx := context.Background()
	id := s.SaveReport(types.SavedReport{UserID: "user-1", Name: "providers", Query: types.QueryConfig{Source: "providers", Days: 7}})

	report, err := s.GetSavedReport(ctx, id, "user-1")
	require.NoError(t, err)

	rows, err := s.ExecuteCustomQuery(ctx, "user-1", report.Query)
	require.NoError(t, err)
	assert.Len(t, rows, 2) // anthropic, openai
	require.NoError(t, s.UpdateReportResult(ctx, id, rows))

	report, err = s.GetSavedReport(ctx, id, "user-1")
	require.NoError(t, err)
	assert.Len(t, report.LastResult, 2)

	_, err = s.GetSavedReport(ctx, id, "user-2")
	assert.ErrorIs(t, err, custom_errors.ErrReportNotFound)

	_, err = s.ExecuteCustomQuery(ctx, "user-1", types.QueryConfig{Source: "billing"})
	assert.Error(t, err)
}
