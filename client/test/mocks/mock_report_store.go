package mocks

import (
	"context"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/types"
)

// MockReportStore is a mock implementation of store.ReportStore for testing.
type MockReportStore struct {
	GetSavedReportFunc     func(ctx context.Context, reportID, userID string) (*types.SavedReport, error)
	ExecuteCustomQueryFunc func(ctx context.Context, userID string, query types.QueryConfig) ([]*types.Row, error)
	UpdateReportResultFunc func(ctx context.Context, reportID string, rows []*types.Row) error
	GetDailyMessagesFunc   func(ctx context.Context, userID string, days int) ([]*types.Row, error)
	GetProviderUsageFunc   func(ctx context.Context, userID string, days int) ([]*types.Row, error)
}

func (m *MockReportStore) GetSavedReport(ctx context.Context, reportID, userID string) (*types.SavedReport, error) {
	if m.GetSavedReportFunc != nil {
		return m.GetSavedReportFunc(ctx, reportID, userID)
	}
	return nil, custom_errors.ErrReportNotFound
}

func (m *MockReportStore) ExecuteCustomQuery(ctx context.Context, userID string, query types.QueryConfig) ([]*types.Row, error) {
	if m.ExecuteCustomQueryFunc != nil {
		return m.ExecuteCustomQueryFunc(ctx, userID, query)
	}
	return nil, nil
}

func (m *MockReportStore) UpdateReportResult(ctx context.Context, reportID string, rows []*types.Row) error {
	if m.UpdateReportResultFunc != nil {
		return m.UpdateReportResultFunc(ctx, reportID, rows)
	}
	return nil
}

func (m *MockReportStore) GetDailyMessages(ctx context.Context, userID string, days int) ([]*types.Row, error) {
	if m.GetDailyMessagesFunc != nil {
		return m.GetDailyMessagesFunc(ctx, userID, days)
	}
	return nil, nil
}

func (m *MockReportStore) GetProviderUsage(ctx context.Context, userID string, days int) ([]*types.Row, error) {
	if m.GetProviderUsageFunc != nil {
		return m.GetProviderUsageFunc(ctx, userID, days)
	}
	return nil, nil
}
