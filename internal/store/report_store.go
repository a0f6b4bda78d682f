package store

import (
	"context"

	"github.com/RezaEskandarii/cronfire/types"
)

// ReportStore serves saved reports and usage data to report_generation and
// data_export jobs.
type ReportStore interface {
	// GetSavedReport returns custom_errors.ErrReportNotFound for an unknown id.
	GetSavedReport(ctx context.Context, reportID, userID string) (*types.SavedReport, error)
	ExecuteCustomQuery(ctx context.Context, userID string, query types.QueryConfig) ([]*types.Row, error)
	UpdateReportResult(ctx context.Context, reportID string, rows []*types.Row) error
	GetDailyMessages(ctx context.Context, userID string, days int) ([]*types.Row, error)
	GetProviderUsage(ctx context.Context, userID string, days int) ([]*types.Row, error)
}

// Report data sources accepted by custom queries.
const (
	SourceMessages  = "messages"
	SourceProviders = "providers"
)
