package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/types"
)

const defaultQueryDays = 30

type PostgresReportStore struct {
	db *sql.DB
}

func NewPostgresReportStore(db *sql.DB) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

func (r *PostgresReportStore) GetSavedReport(ctx context.Context, reportID, userID string) (*types.SavedReport, error) {
	var report types.SavedReport
	var query, lastResult []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, query, last_result, updated_at
		FROM cronfire_schema.saved_reports
		WHERE id = $1 AND user_id = $2`, reportID, userID).
		Scan(&report.ID, &report.UserID, &report.Name, &query, &lastResult, &report.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", custom_errors.ErrReportNotFound, reportID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report %s: %w", reportID, err)
	}

	if err := json.Unmarshal(query, &report.Query); err != nil {
		return nil, fmt.Errorf("report %s has an invalid query: %w", reportID, err)
	}
	if len(lastResult) > 0 {
		if err := json.Unmarshal(lastResult, &report.LastResult); err != nil {
			return nil, fmt.Errorf("report %s has an invalid result: %w", reportID, err)
		}
	}
	return &report, nil
}

// customQueries maps source and grouping to a fixed statement; user input
// never reaches the SQL text.
var customQueries = map[string]map[string]string{
	store.SourceMessages: {
		"day": `
			SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day,
			       COUNT(*) AS messages,
			       COUNT(DISTINCT chat_id) AS chats
			FROM cronfire_schema.messages
			WHERE user_id = $1 AND created_at >= now() - make_interval(days => $2)
			GROUP BY 1
			ORDER BY 1`,
		"chat": `
			SELECT chat_id, COUNT(*) AS messages, MAX(created_at) AS last_message_at
			FROM cronfire_schema.messages
			WHERE user_id = $1 AND created_at >= now() - make_interval(days => $2)
			GROUP BY chat_id
			ORDER BY messages DESC`,
	},
	store.SourceProviders: {
		"provider": `
			SELECT provider, COUNT(*) AS messages,
			       SUM(tokens_in) AS tokens_in, SUM(tokens_out) AS tokens_out
			FROM cronfire_schema.messages
			WHERE user_id = $1 AND created_at >= now() - make_interval(days => $2)
			GROUP BY provider
			ORDER BY provider`,
		"model": `
			SELECT provider, model, COUNT(*) AS messages,
			       SUM(tokens_in) AS tokens_in, SUM(tokens_out) AS tokens_out
			FROM cronfire_schema.messages
			WHERE user_id = $1 AND created_at >= now() - make_interval(days => $2)
			GROUP BY provider, model
			ORDER BY provider, model`,
	},
}

var defaultGroupBy = map[string]string{
	store.SourceMessages:  "day",
	store.SourceProviders: "provider",
}

func (r *PostgresReportStore) ExecuteCustomQuery(ctx context.Context, userID string, query types.QueryConfig) ([]*types.Row, error) {
	byGroup, ok := customQueries[query.Source]
	if !ok {
		return nil, fmt.Errorf("unsupported report source %q", query.Source)
	}
	groupBy := query.GroupBy
	if groupBy == "" {
		groupBy = defaultGroupBy[query.Source]
	}
	stmt, ok := byGroup[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported grouping %q for source %q", groupBy, query.Source)
	}
	days := query.Days
	if days <= 0 {
		days = defaultQueryDays
	}
	return r.queryRows(ctx, stmt, userID, days)
}

func (r *PostgresReportStore) UpdateReportResult(ctx context.Context, reportID string, rows []*types.Row) error {
	if rows == nil {
		rows = []*types.Row{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal report result: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE cronfire_schema.saved_reports
		SET last_result = $1, updated_at = now()
		WHERE id = $2`, payload, reportID)
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", reportID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", custom_errors.ErrReportNotFound, reportID)
	}
	return nil
}

func (r *PostgresReportStore) GetDailyMessages(ctx context.Context, userID string, days int) ([]*types.Row, error) {
	return r.queryRows(ctx, customQueries[store.SourceMessages]["day"], userID, days)
}

func (r *PostgresReportStore) GetProviderUsage(ctx context.Context, userID string, days int) ([]*types.Row, error) {
	return r.queryRows(ctx, customQueries[store.SourceProviders]["model"], userID, days)
}

// queryRows reads a result set into ordered rows keyed by column name.
func (r *PostgresReportStore) queryRows(ctx context.Context, query string, args ...any) ([]*types.Row, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("report query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []*types.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}

		row := types.NewRow()
		for i, col := range columns {
			row.Set(col, normalizeValue(values[i]))
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	}
	return v
}
