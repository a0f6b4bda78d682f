package types

import (
	"encoding/json"
	"time"
)

type ReportGenerationConfig struct {
	ReportID string `json:"reportId"`
}

type ReportGenerationResult struct {
	ReportID string `json:"reportId"`
	RowCount int    `json:"rowCount"`
}

type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// Body is sent verbatim when it is a JSON string, as JSON otherwise.
	Body json.RawMessage `json:"body,omitempty"`
}

type WebhookResult struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Body       string `json:"body"`
}

type DataExportConfig struct {
	Source string `json:"source,omitempty"`
	Format string `json:"format,omitempty"`
}

type DataExportResult struct {
	Format      string `json:"format"`
	RowCount    int    `json:"rowCount"`
	Source      string `json:"source"`
	Data        string `json:"data"`
	ContentType string `json:"contentType"`
}

type ChatMessageConfig struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider,omitempty"`
	ChatID   string `json:"chatId,omitempty"`
	Model    string `json:"model,omitempty"`
	MaxTurns int    `json:"maxTurns,omitempty"`
}

type ChatMessageResult struct {
	Provider       string `json:"provider"`
	Prompt         string `json:"prompt"`
	ChatID         string `json:"chatId"`
	Response       string `json:"response"`
	ResponseLength int    `json:"responseLength"`
}

// QueryConfig is the stored definition of a custom report query.
type QueryConfig struct {
	Source  string `json:"source"`
	GroupBy string `json:"groupBy,omitempty"`
	Days    int    `json:"days,omitempty"`
}

// SavedReport is a user report whose query can be re-run on a schedule.
type SavedReport struct {
	ID         string
	UserID     string
	Name       string
	Query      QueryConfig
	LastResult []*Row
	UpdatedAt  time.Time
}
