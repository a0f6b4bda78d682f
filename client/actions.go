package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/internal/ai"
	"github.com/RezaEskandarii/cronfire/internal/constants"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/types"
)

// maxWebhookBody caps how much of a webhook response is kept in the result.
const maxWebhookBody = 1 << 20

func decodeConfig[T any](raw json.RawMessage) (T, error) {
	var cfg T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cfg, nil
	}
	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid action config: %w", err)
	}
	return cfg, nil
}

func (e *JobExecutor) generateReport(ctx context.Context, job *types.Job) (*types.ReportGenerationResult, error) {
	cfg, err := decodeConfig[types.ReportGenerationConfig](job.ActionConfig)
	if err != nil {
		return nil, err
	}
	if cfg.ReportID == "" {
		return nil, errors.New("reportId is required")
	}

	report, err := e.reports.GetSavedReport(ctx, cfg.ReportID, job.UserID)
	if errors.Is(err, custom_errors.ErrReportNotFound) {
		return nil, fmt.Errorf("report not found: %s", cfg.ReportID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := e.reports.ExecuteCustomQuery(ctx, job.UserID, report.Query)
	if err != nil {
		return nil, fmt.Errorf("run report query: %w", err)
	}
	if err := e.reports.UpdateReportResult(ctx, report.ID, rows); err != nil {
		return nil, fmt.Errorf("save report result: %w", err)
	}
	return &types.ReportGenerationResult{ReportID: report.ID, RowCount: len(rows)}, nil
}

func (e *JobExecutor) callWebhook(ctx context.Context, job *types.Job) (*types.WebhookResult, error) {
	cfg, err := decodeConfig[types.WebhookConfig](job.ActionConfig)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported webhook method %q", cfg.Method)
	}

	target, err := e.validator.Validate(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if method == http.MethodPost {
		payload, err := webhookBody(cfg.Body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			body = bytes.NewReader(payload)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}

	statusText := http.StatusText(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned %d %s", resp.StatusCode, statusText)
	}
	return &types.WebhookResult{Status: resp.StatusCode, StatusText: statusText, Body: string(data)}, nil
}

// webhookBody returns a JSON string's content as is and any other JSON value
// in its encoded form. An absent or null body sends nothing.
func webhookBody(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("invalid webhook body: %w", err)
		}
		return []byte(s), nil
	}
	return trimmed, nil
}

func (e *JobExecutor) exportData(ctx context.Context, job *types.Job) (*types.DataExportResult, error) {
	cfg, err := decodeConfig[types.DataExportConfig](job.ActionConfig)
	if err != nil {
		return nil, err
	}
	source := cfg.Source
	if source == "" {
		source = store.SourceMessages
	}
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return nil, fmt.Errorf("unsupported export format %q", cfg.Format)
	}

	var rows []*types.Row
	switch source {
	case store.SourceMessages, "chats":
		rows, err = e.reports.GetDailyMessages(ctx, job.UserID, constants.ExportDays)
	case store.SourceProviders, "provider_usage":
		rows, err = e.reports.GetProviderUsage(ctx, job.UserID, constants.ExportDays)
	default:
		return nil, fmt.Errorf("unsupported export source %q", source)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s data: %w", source, err)
	}
	if rows == nil {
		rows = []*types.Row{}
	}

	result := &types.DataExportResult{Format: format, RowCount: len(rows), Source: source}
	if format == "csv" {
		result.Data = toCSV(rows)
		result.ContentType = "text/csv"
		return result, nil
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	result.Data = string(data)
	result.ContentType = "application/json"
	return result, nil
}

func (e *JobExecutor) sendChatMessage(ctx context.Context, job *types.Job) (*types.ChatMessageResult, error) {
	cfg, err := decodeConfig[types.ChatMessageConfig](job.ActionConfig)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	if e.providers == nil {
		return nil, errors.New("no ai provider is configured")
	}
	provider, err := e.providers.Get(cfg.Provider)
	if err != nil {
		return nil, err
	}
	chatID := cfg.ChatID
	if chatID == "" {
		chatID = uuid.NewString()
	}

	stream, err := provider.Query(ctx, ai.QueryRequest{
		Prompt:   cfg.Prompt,
		UserID:   job.UserID,
		ChatID:   chatID,
		Model:    cfg.Model,
		MaxTurns: cfg.MaxTurns,
	})
	if err != nil {
		return nil, err
	}

	var response strings.Builder
	for chunk := range stream {
		switch chunk.Type {
		case ai.ChunkText:
			response.WriteString(chunk.Content)
		case ai.ChunkError:
			go drain(stream)
			return nil, errors.New(chunk.Message)
		}
	}

	return &types.ChatMessageResult{
		Provider:       provider.Name(),
		Prompt:         cfg.Prompt,
		ChatID:         chatID,
		Response:       response.String(),
		ResponseLength: response.Len(),
	}, nil
}

func drain(stream <-chan ai.Chunk) {
	for range stream {
	}
}
