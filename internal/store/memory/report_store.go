package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/types"
)

const defaultQueryDays = 30

// Message is a chat message usage record.
type Message struct {
	UserID    string
	ChatID    string
	Role      string
	Provider  string
	Model     string
	TokensIn  int64
	TokensOut int64
	CreatedAt time.Time
}

type ReportStore struct {
	clock clock.Clock

	mu       sync.Mutex
	reports  map[string]*types.SavedReport
	messages []Message
}

func NewReportStore(clk clock.Clock) *ReportStore {
	if clk == nil {
		clk = clock.New()
	}
	return &ReportStore{clock: clk, reports: map[string]*types.SavedReport{}}
}

// SaveReport stores a report definition and returns its id.
func (s *ReportStore) SaveReport(report types.SavedReport) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.UpdatedAt = s.clock.Now()
	s.reports[report.ID] = &report
	return report.ID
}

func (s *ReportStore) AddMessages(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

func (s *ReportStore) GetSavedReport(_ context.Context, reportID, userID string) (*types.SavedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok || r.UserID != userID {
		return nil, fmt.Errorf("%w: %s", custom_errors.ErrReportNotFound, reportID)
	}
	c := *r
	return &c, nil
}

func (s *ReportStore) UpdateReportResult(_ context.Context, reportID string, rows []*types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return fmt.Errorf("%w: %s", custom_errors.ErrReportNotFound, reportID)
	}
	r.LastResult = rows
	r.UpdatedAt = s.clock.Now()
	return nil
}

func (s *ReportStore) ExecuteCustomQuery(_ context.Context, userID string, query types.QueryConfig) ([]*types.Row, error) {
	days := query.Days
	if days <= 0 {
		days = defaultQueryDays
	}

	switch query.Source {
	case store.SourceMessages:
		switch query.GroupBy {
		case "", "day":
			return s.dailyMessages(userID, days), nil
		case "chat":
			return s.chatMessages(userID, days), nil
		}
	case store.SourceProviders:
		switch query.GroupBy {
		case "", "provider":
			return s.providerUsage(userID, days, false), nil
		case "model":
			return s.providerUsage(userID, days, true), nil
		}
	default:
		return nil, fmt.Errorf("unsupported report source %q", query.Source)
	}
	return nil, fmt.Errorf("unsupported grouping %q for source %q", query.GroupBy, query.Source)
}

func (s *ReportStore) GetDailyMessages(_ context.Context, userID string, days int) ([]*types.Row, error) {
	return s.dailyMessages(userID, days), nil
}

func (s *ReportStore) GetProviderUsage(_ context.Context, userID string, days int) ([]*types.Row, error) {
	return s.providerUsage(userID, days, true), nil
}

// window returns the user's messages from the last days.
func (s *ReportStore) window(userID string, days int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	since := s.clock.Now().AddDate(0, 0, -days)
	var out []Message
	for _, m := range s.messages {
		if m.UserID == userID && !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out
}

func (s *ReportStore) dailyMessages(userID string, days int) []*types.Row {
	type agg struct {
		messages int64
		chats    map[string]struct{}
	}
	byDay := map[string]*agg{}
	for _, m := range s.window(userID, days) {
		day := m.CreatedAt.UTC().Format("2006-01-02")
		a, ok := byDay[day]
		if !ok {
			a = &agg{chats: map[string]struct{}{}}
			byDay[day] = a
		}
		a.messages++
		a.chats[m.ChatID] = struct{}{}
	}

	keys := sortedKeys(byDay)
	rows := make([]*types.Row, 0, len(keys))
	for _, day := range keys {
		a := byDay[day]
		rows = append(rows, types.RowOf("day", day, "messages", a.messages, "chats", int64(len(a.chats))))
	}
	return rows
}

func (s *ReportStore) chatMessages(userID string, days int) []*types.Row {
	type agg struct {
		messages int64
		last     time.Time
	}
	byChat := map[string]*agg{}
	for _, m := range s.window(userID, days) {
		a, ok := byChat[m.ChatID]
		if !ok {
			a = &agg{}
			byChat[m.ChatID] = a
		}
		a.messages++
		if m.CreatedAt.After(a.last) {
			a.last = m.CreatedAt
		}
	}

	keys := sortedKeys(byChat)
	sort.SliceStable(keys, func(i, j int) bool { return byChat[keys[i]].messages > byChat[keys[j]].messages })
	rows := make([]*types.Row, 0, len(keys))
	for _, chat := range keys {
		a := byChat[chat]
		rows = append(rows, types.RowOf("chat_id", chat, "messages", a.messages,
			"last_message_at", a.last.UTC().Format(time.RFC3339)))
	}
	return rows
}

func (s *ReportStore) providerUsage(userID string, days int, byModel bool) []*types.Row {
	type agg struct {
		provider, model   string
		messages, in, out int64
	}
	groups := map[string]*agg{}
	for _, m := range s.window(userID, days) {
		key := m.Provider
		if byModel {
			key += "\x00" + m.Model
		}
		a, ok := groups[key]
		if !ok {
			a = &agg{provider: m.Provider, model: m.Model}
			groups[key] = a
		}
		a.messages++
		a.in += m.TokensIn
		a.out += m.TokensOut
	}

	keys := sortedKeys(groups)
	rows := make([]*types.Row, 0, len(keys))
	for _, k := range keys {
		a := groups[k]
		row := types.RowOf("provider", a.provider)
		if byModel {
			row.Set("model", a.model)
		}
		row.Set("messages", a.messages)
		row.Set("tokens_in", a.in)
		row.Set("tokens_out", a.out)
		rows = append(rows, row)
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
