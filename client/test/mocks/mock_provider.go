package mocks

import (
	"context"

	"github.com/RezaEskandarii/cronfire/internal/ai"
)

// MockProvider is a mock implementation of ai.Provider that replays Chunks.
type MockProvider struct {
	ProviderName string
	Chunks       []ai.Chunk
	QueryFunc    func(ctx context.Context, req ai.QueryRequest) (<-chan ai.Chunk, error)

	LastRequest ai.QueryRequest
}

func (m *MockProvider) Name() string {
	return m.ProviderName
}

func (m *MockProvider) Query(ctx context.Context, req ai.QueryRequest) (<-chan ai.Chunk, error) {
	m.LastRequest = req
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, req)
	}
	ch := make(chan ai.Chunk, len(m.Chunks))
	for _, c := range m.Chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}
