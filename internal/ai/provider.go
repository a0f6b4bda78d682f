// Package ai adapts language model backends to the streaming provider
// contract used by chat_message jobs.
package ai

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type ChunkType string

const (
	ChunkText  ChunkType = "text"
	ChunkError ChunkType = "error"
)

// Chunk is one element of a provider response stream.
type Chunk struct {
	Type    ChunkType
	Content string // set for text chunks
	Message string // set for error chunks
}

type QueryRequest struct {
	Prompt   string
	UserID   string
	ChatID   string
	Model    string
	MaxTurns int
}

// Provider answers a prompt with a finite stream of chunks. The channel is
// closed when the response is complete.
type Provider interface {
	Name() string
	Query(ctx context.Context, req QueryRequest) (<-chan Chunk, error)
}

// Registry resolves providers by name.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
}

func NewRegistry(defaultName string, providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}, defaultName: defaultName}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// DefaultName is the provider used when a job does not name one.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Get returns the named provider, or the default one for an empty name.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown ai provider %q", name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
