package ai

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/RezaEskandarii/cronfire/types/config"
)

// LangChainProvider streams completions from any langchaingo model.
// Each query is answered in a single turn.
type LangChainProvider struct {
	name         string
	model        llms.Model
	defaultModel string
}

func NewLangChainProvider(name string, model llms.Model, defaultModel string) *LangChainProvider {
	return &LangChainProvider{name: name, model: model, defaultModel: defaultModel}
}

// NewOpenAIProvider builds a provider backed by an OpenAI compatible API.
func NewOpenAIProvider(cfg config.AIConfig) (*LangChainProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLangChainProvider(cfg.Provider, llm, cfg.Model), nil
}

func (p *LangChainProvider) Name() string {
	return p.name
}

func (p *LangChainProvider) Query(ctx context.Context, req QueryRequest) (<-chan Chunk, error) {
	if req.Prompt == "" {
		return nil, errors.New("prompt is required")
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	out := make(chan Chunk, 16)
	go func() {
		defer close(out)

		streamed := false
		send := func(c Chunk) error {
			select {
			case out <- c:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		opts := []llms.CallOption{
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				streamed = true
				return send(Chunk{Type: ChunkText, Content: string(chunk)})
			}),
		}
		if model != "" {
			opts = append(opts, llms.WithModel(model))
		}

		completion, err := llms.GenerateFromSinglePrompt(ctx, p.model, req.Prompt, opts...)
		if err != nil {
			_ = send(Chunk{Type: ChunkError, Message: err.Error()})
			return
		}
		// Models that ignore the streaming callback return the whole answer.
		if !streamed && completion != "" {
			_ = send(Chunk{Type: ChunkText, Content: completion})
		}
	}()
	return out, nil
}
