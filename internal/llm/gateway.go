package llm

import (
	"context"
	"fmt"

	"github.com/chatkb/backend/internal/apperr"
	"github.com/chatkb/backend/internal/config"
)

// Gateway routes chat, streaming, and embedding calls to a configured
// provider. Failures surface once; nothing here retries automatically.
type Gateway interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
	Provider(name string) (Provider, error)
	ListModels() []ModelInfo
}

type gateway struct {
	providers       map[string]Provider
	defaultProvider string
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := &gateway{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.DefaultProvider,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}

	return g
}

// NewGatewayWithProviders wires explicit providers; used by tests.
func NewGatewayWithProviders(defaultProvider string, providers ...Provider) Gateway {
	g := &gateway{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

// Provider resolves a provider by name. A provider is registered only
// when its credential is present, so an unknown name here means the
// caller has no usable credential for it.
func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, apperr.NewAuthError(fmt.Sprintf("no credential configured for provider %q", name))
	}
	return p, nil
}

func (g *gateway) resolve(name string) (Provider, error) {
	if name == "" {
		name = g.defaultProvider
	}
	return g.Provider(name)
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p, err := g.resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := p.ChatCompletion(ctx, req)
	if err != nil {
		return nil, apperr.NewProviderError(p.Name(), err)
	}
	return resp, nil
}

func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	p, err := g.resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	ch, err := p.ChatCompletionStream(ctx, req)
	if err != nil {
		return nil, apperr.NewProviderError(p.Name(), err)
	}
	return ch, nil
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	p, err := g.resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := p.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, apperr.NewProviderError(p.Name(), err)
	}
	return resp, nil
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{
				Provider: p.Name(),
				Model:    m,
				Type:     "chat",
			})
		}
	}
	return models
}
