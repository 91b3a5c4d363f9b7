package embedding

import (
	"context"
	"fmt"

	"github.com/chatkb/backend/internal/llm"
)

// Service converts text into fixed-dimension vectors through the
// gateway. One embedding model serves the whole system; every vector
// is checked against the configured dimensionality.
type Service struct {
	gateway llm.Gateway
	model   string
	dim     int
}

func NewService(gw llm.Gateway, model string, dim int) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dim <= 0 {
		dim = 1536
	}
	return &Service{gateway: gw, model: model, dim: dim}
}

// Dim returns the fixed vector dimensionality.
func (s *Service) Dim() int { return s.dim }

// Embed returns one vector per input text, in input order. A failure
// on any batch fails the whole call; nothing is silently dropped.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Provider API limit of 100 inputs per request.
	const batchSize = 100
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: batch,
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}

		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("embed batch %d: got %d vectors for %d inputs", i/batchSize, len(resp.Embeddings), len(batch))
		}
		for j, vec := range resp.Embeddings {
			if len(vec) != s.dim {
				return nil, fmt.Errorf("embed batch %d: vector %d has dimension %d, want %d", i/batchSize, j, len(vec), s.dim)
			}
		}

		all = append(all, resp.Embeddings...)
	}

	return all, nil
}

// EmbedSingle embeds one text, used for query vectors.
func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}
