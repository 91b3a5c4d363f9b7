package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chatkb/backend/internal/vectorstore"
)

// QueryEmbedder produces the query vector for retrieval.
type QueryEmbedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a thread-scoped nearest-neighbor search.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error)
}

const (
	DefaultTopK                = 4
	DefaultSimilarityThreshold = 0.5
)

// Retriever answers "what stored chunks are relevant to this query"
// for one thread. An empty thread or a query with no candidate above
// the threshold yields an empty result, not an error.
type Retriever struct {
	search   Searcher
	embedder QueryEmbedder
	topK     int
	minScore float64
}

func NewRetriever(search Searcher, embedder QueryEmbedder, topK int, minScore float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minScore <= 0 {
		minScore = DefaultSimilarityThreshold
	}
	return &Retriever{
		search:   search,
		embedder: embedder,
		topK:     topK,
		minScore: minScore,
	}
}

// FindRelevant embeds the query and returns at most topK chunks from
// the thread with similarity strictly above the threshold, best first.
func (r *Retriever) FindRelevant(ctx context.Context, query string, threadID uuid.UUID) ([]vectorstore.SearchResult, error) {
	vec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.search.SimilaritySearch(ctx, vec, vectorstore.SearchOptions{
		ThreadID: threadID,
		TopK:     r.topK,
		MinScore: r.minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return results, nil
}

// FindRelevantMulti fans the rephrased queries out concurrently, joins
// them, and unions the results keeping the first occurrence of each
// embedding id. Order follows the query order, then each query's
// descending-similarity order.
func (r *Retriever) FindRelevantMulti(ctx context.Context, queries []string, threadID uuid.UUID) ([]vectorstore.SearchResult, error) {
	perQuery := make([][]vectorstore.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := r.FindRelevant(gctx, q, threadID)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			perQuery[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	var merged []vectorstore.SearchResult
	for _, results := range perQuery {
		for _, res := range results {
			if seen[res.EmbeddingID] {
				continue
			}
			seen[res.EmbeddingID] = true
			merged = append(merged, res)
		}
	}
	return merged, nil
}
