package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/vectorstore"
)

type fakeSearcher struct {
	mu      sync.Mutex // searches fan out concurrently
	byQuery map[float32][]vectorstore.SearchResult
	opts    []vectorstore.SearchOptions
	err     error
}

func (f *fakeSearcher) SimilaritySearch(_ context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.byQuery[query[0]], nil
}

// markerEmbedder maps each query string to a one-element vector so the
// fake searcher can key results off it.
type markerEmbedder struct {
	markers map[string]float32
}

func (m *markerEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	marker, ok := m.markers[text]
	if !ok {
		return nil, errors.New("unexpected query")
	}
	return []float32{marker}, nil
}

func result(id uuid.UUID, score float64) vectorstore.SearchResult {
	return vectorstore.SearchResult{EmbeddingID: id, DocumentID: uuid.New(), Content: "chunk", Similarity: score}
}

func TestFindRelevant_PassesThreadScopeAndDefaults(t *testing.T) {
	threadID := uuid.New()
	hit := result(uuid.New(), 0.9)
	search := &fakeSearcher{byQuery: map[float32][]vectorstore.SearchResult{1: {hit}}}
	emb := &markerEmbedder{markers: map[string]float32{"refund policy": 1}}
	r := NewRetriever(search, emb, 0, 0)

	results, err := r.FindRelevant(context.Background(), "refund policy", threadID)
	if err != nil {
		t.Fatalf("FindRelevant() error: %v", err)
	}
	if len(results) != 1 || results[0].EmbeddingID != hit.EmbeddingID {
		t.Fatalf("unexpected results: %+v", results)
	}

	opts := search.opts[0]
	if opts.ThreadID != threadID {
		t.Errorf("search not scoped to thread: %v", opts.ThreadID)
	}
	if opts.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", opts.TopK, DefaultTopK)
	}
	if opts.MinScore != DefaultSimilarityThreshold {
		t.Errorf("MinScore = %v, want %v", opts.MinScore, DefaultSimilarityThreshold)
	}
}

func TestFindRelevant_EmptyThreadYieldsEmpty(t *testing.T) {
	search := &fakeSearcher{byQuery: map[float32][]vectorstore.SearchResult{1: nil}}
	emb := &markerEmbedder{markers: map[string]float32{"anything": 1}}
	r := NewRetriever(search, emb, 4, 0.5)

	results, err := r.FindRelevant(context.Background(), "anything", uuid.New())
	if err != nil {
		t.Fatalf("FindRelevant() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestFindRelevantMulti_DedupesKeepingFirstOccurrence(t *testing.T) {
	shared := result(uuid.New(), 0.9)
	onlyA := result(uuid.New(), 0.8)
	onlyB := result(uuid.New(), 0.7)

	sharedFromB := shared
	sharedFromB.Similarity = 0.6

	search := &fakeSearcher{byQuery: map[float32][]vectorstore.SearchResult{
		1: {shared, onlyA},
		2: {onlyB, sharedFromB},
	}}
	emb := &markerEmbedder{markers: map[string]float32{"query a": 1, "query b": 2}}
	r := NewRetriever(search, emb, 4, 0.5)

	results, err := r.FindRelevantMulti(context.Background(), []string{"query a", "query b"}, uuid.New())
	if err != nil {
		t.Fatalf("FindRelevantMulti() error: %v", err)
	}

	want := []uuid.UUID{shared.EmbeddingID, onlyA.EmbeddingID, onlyB.EmbeddingID}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(results), len(want), results)
	}
	for i, id := range want {
		if results[i].EmbeddingID != id {
			t.Errorf("result %d = %v, want %v", i, results[i].EmbeddingID, id)
		}
	}
	// The shared chunk keeps the score from the query that saw it first.
	if results[0].Similarity != 0.9 {
		t.Errorf("shared chunk similarity = %v, want 0.9", results[0].Similarity)
	}
}

func TestFindRelevantMulti_QueryFailureFailsCall(t *testing.T) {
	search := &fakeSearcher{err: errors.New("db down")}
	emb := &markerEmbedder{markers: map[string]float32{"q": 1}}
	r := NewRetriever(search, emb, 4, 0.5)

	if _, err := r.FindRelevantMulti(context.Background(), []string{"q"}, uuid.New()); err == nil {
		t.Fatal("expected error when a fan-out query fails")
	}
}
