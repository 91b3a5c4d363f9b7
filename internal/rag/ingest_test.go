package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/pkg/chunker"
)

type fakeEmbedder struct {
	calls [][]string
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeDocStore struct {
	doc        *models.Document
	embeddings []models.Embedding
	calls      int
}

func (f *fakeDocStore) CreateWithEmbeddings(_ context.Context, doc *models.Document, embeddings []models.Embedding) (*models.Document, error) {
	f.calls++
	out := *doc
	out.ID = uuid.New()
	f.doc = &out
	f.embeddings = embeddings
	return &out, nil
}

func TestIngest_ChunksEmbedsAndStores(t *testing.T) {
	emb := &fakeEmbedder{}
	docs := &fakeDocStore{}
	ing := NewIngester(emb, docs, chunker.Options{ChunkSize: 1000, ChunkOverlap: 200}, nil)

	content := strings.Repeat("a", 3000)
	doc, err := ing.Ingest(context.Background(), IngestRequest{
		ThreadID: uuid.New(),
		Title:    "notes.txt",
		Content:  content,
		FileType: models.FileTypePlainText,
	})
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if doc.ID == uuid.Nil {
		t.Error("stored document has no id")
	}

	// 3000 runes at size 1000 / overlap 200 chunk into four windows.
	if len(docs.embeddings) != 4 {
		t.Fatalf("stored %d embeddings, want 4", len(docs.embeddings))
	}
	for i, e := range docs.embeddings {
		if e.Content == "" {
			t.Errorf("embedding %d has empty content", i)
		}
		if len(e.Vector) == 0 {
			t.Errorf("embedding %d has no vector", i)
		}
	}
}

func TestIngest_EmbedFailureNeverTouchesStore(t *testing.T) {
	emb := &fakeEmbedder{fail: true}
	docs := &fakeDocStore{}
	ing := NewIngester(emb, docs, chunker.DefaultOptions(), nil)

	_, err := ing.Ingest(context.Background(), IngestRequest{
		ThreadID: uuid.New(),
		Title:    "doc",
		Content:  "some content",
		FileType: models.FileTypePlainText,
	})
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if docs.calls != 0 {
		t.Errorf("store was called %d times after embed failure, want 0", docs.calls)
	}
}

func TestIngest_EmbedsEveryChunkText(t *testing.T) {
	emb := &fakeEmbedder{}
	docs := &fakeDocStore{}
	ing := NewIngester(emb, docs, chunker.Options{ChunkSize: 10, ChunkOverlap: 2}, nil)

	_, err := ing.Ingest(context.Background(), IngestRequest{
		ThreadID: uuid.New(),
		Title:    "doc",
		Content:  strings.Repeat("x", 25),
		FileType: models.FileTypePlainText,
	})
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if len(emb.calls) != 1 {
		t.Fatalf("embedder called %d times, want 1", len(emb.calls))
	}
	if got, want := len(emb.calls[0]), len(docs.embeddings); got != want {
		t.Errorf("embedded %d texts but stored %d embeddings", got, want)
	}
}
