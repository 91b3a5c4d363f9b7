package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/pkg/chunker"
	"github.com/chatkb/backend/pkg/tokenizer"
)

// Embedder turns chunk texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentCreator persists a document together with its chunk
// embeddings atomically.
type DocumentCreator interface {
	CreateWithEmbeddings(ctx context.Context, doc *models.Document, embeddings []models.Embedding) (*models.Document, error)
}

// Ingester runs the chunk -> embed -> store pipeline for one document.
// Embedding happens before anything touches the database, so a
// provider failure leaves no partial document behind.
type Ingester struct {
	embedder Embedder
	docs     DocumentCreator
	opts     chunker.Options
	logger   *slog.Logger
}

func NewIngester(embedder Embedder, docs DocumentCreator, opts chunker.Options, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		embedder: embedder,
		docs:     docs,
		opts:     opts,
		logger:   logger,
	}
}

type IngestRequest struct {
	ThreadID uuid.UUID
	Title    string
	Content  string
	FileType string
}

// Ingest chunks the content, embeds every chunk, and stores the
// document with its embeddings in one transaction.
func (in *Ingester) Ingest(ctx context.Context, req IngestRequest) (*models.Document, error) {
	chunks := chunker.Chunk(req.Content, in.opts)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	embeddings := make([]models.Embedding, len(chunks))
	for i, c := range chunks {
		embeddings[i] = models.Embedding{
			Content: c.Content,
			Vector:  vectors[i],
		}
	}

	doc, err := in.docs.CreateWithEmbeddings(ctx, &models.Document{
		ThreadID: req.ThreadID,
		Title:    req.Title,
		Content:  req.Content,
		FileType: req.FileType,
	}, embeddings)
	if err != nil {
		return nil, err
	}

	in.logger.Info("document ingested",
		"document_id", doc.ID,
		"thread_id", doc.ThreadID,
		"chunks", len(chunks),
		"tokens_est", tokenizer.CountTokens(req.Content),
	)
	return doc, nil
}
