package vectorstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chatkb/backend/internal/models"
)

// SearchOptions scopes a similarity search to one thread. Only
// candidates with similarity strictly above MinScore are returned,
// at most TopK of them.
type SearchOptions struct {
	ThreadID uuid.UUID
	TopK     int
	MinScore float64
}

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	EmbeddingID uuid.UUID `json:"embedding_id"`
	DocumentID  uuid.UUID `json:"document_id"`
	Content     string    `json:"content"`
	Similarity  float64   `json:"similarity"`
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so bulk
// inserts and deletes can join a caller-owned transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VectorStore persists and searches chunk embeddings.
type VectorStore interface {
	InsertMany(ctx context.Context, q Querier, embeddings []models.Embedding) error
	SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)
	DeleteByDocument(ctx context.Context, q Querier, documentID uuid.UUID) error
	CountByThread(ctx context.Context, threadID uuid.UUID) (int, error)
}
