package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/chatkb/backend/internal/models"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) InsertMany(ctx context.Context, q Querier, embeddings []models.Embedding) error {
	for i, e := range embeddings {
		id := e.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		_, err := q.Exec(ctx,
			`INSERT INTO embeddings (id, document_id, thread_id, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, e.DocumentID, e.ThreadID, e.Content, pgvector.NewVector(e.Vector),
		)
		if err != nil {
			return fmt.Errorf("insert embedding %d: %w", i, err)
		}
	}
	return nil
}

func (s *PgVectorStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}

	vec := pgvector.NewVector(query)

	// Cosine similarity is 1 - cosine distance; the threshold filter is
	// strict so a score equal to MinScore never qualifies.
	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, content,
		        1 - (embedding <=> $1) AS similarity
		 FROM embeddings
		 WHERE thread_id = $2
		   AND 1 - (embedding <=> $1) > $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, opts.ThreadID, opts.MinScore, opts.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.EmbeddingID, &r.DocumentID, &r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PgVectorStore) DeleteByDocument(ctx context.Context, q Querier, documentID uuid.UUID) error {
	if _, err := q.Exec(ctx, "DELETE FROM embeddings WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("delete embeddings for document %s: %w", documentID, err)
	}
	return nil
}

func (s *PgVectorStore) CountByThread(ctx context.Context, threadID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM embeddings WHERE thread_id = $1", threadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}
