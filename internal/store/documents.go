package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatkb/backend/internal/apperr"
	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/internal/vectorstore"
)

type DocumentStore struct {
	db      *pgxpool.Pool
	vectors vectorstore.VectorStore
}

func NewDocumentStore(db *pgxpool.Pool, vectors vectorstore.VectorStore) *DocumentStore {
	return &DocumentStore{db: db, vectors: vectors}
}

func validateDocument(doc *models.Document) error {
	var fields []string
	if doc.Content == "" {
		fields = append(fields, "content")
	}
	if doc.Title == "" {
		fields = append(fields, "title")
	}
	if !models.ValidFileType(doc.FileType) {
		fields = append(fields, "file_type")
	}
	if doc.ThreadID == uuid.Nil {
		fields = append(fields, "thread_id")
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(fields...)
	}
	return nil
}

// CreateWithEmbeddings persists a document and its chunk embeddings in
// one transaction. Either the document row and every embedding row
// commit together, or none do; a document is never visible without its
// chunks.
func (s *DocumentStore) CreateWithEmbeddings(ctx context.Context, doc *models.Document, embeddings []models.Embedding) (*models.Document, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	id := doc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var out models.Document
	err = tx.QueryRow(ctx,
		`INSERT INTO documents (id, thread_id, title, content, file_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, thread_id, title, content, file_type, created_at, updated_at`,
		id, doc.ThreadID, doc.Title, doc.Content, doc.FileType,
	).Scan(&out.ID, &out.ThreadID, &out.Title, &out.Content, &out.FileType, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	for i := range embeddings {
		embeddings[i].DocumentID = out.ID
		embeddings[i].ThreadID = out.ThreadID
	}
	if err := s.vectors.InsertMany(ctx, tx, embeddings); err != nil {
		return nil, fmt.Errorf("insert embeddings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}
	return &out, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRow(ctx,
		`SELECT id, thread_id, title, content, file_type, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.ThreadID, &d.Title, &d.Content, &d.FileType, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// ListByThread returns a thread's documents newest first.
func (s *DocumentStore) ListByThread(ctx context.Context, threadID uuid.UUID) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, thread_id, title, content, file_type, created_at, updated_at
		 FROM documents WHERE thread_id = $1 ORDER BY created_at DESC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.ThreadID, &d.Title, &d.Content, &d.FileType, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document and its embeddings. The two deletes share
// one transaction so retrieval never sees chunks of a half-deleted
// document.
func (s *DocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.vectors.DeleteByDocument(ctx, tx, id); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}

	return tx.Commit(ctx)
}
