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
)

type ThreadStore struct {
	db *pgxpool.Pool
}

func NewThreadStore(db *pgxpool.Pool) *ThreadStore {
	return &ThreadStore{db: db}
}

// Create inserts a thread. The id may be client-generated; uuid.Nil
// gets a fresh one. An empty title falls back to the default.
func (s *ThreadStore) Create(ctx context.Context, id uuid.UUID, title string) (*models.Thread, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if title == "" {
		title = models.DefaultThreadTitle
	}

	var t models.Thread
	err := s.db.QueryRow(ctx,
		`INSERT INTO threads (id, title)
		 VALUES ($1, $2)
		 RETURNING id, title, created_at, updated_at`,
		id, title,
	).Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return &t, nil
}

func (s *ThreadStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	var t models.Thread
	err := s.db.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM threads WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &t, nil
}

func (s *ThreadStore) List(ctx context.Context) ([]models.Thread, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM threads ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var t models.Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// Rename updates the title, typically from the async naming task.
func (s *ThreadStore) Rename(ctx context.Context, id uuid.UUID, title string) (*models.Thread, error) {
	if title == "" {
		return nil, apperr.NewValidationError("title")
	}

	var t models.Thread
	err := s.db.QueryRow(ctx,
		`UPDATE threads SET title = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING id, title, created_at, updated_at`,
		title, id,
	).Scan(&t.ID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("rename thread: %w", err)
	}
	return &t, nil
}

// Delete removes a thread. Messages, documents, and embeddings go with
// it through the schema's cascade rules; the thread is the sole
// cascade root.
func (s *ThreadStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM threads WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("thread %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
