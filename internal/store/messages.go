package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatkb/backend/internal/apperr"
	"github.com/chatkb/backend/internal/models"
)

type MessageStore struct {
	db *pgxpool.Pool
}

func NewMessageStore(db *pgxpool.Pool) *MessageStore {
	return &MessageStore{db: db}
}

// AppendParams describes one new turn. Messages are immutable once
// written; there is no update path.
type AppendParams struct {
	ThreadID        uuid.UUID
	Role            string
	Content         string
	ToolInvocations json.RawMessage
}

func (s *MessageStore) Append(ctx context.Context, p AppendParams) (*models.Message, error) {
	if !models.ValidRole(p.Role) {
		return nil, apperr.NewValidationError("role")
	}
	if p.Content == "" {
		return nil, apperr.NewValidationError("content")
	}

	var m models.Message
	var inv []byte
	if len(p.ToolInvocations) > 0 {
		inv = p.ToolInvocations
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO messages (id, thread_id, role, content, tool_invocations)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, thread_id, role, content, tool_invocations, created_at`,
		uuid.New(), p.ThreadID, p.Role, p.Content, inv,
	).Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.ToolInvocations, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &m, nil
}

// ListByThread returns the full history oldest first, the order the
// conversation replays in.
func (s *MessageStore) ListByThread(ctx context.Context, threadID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, thread_id, role, content, tool_invocations, created_at
		 FROM messages WHERE thread_id = $1 ORDER BY created_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.ToolInvocations, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
