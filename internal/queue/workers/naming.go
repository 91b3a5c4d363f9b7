package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/internal/queue"
)

// Namer produces a thread title from its first user message.
type Namer interface {
	NameThread(ctx context.Context, firstMessage string) (string, error)
}

// ThreadRenamer persists the generated title.
type ThreadRenamer interface {
	Rename(ctx context.Context, id uuid.UUID, title string) (*models.Thread, error)
}

// NamingWorker titles new threads off the request path.
type NamingWorker struct {
	namer   Namer
	threads ThreadRenamer
	logger  *slog.Logger
}

func NewNamingWorker(namer Namer, threads ThreadRenamer, logger *slog.Logger) *NamingWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NamingWorker{namer: namer, threads: threads, logger: logger}
}

func (w *NamingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ThreadNamePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	threadID, err := uuid.Parse(payload.ThreadID)
	if err != nil {
		return fmt.Errorf("parse thread id: %w", err)
	}

	title, err := w.namer.NameThread(ctx, payload.FirstMessage)
	if err != nil {
		// Best effort: the thread keeps its default title.
		w.logger.Warn("thread naming failed", "thread_id", threadID, "error", err)
		return nil
	}

	if _, err := w.threads.Rename(ctx, threadID, title); err != nil {
		return fmt.Errorf("rename thread %s: %w", threadID, err)
	}

	w.logger.Info("thread named", "thread_id", threadID, "title", title)
	return nil
}
