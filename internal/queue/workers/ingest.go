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
	"github.com/chatkb/backend/internal/rag"
)

// Ingester is the slice of the RAG pipeline the worker drives.
type Ingester interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (*models.Document, error)
}

// IngestWorker turns queued uploads into stored, embedded documents.
type IngestWorker struct {
	ingester Ingester
	logger   *slog.Logger
}

func NewIngestWorker(ingester Ingester, logger *slog.Logger) *IngestWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestWorker{ingester: ingester, logger: logger}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	threadID, err := uuid.Parse(payload.ThreadID)
	if err != nil {
		return fmt.Errorf("parse thread id: %w", err)
	}

	doc, err := w.ingester.Ingest(ctx, rag.IngestRequest{
		ThreadID: threadID,
		Title:    payload.Title,
		Content:  payload.Content,
		FileType: payload.FileType,
	})
	if err != nil {
		w.logger.Error("document ingest failed", "thread_id", threadID, "title", payload.Title, "error", err)
		return err
	}

	w.logger.Info("document ingest complete", "document_id", doc.ID, "thread_id", threadID)
	return nil
}
