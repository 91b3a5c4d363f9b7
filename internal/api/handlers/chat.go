package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/apperr"
	"github.com/chatkb/backend/internal/auth"
	"github.com/chatkb/backend/internal/llm"
	"github.com/chatkb/backend/internal/queue"
	"github.com/chatkb/backend/internal/usage"
)

// Orchestrator runs one assistant turn and streams the answer.
type Orchestrator interface {
	StreamReply(ctx context.Context, threadID uuid.UUID, userContent string) (<-chan llm.StreamChunk, error)
}

// UsageService spends and reports the daily message quota.
type UsageService interface {
	Consume(ctx context.Context, userID string) (*usage.Quota, error)
	Quota(ctx context.Context, userID string) (*usage.Quota, error)
}

// PendingStash consumes a message stashed before the thread existed.
type PendingStash interface {
	Take(ctx context.Context, threadID uuid.UUID) (string, error)
}

// NamingQueue schedules best-effort thread titling.
type NamingQueue interface {
	EnqueueThreadName(payload queue.ThreadNamePayload) error
}

type ChatHandler struct {
	orchestrator Orchestrator
	threads      ThreadService
	messages     MessageService
	usage        UsageService
	stash        PendingStash
	naming       NamingQueue
}

func NewChatHandler(orchestrator Orchestrator, threads ThreadService, messages MessageService, usageSvc UsageService, stash PendingStash, naming NamingQueue) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		threads:      threads,
		messages:     messages,
		usage:        usageSvc,
		stash:        stash,
		naming:       naming,
	}
}

type chatRequest struct {
	Message string `json:"message,omitempty"`
}

// Send runs one chat turn and streams the assistant's answer as
// server-sent events. An empty message consumes the thread's stashed
// pending message instead.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	threadID, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, apperr.NewValidationError("body"))
		return
	}

	message := req.Message
	if message == "" {
		message, err = h.stash.Take(r.Context(), threadID)
		if errors.Is(err, apperr.ErrNotFound) {
			WriteError(w, r, apperr.NewValidationError("message"))
			return
		}
		if err != nil {
			WriteError(w, r, err)
			return
		}
	}

	if _, err := h.threads.GetByID(r.Context(), threadID); err != nil {
		WriteError(w, r, err)
		return
	}

	quota, err := h.usage.Consume(r.Context(), auth.UserID(r.Context()))
	if apperr.IsValidation(err) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "daily message limit reached"})
		return
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}

	// Title the thread off this turn if it is the first message.
	h.maybeQueueNaming(r.Context(), threadID, message)

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	ch, err := h.orchestrator.StreamReply(r.Context(), threadID, message)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Usage-Remaining", fmt.Sprintf("%d", quota.Remaining))

	for chunk := range ch {
		if chunk.Error != nil {
			fmt.Fprintf(w, "data: {\"error\":%q}\n\n", chunk.Error.Error())
			flusher.Flush()
			return
		}

		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if chunk.Done {
			return
		}
	}
}

func (h *ChatHandler) maybeQueueNaming(ctx context.Context, threadID uuid.UUID, message string) {
	history, err := h.messages.ListByThread(ctx, threadID)
	if err != nil || len(history) > 0 {
		return
	}
	if err := h.naming.EnqueueThreadName(queue.ThreadNamePayload{
		ThreadID:     threadID.String(),
		FirstMessage: message,
	}); err != nil {
		// Best effort; the thread keeps its default title.
		slog.Warn("enqueue thread naming failed", "thread_id", threadID, "error", err)
	}
}

// Usage reports the caller's remaining daily quota.
func (h *ChatHandler) Usage(w http.ResponseWriter, r *http.Request) {
	quota, err := h.usage.Quota(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quota)
}
