package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/apperr"
)

// StashService stores one pending message per not-yet-created thread.
type StashService interface {
	Save(ctx context.Context, threadID uuid.UUID, content string) error
	Peek(ctx context.Context, threadID uuid.UUID) (string, error)
	Discard(ctx context.Context, threadID uuid.UUID) error
}

type StashHandler struct {
	stash StashService
}

func NewStashHandler(stash StashService) *StashHandler {
	return &StashHandler{stash: stash}
}

type stashRequest struct {
	Content string `json:"content"`
}

// Save stashes the message the user typed before the thread page
// exists; the chat endpoint consumes it after the redirect.
func (h *StashHandler) Save(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req stashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, apperr.NewValidationError("body"))
		return
	}

	if err := h.stash.Save(r.Context(), id, req.Content); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StashHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	content, err := h.stash.Peek(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (h *StashHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.stash.Discard(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
