package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/apperr"
	"github.com/chatkb/backend/internal/models"
)

// ThreadService is the thread store surface the handler needs.
type ThreadService interface {
	Create(ctx context.Context, id uuid.UUID, title string) (*models.Thread, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error)
	List(ctx context.Context) ([]models.Thread, error)
	Rename(ctx context.Context, id uuid.UUID, title string) (*models.Thread, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type MessageService interface {
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]models.Message, error)
}

type ThreadHandler struct {
	threads  ThreadService
	messages MessageService
}

func NewThreadHandler(threads ThreadService, messages MessageService) *ThreadHandler {
	return &ThreadHandler{threads: threads, messages: messages}
}

type createThreadRequest struct {
	ID    string `json:"id,omitempty"` // optional client-generated uuid
	Title string `json:"title,omitempty"`
}

func (h *ThreadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, apperr.NewValidationError("body"))
		return
	}

	id := uuid.Nil
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			WriteError(w, r, apperr.NewValidationError("id"))
			return
		}
		id = parsed
	}

	thread, err := h.threads.Create(r.Context(), id, req.Title)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"threads": threads})
}

func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	thread, err := h.threads.GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

type renameThreadRequest struct {
	Title string `json:"title"`
}

func (h *ThreadHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req renameThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, apperr.NewValidationError("body"))
		return
	}

	thread, err := h.threads.Rename(r.Context(), id, req.Title)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (h *ThreadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.threads.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ThreadHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	// 404 for a missing thread, not an empty list.
	if _, err := h.threads.GetByID(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}

	messages, err := h.messages.ListByThread(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// threadID parses the {id} route parameter.
func threadID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.NewValidationError("id")
	}
	return id, nil
}
