package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/apperr"
	"github.com/chatkb/backend/internal/vectorstore"
)

// Retriever answers knowledge-base queries for one thread.
type Retriever interface {
	FindRelevant(ctx context.Context, query string, threadID uuid.UUID) ([]vectorstore.SearchResult, error)
	FindRelevantMulti(ctx context.Context, queries []string, threadID uuid.UUID) ([]vectorstore.SearchResult, error)
}

type SearchHandler struct {
	retriever Retriever
}

func NewSearchHandler(retriever Retriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

type searchRequest struct {
	Query   string   `json:"query,omitempty"`
	Queries []string `json:"queries,omitempty"`
}

// Search runs a similarity search over the thread's knowledge base.
// A single query searches directly; multiple queries fan out and merge.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, apperr.NewValidationError("body"))
		return
	}

	var results []vectorstore.SearchResult
	switch {
	case len(req.Queries) > 0:
		results, err = h.retriever.FindRelevantMulti(r.Context(), req.Queries, id)
	case req.Query != "":
		results, err = h.retriever.FindRelevant(r.Context(), req.Query, id)
	default:
		WriteError(w, r, apperr.NewValidationError("query"))
		return
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if results == nil {
		results = []vectorstore.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
