package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/chat"
	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/internal/rag"
)

type fakeDocs struct{}

func (fakeDocs) GetByID(context.Context, uuid.UUID) (*models.Document, error) {
	return nil, fmt.Errorf("not wired")
}
func (fakeDocs) ListByThread(context.Context, uuid.UUID) ([]models.Document, error) {
	return nil, nil
}
func (fakeDocs) Delete(context.Context, uuid.UUID) error { return nil }

type fakeIngester struct {
	reqs []rag.IngestRequest
}

func (f *fakeIngester) Ingest(_ context.Context, req rag.IngestRequest) (*models.Document, error) {
	f.reqs = append(f.reqs, req)
	return &models.Document{ID: uuid.New(), ThreadID: req.ThreadID, Title: req.Title, FileType: req.FileType}, nil
}

type fakeFormatter struct {
	doc   *chat.MarkdownDoc
	calls int
}

func (f *fakeFormatter) ToMarkdown(context.Context, string) (*chat.MarkdownDoc, error) {
	f.calls++
	if f.doc == nil {
		return nil, fmt.Errorf("conversion failed")
	}
	return f.doc, nil
}

func documentRouter(h *DocumentHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/threads/{id}/documents", h.Create)
	return r
}

func TestDocumentCreate_TitledTextStoredVerbatim(t *testing.T) {
	ingester := &fakeIngester{}
	formatter := &fakeFormatter{}
	h := NewDocumentHandler(fakeDocs{}, ingester, nil, formatter, 1<<20)

	body := `{"title": "Notes", "content": "remember the milk"}`
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/threads/%s/documents", uuid.New()), bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	documentRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if formatter.calls != 0 {
		t.Error("titled text must not be reformatted")
	}
	got := ingester.reqs[0]
	if got.Title != "Notes" || got.Content != "remember the milk" || got.FileType != models.FileTypePlainText {
		t.Errorf("unexpected ingest request: %+v", got)
	}
}

func TestDocumentCreate_UntitledTextConvertedToMarkdown(t *testing.T) {
	ingester := &fakeIngester{}
	formatter := &fakeFormatter{doc: &chat.MarkdownDoc{Title: "Grocery List", Content: "# Groceries\n\n- milk"}}
	h := NewDocumentHandler(fakeDocs{}, ingester, nil, formatter, 1<<20)

	body := `{"content": "groceries: milk"}`
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/threads/%s/documents", uuid.New()), bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	documentRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if formatter.calls != 1 {
		t.Fatalf("formatter called %d times, want 1", formatter.calls)
	}
	got := ingester.reqs[0]
	if got.Title != "Grocery List" || got.FileType != models.FileTypeMarkdown {
		t.Errorf("unexpected ingest request: %+v", got)
	}
}

func TestDocumentCreate_ConversionFailureReported(t *testing.T) {
	ingester := &fakeIngester{}
	h := NewDocumentHandler(fakeDocs{}, ingester, nil, &fakeFormatter{}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/threads/%s/documents", uuid.New()), bytes.NewBufferString(`{"content": "x"}`))
	rec := httptest.NewRecorder()
	documentRouter(h).ServeHTTP(rec, req)

	if rec.Code == http.StatusCreated {
		t.Fatal("conversion failure must not create a document")
	}
	if len(ingester.reqs) != 0 {
		t.Error("nothing must be ingested when conversion fails")
	}
}
