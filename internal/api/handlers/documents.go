package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/apperr"
	"github.com/chatkb/backend/internal/chat"
	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/internal/queue"
	"github.com/chatkb/backend/internal/rag"
	"github.com/chatkb/backend/pkg/textextract"
)

// DocumentService is the document store surface the handler needs.
type DocumentService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ingester runs the synchronous ingest path for pasted text.
type Ingester interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (*models.Document, error)
}

// IngestQueue schedules the asynchronous ingest path for file uploads.
type IngestQueue interface {
	EnqueueDocumentIngest(payload queue.DocumentIngestPayload) error
}

// TextFormatter titles and formats untitled pasted text before it is
// stored.
type TextFormatter interface {
	ToMarkdown(ctx context.Context, text string) (*chat.MarkdownDoc, error)
}

type DocumentHandler struct {
	docs        DocumentService
	ingester    Ingester
	queue       IngestQueue
	formatter   TextFormatter
	maxFileSize int64
}

func NewDocumentHandler(docs DocumentService, ingester Ingester, q IngestQueue, formatter TextFormatter, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{
		docs:        docs,
		ingester:    ingester,
		queue:       q,
		formatter:   formatter,
		maxFileSize: maxFileSize,
	}
}

type createDocumentRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FileType string `json:"file_type,omitempty"`
}

// Create ingests pasted text synchronously and returns the stored
// document. Untitled text is run through the formatter first, yielding
// a titled markdown document.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, apperr.NewValidationError("body"))
		return
	}

	title, content, fileType := req.Title, req.Content, req.FileType
	if title == "" {
		md, err := h.formatter.ToMarkdown(r.Context(), req.Content)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		title, content, fileType = md.Title, md.Content, models.FileTypeMarkdown
	}
	if fileType == "" {
		fileType = models.FileTypePlainText
	}

	doc, err := h.ingester.Ingest(r.Context(), rag.IngestRequest{
		ThreadID: id,
		Title:    title,
		Content:  content,
		FileType: fileType,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Upload accepts a multipart file, extracts its text, and queues the
// chunk-and-embed work.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		WriteError(w, r, apperr.NewValidationError("file"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, r, apperr.NewValidationError("file"))
		return
	}
	defer file.Close()

	fileType, err := textextract.Detect(header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		WriteError(w, r, apperr.NewValidationError("file_type"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, r, apperr.NewValidationError("file"))
		return
	}

	extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), fileType)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if extracted.Content == "" {
		WriteError(w, r, apperr.NewValidationError("content"))
		return
	}

	// DOCX is not a stored document type; its extracted text is.
	storedType := extracted.FileType
	if storedType == textextract.TypeDOCX {
		storedType = models.FileTypePlainText
	}

	if err := h.queue.EnqueueDocumentIngest(queue.DocumentIngestPayload{
		ThreadID: id.String(),
		Title:    header.Filename,
		Content:  extracted.Content,
		FileType: storedType,
	}); err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "queued",
		"thread_id": id.String(),
		"title":     header.Filename,
		"file_type": storedType,
	})
}

func (h *DocumentHandler) ListByThread(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	docs, err := h.docs.ListByThread(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, apperr.NewValidationError("id"))
		return
	}

	doc, err := h.docs.GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, apperr.NewValidationError("id"))
		return
	}

	if err := h.docs.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
