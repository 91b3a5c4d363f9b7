package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/llm"
	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/internal/rag"
	"github.com/chatkb/backend/internal/vectorstore"
)

const (
	ToolSearchKnowledgeBase = "search_knowledge_base"
	ToolSaveDocument        = "save_document"
)

// Retriever answers multi-query knowledge-base lookups for one thread.
type Retriever interface {
	FindRelevantMulti(ctx context.Context, queries []string, threadID uuid.UUID) ([]vectorstore.SearchResult, error)
}

// DocumentSaver ingests model-authored content into the knowledge base.
type DocumentSaver interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (*models.Document, error)
}

type searchArgs struct {
	Queries []string `json:"queries"`
}

type saveArgs struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FileType string `json:"file_type"`
}

type toolHandler func(ctx context.Context, threadID uuid.UUID, args json.RawMessage) (string, error)

// Toolset is the closed set of tools the assistant may invoke. Tool
// names not in the table are rejected, never executed.
type Toolset struct {
	retriever Retriever
	saver     DocumentSaver
	logger    *slog.Logger
	handlers  map[string]toolHandler
}

func NewToolset(retriever Retriever, saver DocumentSaver, logger *slog.Logger) *Toolset {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Toolset{
		retriever: retriever,
		saver:     saver,
		logger:    logger,
	}
	t.handlers = map[string]toolHandler{
		ToolSearchKnowledgeBase: t.searchKnowledgeBase,
		ToolSaveDocument:        t.saveDocument,
	}
	return t
}

// Definitions declares the toolset to the model.
func (t *Toolset) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolSearchKnowledgeBase,
			Description: "Search the thread's knowledge base. Rephrase the user's question several different ways and pass every rephrasing; results are merged.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"queries": {
						"type": "array",
						"items": {"type": "string"},
						"description": "Rephrasings of the user's question"
					}
				},
				"required": ["queries"]
			}`),
		},
		{
			Name:        ToolSaveDocument,
			Description: "Save a piece of information the user shared into the thread's knowledge base so later questions can find it.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "Short title for the document"},
					"content": {"type": "string", "description": "The information to save, verbatim"},
					"file_type": {"type": "string", "description": "MIME type, defaults to text/plain"}
				},
				"required": ["title", "content"]
			}`),
		},
	}
}

// Execute dispatches one tool call. Failures come back as the
// observation string so the model can recover; only an unknown tool
// name is an error for the caller.
func (t *Toolset) Execute(ctx context.Context, threadID uuid.UUID, call llm.ToolCall) (string, error) {
	handler, ok := t.handlers[call.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	t.logger.Debug("executing tool", "tool", call.Name, "thread_id", threadID)
	result, err := handler(ctx, threadID, json.RawMessage(call.Arguments))
	if err != nil {
		t.logger.Warn("tool failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Error: %s", err), nil
	}
	return result, nil
}

// decodeArgs rejects unknown fields so a drifting model-side schema
// fails loudly instead of being half-applied.
func decodeArgs(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}

func (t *Toolset) searchKnowledgeBase(ctx context.Context, threadID uuid.UUID, raw json.RawMessage) (string, error) {
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if len(args.Queries) == 0 {
		return "", fmt.Errorf("queries must not be empty")
	}

	results, err := t.retriever.FindRelevantMulti(ctx, args.Queries, threadID)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No relevant information found in the knowledge base.", nil
	}

	type hit struct {
		Content    string  `json:"content"`
		Similarity float64 `json:"similarity"`
	}
	hits := make([]hit, len(results))
	for i, r := range results {
		hits[i] = hit{Content: r.Content, Similarity: r.Similarity}
	}
	out, err := json.Marshal(hits)
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(out), nil
}

func (t *Toolset) saveDocument(ctx context.Context, threadID uuid.UUID, raw json.RawMessage) (string, error) {
	var args saveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.FileType == "" {
		args.FileType = models.FileTypePlainText
	}

	doc, err := t.saver.Ingest(ctx, rag.IngestRequest{
		ThreadID: threadID,
		Title:    args.Title,
		Content:  args.Content,
		FileType: args.FileType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved document %q (%s).", doc.Title, doc.ID), nil
}
