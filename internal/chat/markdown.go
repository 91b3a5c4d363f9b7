package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatkb/backend/internal/llm"
)

const markdownPrompt = `Convert the text the user sends into readable Markdown, using appropriate headings, lists, emphasis, and other formatting. If a table fits better than a list, use a table.
Respond with a JSON object {"title": "...", "content": "..."} where title names the document and content is the converted Markdown. Output the JSON only.`

// maxConvertibleLen bounds how much pasted text is worth a model call;
// anything longer is stored verbatim under a generic title.
const maxConvertibleLen = 10000

const fallbackTitle = "Document.md"

// MarkdownDoc is a titled markdown rendition of pasted text.
type MarkdownDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Formatter turns untitled pasted text into a titled markdown document
// with a small, cheap model.
type Formatter struct {
	gateway llm.Gateway
	model   string
}

func NewFormatter(gateway llm.Gateway, model string) *Formatter {
	return &Formatter{gateway: gateway, model: model}
}

func (f *Formatter) ToMarkdown(ctx context.Context, text string) (*MarkdownDoc, error) {
	if len(text) > maxConvertibleLen {
		return &MarkdownDoc{Title: fallbackTitle, Content: text}, nil
	}

	resp, err := f.gateway.Chat(ctx, llm.ChatRequest{
		Model: f.model,
		Messages: []llm.Message{
			{Role: "system", Content: markdownPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}

	var doc MarkdownDoc
	if err := json.Unmarshal([]byte(trimFence(resp.Content)), &doc); err != nil {
		return nil, fmt.Errorf("decode markdown conversion: %w", err)
	}
	if doc.Title == "" || doc.Content == "" {
		return nil, fmt.Errorf("model returned an incomplete document")
	}
	return &doc, nil
}

// trimFence strips the ```json fence models wrap JSON answers in.
func trimFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
