package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/chatkb/backend/internal/llm"
)

func TestToMarkdown_TitlesAndFormats(t *testing.T) {
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{
			{Content: "```json\n{\"title\": \"Team Offsite Notes\", \"content\": \"# Offsite\\n\\n- budget\\n- venue\"}\n```"},
		},
	}
	f := NewFormatter(gw, "gpt-4o-mini")

	doc, err := f.ToMarkdown(context.Background(), "offsite notes: budget, venue")
	if err != nil {
		t.Fatalf("ToMarkdown() error: %v", err)
	}
	if doc.Title != "Team Offsite Notes" {
		t.Errorf("title = %q", doc.Title)
	}
	if !strings.HasPrefix(doc.Content, "# Offsite") {
		t.Errorf("content = %q", doc.Content)
	}
	if len(gw.chatRequests) != 1 {
		t.Errorf("chat called %d times, want 1", len(gw.chatRequests))
	}
}

func TestToMarkdown_LongTextSkipsModel(t *testing.T) {
	gw := &scriptedGateway{}
	f := NewFormatter(gw, "gpt-4o-mini")
	long := strings.Repeat("a ", 6000)

	doc, err := f.ToMarkdown(context.Background(), long)
	if err != nil {
		t.Fatalf("ToMarkdown() error: %v", err)
	}
	if doc.Title != fallbackTitle {
		t.Errorf("title = %q, want %q", doc.Title, fallbackTitle)
	}
	if doc.Content != long {
		t.Error("long text must be kept verbatim")
	}
	if len(gw.chatRequests) != 0 {
		t.Errorf("chat called %d times, want 0", len(gw.chatRequests))
	}
}

func TestToMarkdown_RejectsIncompleteAnswer(t *testing.T) {
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{{Content: `{"title": "", "content": "x"}`}},
	}
	f := NewFormatter(gw, "gpt-4o-mini")

	if _, err := f.ToMarkdown(context.Background(), "some text"); err == nil {
		t.Fatal("expected error for a titleless conversion")
	}
}
