package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatkb/backend/internal/llm"
)

const namingPrompt = `Generate a short conversation title, at most six words, based on the user's first message. Respond with the title only: no quotes, no trailing punctuation.`

const maxTitleLen = 80

// Namer derives a thread title from its first user message with a
// small, cheap model.
type Namer struct {
	gateway llm.Gateway
	model   string
}

func NewNamer(gateway llm.Gateway, model string) *Namer {
	return &Namer{gateway: gateway, model: model}
}

func (n *Namer) NameThread(ctx context.Context, firstMessage string) (string, error) {
	resp, err := n.gateway.Chat(ctx, llm.ChatRequest{
		Model:       n.model,
		Temperature: 0.5,
		Messages: []llm.Message{
			{Role: "system", Content: namingPrompt},
			{Role: "user", Content: firstMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("name thread: %w", err)
	}

	title := strings.TrimSpace(resp.Content)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return "", fmt.Errorf("model returned empty title")
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	return title, nil
}
