package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/llm"
	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/internal/store"
)

const systemPrompt = `You are a helpful assistant with access to a per-conversation knowledge base.
Before answering a question, search the knowledge base: rephrase the user's question several different ways and pass all rephrasings to the search tool in one call.
Only state facts found in tool results; if the knowledge base has nothing relevant, say you don't know.
When the user shares information worth remembering, save it with the save tool without asking for confirmation.`

// MessageLog is the slice of the message store the orchestrator needs.
type MessageLog interface {
	Append(ctx context.Context, p store.AppendParams) (*models.Message, error)
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]models.Message, error)
}

// ToolInvocation records one executed tool call, persisted alongside
// the assistant message that triggered it.
type ToolInvocation struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Args       json.RawMessage `json:"args"`
	Result     string          `json:"result"`
}

// Orchestrator drives one assistant turn: persist the user message,
// run the bounded tool loop, stream the final answer, persist it.
type Orchestrator struct {
	gateway       llm.Gateway
	messages      MessageLog
	tools         *Toolset
	model         string
	maxRoundtrips int
	logger        *slog.Logger
}

func NewOrchestrator(gateway llm.Gateway, messages MessageLog, tools *Toolset, model string, maxRoundtrips int, logger *slog.Logger) *Orchestrator {
	if maxRoundtrips <= 0 {
		maxRoundtrips = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		gateway:       gateway,
		messages:      messages,
		tools:         tools,
		model:         model,
		maxRoundtrips: maxRoundtrips,
		logger:        logger,
	}
}

// StreamReply runs one turn and returns the chunk stream for the
// assistant's answer. The user message is persisted before any model
// call; the assistant message is persisted when the stream completes.
func (o *Orchestrator) StreamReply(ctx context.Context, threadID uuid.UUID, userContent string) (<-chan llm.StreamChunk, error) {
	if _, err := o.messages.Append(ctx, store.AppendParams{
		ThreadID: threadID,
		Role:     models.RoleUser,
		Content:  userContent,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	history, err := o.messages.ListByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	msgs := buildPromptMessages(history)

	invocations, msgs, err := o.runToolLoop(ctx, threadID, msgs)
	if err != nil {
		return nil, err
	}

	// The final answer is always generated without tools so an
	// exhausted tool budget still produces a reply.
	stream, err := o.gateway.ChatStream(ctx, llm.ChatRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go o.relay(ctx, threadID, stream, out, invocations)
	return out, nil
}

// runToolLoop lets the model invoke tools for up to maxRoundtrips
// rounds, feeding each result back as a tool message.
func (o *Orchestrator) runToolLoop(ctx context.Context, threadID uuid.UUID, msgs []llm.Message) ([]ToolInvocation, []llm.Message, error) {
	var invocations []ToolInvocation

	for round := 0; round < o.maxRoundtrips; round++ {
		resp, err := o.gateway.Chat(ctx, llm.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Tools:    o.tools.Definitions(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("tool round %d: %w", round, err)
		}
		if len(resp.ToolCalls) == 0 {
			break
		}

		msgs = append(msgs, llm.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result, err := o.tools.Execute(ctx, threadID, call)
			if err != nil {
				// Unknown tool name; tell the model instead of aborting
				// the turn.
				result = fmt.Sprintf("Error: %s", err)
			}
			invocations = append(invocations, ToolInvocation{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Args:       json.RawMessage(call.Arguments),
				Result:     result,
			})
			msgs = append(msgs, llm.Message{
				Role:       models.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return invocations, msgs, nil
}

// relay forwards provider chunks to the caller while accumulating the
// full answer, then persists the assistant message.
func (o *Orchestrator) relay(ctx context.Context, threadID uuid.UUID, in <-chan llm.StreamChunk, out chan<- llm.StreamChunk, invocations []ToolInvocation) {
	defer close(out)

	var answer []byte
	failed := false
	for chunk := range in {
		if chunk.Error != nil {
			failed = true
		}
		answer = append(answer, chunk.Content...)
		select {
		case out <- chunk:
		case <-ctx.Done():
			return
		}
	}

	if failed || len(answer) == 0 {
		return
	}

	var inv json.RawMessage
	if len(invocations) > 0 {
		b, err := json.Marshal(invocations)
		if err != nil {
			o.logger.Error("marshal tool invocations", "error", err)
		} else {
			inv = b
		}
	}

	// The request context ends as soon as the caller has written the
	// final chunk; the finished turn must still reach the store.
	if _, err := o.messages.Append(context.WithoutCancel(ctx), store.AppendParams{
		ThreadID:        threadID,
		Role:            models.RoleAssistant,
		Content:         string(answer),
		ToolInvocations: inv,
	}); err != nil {
		o.logger.Error("persist assistant message", "thread_id", threadID, "error", err)
	}
}

// buildPromptMessages replays the stored history behind the system
// prompt. Tool and data rows are bookkeeping, not prompt material.
func buildPromptMessages(history []models.Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: models.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		switch m.Role {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem:
			msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return msgs
}
