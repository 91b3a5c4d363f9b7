package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/chatkb/backend/internal/llm"
	"github.com/chatkb/backend/internal/models"
	"github.com/chatkb/backend/internal/store"
	"github.com/chatkb/backend/internal/vectorstore"
)

// scriptedGateway replays canned chat responses in order and serves a
// fixed chunk stream for the final answer.
type scriptedGateway struct {
	chatResponses []*llm.ChatResponse
	chatRequests  []llm.ChatRequest
	streamChunks  []llm.StreamChunk
	streamErr     error
}

func (g *scriptedGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.chatRequests = append(g.chatRequests, req)
	if len(g.chatResponses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	resp := g.chatResponses[0]
	g.chatResponses = g.chatResponses[1:]
	return resp, nil
}

func (g *scriptedGateway) ChatStream(context.Context, llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if g.streamErr != nil {
		return nil, g.streamErr
	}
	ch := make(chan llm.StreamChunk, len(g.streamChunks)+1)
	for _, c := range g.streamChunks {
		ch <- c
	}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (g *scriptedGateway) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, errors.New("not implemented")
}
func (g *scriptedGateway) Provider(string) (llm.Provider, error) { return nil, errors.New("none") }
func (g *scriptedGateway) ListModels() []llm.ModelInfo           { return nil }

type memoryLog struct {
	messages []models.Message
}

func (l *memoryLog) Append(_ context.Context, p store.AppendParams) (*models.Message, error) {
	m := models.Message{
		ID:              uuid.New(),
		ThreadID:        p.ThreadID,
		Role:            p.Role,
		Content:         p.Content,
		ToolInvocations: p.ToolInvocations,
		CreatedAt:       time.Now(),
	}
	l.messages = append(l.messages, m)
	return &m, nil
}

func (l *memoryLog) ListByThread(_ context.Context, threadID uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	for _, m := range l.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out, nil
}

func drain(t *testing.T, ch <-chan llm.StreamChunk) string {
	t.Helper()
	var answer string
	for chunk := range ch {
		answer += chunk.Content
	}
	return answer
}

// ctxAwareLog refuses writes on a dead context, the way a real pool
// does.
type ctxAwareLog struct {
	memoryLog
}

func (l *ctxAwareLog) Append(ctx context.Context, p store.AppendParams) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.memoryLog.Append(ctx, p)
}

func newTestOrchestrator(gw *scriptedGateway, log MessageLog, ret Retriever) *Orchestrator {
	tools := NewToolset(ret, &fakeSaver{}, nil)
	return NewOrchestrator(gw, log, tools, "gpt-4o", 3, nil)
}

func TestStreamReply_NoToolsNeeded(t *testing.T) {
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{{Content: "Hi there."}},
		streamChunks:  []llm.StreamChunk{{Content: "Hello"}, {Content: "!"}},
	}
	log := &memoryLog{}
	o := newTestOrchestrator(gw, log, &fakeRetriever{})
	threadID := uuid.New()

	ch, err := o.StreamReply(context.Background(), threadID, "hello")
	if err != nil {
		t.Fatalf("StreamReply() error: %v", err)
	}
	if got := drain(t, ch); got != "Hello!" {
		t.Errorf("streamed answer = %q, want %q", got, "Hello!")
	}

	// User message first, assistant answer second.
	if len(log.messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(log.messages))
	}
	if log.messages[0].Role != models.RoleUser || log.messages[0].Content != "hello" {
		t.Errorf("first persisted message wrong: %+v", log.messages[0])
	}
	if log.messages[1].Role != models.RoleAssistant || log.messages[1].Content != "Hello!" {
		t.Errorf("second persisted message wrong: %+v", log.messages[1])
	}
}

func TestStreamReply_ToolRoundtripRecorded(t *testing.T) {
	hit := vectorstore.SearchResult{EmbeddingID: uuid.New(), Content: "the office is in Berlin", Similarity: 0.9}
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{{
				ID:        "call_1",
				Name:      ToolSearchKnowledgeBase,
				Arguments: `{"queries": ["office location", "where is the office"]}`,
			}}},
			{Content: "ready"},
		},
		streamChunks: []llm.StreamChunk{{Content: "The office is in Berlin."}},
	}
	log := &memoryLog{}
	o := newTestOrchestrator(gw, log, &fakeRetriever{results: []vectorstore.SearchResult{hit}})
	threadID := uuid.New()

	ch, err := o.StreamReply(context.Background(), threadID, "where is the office?")
	if err != nil {
		t.Fatalf("StreamReply() error: %v", err)
	}
	drain(t, ch)

	// Two tool-loop calls (one with a tool call, one without) before
	// the streamed answer.
	if len(gw.chatRequests) != 2 {
		t.Fatalf("chat called %d times, want 2", len(gw.chatRequests))
	}
	if len(gw.chatRequests[0].Tools) == 0 {
		t.Error("tool-loop request must declare tools")
	}

	// The tool result must be fed back as a tool message.
	second := gw.chatRequests[1].Messages
	last := second[len(second)-1]
	if last.Role != models.RoleTool || last.ToolCallID != "call_1" {
		t.Errorf("tool result not fed back: %+v", last)
	}

	assistant := log.messages[len(log.messages)-1]
	if assistant.Role != models.RoleAssistant {
		t.Fatalf("last persisted message is %q", assistant.Role)
	}
	var invocations []ToolInvocation
	if err := json.Unmarshal(assistant.ToolInvocations, &invocations); err != nil {
		t.Fatalf("tool invocations not persisted as JSON: %v", err)
	}
	if len(invocations) != 1 || invocations[0].ToolName != ToolSearchKnowledgeBase {
		t.Errorf("unexpected invocations: %+v", invocations)
	}
}

func TestStreamReply_ToolBudgetBounded(t *testing.T) {
	searchCall := llm.ToolCall{
		ID:        "call_n",
		Name:      ToolSearchKnowledgeBase,
		Arguments: `{"queries": ["q"]}`,
	}
	// The model asks for tools on every round; the loop must stop at
	// three roundtrips and still stream an answer.
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{searchCall}},
			{ToolCalls: []llm.ToolCall{searchCall}},
			{ToolCalls: []llm.ToolCall{searchCall}},
			{ToolCalls: []llm.ToolCall{searchCall}}, // must never be consumed
		},
		streamChunks: []llm.StreamChunk{{Content: "best effort answer"}},
	}
	log := &memoryLog{}
	o := newTestOrchestrator(gw, log, &fakeRetriever{})

	ch, err := o.StreamReply(context.Background(), uuid.New(), "question")
	if err != nil {
		t.Fatalf("StreamReply() error: %v", err)
	}
	if got := drain(t, ch); got != "best effort answer" {
		t.Errorf("answer = %q", got)
	}
	if len(gw.chatRequests) != 3 {
		t.Errorf("chat called %d times, want 3", len(gw.chatRequests))
	}
	if len(gw.chatResponses) != 1 {
		t.Errorf("loop consumed %d extra responses", 1-len(gw.chatResponses))
	}
}

func TestStreamReply_PersistsAfterCallerStopsReading(t *testing.T) {
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{{Content: "Hi."}},
		streamChunks:  []llm.StreamChunk{{Content: "Hello"}, {Content: "!"}},
	}
	log := &ctxAwareLog{}
	o := newTestOrchestrator(gw, log, &fakeRetriever{})
	threadID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := o.StreamReply(ctx, threadID, "hello")
	if err != nil {
		t.Fatalf("StreamReply() error: %v", err)
	}
	for chunk := range ch {
		if chunk.Done {
			// The HTTP handler returns the moment it writes the final
			// chunk, which kills the request context.
			cancel()
		}
	}

	if len(log.messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(log.messages))
	}
	assistant := log.messages[1]
	if assistant.Role != models.RoleAssistant || assistant.Content != "Hello!" {
		t.Errorf("assistant turn not persisted: %+v", assistant)
	}
}

func TestStreamReply_ProviderFailureSurfacesOnce(t *testing.T) {
	gw := &scriptedGateway{} // no scripted responses: first Chat fails
	o := newTestOrchestrator(gw, &memoryLog{}, &fakeRetriever{})

	if _, err := o.StreamReply(context.Background(), uuid.New(), "hi"); err == nil {
		t.Fatal("expected error when the provider fails")
	}
	if len(gw.chatRequests) != 1 {
		t.Errorf("chat called %d times, want 1 (no retry)", len(gw.chatRequests))
	}
}

func TestNameThread_TrimsAndBounds(t *testing.T) {
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{{Content: "\"Trip Planning Questions\"\n"}},
	}
	n := NewNamer(gw, "gpt-4o-mini")

	title, err := n.NameThread(context.Background(), "help me plan a trip")
	if err != nil {
		t.Fatalf("NameThread() error: %v", err)
	}
	if title != "Trip Planning Questions" {
		t.Errorf("title = %q", title)
	}
	if gw.chatRequests[0].Temperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", gw.chatRequests[0].Temperature)
	}
}

func TestNameThread_TruncatesOnRuneBoundary(t *testing.T) {
	gw := &scriptedGateway{
		chatResponses: []*llm.ChatResponse{{Content: strings.Repeat("ü", 100)}},
	}
	n := NewNamer(gw, "gpt-4o-mini")

	title, err := n.NameThread(context.Background(), "long title please")
	if err != nil {
		t.Fatalf("NameThread() error: %v", err)
	}
	if !utf8.ValidString(title) {
		t.Fatalf("title is not valid UTF-8: %q", title)
	}
	if got := utf8.RuneCountInString(title); got != 80 {
		t.Errorf("title length = %d runes, want 80", got)
	}
}
