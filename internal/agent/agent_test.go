package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erg0nix/konsilium/internal/compress"
	"github.com/erg0nix/konsilium/internal/core"
	"github.com/erg0nix/konsilium/internal/history"
	"github.com/erg0nix/konsilium/internal/provider"
	"github.com/erg0nix/konsilium/internal/tool"
	"github.com/erg0nix/konsilium/internal/tool/builtin"
	"github.com/erg0nix/konsilium/internal/usage"
)

type mockProvider struct {
	mu       sync.Mutex
	respond  func(call int, req provider.Request) (provider.Response, error)
	requests []provider.Request
}

func (m *mockProvider) GenerateChat(_ context.Context, req provider.Request) (provider.Response, error) {
	m.mu.Lock()
	call := len(m.requests)
	req.Messages = slices.Clone(req.Messages)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	return m.respond(call, req)
}

func answer(content string, promptTokens, completionTokens int) provider.Response {
	return provider.Response{
		Message:      core.Message{Role: core.RoleAssistant, Content: content},
		FinishReason: "stop",
		Usage:        &core.Usage{PromptTokens: promptTokens, CompletionTokens: completionTokens},
	}
}

func toolCall(id, name, arguments string) provider.Response {
	return provider.Response{
		Message: core.Message{
			Role: core.RoleAssistant,
			ToolCalls: []core.ToolCall{{
				ID:       id,
				Type:     "function",
				Function: core.FunctionCall{Name: name, Arguments: arguments},
			}},
		},
		FinishReason: core.FinishReasonToolCalls,
		Usage:        &core.Usage{PromptTokens: 100, CompletionTokens: 10},
	}
}

func testConfig() Config {
	return Config{
		Model:          "deepseek-chat",
		SystemPrompt:   "system instructions",
		Temperature:    0.7,
		MaxTokens:      1000,
		MaxIterations:  5,
		ContextLimit:   131072,
		NearLimitRatio: 0.8,
		Pricing:        usage.Pricing{InputPerMillion: 0.14, OutputPerMillion: 0.28},
	}
}

func newTestAgent(p provider.Provider, store history.Store) *Agent {
	return New(p, tool.NewRegistry(&builtin.Calculator{}), store, nil, testConfig())
}

func storedMessages(t *testing.T, store history.Store) []core.Message {
	t.Helper()
	messages, err := store.Messages(context.Background())
	if err != nil {
		t.Fatalf("store.Messages failed: %v", err)
	}
	return messages
}

func TestChat_FinalAnswer(t *testing.T) {
	p := &mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return answer("Hello!", 1000, 500), nil
	}}
	store := history.NewMemoryStore()
	a := newTestAgent(p, store)

	result := a.Chat(context.Background(), "hi")

	if result.IsError || result.Answer != "Hello!" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Tokens == nil || result.Tokens.PromptTokens != 1000 || result.Tokens.CompletionTokens != 500 {
		t.Fatalf("unexpected tokens %+v", result.Tokens)
	}
	if math.Abs(result.Tokens.CostUSD-0.00028) > 1e-12 {
		t.Errorf("expected cost 0.00028, got %v", result.Tokens.CostUSD)
	}

	req := p.requests[0]
	if req.Model != "deepseek-chat" || *req.Sampling.Temperature != 0.7 || *req.Sampling.MaxTokens != 1000 {
		t.Errorf("unexpected request settings %+v", req)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "calculate" {
		t.Errorf("expected calculator schema, got %+v", req.Tools)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != core.RoleSystem || req.Messages[1].Content != "hi" {
		t.Errorf("unexpected prompt %+v", req.Messages)
	}

	stored := storedMessages(t, store)
	if len(stored) != 2 || stored[0].Role != core.RoleUser || stored[1].Content != "Hello!" {
		t.Errorf("unexpected stored history %+v", stored)
	}

	stats := a.Stats()
	if stats.Turns != 1 || stats.LastPromptTokens != 1000 || math.Abs(stats.TotalCostUSD-0.00028) > 1e-12 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestChat_ToolLoop(t *testing.T) {
	p := &mockProvider{respond: func(call int, req provider.Request) (provider.Response, error) {
		if call == 0 {
			return toolCall("call_1", "calculate", `{"expression":"6*7"}`), nil
		}
		return answer("The answer is 42.", 150, 20), nil
	}}
	store := history.NewMemoryStore()
	a := newTestAgent(p, store)

	result := a.Chat(context.Background(), "what is 6*7?")

	if result.IsError || result.Answer != "The answer is 42." {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Steps) != 1 || result.Steps[0] != (Step{Tool: "calculate", Arguments: `{"expression":"6*7"}`, Result: "42"}) {
		t.Errorf("unexpected steps %+v", result.Steps)
	}
	if result.Tokens.PromptTokens != 250 || result.Tokens.CompletionTokens != 30 {
		t.Errorf("expected tokens accumulated across iterations, got %+v", result.Tokens)
	}

	second := p.requests[1].Messages
	if err := provider.ValidateToolReferences(second); err != nil {
		t.Fatalf("second request breaks tool reference integrity: %v", err)
	}
	last := second[len(second)-1]
	if last.Role != core.RoleTool || last.ToolCallID != "call_1" || last.Content != "42" {
		t.Errorf("expected tool result at end of working list, got %+v", last)
	}

	stored := storedMessages(t, store)
	roles := make([]core.Role, 0, len(stored))
	for _, m := range stored {
		roles = append(roles, m.Role)
	}
	want := []core.Role{core.RoleUser, core.RoleAssistant, core.RoleTool, core.RoleAssistant}
	if !slices.Equal(roles, want) {
		t.Errorf("stored roles = %v, want %v", roles, want)
	}
}

func TestChat_UnknownToolIsReportedBack(t *testing.T) {
	p := &mockProvider{respond: func(call int, req provider.Request) (provider.Response, error) {
		if call == 0 {
			return toolCall("call_x", "foo", `{}`), nil
		}
		return answer("Sorry, I cannot do that.", 10, 5), nil
	}}
	a := newTestAgent(p, history.NewMemoryStore())

	result := a.Chat(context.Background(), "use foo")

	if result.IsError {
		t.Fatalf("unknown tool must not abort the turn: %+v", result)
	}
	if len(p.requests) != 2 {
		t.Fatalf("expected the loop to continue, got %d calls", len(p.requests))
	}

	toolMsg := p.requests[1].Messages[len(p.requests[1].Messages)-1]
	if toolMsg.Role != core.RoleTool || !strings.Contains(toolMsg.Content, "foo") || !strings.Contains(toolMsg.Content, "not found") {
		t.Errorf("expected not-found tool result, got %+v", toolMsg)
	}
}

func TestChat_IterationLimit(t *testing.T) {
	p := &mockProvider{respond: func(call int, req provider.Request) (provider.Response, error) {
		return toolCall(fmt.Sprintf("call_%d", call), "calculate", `{"expression":"1+1"}`), nil
	}}
	a := newTestAgent(p, history.NewMemoryStore())

	done := make(chan Result, 1)
	go func() { done <- a.Chat(context.Background(), "loop forever") }()

	var result Result
	select {
	case result = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Chat did not terminate")
	}

	if len(p.requests) != 5 {
		t.Errorf("expected exactly 5 completion calls, got %d", len(p.requests))
	}
	if result.Answer != IterationLimitMessage || result.IsError {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Tokens != nil {
		t.Errorf("expected no token info, got %+v", result.Tokens)
	}
	if len(result.Steps) != 5 {
		t.Errorf("expected 5 recorded steps, got %d", len(result.Steps))
	}
	if a.Stats().Turns != 0 {
		t.Errorf("limit-exceeded turn must not be counted, got %+v", a.Stats())
	}
}

func TestChat_ContextOverflow(t *testing.T) {
	p := &mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return provider.Response{}, &provider.APIError{StatusCode: 400, Message: "This model's maximum context length is 65536 tokens"}
	}}
	store := history.NewMemoryStore()
	a := newTestAgent(p, store)

	result := a.Chat(context.Background(), "a very long message")

	if !result.IsError || result.Answer != ContextFullMessage {
		t.Fatalf("expected context-full result, got %+v", result)
	}

	stored := storedMessages(t, store)
	if len(stored) != 1 || stored[0].Content != "a very long message" {
		t.Errorf("expected the user message to stay persisted, got %+v", stored)
	}
}

func TestChat_RawErrorSurfaced(t *testing.T) {
	p := &mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return provider.Response{}, errors.New("connection refused")
	}}
	a := newTestAgent(p, history.NewMemoryStore())

	result := a.Chat(context.Background(), "hi")

	if !result.IsError || !strings.Contains(result.Answer, "connection refused") {
		t.Fatalf("expected raw error text, got %+v", result)
	}
}

type failingTool struct{}

func (failingTool) Name() string               { return "explode" }
func (failingTool) Description() string        { return "always fails" }
func (failingTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (failingTool) Execute(context.Context, string) (string, error) {
	return "", errors.New("boom")
}

func TestChat_ToolErrorAbortsTurn(t *testing.T) {
	p := &mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return toolCall("call_1", "explode", `{}`), nil
	}}
	a := New(p, tool.NewRegistry(failingTool{}), history.NewMemoryStore(), nil, testConfig())

	result := a.Chat(context.Background(), "go")

	if !result.IsError || !strings.Contains(result.Answer, "boom") {
		t.Fatalf("expected fatal tool error, got %+v", result)
	}
	if len(p.requests) != 1 {
		t.Errorf("expected no further calls after a tool error, got %d", len(p.requests))
	}
}

type failingStore struct {
	*history.MemoryStore
	failAppend bool
}

func (f *failingStore) Append(ctx context.Context, msg core.Message) error {
	if f.failAppend {
		return errors.New("disk full")
	}
	return f.MemoryStore.Append(ctx, msg)
}

func TestChat_PersistFailureAbortsBeforeCall(t *testing.T) {
	p := &mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return answer("unused", 1, 1), nil
	}}
	a := newTestAgent(p, &failingStore{MemoryStore: history.NewMemoryStore(), failAppend: true})

	result := a.Chat(context.Background(), "hi")

	if !result.IsError || !strings.Contains(result.Answer, "disk full") {
		t.Fatalf("expected persistence error, got %+v", result)
	}
	if len(p.requests) != 0 {
		t.Errorf("expected no completion call, got %d", len(p.requests))
	}
}

func TestChat_PromptUsesSummaryAndRecentWindow(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	for i := range 6 {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		_ = store.Append(ctx, core.Message{Role: role, Content: fmt.Sprintf("old %d", i)})
	}
	_ = store.SaveContext(ctx, history.CompressionContext{Summary: "they talked about Go", CoveredCount: 4})

	p := &mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return answer("ok", 1, 1), nil
	}}
	a := newTestAgent(p, store)

	a.Chat(ctx, "new question")

	got := p.requests[0].Messages
	if len(got) != 5 {
		t.Fatalf("expected system, summary, 2 recent and user message, got %d: %+v", len(got), got)
	}
	if got[0].Content != "system instructions" {
		t.Errorf("expected system prompt first, got %+v", got[0])
	}
	if got[1].Role != core.RoleSystem || !strings.Contains(got[1].Content, "they talked about Go") {
		t.Errorf("expected summary system message, got %+v", got[1])
	}
	if got[2].Content != "old 4" || got[3].Content != "old 5" || got[4].Content != "new question" {
		t.Errorf("unexpected recent window %+v", got[2:])
	}
	for _, m := range got {
		if strings.HasPrefix(m.Content, "old 0") || strings.HasPrefix(m.Content, "old 3") {
			t.Errorf("covered message resent verbatim: %+v", m)
		}
	}
}

func TestChat_ClampsCoveredCount(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	_ = store.Append(ctx, core.Message{Role: core.RoleUser, Content: "only"})
	_ = store.SaveContext(ctx, history.CompressionContext{Summary: "s", CoveredCount: 10})

	a := newTestAgent(&mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return answer("ok", 1, 1), nil
	}}, store)

	state, err := a.Compression(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.CoveredCount != 1 {
		t.Errorf("expected covered count clamped to history length, got %d", state.CoveredCount)
	}
}

func TestChat_CompressesLongHistory(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	for i := range 12 {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		_ = store.Append(ctx, core.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	_ = store.Append(ctx, core.Message{Role: core.RoleUser, Content: "m12"})

	p := &mockProvider{respond: func(call int, req provider.Request) (provider.Response, error) {
		if len(req.Tools) == 0 {
			return provider.Response{Message: core.Message{Role: core.RoleAssistant, Content: "folded summary"}}, nil
		}
		return answer("ok", 1, 1), nil
	}}
	compressor := compress.New(p, store, compress.Config{RecentWindow: 6, BatchSize: 6, Model: "deepseek-chat"})
	a := New(p, tool.NewRegistry(&builtin.Calculator{}), store, compressor, testConfig())

	result := a.Chat(ctx, "next")
	if result.IsError {
		t.Fatalf("unexpected error %+v", result)
	}

	if len(p.requests) != 2 {
		t.Fatalf("expected summary call plus answer call, got %d", len(p.requests))
	}

	state, _ := store.LoadContext(ctx)
	if state.CoveredCount != 6 || state.Summary != "folded summary" {
		t.Errorf("expected persisted compression state, got %+v", state)
	}

	prompt := p.requests[1].Messages
	if !strings.Contains(prompt[1].Content, "folded summary") {
		t.Errorf("expected summary in prompt, got %+v", prompt[1])
	}
	if prompt[2].Content != "m6" {
		t.Errorf("expected recent window to start at m6, got %+v", prompt[2])
	}
}

func TestReset_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	a := newTestAgent(&mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return answer("ok", 10, 5), nil
	}}, store)

	a.Chat(ctx, "hi")
	_ = store.SaveContext(ctx, history.CompressionContext{Summary: "s", CoveredCount: 1})

	for range 2 {
		if err := a.Reset(ctx); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}

		messages, _ := a.History(ctx)
		state, _ := a.Compression(ctx)
		if len(messages) != 0 || state != (history.CompressionContext{}) || a.Stats() != (usage.Stats{}) {
			t.Fatalf("expected empty state after reset, got %d messages, %+v, %+v", len(messages), state, a.Stats())
		}
		if len(storedMessages(t, store)) != 0 {
			t.Fatal("expected store to be cleared")
		}
	}
}

func TestHistory_LazyLoad(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	_ = store.Append(ctx, core.Message{Role: core.RoleUser, Content: "from disk"})

	a := newTestAgent(&mockProvider{}, store)

	messages, err := a.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].Content != "from disk" {
		t.Errorf("expected persisted history, got %+v", messages)
	}
}

func TestChat_SerializesTurns(t *testing.T) {
	var inFlight, overlaps atomic.Int32
	p := &mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return answer("ok", 1, 1), nil
	}}
	store := history.NewMemoryStore()
	a := newTestAgent(p, store)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Chat(context.Background(), fmt.Sprintf("q%d", i))
		}()
	}
	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("expected serialized turns, saw %d overlaps", overlaps.Load())
	}
	if got := len(storedMessages(t, store)); got != 8 {
		t.Errorf("expected 8 stored messages, got %d", got)
	}
}

func TestChat_ObserverReceivesSteps(t *testing.T) {
	p := &mockProvider{respond: func(call int, req provider.Request) (provider.Response, error) {
		if call == 0 {
			return toolCall("c1", "calculate", `{"expression":"1+2"}`), nil
		}
		return answer("3", 1, 1), nil
	}}

	var events []Event
	a := New(p, tool.NewRegistry(&builtin.Calculator{}), history.NewMemoryStore(), nil, testConfig(),
		WithObserver(func(e Event) { events = append(events, e) }))

	a.Chat(context.Background(), "1+2")

	var toolEvents int
	for _, e := range events {
		if e.Type == EvtToolCompleted && e.Step != nil && e.Step.Result == "3" {
			toolEvents++
		}
	}
	if toolEvents != 1 {
		t.Errorf("expected one tool event, got events %+v", events)
	}
}

func TestStatus(t *testing.T) {
	a := newTestAgent(&mockProvider{respond: func(int, provider.Request) (provider.Response, error) {
		return answer("ok", 110000, 10), nil
	}}, history.NewMemoryStore())

	a.Chat(context.Background(), "hi")

	status, err := a.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.NearLimit || status.HistoryLen != 2 || status.ContextLimit != 131072 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestPairToolMessages(t *testing.T) {
	calls := core.Message{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "a"}}}

	window := []core.Message{
		{Role: core.RoleTool, Content: "orphan", ToolCallID: "z"},
		{Role: core.RoleUser, Content: "q1"},
		calls,
		{Role: core.RoleTool, Content: "1", ToolCallID: "a"},
		{Role: core.RoleAssistant, Content: "a1"},
		{Role: core.RoleUser, Content: "q2"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "b"}}},
		{Role: core.RoleUser, Content: "q3"},
	}

	got := pairToolMessages(window)

	var contents []string
	for _, m := range got {
		if m.HasToolCalls() {
			contents = append(contents, "calls:"+m.ToolCalls[0].ID)
			continue
		}
		contents = append(contents, m.Content)
	}

	want := []string{"q1", "calls:a", "1", "a1", "q2", "q3"}
	if !slices.Equal(contents, want) {
		t.Errorf("pairToolMessages() = %v, want %v", contents, want)
	}
	if err := provider.ValidateToolReferences(got); err != nil {
		t.Errorf("repaired window still invalid: %v", err)
	}
}

func TestIsContextOverflow(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("This model's Maximum Context length is 8192"), true},
		{errors.New("code: context_length_exceeded"), true},
		{errors.New("rate limit"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsContextOverflow(tt.err); got != tt.want {
			t.Errorf("IsContextOverflow(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
