package compress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/erg0nix/konsilium/internal/core"
	"github.com/erg0nix/konsilium/internal/history"
	"github.com/erg0nix/konsilium/internal/provider"
)

type scriptedSummarizer struct {
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedSummarizer) GenerateChat(_ context.Context, req provider.Request) (provider.Response, error) {
	call := len(s.prompts)
	s.prompts = append(s.prompts, req.Messages[0].Content)

	if call < len(s.errs) && s.errs[call] != nil {
		return provider.Response{}, s.errs[call]
	}

	reply := fmt.Sprintf("summary %d", call+1)
	if call < len(s.replies) {
		reply = s.replies[call]
	}
	return provider.Response{Message: core.Message{Role: core.RoleAssistant, Content: reply}}, nil
}

type recordingSaver struct {
	saved []history.CompressionContext
	err   error
}

func (r *recordingSaver) SaveContext(_ context.Context, state history.CompressionContext) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, state)
	return nil
}

func seedMessages(n int) []core.Message {
	messages := make([]core.Message, n)
	for i := range messages {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		messages[i] = core.Message{Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return messages
}

func newTestCompressor(p provider.Provider, saver ContextSaver) *Compressor {
	return New(p, saver, Config{RecentWindow: 6, BatchSize: 6, Model: "m", Temperature: 0.3, MaxTokens: 400})
}

func TestMaintain_FoldsOneBatch(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	saver := &recordingSaver{}

	state := newTestCompressor(summarizer, saver).Maintain(context.Background(), seedMessages(13), history.CompressionContext{})

	if state.CoveredCount != 6 || state.Summary != "summary 1" {
		t.Fatalf("expected one fold to covered=6, got %+v", state)
	}
	if len(summarizer.prompts) != 1 || len(saver.saved) != 1 {
		t.Errorf("expected one call and one save, got %d calls %d saves", len(summarizer.prompts), len(saver.saved))
	}
	if !strings.Contains(summarizer.prompts[0], "message 5") || strings.Contains(summarizer.prompts[0], "message 6") {
		t.Errorf("expected the batch to be messages 0..5, prompt:\n%s", summarizer.prompts[0])
	}
}

func TestMaintain_FoldsTwoBatchesAndChainsSummary(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	saver := &recordingSaver{}

	state := newTestCompressor(summarizer, saver).Maintain(context.Background(), seedMessages(19), history.CompressionContext{})

	if state.CoveredCount != 12 || state.Summary != "summary 2" {
		t.Fatalf("expected two folds to covered=12, got %+v", state)
	}
	if len(saver.saved) != 2 || saver.saved[0].CoveredCount != 6 || saver.saved[1].CoveredCount != 12 {
		t.Errorf("expected state persisted after each fold, got %+v", saver.saved)
	}
	if !strings.Contains(summarizer.prompts[1], "summary 1") {
		t.Errorf("expected second prompt to embed the first summary, got:\n%s", summarizer.prompts[1])
	}
}

func TestMaintain_NoFoldWithinWindow(t *testing.T) {
	summarizer := &scriptedSummarizer{}

	for _, n := range []int{0, 6, 12} {
		state := newTestCompressor(summarizer, &recordingSaver{}).Maintain(context.Background(), seedMessages(n), history.CompressionContext{})
		if state.CoveredCount != 0 {
			t.Errorf("n=%d: expected no fold, got %+v", n, state)
		}
	}
	if len(summarizer.prompts) != 0 {
		t.Errorf("expected no summarization calls, got %d", len(summarizer.prompts))
	}
}

func TestMaintain_CoverageBound(t *testing.T) {
	for n := 0; n <= 40; n++ {
		state := newTestCompressor(&scriptedSummarizer{}, &recordingSaver{}).Maintain(context.Background(), seedMessages(n), history.CompressionContext{})

		if state.CoveredCount < 0 || state.CoveredCount > n {
			t.Fatalf("n=%d: covered count %d out of range", n, state.CoveredCount)
		}
		if n-state.CoveredCount > 12 {
			t.Fatalf("n=%d: recent window %d exceeds recent+batch", n, n-state.CoveredCount)
		}
	}
}

func TestMaintain_FailureKeepsPreviousState(t *testing.T) {
	previous := history.CompressionContext{Summary: "old", CoveredCount: 6}
	summarizer := &scriptedSummarizer{errs: []error{errors.New("network down")}}
	saver := &recordingSaver{}

	state := newTestCompressor(summarizer, saver).Maintain(context.Background(), seedMessages(25), previous)

	if state != previous {
		t.Fatalf("expected previous state on failure, got %+v", state)
	}
	if len(summarizer.prompts) != 1 {
		t.Errorf("expected no retry within the same call, got %d calls", len(summarizer.prompts))
	}
	if len(saver.saved) != 0 {
		t.Errorf("expected nothing persisted, got %+v", saver.saved)
	}
}

func TestMaintain_SecondFoldFailureKeepsFirst(t *testing.T) {
	summarizer := &scriptedSummarizer{errs: []error{nil, errors.New("rate limited")}}

	state := newTestCompressor(summarizer, &recordingSaver{}).Maintain(context.Background(), seedMessages(19), history.CompressionContext{})

	if state.CoveredCount != 6 || state.Summary != "summary 1" {
		t.Fatalf("expected state after first fold, got %+v", state)
	}
}

func TestMaintain_EmptySummaryIsFailure(t *testing.T) {
	summarizer := &scriptedSummarizer{replies: []string{"   "}}

	state := newTestCompressor(summarizer, &recordingSaver{}).Maintain(context.Background(), seedMessages(13), history.CompressionContext{})

	if state.CoveredCount != 0 {
		t.Fatalf("expected no advance on empty summary, got %+v", state)
	}
}

func TestMaintain_PersistFailureKeepsPreviousState(t *testing.T) {
	saver := &recordingSaver{err: errors.New("disk full")}

	state := newTestCompressor(&scriptedSummarizer{}, saver).Maintain(context.Background(), seedMessages(13), history.CompressionContext{})

	if state.CoveredCount != 0 || state.Summary != "" {
		t.Fatalf("expected no advance when persistence fails, got %+v", state)
	}
}

func TestTranscript_SkipsInvisibleMessages(t *testing.T) {
	got := Transcript([]core.Message{
		{Role: core.RoleUser, Content: "what time is it?"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: "c1"}}},
		{Role: core.RoleTool, Content: "2026-01-01 10:00", ToolCallID: "c1"},
		{Role: core.RoleAssistant, Content: "It is 10:00."},
	})

	want := "User: what time is it?\nTool result: 2026-01-01 10:00\nAssistant: It is 10:00."
	if got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
}

func TestMaintain_InvisibleBatchAdvancesWithoutCall(t *testing.T) {
	messages := seedMessages(13)
	for i := range 6 {
		messages[i] = core.Message{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{ID: fmt.Sprint(i)}}}
	}
	summarizer := &scriptedSummarizer{}

	state := newTestCompressor(summarizer, &recordingSaver{}).Maintain(context.Background(), messages, history.CompressionContext{Summary: "kept"})

	if state.CoveredCount != 6 || state.Summary != "kept" {
		t.Fatalf("expected coverage to advance with the old summary, got %+v", state)
	}
	if len(summarizer.prompts) != 0 {
		t.Errorf("expected no model call for a batch without visible content")
	}
}
