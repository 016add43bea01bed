// Package agent implements the tool-calling conversation loop: it keeps a persisted
// history, compresses old turns into a summary, calls the model, runs requested tools
// and accounts tokens and cost per turn.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/erg0nix/konsilium/internal/compress"
	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/core"
	"github.com/erg0nix/konsilium/internal/history"
	"github.com/erg0nix/konsilium/internal/provider"
	"github.com/erg0nix/konsilium/internal/tool"
	"github.com/erg0nix/konsilium/internal/usage"
)

type Config struct {
	Model          string
	SystemPrompt   string
	Temperature    float64
	MaxTokens      int
	MaxIterations  int
	ContextLimit   int
	NearLimitRatio float64
	Pricing        usage.Pricing
}

func ConfigFromSettings(cfg config.AgentConfig, systemPrompt string) Config {
	return Config{
		Model:          cfg.Model,
		SystemPrompt:   systemPrompt,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		MaxIterations:  cfg.MaxIterations,
		ContextLimit:   cfg.ContextLimit,
		NearLimitRatio: cfg.NearLimitRatio,
		Pricing:        usage.PricingFromConfig(cfg.Pricing),
	}
}

type Option func(*Agent)

// WithObserver registers fn to receive progress events. fn runs on the turn's goroutine.
func WithObserver(fn func(Event)) Option {
	return func(a *Agent) { a.observer = fn }
}

func WithSession(session *usage.Session) Option {
	return func(a *Agent) { a.session = session }
}

// Agent owns one conversation. Turns are serialized; concurrent callers wait for the running turn.
type Agent struct {
	provider   provider.Provider
	tools      *tool.Registry
	store      history.Store
	compressor *compress.Compressor
	session    *usage.Session
	config     Config
	observer   func(Event)

	mu      sync.Mutex
	loaded  bool
	history []core.Message
	state   history.CompressionContext
}

// New creates an Agent. compressor may be nil to disable summarization.
func New(
	p provider.Provider,
	tools *tool.Registry,
	store history.Store,
	compressor *compress.Compressor,
	cfg Config,
	opts ...Option,
) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}

	a := &Agent{
		provider:   p,
		tools:      tools,
		store:      store,
		compressor: compressor,
		config:     cfg,
		session:    usage.NewSession(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Chat runs one user turn to completion. Every failure is reported through the result.
func (a *Agent) Chat(ctx context.Context, userMessage string) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	var steps []Step
	result, err := a.runTurn(ctx, userMessage, &steps)
	if err != nil {
		slog.Warn("agent turn failed", "error", err, "steps", len(steps))
		return failureResult(err, steps)
	}

	return result
}

func (a *Agent) runTurn(ctx context.Context, userMessage string, steps *[]Step) (Result, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return Result{}, err
	}

	if a.compressor != nil {
		a.state = a.compressor.Maintain(ctx, a.history, a.state)
	}

	working := a.buildPrompt()

	userMsg := core.Message{Role: core.RoleUser, Content: userMessage}
	if err := a.persist(ctx, userMsg); err != nil {
		return Result{}, err
	}
	working = append(working, userMsg)

	var tokens usage.TokenInfo
	sampling := &core.SamplingConfig{
		Temperature: core.Float(a.config.Temperature),
		MaxTokens:   core.Int(a.config.MaxTokens),
	}

	for iteration := 1; iteration <= a.config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		a.emit(Event{Type: EvtCompletionRequested, Iteration: iteration})

		resp, err := a.provider.GenerateChat(ctx, provider.Request{
			Model:    a.config.Model,
			Messages: working,
			Tools:    a.tools.ToolDefinitions(),
			Sampling: sampling,
		})
		if err != nil {
			return Result{}, err
		}

		tokens.Accumulate(resp.Usage)

		if !resp.WantsTools() {
			final := core.Message{Role: core.RoleAssistant, Content: resp.Message.Content}
			if err := a.persist(ctx, final); err != nil {
				return Result{}, err
			}

			tokens.CostUSD = a.config.Pricing.Cost(tokens.PromptTokens, tokens.CompletionTokens)
			a.session.Record(tokens)
			a.emit(Event{Type: EvtTurnCompleted, Iteration: iteration})

			return Result{Answer: final.Content, Steps: *steps, Tokens: &tokens}, nil
		}

		assistant := core.Message{
			Role:      core.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
		}
		if err := a.persist(ctx, assistant); err != nil {
			return Result{}, err
		}
		working = append(working, assistant)

		for _, call := range assistant.ToolCalls {
			output, err := a.tools.Execute(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return Result{}, fmt.Errorf("tool %s: %w", call.Function.Name, err)
			}

			step := Step{Tool: call.Function.Name, Arguments: call.Function.Arguments, Result: output}
			*steps = append(*steps, step)
			a.emit(Event{Type: EvtToolCompleted, Iteration: iteration, Step: &step})

			toolMsg := core.Message{Role: core.RoleTool, Content: output, ToolCallID: call.ID}
			if err := a.persist(ctx, toolMsg); err != nil {
				return Result{}, err
			}
			working = append(working, toolMsg)
		}
	}

	slog.Warn("agent turn hit iteration limit", "max_iterations", a.config.MaxIterations, "steps", len(*steps))
	return Result{Answer: IterationLimitMessage, Steps: *steps}, nil
}

func (a *Agent) ensureLoaded(ctx context.Context) error {
	if a.loaded {
		return nil
	}

	messages, err := a.store.Messages(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	state, err := a.store.LoadContext(ctx)
	if err != nil {
		return fmt.Errorf("load compression context: %w", err)
	}

	if state.CoveredCount < 0 {
		state.CoveredCount = 0
	}
	if state.CoveredCount > len(messages) {
		slog.Warn("compression context covers more than the stored history, clamping",
			"covered_count", state.CoveredCount, "history_len", len(messages))
		state.CoveredCount = len(messages)
	}

	a.history = messages
	a.state = state
	a.loaded = true
	return nil
}

// persist writes msg to the store before it becomes part of the in-memory history.
func (a *Agent) persist(ctx context.Context, msg core.Message) error {
	if err := a.store.Append(ctx, msg); err != nil {
		return fmt.Errorf("persist %s message: %w", msg.Role, err)
	}
	a.history = append(a.history, msg)
	return nil
}

func (a *Agent) buildPrompt() []core.Message {
	working := []core.Message{{Role: core.RoleSystem, Content: a.config.SystemPrompt}}

	if a.state.Summary != "" {
		working = append(working, core.Message{
			Role:    core.RoleSystem,
			Content: "Summary of the earlier conversation:\n" + a.state.Summary,
		})
	}

	return append(working, pairToolMessages(a.history[a.state.CoveredCount:])...)
}

// pairToolMessages drops tool results whose call was folded into the summary and
// tool-call messages whose results were never recorded, so every request stays well formed.
func pairToolMessages(window []core.Message) []core.Message {
	out := make([]core.Message, 0, len(window))

	for i := 0; i < len(window); i++ {
		msg := window[i]

		if msg.Role == core.RoleTool {
			continue
		}

		if !msg.HasToolCalls() {
			out = append(out, msg)
			continue
		}

		end := i + 1
		for end < len(window) && window[end].Role == core.RoleTool {
			end++
		}

		if answersAll(msg.ToolCalls, window[i+1:end]) {
			out = append(out, window[i:end]...)
		}
		i = end - 1
	}

	return out
}

func answersAll(calls []core.ToolCall, results []core.Message) bool {
	answered := make(map[string]bool, len(results))
	for _, r := range results {
		answered[r.ToolCallID] = true
	}
	for _, call := range calls {
		if !answered[call.ID] {
			return false
		}
	}
	return len(results) == len(calls)
}

func (a *Agent) emit(evt Event) {
	if a.observer != nil {
		a.observer(evt)
	}
}

// Reset wipes the stored and in-memory history, the compression context and session stats.
func (a *Agent) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.ClearMessages(ctx); err != nil {
		a.loaded = false
		return fmt.Errorf("clear history: %w", err)
	}
	if err := a.store.ClearContext(ctx); err != nil {
		a.loaded = false
		return fmt.Errorf("clear compression context: %w", err)
	}

	a.history = nil
	a.state = history.CompressionContext{}
	a.loaded = true
	a.session.Reset()
	return nil
}

// History returns a copy of the full message log, including compressed messages.
func (a *Agent) History(ctx context.Context) ([]core.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(a.history), nil
}

func (a *Agent) Compression(ctx context.Context) (history.CompressionContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return history.CompressionContext{}, err
	}
	return a.state, nil
}

func (a *Agent) Stats() usage.Stats {
	return a.session.Snapshot()
}

func (a *Agent) Status(ctx context.Context) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return Status{}, err
	}

	stats := a.session.Snapshot()
	return Status{
		Stats:          stats,
		ContextLimit:   a.config.ContextLimit,
		ContextPercent: stats.ContextPercent(a.config.ContextLimit),
		NearLimit:      stats.NearLimit(a.config.ContextLimit, a.config.NearLimitRatio),
		HistoryLen:     len(a.history),
		CoveredCount:   a.state.CoveredCount,
		HasSummary:     a.state.Summary != "",
	}, nil
}
