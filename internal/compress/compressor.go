package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/config/prompts"
	"github.com/erg0nix/konsilium/internal/core"
	"github.com/erg0nix/konsilium/internal/history"
	"github.com/erg0nix/konsilium/internal/provider"
)

// ContextSaver persists the compression context after each fold.
type ContextSaver interface {
	SaveContext(ctx context.Context, state history.CompressionContext) error
}

type Config struct {
	RecentWindow int
	BatchSize    int
	Model        string
	Temperature  float64
	MaxTokens    int
	Prompt       string
}

// ConfigFromAgent derives compressor settings from the agent section, defaulting the model to the agent's.
func ConfigFromAgent(cfg config.AgentConfig, prompt string) Config {
	model := cfg.Compression.Model
	if model == "" {
		model = cfg.Model
	}

	return Config{
		RecentWindow: cfg.Compression.RecentWindow,
		BatchSize:    cfg.Compression.BatchSize,
		Model:        model,
		Temperature:  cfg.Compression.Temperature,
		MaxTokens:    cfg.Compression.MaxTokens,
		Prompt:       prompt,
	}
}

// Compressor folds the oldest uncovered messages into a running summary so the
// verbatim part of the history stays bounded.
type Compressor struct {
	provider provider.Provider
	store    ContextSaver
	cfg      Config
}

func New(p provider.Provider, store ContextSaver, cfg Config) *Compressor {
	if cfg.Prompt == "" {
		cfg.Prompt = prompts.Compression
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 6
	}
	if cfg.RecentWindow < 0 {
		cfg.RecentWindow = 0
	}

	return &Compressor{provider: p, store: store, cfg: cfg}
}

// NeedsFold reports whether the uncovered tail is longer than the recent window plus one batch.
func (c *Compressor) NeedsFold(historyLen int, state history.CompressionContext) bool {
	return historyLen-state.CoveredCount > c.cfg.RecentWindow+c.cfg.BatchSize
}

// Maintain folds as many batches as needed and returns the resulting state. A failed
// fold is logged and stops the loop with the last good state, so the same batch is
// retried on the next call.
func (c *Compressor) Maintain(ctx context.Context, messages []core.Message, state history.CompressionContext) history.CompressionContext {
	for c.NeedsFold(len(messages), state) {
		batch := messages[state.CoveredCount : state.CoveredCount+c.cfg.BatchSize]

		next, err := c.fold(ctx, batch, state)
		if err != nil {
			slog.Warn("context compression failed",
				"covered_count", state.CoveredCount,
				"history_len", len(messages),
				"error", err,
			)
			return state
		}

		if err := c.store.SaveContext(ctx, next); err != nil {
			slog.Warn("failed to persist compression context", "covered_count", next.CoveredCount, "error", err)
			return state
		}

		slog.Debug("folded history batch", "covered_count", next.CoveredCount, "summary_chars", len(next.Summary))
		state = next
	}

	return state
}

func (c *Compressor) fold(ctx context.Context, batch []core.Message, state history.CompressionContext) (history.CompressionContext, error) {
	next := history.CompressionContext{Summary: state.Summary, CoveredCount: state.CoveredCount + len(batch)}

	transcript := Transcript(batch)
	if transcript == "" {
		return next, nil
	}

	previous := state.Summary
	if previous == "" {
		previous = "(none)"
	}

	prompt := prompts.Render(c.cfg.Prompt, map[string]string{
		"SUMMARY":    previous,
		"TRANSCRIPT": transcript,
	})

	resp, err := c.provider.GenerateChat(ctx, provider.Request{
		Model:    c.cfg.Model,
		Messages: []core.Message{{Role: core.RoleUser, Content: prompt}},
		Sampling: &core.SamplingConfig{
			Temperature: core.Float(c.cfg.Temperature),
			MaxTokens:   core.Int(c.cfg.MaxTokens),
		},
	})
	if err != nil {
		return state, fmt.Errorf("summarize batch: %w", err)
	}

	summary := strings.TrimSpace(resp.Message.Content)
	if summary == "" {
		return state, errors.New("model returned empty summary")
	}

	next.Summary = summary
	return next, nil
}

var roleLabels = map[core.Role]string{
	core.RoleSystem:    "System",
	core.RoleUser:      "User",
	core.RoleAssistant: "Assistant",
	core.RoleTool:      "Tool result",
}

// Transcript renders messages as role-labelled lines, skipping messages without visible content.
func Transcript(messages []core.Message) string {
	var builder strings.Builder

	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}

		label, ok := roleLabels[msg.Role]
		if !ok {
			label = string(msg.Role)
		}

		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(label)
		builder.WriteString(": ")
		builder.WriteString(content)
	}

	return builder.String()
}
