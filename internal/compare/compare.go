// Package compare sends one question to several models, temperatures or expert
// personas at once and collects the answers in input order.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/config/prompts"
	"github.com/erg0nix/konsilium/internal/core"
	"github.com/erg0nix/konsilium/internal/provider"
	"github.com/erg0nix/konsilium/internal/usage"
)

const (
	DefaultConcurrency       = 3
	ExpertTemperature        = 0.8
	DefaultTemperatureTokens = 300
)

// Providers resolves a configured provider name. *provider.Router satisfies it.
type Providers interface {
	Get(name string) (provider.Provider, error)
}

// Target is one model on one provider. A nil Temperature is left out of the request.
type Target struct {
	Name        string
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int
	Pricing     usage.Pricing
}

func TargetFromConfig(cfg config.ModelConfig) Target {
	name := cfg.Name
	if name == "" {
		name = cfg.Model
	}

	return Target{
		Name:        name,
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Pricing:     usage.PricingFromConfig(cfg.Pricing),
	}
}

func TargetsFromConfig(cfgs []config.ModelConfig) []Target {
	targets := make([]Target, 0, len(cfgs))
	for _, cfg := range cfgs {
		targets = append(targets, TargetFromConfig(cfg))
	}
	return targets
}

// Outcome is one branch of a fan-out. Exactly one of Content and Err is meaningful.
type Outcome struct {
	Label   string
	Model   string
	Content string
	Err     error
	Elapsed time.Duration
	Tokens  usage.TokenInfo
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// TotalCost sums the cost of all successful outcomes.
func TotalCost(outcomes []Outcome) float64 {
	var total float64
	for _, o := range outcomes {
		if o.OK() {
			total += o.Tokens.CostUSD
		}
	}
	return total
}

type Comparer struct {
	providers   Providers
	concurrency int
	now         func() time.Time
}

func New(providers Providers, concurrency int) *Comparer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Comparer{providers: providers, concurrency: concurrency, now: time.Now}
}

type call struct {
	label    string
	target   Target
	messages []core.Message
	sampling *core.SamplingConfig
}

// fanOut runs every call with at most c.concurrency in flight. Results land in the
// slot of their call, so ordering never depends on completion order.
func (c *Comparer) fanOut(ctx context.Context, calls []call) []Outcome {
	outcomes := make([]Outcome, len(calls))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, cl := range calls {
		g.Go(func() error {
			outcomes[i] = c.ask(ctx, cl)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func (c *Comparer) ask(ctx context.Context, cl call) Outcome {
	outcome := Outcome{Label: cl.label, Model: cl.target.Model}
	start := c.now()

	p, err := c.providers.Get(cl.target.Provider)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	resp, err := p.GenerateChat(ctx, provider.Request{
		Model:    cl.target.Model,
		Messages: cl.messages,
		Sampling: cl.sampling,
	})
	outcome.Elapsed = c.now().Sub(start)

	if err != nil {
		slog.Warn("comparison request failed", "label", cl.label, "model", cl.target.Model, "error", err)
		outcome.Err = err
		return outcome
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		outcome.Err = errors.New("empty response")
		return outcome
	}

	outcome.Content = content
	outcome.Tokens.Accumulate(resp.Usage)
	outcome.Tokens.CostUSD = cl.target.Pricing.Cost(outcome.Tokens.PromptTokens, outcome.Tokens.CompletionTokens)
	return outcome
}

func sampling(temperature *float64, maxTokens int) *core.SamplingConfig {
	cfg := &core.SamplingConfig{Temperature: temperature}
	if maxTokens > 0 {
		cfg.MaxTokens = core.Int(maxTokens)
	}
	return cfg
}

// CompareModels asks every model the same question.
func (c *Comparer) CompareModels(ctx context.Context, question string, models []Target) []Outcome {
	calls := make([]call, 0, len(models))
	for _, m := range models {
		calls = append(calls, call{
			label:    m.Name,
			target:   m,
			messages: []core.Message{{Role: core.RoleUser, Content: question}},
			sampling: sampling(m.Temperature, m.MaxTokens),
		})
	}
	return c.fanOut(ctx, calls)
}

// CompareTemperatures asks target the same question once per temperature.
func (c *Comparer) CompareTemperatures(ctx context.Context, question string, target Target, temperatures []float64) []Outcome {
	maxTokens := target.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultTemperatureTokens
	}

	calls := make([]call, 0, len(temperatures))
	for _, temperature := range temperatures {
		calls = append(calls, call{
			label:  fmt.Sprintf("T=%.1f", temperature),
			target: target,
			messages: []core.Message{
				{Role: core.RoleSystem, Content: strings.TrimSpace(prompts.Temperature)},
				{Role: core.RoleUser, Content: question},
			},
			sampling: sampling(core.Float(temperature), maxTokens),
		})
	}
	return c.fanOut(ctx, calls)
}

// AskExperts puts the question to each persona of the panel.
func (c *Comparer) AskExperts(ctx context.Context, question string, target Target, experts []Expert) []Outcome {
	calls := make([]call, 0, len(experts))
	for _, expert := range experts {
		maxTokens := expert.MaxTokens
		if maxTokens <= 0 {
			maxTokens = target.MaxTokens
		}

		calls = append(calls, call{
			label:  expert.Label(),
			target: target,
			messages: []core.Message{
				{Role: core.RoleSystem, Content: strings.TrimSpace(expert.SystemPrompt)},
				{Role: core.RoleUser, Content: question},
			},
			sampling: sampling(core.Float(ExpertTemperature), maxTokens),
		})
	}
	return c.fanOut(ctx, calls)
}

// Verdict is the judge's answer to a blind comparison.
type Verdict struct {
	Content string
	Elapsed time.Duration
	Tokens  usage.TokenInfo
}

// Judge asks the judge model to rank the successful responses without seeing which model wrote them.
func (c *Comparer) Judge(ctx context.Context, question string, responses []Outcome, judge Target) (Verdict, error) {
	prompt, err := JudgePrompt(question, responses)
	if err != nil {
		return Verdict{}, err
	}

	outcome := c.ask(ctx, call{
		label:    judge.Name,
		target:   judge,
		messages: []core.Message{{Role: core.RoleUser, Content: prompt}},
		sampling: sampling(judge.Temperature, judge.MaxTokens),
	})
	if outcome.Err != nil {
		return Verdict{}, fmt.Errorf("judge %s: %w", judge.Model, outcome.Err)
	}

	return Verdict{Content: outcome.Content, Elapsed: outcome.Elapsed, Tokens: outcome.Tokens}, nil
}

// JudgePrompt numbers the successful answers in their original order and leaves out model names.
func JudgePrompt(question string, responses []Outcome) (string, error) {
	var answers strings.Builder
	n := 0

	for _, r := range responses {
		if !r.OK() {
			continue
		}
		n++
		if n > 1 {
			answers.WriteString("\n\n")
		}
		fmt.Fprintf(&answers, "Answer %d:\n%s", n, r.Content)
	}

	if n == 0 {
		return "", errors.New("no successful answers to judge")
	}

	return prompts.Render(prompts.Judge, map[string]string{
		"QUESTION": question,
		"ANSWERS":  answers.String(),
	}), nil
}
