package usage

import (
	"sync"

	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/core"
)

// Pricing is a model's price in USD per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

func PricingFromConfig(cfg config.PricingConfig) Pricing {
	return Pricing{InputPerMillion: cfg.InputPerMillion, OutputPerMillion: cfg.OutputPerMillion}
}

func (p Pricing) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*p.InputPerMillion/1_000_000 + float64(completionTokens)*p.OutputPerMillion/1_000_000
}

// TokenInfo is the token and cost accounting of one turn or request.
type TokenInfo struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

func (t TokenInfo) TotalTokens() int {
	return t.PromptTokens + t.CompletionTokens
}

// Accumulate adds one response's usage to the running totals. Nil usage is ignored.
func (t *TokenInfo) Accumulate(u *core.Usage) {
	if u == nil {
		return
	}
	t.PromptTokens += u.PromptTokens
	t.CompletionTokens += u.CompletionTokens
}

// Stats is a snapshot of session accounting.
type Stats struct {
	LastPromptTokens int     `json:"last_prompt_tokens"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	Turns            int     `json:"turns"`
}

// ContextPercent is the last prompt size as a percentage of limit.
func (s Stats) ContextPercent(limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(s.LastPromptTokens) * 100 / float64(limit)
}

// NearLimit reports whether the last prompt filled at least ratio of the context window.
func (s Stats) NearLimit(limit int, ratio float64) bool {
	if limit <= 0 {
		return false
	}
	return float64(s.LastPromptTokens) >= float64(limit)*ratio
}

// Session accumulates per-turn accounting for the lifetime of the process.
type Session struct {
	mu    sync.Mutex
	stats Stats
}

func NewSession() *Session {
	return &Session{}
}

// Record replaces the last prompt size, adds the turn cost and counts the turn.
func (s *Session) Record(turn TokenInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.LastPromptTokens = turn.PromptTokens
	s.stats.TotalCostUSD += turn.CostUSD
	s.stats.Turns++
}

func (s *Session) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = Stats{}
}
