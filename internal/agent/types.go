package agent

import (
	"github.com/erg0nix/konsilium/internal/usage"
)

type EventType string

const (
	EvtCompletionRequested EventType = "completion_requested"
	EvtToolCompleted       EventType = "tool_completed"
	EvtTurnCompleted       EventType = "turn_completed"
)

// Event reports progress within a turn to an optional observer.
type Event struct {
	Type      EventType
	Iteration int
	Step      *Step
}

// Step is one tool invocation made during a turn.
type Step struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
}

// Result is the outcome of one user turn. Tokens is nil when the turn did not finish with an answer.
type Result struct {
	Answer  string           `json:"answer"`
	Steps   []Step           `json:"steps,omitempty"`
	IsError bool             `json:"is_error"`
	Tokens  *usage.TokenInfo `json:"tokens,omitempty"`
}

// Status combines session accounting with the current history shape.
type Status struct {
	usage.Stats
	ContextLimit   int     `json:"context_limit"`
	ContextPercent float64 `json:"context_percent"`
	NearLimit      bool    `json:"near_limit"`
	HistoryLen     int     `json:"history_len"`
	CoveredCount   int     `json:"covered_count"`
	HasSummary     bool    `json:"has_summary"`
}
