package core

import (
	"time"

	"github.com/google/uuid"
)

type RequestID string

func NewRequestID() RequestID {
	return RequestID("req_" + timestamp() + "_" + randomSeed())
}

// NewToolCallID returns an identifier in the shape providers use for tool calls.
func NewToolCallID() string {
	return "call_" + randomSeed()
}

func timestamp() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}

func randomSeed() string {
	id := uuid.New()
	return id.String()[:8] + id.String()[9:13]
}
