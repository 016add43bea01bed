package provider

import (
	"context"

	"github.com/erg0nix/konsilium/internal/core"
)

// Provider sends one chat completion request and returns the first choice.
type Provider interface {
	GenerateChat(ctx context.Context, req Request) (Response, error)
}

// Request is a single chat completion call. Tools and Sampling are optional.
type Request struct {
	Model    string
	Messages []core.Message
	Tools    []core.ToolDef
	Sampling *core.SamplingConfig
}

// Response holds the parsed first choice of a completion together with token usage.
type Response struct {
	Message      core.Message
	FinishReason string
	Usage        *core.Usage
}

// WantsTools reports whether the model stopped to have tools executed.
func (r Response) WantsTools() bool {
	return r.FinishReason == core.FinishReasonToolCalls && len(r.Message.ToolCalls) > 0
}
