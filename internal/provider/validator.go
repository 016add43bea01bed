package provider

import (
	"fmt"

	"github.com/erg0nix/konsilium/internal/core"
)

type ValidationError struct {
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateToolReferences checks that every tool message answers a call made by the
// assistant message that opened the current tool block, and that each call is answered once.
func ValidateToolReferences(messages []core.Message) error {
	var pending map[string]bool

	for i, msg := range messages {
		switch {
		case msg.Role == core.RoleTool:
			if pending == nil {
				return &ValidationError{
					Index:   i,
					Message: fmt.Sprintf("tool result at index %d without preceding assistant tool calls", i),
				}
			}
			answered, ok := pending[msg.ToolCallID]
			if !ok {
				return &ValidationError{
					Index:   i,
					Message: fmt.Sprintf("tool result at index %d references unknown call %q", i, msg.ToolCallID),
				}
			}
			if answered {
				return &ValidationError{
					Index:   i,
					Message: fmt.Sprintf("tool call %q answered twice at index %d", msg.ToolCallID, i),
				}
			}
			pending[msg.ToolCallID] = true
		case msg.HasToolCalls():
			pending = make(map[string]bool, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				pending[call.ID] = false
			}
		default:
			pending = nil
		}
	}

	return nil
}
