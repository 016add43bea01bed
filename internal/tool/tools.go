package tool

import (
	"context"
	"fmt"

	"github.com/erg0nix/konsilium/internal/core"
)

// Tool defines the interface that all agent tools must implement.
// Execute receives the raw JSON argument string produced by the model. Tools report
// their own failures as result text; a returned error aborts the whole turn.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, arguments string) (string, error)
}

// Registry is a fixed, ordered collection of tools assembled at construction.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry from tools. Later tools with a duplicate name replace earlier ones.
func NewRegistry(tools ...Tool) *Registry {
	registry := &Registry{tools: make(map[string]Tool, len(tools))}

	for _, tool := range tools {
		if _, exists := registry.tools[tool.Name()]; !exists {
			registry.order = append(registry.order, tool.Name())
		}
		registry.tools[tool.Name()] = tool
	}

	return registry
}

// Lookup returns the named tool and whether it was found.
func (registry *Registry) Lookup(name string) (Tool, bool) {
	if registry == nil {
		return nil, false
	}

	tool, ok := registry.tools[name]
	return tool, ok
}

func (registry *Registry) Len() int {
	if registry == nil {
		return 0
	}
	return len(registry.order)
}

// Execute runs the named tool. An unknown name yields a not-found result rather than an error.
func (registry *Registry) Execute(ctx context.Context, name string, arguments string) (string, error) {
	tool, ok := registry.Lookup(name)
	if !ok {
		return NotFoundResult(name), nil
	}

	return tool.Execute(ctx, arguments)
}

// NotFoundResult is the tool result reported back to the model for an unknown tool.
func NotFoundResult(name string) string {
	return fmt.Sprintf("Tool %q not found", name)
}

// ToolDefinitions returns the LLM-facing definitions of all registered tools in registration order.
func (registry *Registry) ToolDefinitions() []core.ToolDef {
	if registry.Len() == 0 {
		return nil
	}

	definitions := make([]core.ToolDef, 0, len(registry.order))

	for _, name := range registry.order {
		tool := registry.tools[name]
		definitions = append(definitions, core.ToolDef{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	return definitions
}
