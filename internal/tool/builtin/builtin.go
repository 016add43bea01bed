package builtin

import (
	"time"

	toolpkg "github.com/erg0nix/konsilium/internal/tool"
)

// Defaults returns the builtin agent tools. now may be nil to use the wall clock.
func Defaults(now func() time.Time) []toolpkg.Tool {
	return []toolpkg.Tool{
		NewDateTime(now),
		&Calculator{},
	}
}

// NewDefaultRegistry builds a registry holding every builtin tool.
func NewDefaultRegistry() *toolpkg.Registry {
	return toolpkg.NewRegistry(Defaults(nil)...)
}
