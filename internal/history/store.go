package history

import (
	"context"
	"fmt"

	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/core"
)

// CompressionContext is the single persisted summary record. Messages [0, CoveredCount)
// of the history are represented only by Summary.
type CompressionContext struct {
	Summary      string `json:"summary"`
	CoveredCount int    `json:"covered_count"`
}

// Store persists the agent message log and its compression context.
type Store interface {
	Messages(ctx context.Context) ([]core.Message, error)
	Append(ctx context.Context, msg core.Message) error
	ClearMessages(ctx context.Context) error
	LoadContext(ctx context.Context) (CompressionContext, error)
	SaveContext(ctx context.Context, state CompressionContext) error
	ClearContext(ctx context.Context) error
	Close() error
}

// Open creates the store selected by the history backend in cfg.
func Open(cfg config.Config) (Store, error) {
	switch cfg.History.Backend {
	case config.HistorySQLite:
		return OpenSQLite(cfg.HistoryPath())
	case config.HistoryFile:
		return NewFileStore(cfg.HistoryPath())
	case config.HistoryMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}
