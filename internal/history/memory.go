package history

import (
	"context"
	"slices"
	"sync"

	"github.com/erg0nix/konsilium/internal/core"
)

// MemoryStore keeps history in process memory only.
type MemoryStore struct {
	mu       sync.Mutex
	messages []core.Message
	state    CompressionContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Messages(_ context.Context) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.messages), nil
}

func (s *MemoryStore) Append(_ context.Context, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	return nil
}

func (s *MemoryStore) ClearMessages(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	return nil
}

func (s *MemoryStore) LoadContext(_ context.Context) (CompressionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state, nil
}

func (s *MemoryStore) SaveContext(_ context.Context, state CompressionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	return nil
}

func (s *MemoryStore) ClearContext(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = CompressionContext{}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
