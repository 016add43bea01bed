package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/erg0nix/konsilium/internal/core"
)

const (
	messagesFileName = "messages.jsonl"
	contextFileName  = "context.json"
)

// FileStore keeps messages as JSON lines and the compression context as a single JSON document.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) messagesPath() string { return filepath.Join(s.dir, messagesFileName) }
func (s *FileStore) contextPath() string  { return filepath.Join(s.dir, contextFileName) }

func (s *FileStore) Messages(ctx context.Context) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.messagesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var messages []core.Message
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg core.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Warn("skipping unreadable history line", "path", s.messagesPath(), "error", err)
			continue
		}

		messages = append(messages, msg)
	}

	return messages, scanner.Err()
}

func (s *FileStore) Append(ctx context.Context, msg core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.messagesPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(file).Encode(msg); err != nil {
		file.Close()
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func (s *FileStore) ClearMessages(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return removeIfExists(s.messagesPath())
}

func (s *FileStore) LoadContext(ctx context.Context) (CompressionContext, error) {
	if err := ctx.Err(); err != nil {
		return CompressionContext{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.contextPath())
	if err != nil {
		if os.IsNotExist(err) {
			return CompressionContext{}, nil
		}
		return CompressionContext{}, err
	}

	var state CompressionContext
	if err := json.Unmarshal(data, &state); err != nil {
		return CompressionContext{}, fmt.Errorf("decode compression context: %w", err)
	}

	return state, nil
}

// SaveContext replaces the context document atomically via a temp file and rename.
func (s *FileStore) SaveContext(ctx context.Context, state CompressionContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.contextPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, s.contextPath())
}

func (s *FileStore) ClearContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return removeIfExists(s.contextPath())
}

func (s *FileStore) Close() error { return nil }

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
