package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/erg0nix/konsilium/internal/core"
)

// SQLiteStore keeps history in two tables: an autoincrement message log and a single-row context.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		role TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		tool_calls_json TEXT,
		tool_call_id TEXT
	);

	CREATE TABLE IF NOT EXISTS agent_context (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		summary TEXT NOT NULL DEFAULT '',
		covered_count INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Messages(ctx context.Context) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls_json, tool_call_id FROM agent_messages ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var (
			msg           core.Message
			role          string
			toolCallsJSON sql.NullString
			toolCallID    sql.NullString
		)
		if err := rows.Scan(&role, &msg.Content, &toolCallsJSON, &toolCallID); err != nil {
			return nil, err
		}

		msg.Role = core.Role(role)
		msg.ToolCallID = toolCallID.String

		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}

		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, msg core.Message) error {
	var toolCallsJSON sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("encode tool calls: %w", err)
		}
		toolCallsJSON = sql.NullString{String: string(data), Valid: true}
	}

	toolCallID := sql.NullString{String: msg.ToolCallID, Valid: msg.ToolCallID != ""}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_messages (role, content, tool_calls_json, tool_call_id) VALUES (?, ?, ?, ?)`,
		string(msg.Role), msg.Content, toolCallsJSON, toolCallID,
	)
	return err
}

func (s *SQLiteStore) ClearMessages(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agent_messages`)
	return err
}

func (s *SQLiteStore) LoadContext(ctx context.Context) (CompressionContext, error) {
	var state CompressionContext
	err := s.db.QueryRowContext(ctx,
		`SELECT summary, covered_count FROM agent_context WHERE id = 1`,
	).Scan(&state.Summary, &state.CoveredCount)
	if errors.Is(err, sql.ErrNoRows) {
		return CompressionContext{}, nil
	}
	return state, err
}

func (s *SQLiteStore) SaveContext(ctx context.Context, state CompressionContext) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_context (id, summary, covered_count) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, covered_count = excluded.covered_count`,
		state.Summary, state.CoveredCount,
	)
	return err
}

func (s *SQLiteStore) ClearContext(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agent_context`)
	return err
}
