package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/erg0nix/konsilium/internal/core"
)

// RequestLogger writes provider traffic to daily JSONL files for debugging.
type RequestLogger struct {
	logDir       string
	logRequests  bool
	logResponses bool
	logger       *slog.Logger
	mu           sync.Mutex
}

type LogEntry struct {
	Timestamp  string               `json:"timestamp"`
	RequestID  string               `json:"request_id"`
	Type       string               `json:"type"`
	Model      string               `json:"model,omitempty"`
	Messages   []core.Message       `json:"messages,omitempty"`
	Tools      []core.ToolDef       `json:"tools,omitempty"`
	Sampling   *core.SamplingConfig `json:"sampling,omitempty"`
	Response   *Response            `json:"response,omitempty"`
	Duration   string               `json:"duration,omitempty"`
	Error      string               `json:"error,omitempty"`
	StatusCode int                  `json:"status_code,omitempty"`
}

func NewRequestLogger(logDir string, logRequests, logResponses bool, logger *slog.Logger) *RequestLogger {
	return &RequestLogger{
		logDir:       logDir,
		logRequests:  logRequests,
		logResponses: logResponses,
		logger:       logger,
	}
}

func (l *RequestLogger) LogRequest(requestID core.RequestID, req Request) {
	if !l.logRequests {
		return
	}

	l.writeLog(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: string(requestID),
		Type:      "request",
		Model:     req.Model,
		Messages:  req.Messages,
		Tools:     req.Tools,
		Sampling:  req.Sampling,
	})
	l.logger.Debug("provider request", "request_id", requestID, "model", req.Model, "message_count", len(req.Messages), "tool_count", len(req.Tools))
}

func (l *RequestLogger) LogResponse(requestID core.RequestID, response Response, duration time.Duration) {
	if !l.logResponses {
		return
	}

	l.writeLog(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: string(requestID),
		Type:      "response",
		Response:  &response,
		Duration:  duration.String(),
	})
}

func (l *RequestLogger) LogError(requestID core.RequestID, statusCode int, errorText string, req Request) {
	l.writeLog(LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  string(requestID),
		Type:       "error",
		Model:      req.Model,
		StatusCode: statusCode,
		Error:      errorText,
		Messages:   req.Messages,
	})

	msgSummary := make([]string, 0, min(5, len(req.Messages)))
	start := max(0, len(req.Messages)-5)
	for i := start; i < len(req.Messages); i++ {
		msg := req.Messages[i]
		content := msg.Content
		if len(content) > 50 {
			content = content[:50] + "..."
		}
		msgSummary = append(msgSummary, fmt.Sprintf("[%s] %s", msg.Role, content))
	}

	l.logger.Error("provider request failed",
		"request_id", requestID,
		"status_code", statusCode,
		"error", errorText,
		"recent_messages", msgSummary,
	)
}

func (l *RequestLogger) writeLog(entry LogEntry) {
	if l.logDir == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_ = os.MkdirAll(l.logDir, 0o755)

	logFile := filepath.Join(l.logDir, fmt.Sprintf("provider_%s.jsonl", time.Now().Format("2006-01-02")))

	data, _ := json.Marshal(entry)
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(data)
	_, _ = f.WriteString("\n")
}
