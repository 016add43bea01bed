// Package quiz runs a multiple-choice quiz where the model writes the questions and
// the answers are scored locally.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/erg0nix/konsilium/internal/chat"
	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/config/prompts"
	"github.com/erg0nix/konsilium/internal/core"
)

const (
	DefaultQuestions  = 5
	DefaultTopic      = "general knowledge"
	DefaultDifficulty = "medium"
	quizTopP          = 0.9
)

var (
	ErrNotStarted = errors.New("quiz has not started")
	ErrFinished   = errors.New("quiz is finished")
)

type Config struct {
	Topic       string
	Difficulty  string
	Questions   int
	Temperature float64
	MaxTokens   int
}

func ConfigFromSettings(cfg config.QuizConfig) Config {
	return Config{
		Topic:       DefaultTopic,
		Difficulty:  DefaultDifficulty,
		Questions:   cfg.Questions,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.Topic) == "" {
		c.Topic = DefaultTopic
	}
	if strings.TrimSpace(c.Difficulty) == "" {
		c.Difficulty = DefaultDifficulty
	}
	if c.Questions <= 0 {
		c.Questions = DefaultQuestions
	}
	return c
}

// SystemPrompt renders the quiz master instructions for c.
func SystemPrompt(c Config) string {
	c = c.normalized()
	return prompts.Render(prompts.Quiz, map[string]string{
		"TOPIC":      c.Topic,
		"DIFFICULTY": c.Difficulty,
		"TOTAL":      strconv.Itoa(c.Questions),
	})
}

// Feedback is the outcome of answering one question. Next or Final is set.
type Feedback struct {
	Correct     bool
	CorrectKey  string
	Explanation string
	Next        *Question
	Final       *Final
}

// Session holds one quiz. It is not safe for concurrent use.
type Session struct {
	client   *chat.Client
	config   Config
	settings chat.Settings

	messages []core.Message
	current  *Question
	score    int
	finished bool
}

func NewSession(client *chat.Client, cfg Config) *Session {
	cfg = cfg.normalized()

	return &Session{
		client: client,
		config: cfg,
		settings: chat.Settings{
			SystemPrompt: SystemPrompt(cfg),
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			TopP:         quizTopP,
		},
	}
}

func (s *Session) Score() int         { return s.score }
func (s *Session) Total() int         { return s.config.Questions }
func (s *Session) Finished() bool     { return s.finished }
func (s *Session) Current() *Question { return s.current }

// Start resets the session and asks for the first question.
func (s *Session) Start(ctx context.Context) (*Question, error) {
	s.messages = nil
	s.current = nil
	s.score = 0
	s.finished = false

	items, messages, err := s.exchange(ctx, nil, "Start the quiz. Ask the first question.")
	if err != nil {
		return nil, err
	}

	question := lastQuestion(items)
	if question == nil {
		return nil, errors.New("model did not ask a question")
	}

	s.messages = messages
	s.current = question
	return question, nil
}

// Answer scores key against the current question and fetches the next question, or
// the final result after the last one. A failed request leaves the session unchanged.
func (s *Session) Answer(ctx context.Context, key string) (Feedback, error) {
	if s.finished {
		return Feedback{}, ErrFinished
	}
	if s.current == nil {
		return Feedback{}, ErrNotStarted
	}

	key = strings.ToUpper(strings.TrimSpace(key))
	if _, ok := s.current.Options[key]; !ok {
		return Feedback{}, fmt.Errorf("unknown option %q, choose one of %s", key, strings.Join(s.current.OptionKeys(), ", "))
	}

	question := s.current
	feedback := Feedback{
		Correct:     key == question.Correct,
		CorrectKey:  question.Correct,
		Explanation: question.Explanation,
	}

	score := s.score
	if feedback.Correct {
		score++
	}

	total := s.config.Questions
	if question.Total > 0 {
		total = question.Total
	}

	last := question.Number >= total
	request := fmt.Sprintf("My answer is %s. Next question (%d/%d).", key, question.Number+1, total)
	if last {
		request = fmt.Sprintf("My answer is %s. That was the last question. My final score is %d/%d. Return the final result.", key, score, total)
	}

	items, messages, err := s.exchange(ctx, s.messages, request)
	if err != nil {
		return Feedback{}, err
	}

	if final := lastFinal(items); final != nil || last {
		if final == nil {
			final = &Final{}
		}
		final.Score = score
		final.Total = total

		feedback.Final = final
		s.finished = true
		s.current = nil
	} else {
		next := lastQuestion(items)
		if next == nil {
			return Feedback{}, errors.New("model did not ask the next question")
		}
		feedback.Next = next
		s.current = next
	}

	s.messages = messages
	s.score = score
	return feedback, nil
}

func (s *Session) exchange(ctx context.Context, history []core.Message, text string) ([]Item, []core.Message, error) {
	messages := append(append([]core.Message(nil), history...), core.Message{Role: core.RoleUser, Content: text})

	reply, err := s.client.Send(ctx, messages, s.settings)
	if err != nil {
		return nil, nil, err
	}

	items, err := Parse(reply)
	if err != nil {
		slog.Warn("unparseable quiz reply", "error", err, "reply", reply)
		return nil, nil, err
	}

	return items, append(messages, core.Message{Role: core.RoleAssistant, Content: reply}), nil
}

func lastQuestion(items []Item) *Question {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Question != nil {
			return items[i].Question
		}
	}
	return nil
}

func lastFinal(items []Item) *Final {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Final != nil {
			return items[i].Final
		}
	}
	return nil
}
