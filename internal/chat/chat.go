// Package chat is a plain conversation with a model: no tools, no persistence, every
// sampling parameter under the caller's control.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/core"
	"github.com/erg0nix/konsilium/internal/provider"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

type Settings struct {
	SystemPrompt     string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	Stop             []string
}

func SettingsFromConfig(cfg config.ChatConfig) Settings {
	return Settings{
		SystemPrompt:     cfg.SystemPrompt,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		TopP:             cfg.TopP,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
		Stop:             cfg.Stop,
	}
}

func (s Settings) sampling() *core.SamplingConfig {
	cfg := &core.SamplingConfig{
		Temperature:      core.Float(s.Temperature),
		TopP:             core.Float(s.TopP),
		FrequencyPenalty: core.Float(s.FrequencyPenalty),
		PresencePenalty:  core.Float(s.PresencePenalty),
	}
	if s.MaxTokens > 0 {
		cfg.MaxTokens = core.Int(s.MaxTokens)
	}

	for _, stop := range s.Stop {
		if stop != "" {
			cfg.Stop = append(cfg.Stop, stop)
		}
	}

	return cfg
}

type Client struct {
	provider provider.Provider
	model    string
}

func NewClient(p provider.Provider, model string) *Client {
	return &Client{provider: p, model: model}
}

// Send posts conversation with settings applied and returns the reply text.
// A blank system prompt sends no system message.
func (c *Client) Send(ctx context.Context, conversation []core.Message, settings Settings) (string, error) {
	messages := make([]core.Message, 0, len(conversation)+1)
	if strings.TrimSpace(settings.SystemPrompt) != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: settings.SystemPrompt})
	}
	messages = append(messages, conversation...)

	resp, err := c.provider.GenerateChat(ctx, provider.Request{
		Model:    c.model,
		Messages: messages,
		Sampling: settings.sampling(),
	})
	if err != nil {
		return "", fmt.Errorf("chat %s: %w", c.model, err)
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	return resp.Message.Content, nil
}

// Conversation keeps the running message list of an interactive chat.
type Conversation struct {
	client   *Client
	settings Settings
	messages []core.Message
}

func NewConversation(client *Client, settings Settings) *Conversation {
	return &Conversation{client: client, settings: settings}
}

// Ask sends text as the next user message. A failed call leaves the conversation unchanged.
func (c *Conversation) Ask(ctx context.Context, text string) (string, error) {
	next := append(c.Messages(), core.Message{Role: core.RoleUser, Content: text})

	reply, err := c.client.Send(ctx, next, c.settings)
	if err != nil {
		return "", err
	}

	c.messages = append(next, core.Message{Role: core.RoleAssistant, Content: reply})
	return reply, nil
}

func (c *Conversation) Messages() []core.Message {
	out := make([]core.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Clear() {
	c.messages = nil
}
