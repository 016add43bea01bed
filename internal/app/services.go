package app

import (
	"fmt"

	"github.com/erg0nix/konsilium/internal/agent"
	"github.com/erg0nix/konsilium/internal/chat"
	"github.com/erg0nix/konsilium/internal/compare"
	"github.com/erg0nix/konsilium/internal/compress"
	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/config/prompts"
	"github.com/erg0nix/konsilium/internal/history"
	"github.com/erg0nix/konsilium/internal/provider"
	"github.com/erg0nix/konsilium/internal/quiz"
	"github.com/erg0nix/konsilium/internal/tool/builtin"
)

// Services holds the long-lived components built from one config.
type Services struct {
	Config    config.Config
	Providers *provider.Router
	Store     history.Store
	Agent     *agent.Agent
	Comparer  *compare.Comparer
}

// NewServices opens the history store and wires the agent, its compressor and the comparer.
// opts are passed through to the agent.
func NewServices(cfg config.Config, opts ...agent.Option) (*Services, error) {
	router := provider.NewRouterFromConfig(cfg)

	agentProvider, err := router.Get(cfg.Agent.Provider)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	systemPrompt, err := prompts.Load(cfg.Agent.SystemPromptFile, prompts.AgentSystem)
	if err != nil {
		return nil, fmt.Errorf("agent system prompt: %w", err)
	}

	compressionPrompt, err := prompts.Load(cfg.Agent.Compression.PromptFile, prompts.Compression)
	if err != nil {
		return nil, fmt.Errorf("compression prompt: %w", err)
	}

	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	compressor := compress.New(agentProvider, store, compress.ConfigFromAgent(cfg.Agent, compressionPrompt))

	a := agent.New(
		agentProvider,
		builtin.NewDefaultRegistry(),
		store,
		compressor,
		agent.ConfigFromSettings(cfg.Agent, systemPrompt),
		opts...,
	)

	return &Services{
		Config:    cfg,
		Providers: router,
		Store:     store,
		Agent:     a,
		Comparer:  compare.New(router, cfg.Compare.Concurrency),
	}, nil
}

func (s *Services) Close() error {
	return s.Store.Close()
}

func (s *Services) ChatClient() (*chat.Client, error) {
	p, err := s.Providers.Get(s.Config.Chat.Provider)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return chat.NewClient(p, s.Config.Chat.Model), nil
}

func (s *Services) QuizSession(cfg quiz.Config) (*quiz.Session, error) {
	p, err := s.Providers.Get(s.Config.Quiz.Provider)
	if err != nil {
		return nil, fmt.Errorf("quiz: %w", err)
	}
	return quiz.NewSession(chat.NewClient(p, s.Config.Quiz.Model), cfg), nil
}
