package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"

	HistorySQLite = "sqlite"
	HistoryFile   = "file"
	HistoryMemory = "memory"
)

// ProviderConfig describes one OpenAI-compatible endpoint.
type ProviderConfig struct {
	Endpoint           string `toml:"endpoint"`
	APIKey             string `toml:"api_key,omitempty"`
	APIKeyEnv          string `toml:"api_key_env"`
	Backend            string `toml:"backend"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	Concurrency        int    `toml:"concurrency"`
}

// ResolveAPIKey returns the literal key when set, otherwise the value of the configured environment variable.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
}

type PricingConfig struct {
	InputPerMillion  float64 `toml:"input_per_million"`
	OutputPerMillion float64 `toml:"output_per_million"`
}

type CompressionConfig struct {
	RecentWindow int     `toml:"recent_window"`
	BatchSize    int     `toml:"batch_size"`
	Model        string  `toml:"model,omitempty"`
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	PromptFile   string  `toml:"prompt_file,omitempty"`
}

type AgentConfig struct {
	Provider         string            `toml:"provider"`
	Model            string            `toml:"model"`
	Temperature      float64           `toml:"temperature"`
	MaxTokens        int               `toml:"max_tokens"`
	MaxIterations    int               `toml:"max_iterations"`
	ContextLimit     int               `toml:"context_limit"`
	NearLimitRatio   float64           `toml:"near_limit_ratio"`
	SystemPromptFile string            `toml:"system_prompt_file,omitempty"`
	Pricing          PricingConfig     `toml:"pricing"`
	Compression      CompressionConfig `toml:"compression"`
}

type HistoryConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path,omitempty"`
}

type ChatConfig struct {
	Provider         string   `toml:"provider"`
	Model            string   `toml:"model"`
	SystemPrompt     string   `toml:"system_prompt"`
	Temperature      float64  `toml:"temperature"`
	MaxTokens        int      `toml:"max_tokens"`
	TopP             float64  `toml:"top_p"`
	FrequencyPenalty float64  `toml:"frequency_penalty"`
	PresencePenalty  float64  `toml:"presence_penalty"`
	Stop             []string `toml:"stop,omitempty"`
}

// ModelConfig names a model on a provider together with its own sampling and pricing.
type ModelConfig struct {
	Name        string        `toml:"name"`
	Provider    string        `toml:"provider"`
	Model       string        `toml:"model"`
	Temperature *float64      `toml:"temperature,omitempty"`
	MaxTokens   int           `toml:"max_tokens"`
	Pricing     PricingConfig `toml:"pricing"`
}

type CompareConfig struct {
	Concurrency  int           `toml:"concurrency"`
	Models       []ModelConfig `toml:"models"`
	Judge        ModelConfig   `toml:"judge"`
	Temperature  ModelConfig   `toml:"temperature"`
	Temperatures []float64     `toml:"temperatures"`
	Experts      ModelConfig   `toml:"experts"`
	ExpertsFile  string        `toml:"experts_file,omitempty"`
}

type QuizConfig struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	Questions   int     `toml:"questions"`
}

type DebugConfig struct {
	LogRequests   bool   `toml:"log_requests"`
	LogResponses  bool   `toml:"log_responses"`
	LogDirectory  string `toml:"log_directory"`
	ValidateRoles bool   `toml:"validate_roles"`
}

type Config struct {
	Bind      string                    `toml:"bind"`
	DataDir   string                    `toml:"data_dir"`
	Providers map[string]ProviderConfig `toml:"providers"`
	Agent     AgentConfig               `toml:"agent"`
	History   HistoryConfig             `toml:"history"`
	Chat      ChatConfig                `toml:"chat"`
	Compare   CompareConfig             `toml:"compare"`
	Quiz      QuizConfig                `toml:"quiz"`
	Debug     DebugConfig               `toml:"debug"`
}

func Default() Config {
	defaultDataDir := defaultDataDir()
	temperature := 0.7

	return Config{
		Bind:    ":50061",
		DataDir: defaultDataDir,
		Providers: map[string]ProviderConfig{
			"deepseek": {
				Endpoint:           "https://api.deepseek.com",
				APIKeyEnv:          "DEEPSEEK_API_KEY",
				Backend:            BackendHTTP,
				HTTPTimeoutSeconds: 60,
				Concurrency:        4,
			},
			"groq": {
				Endpoint:           "https://api.groq.com/openai/v1",
				APIKeyEnv:          "GROQ_API_KEY",
				Backend:            BackendOpenAI,
				HTTPTimeoutSeconds: 60,
				Concurrency:        4,
			},
		},
		Agent: AgentConfig{
			Provider:       "deepseek",
			Model:          "deepseek-chat",
			Temperature:    0.7,
			MaxTokens:      1000,
			MaxIterations:  5,
			ContextLimit:   131072,
			NearLimitRatio: 0.8,
			Pricing:        PricingConfig{InputPerMillion: 0.14, OutputPerMillion: 0.28},
			Compression: CompressionConfig{
				RecentWindow: 6,
				BatchSize:    6,
				Temperature:  0.3,
				MaxTokens:    400,
			},
		},
		History: HistoryConfig{Backend: HistorySQLite},
		Chat: ChatConfig{
			Provider:    "deepseek",
			Model:       "deepseek-chat",
			Temperature: 1.0,
			MaxTokens:   4096,
			TopP:        1.0,
		},
		Compare: CompareConfig{
			Concurrency: 3,
			Models: []ModelConfig{
				{
					Name:        "Llama 3.1 8B",
					Provider:    "groq",
					Model:       "llama-3.1-8b-instant",
					Temperature: &temperature,
					MaxTokens:   1000,
					Pricing:     PricingConfig{InputPerMillion: 0.05, OutputPerMillion: 0.08},
				},
				{
					Name:        "DeepSeek V3",
					Provider:    "deepseek",
					Model:       "deepseek-chat",
					Temperature: &temperature,
					MaxTokens:   1000,
					Pricing:     PricingConfig{InputPerMillion: 0.14, OutputPerMillion: 0.28},
				},
				{
					Name:        "Llama 3.3 70B",
					Provider:    "groq",
					Model:       "llama-3.3-70b-versatile",
					Temperature: &temperature,
					MaxTokens:   1000,
					Pricing:     PricingConfig{InputPerMillion: 0.59, OutputPerMillion: 0.79},
				},
			},
			Judge: ModelConfig{
				Name:      "DeepSeek R1",
				Provider:  "deepseek",
				Model:     "deepseek-reasoner",
				MaxTokens: 2000,
				Pricing:   PricingConfig{InputPerMillion: 0.55, OutputPerMillion: 2.19},
			},
			Temperature: ModelConfig{
				Name:      "DeepSeek V3",
				Provider:  "deepseek",
				Model:     "deepseek-chat",
				MaxTokens: 300,
				Pricing:   PricingConfig{InputPerMillion: 0.14, OutputPerMillion: 0.28},
			},
			Temperatures: []float64{0, 0.7, 1.2},
			Experts: ModelConfig{
				Name:      "DeepSeek V3",
				Provider:  "deepseek",
				Model:     "deepseek-chat",
				MaxTokens: 1000,
				Pricing:   PricingConfig{InputPerMillion: 0.14, OutputPerMillion: 0.28},
			},
		},
		Quiz: QuizConfig{
			Provider:    "deepseek",
			Model:       "deepseek-chat",
			Temperature: 0.7,
			MaxTokens:   1000,
			Questions:   5,
		},
		Debug: DebugConfig{
			LogDirectory:  filepath.Join(defaultDataDir, "debug"),
			ValidateRoles: true,
		},
	}
}

// DefaultPath returns the config location under the default data directory.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// LoadOrCreate reads the config at path, writing the defaults there first when the file does not exist.
func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return config, err
			}

			configData, err := toml.Marshal(config)
			if err != nil {
				return config, err
			}

			if err := os.WriteFile(path, configData, 0o644); err != nil {
				return config, err
			}

			return config, nil
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	defaultModels := config.Compare.Models
	defaultTemperatures := config.Compare.Temperatures
	config.Compare.Models = nil
	config.Compare.Temperatures = nil

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, err
	}

	if len(config.Compare.Models) == 0 {
		config.Compare.Models = defaultModels
	}
	if len(config.Compare.Temperatures) == 0 {
		config.Compare.Temperatures = defaultTemperatures
	}

	config.DataDir = expandPath(config.DataDir)
	config.Debug.LogDirectory = expandPath(config.Debug.LogDirectory)
	config.History.Path = expandPath(config.History.Path)
	config.Compare.ExpertsFile = expandPath(config.Compare.ExpertsFile)
	config.Agent.SystemPromptFile = expandPath(config.Agent.SystemPromptFile)
	config.Agent.Compression.PromptFile = expandPath(config.Agent.Compression.PromptFile)
	config.Bind = strings.TrimSpace(config.Bind)

	if config.Bind == "" {
		config.Bind = ":50061"
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Validate checks that every referenced provider exists and the agent limits are usable.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider is required")
	}

	for name, p := range c.Providers {
		if strings.TrimSpace(p.Endpoint) == "" {
			return fmt.Errorf("provider %q: endpoint is required", name)
		}
		switch p.Backend {
		case "", BackendHTTP, BackendOpenAI:
		default:
			return fmt.Errorf("provider %q: unknown backend %q", name, p.Backend)
		}
	}

	refs := []string{c.Agent.Provider, c.Chat.Provider, c.Quiz.Provider}
	for _, m := range c.Compare.Models {
		refs = append(refs, m.Provider)
	}
	refs = append(refs, c.Compare.Judge.Provider, c.Compare.Temperature.Provider, c.Compare.Experts.Provider)

	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := c.Providers[ref]; !ok {
			return fmt.Errorf("unknown provider %q", ref)
		}
	}

	if c.Agent.MaxIterations <= 0 {
		return errors.New("agent.max_iterations must be positive")
	}

	if c.Agent.Compression.RecentWindow < 0 || c.Agent.Compression.BatchSize <= 0 {
		return errors.New("agent.compression: recent_window must be >= 0 and batch_size > 0")
	}

	switch c.History.Backend {
	case HistorySQLite, HistoryFile, HistoryMemory:
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}

	return nil
}

// HistoryPath returns the configured history location or the backend default under the data dir.
func (c Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}

	switch c.History.Backend {
	case HistoryFile:
		return filepath.Join(c.DataDir, "history")
	default:
		return filepath.Join(c.DataDir, "agent.db")
	}
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".konsilium"
	}

	return filepath.Join(homeDir, ".konsilium")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
