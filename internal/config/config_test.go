package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("expected default max iterations 5, got %d", cfg.Agent.MaxIterations)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
	if !strings.Contains(string(data), "recent_window") {
		t.Errorf("expected written config to contain compression settings, got:\n%s", data)
	}

	reloaded, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Agent.Compression.BatchSize != 6 || reloaded.Agent.Compression.RecentWindow != 6 {
		t.Errorf("unexpected compression after reload: %+v", reloaded.Agent.Compression)
	}
	if len(reloaded.Compare.Models) != 3 {
		t.Fatalf("expected 3 comparison models, got %d", len(reloaded.Compare.Models))
	}
	if reloaded.Compare.Models[0].Temperature == nil || *reloaded.Compare.Models[0].Temperature != 0.7 {
		t.Errorf("expected model temperature 0.7 after reload")
	}
	if reloaded.Compare.Judge.Temperature != nil {
		t.Errorf("expected judge to have no temperature")
	}
}

func TestLoadOrCreate_OverridesAndExpandsPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
data_dir = "~/konsilium-test"

[agent]
model = "custom-model"
max_iterations = 3

[history]
backend = "file"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	if cfg.Agent.Model != "custom-model" || cfg.Agent.MaxIterations != 3 {
		t.Errorf("overrides not applied: %+v", cfg.Agent)
	}
	if cfg.Agent.Provider != "deepseek" {
		t.Errorf("expected default provider to survive partial config, got %q", cfg.Agent.Provider)
	}
	if strings.HasPrefix(cfg.DataDir, "~") {
		t.Errorf("expected ~ to be expanded, got %q", cfg.DataDir)
	}
	if got := cfg.HistoryPath(); got != filepath.Join(cfg.DataDir, "history") {
		t.Errorf("unexpected file history path %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Agent.Provider = "nope" }, "unknown provider"},
		{"bad backend", func(c *Config) {
			p := c.Providers["groq"]
			p.Backend = "grpc"
			c.Providers["groq"] = p
		}, "unknown backend"},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, "max_iterations"},
		{"zero batch", func(c *Config) { c.Agent.Compression.BatchSize = 0 }, "batch_size"},
		{"bad history", func(c *Config) { c.History.Backend = "redis" }, "history backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestProviderConfig_ResolveAPIKey(t *testing.T) {
	t.Setenv("KONSILIUM_TEST_KEY", " secret ")

	if got := (ProviderConfig{APIKeyEnv: "KONSILIUM_TEST_KEY"}).ResolveAPIKey(); got != "secret" {
		t.Errorf("expected env key, got %q", got)
	}
	if got := (ProviderConfig{APIKey: "literal", APIKeyEnv: "KONSILIUM_TEST_KEY"}).ResolveAPIKey(); got != "literal" {
		t.Errorf("expected literal key to win, got %q", got)
	}
}

func TestLoadDebugConfigFromEnv(t *testing.T) {
	t.Setenv("KONSILIUM_DEBUG_LOG_REQUESTS", "1")
	t.Setenv("KONSILIUM_DEBUG_VALIDATE_ROLES", "0")

	cfg := LoadDebugConfigFromEnv(DebugConfig{ValidateRoles: true})
	if !cfg.LogRequests || cfg.ValidateRoles {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}
