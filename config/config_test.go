package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Batch.WindowSize)
	assert.Equal(t, 1000, cfg.Batch.MaxPrompts)
	assert.Equal(t, "google/gemini-2.0-flash-lite-001", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.CallTimeout)
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  port: 9090
  read_timeout: 10s
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: test-key
batch:
  window_size: 25
  max_prompts: 500
logging:
  level: debug
  format: text
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 25, cfg.Batch.WindowSize)
	assert.Equal(t, 500, cfg.Batch.MaxPrompts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Defaults survive for unspecified sections
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_PROMPT_API_KEY", "secret-from-env")

	yaml := `
llm:
  api_key: ${TEST_PROMPT_API_KEY}
auth:
  api_key: ${TEST_MISSING_KEY:-fallback-key}
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "secret-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "fallback-key", cfg.Auth.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "empty provider",
			mutate:  func(c *Config) { c.LLM.Provider = "" },
			wantErr: "empty LLM provider",
		},
		{
			name:    "zero window size",
			mutate:  func(c *Config) { c.Batch.WindowSize = 0 },
			wantErr: "window size must be at least 1",
		},
		{
			name:    "zero max prompts",
			mutate:  func(c *Config) { c.Batch.MaxPrompts = 0 },
			wantErr: "max prompts must be at least 1",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name: "rate limit enabled without rate",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerMinute = 0
			},
			wantErr: "requests per minute must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	initial := `
batch:
  window_size: 10
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cw.Close()

	assert.Equal(t, 10, cw.GetCurrentConfig().Batch.WindowSize)

	updates := cw.Subscribe()

	updated := `
batch:
  window_size: 20
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-updates:
		assert.Equal(t, 20, cfg.Batch.WindowSize)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	assert.Equal(t, 20, cw.GetCurrentConfig().Batch.WindowSize)
}
