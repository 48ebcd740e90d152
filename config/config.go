// Package config provides configuration management for the Humble Clay
// prompt gateway. It covers the HTTP server, the LLM provider handle,
// batch processing behavior, authentication, and runtime middleware
// settings.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration. It combines
// server settings, LLM provider configuration, batch processing
// parameters, and middleware behavior into a single structure.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	Batch          BatchConfig          `yaml:"batch"`
	Auth           AuthConfig           `yaml:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Queue          QueueConfig          `yaml:"queue"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Logging        LoggingConfig        `yaml:"logging"`
	TestMode       bool                 `yaml:"-"` // Skip provider initialization in tests
}

// ServerConfig holds server-specific configuration for the HTTP server.
// It defines timeouts, limits, and operational parameters.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. Batch requests can run long, so the default is
	// generous (default: 120s).
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to
	// shutdown gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig holds the configuration for the single long-lived LLM
// provider handle. The handle is created once at startup and reused by
// every prompt call.
type LLMConfig struct {
	// Provider specifies the LLM provider (e.g., "openai", "anthropic", "openrouter")
	Provider string `yaml:"provider"`

	// Model is the model identifier sent with every call
	// (default: google/gemini-2.0-flash-lite-001)
	Model string `yaml:"model"`

	// APIKey is the authentication key for the provider's API.
	// Use environment variables (e.g., ${OPENROUTER_API_KEY}) for secure
	// configuration.
	APIKey string `yaml:"api_key"`

	// Endpoint is the API endpoint URL, for OpenAI-compatible gateways
	// such as OpenRouter.
	Endpoint string `yaml:"endpoint"`

	// CallTimeout bounds each individual provider call (default: 30s)
	CallTimeout time.Duration `yaml:"call_timeout"`

	// MaxContextTokens caps the token count of a single prompt. Zero
	// disables token counting.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// BatchConfig controls the batch orchestrator.
type BatchConfig struct {
	// WindowSize is the maximum number of prompts processed concurrently
	// within one window (default: 100). The window size is the
	// concurrency limit.
	WindowSize int `yaml:"window_size"`

	// MaxPrompts caps the number of prompts accepted in a single batch
	// request (default: 1000).
	MaxPrompts int `yaml:"max_prompts"`
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// APIKey is the key clients must present in the X-API-Key header.
	// An empty key disables authentication, which is only appropriate
	// for local development.
	APIKey string `yaml:"api_key"`
}

// RateLimitConfig controls the per-client rate limiting middleware.
type RateLimitConfig struct {
	// Enabled determines if the rate limit middleware is active
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute is the sustained request rate allowed per client IP
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst is the instantaneous burst allowed per client IP
	Burst int `yaml:"burst"`
}

// QueueConfig controls the request queue middleware that bounds the
// number of concurrently admitted batch requests.
type QueueConfig struct {
	// Enabled determines if the queue middleware is active
	Enabled bool `yaml:"enabled"`

	// MaxSize is the maximum number of requests allowed to wait for
	// admission before new requests are rejected
	MaxSize int `yaml:"max_size"`
}

// CircuitBreakerConfig controls the breaker guarding provider calls.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens
	FailureThreshold int `yaml:"failure_threshold"`

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe request
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// TestMode skips metric registration in tests
	TestMode bool `yaml:"-"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format specifies the log output format ("json" or "text")
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration that aligns with the validation
// requirements while keeping the defaults appropriate for a spreadsheet
// add-on backend issuing many prompts per user action.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "google/gemini-2.0-flash-lite-001",
			APIKey:      "${OPENROUTER_API_KEY}",
			Endpoint:    "https://openrouter.ai/api/v1",
			CallTimeout: 30 * time.Second,
		},
		Batch: BatchConfig{
			WindowSize: 100,
			MaxPrompts: 1000,
		},
		Auth: AuthConfig{
			APIKey: "${API_KEY}",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Queue: QueueConfig{
			Enabled: false,
			MaxSize: 50,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves environment variable references within
// configuration strings. It supports standard ${VAR} substitution, the
// ${VAR:-default} default value syntax, and nested references.
func expandEnvVars(s string) string {
	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			envKey := key[:i]
			defaultValue := key[i+2:]
			if val := os.Getenv(envKey); val != "" {
				return val
			}
			return defaultValue
		}
		return os.Getenv(key)
	})

	// Resolve nested references until a fixed point is reached
	prev := ""
	for prev != result {
		prev = result
		result = os.Expand(result, os.Getenv)
	}

	return result
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in the YAML before decoding
	expanded := expandEnvVars(string(data))

	// Start with defaults and decode on top of them
	config := DefaultConfig()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	// LLM validation
	if c.LLM.Provider == "" {
		return fmt.Errorf("empty LLM provider")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.CallTimeout < 0 {
		return fmt.Errorf("negative call timeout: %v", c.LLM.CallTimeout)
	}
	if c.LLM.MaxContextTokens < 0 {
		return fmt.Errorf("negative max context tokens: %d", c.LLM.MaxContextTokens)
	}

	// Batch validation
	if c.Batch.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1: %d", c.Batch.WindowSize)
	}
	if c.Batch.MaxPrompts < 1 {
		return fmt.Errorf("max prompts must be at least 1: %d", c.Batch.MaxPrompts)
	}

	// Rate limit validation
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("requests per minute must be positive: %d", c.RateLimit.RequestsPerMinute)
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("burst must be positive: %d", c.RateLimit.Burst)
		}
	}

	// Queue validation
	if c.Queue.Enabled && c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue max size must be positive: %d", c.Queue.MaxSize)
	}

	// Circuit breaker validation
	if c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive: %d", c.CircuitBreaker.FailureThreshold)
	}
	if c.CircuitBreaker.ResetTimeout <= 0 {
		return fmt.Errorf("reset timeout must be positive: %v", c.CircuitBreaker.ResetTimeout)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
