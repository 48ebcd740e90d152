// Package provider adapts the LLM client library to the narrow surface
// the batch processor needs: plain text generation and schema-guided
// structured generation. It owns the per-call timeout, the circuit
// breaker around the provider, and provider-level metrics.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"

	"github.com/humbleclay/humbleclay/config"
	"github.com/humbleclay/humbleclay/server/circuitbreaker"
	"github.com/humbleclay/humbleclay/server/schema"
)

// Client is the provider surface the processor depends on. Generate
// returns raw text; GenerateStructured returns a mapping already
// coerced to the supplied shape.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt string, shape *schema.ResponseShape) (map[string]interface{}, error)
}

// LLMClient implements Client on top of a gollm LLM handle.
type LLMClient struct {
	llm         gollm.LLM
	breaker     *circuitbreaker.CircuitBreaker
	logger      *zap.Logger
	callTimeout time.Duration

	latency *prometheus.HistogramVec
}

// NewLLM constructs the underlying gollm handle from configuration.
// The endpoint is applied after construction so OpenAI-compatible
// gateways (e.g. OpenRouter) can front any configured model.
func NewLLM(cfg config.LLMConfig) (gollm.LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.Provider)
	}

	llm, err := gollm.NewLLM(
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", cfg.Provider, err)
	}

	if cfg.Endpoint != "" {
		llm.SetEndpoint(cfg.Endpoint)
	}

	return llm, nil
}

// NewClient wraps an LLM handle with timeout, circuit breaker, and
// metrics. The registry may be nil in tests.
func NewClient(llm gollm.LLM, cfg config.LLMConfig, cbConfig circuitbreaker.Config, logger *zap.Logger, registry *prometheus.Registry) *LLMClient {
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "humbleclay_provider_request_duration_seconds",
		Help:    "LLM provider request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"mode", "status"})

	if registry != nil {
		registry.MustRegister(latency)
	}

	return &LLMClient{
		llm:         llm,
		breaker:     circuitbreaker.NewCircuitBreaker("llm_provider", cbConfig, logger, registry),
		logger:      logger,
		callTimeout: callTimeout,
		latency:     latency,
	}
}

// Generate sends a plain-text prompt and returns the raw completion.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	var content string
	err := c.call(ctx, "text", func(ctx context.Context) error {
		var err error
		content, err = c.llm.Generate(ctx, userPrompt(prompt))
		return err
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// GenerateStructured sends a prompt constrained by the shape's JSON
// schema, parses the completion as JSON, and coerces the result to the
// shape. Any stage failing is a provider error for this one call.
func (c *LLMClient) GenerateStructured(ctx context.Context, prompt string, shape *schema.ResponseShape) (map[string]interface{}, error) {
	var content string
	err := c.call(ctx, "structured", func(ctx context.Context) error {
		var err error
		content, err = c.llm.GenerateWithSchema(ctx, userPrompt(prompt), shape.JSONSchema())
		return err
	})
	if err != nil {
		return nil, err
	}

	// Models wrap JSON in markdown fences often enough that cleaning
	// before parsing is mandatory.
	cleaned := gollm.CleanResponse(content)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("provider returned malformed JSON: %w", err)
	}

	return shape.Coerce(data)
}

// call runs f under the per-call timeout and the circuit breaker,
// recording latency by mode and outcome.
func (c *LLMClient) call(ctx context.Context, mode string, f func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	err := c.breaker.Execute(func() error {
		return f(ctx)
	})
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		c.logger.Warn("Provider call failed",
			zap.String("mode", mode),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
	c.latency.WithLabelValues(mode, status).Observe(duration.Seconds())

	return err
}

func userPrompt(text string) *gollm.Prompt {
	return &gollm.Prompt{
		Messages: []gollm.PromptMessage{
			{Role: "user", Content: text},
		},
	}
}
