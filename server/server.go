// Package server assembles the HTTP gateway: router, middleware stack,
// the LLM provider handle, and the batch processor, all wired to a
// hot-reloading configuration watcher.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/humbleclay/humbleclay/config"
	"github.com/humbleclay/humbleclay/server/batch"
	"github.com/humbleclay/humbleclay/server/circuitbreaker"
	"github.com/humbleclay/humbleclay/server/handlers"
	"github.com/humbleclay/humbleclay/server/metrics"
	"github.com/humbleclay/humbleclay/server/middleware"
	"github.com/humbleclay/humbleclay/server/provider"
	"github.com/humbleclay/humbleclay/server/validation"
)

// Server is the HTTP gateway. It owns the underlying http.Server, the
// config watcher, and the queue middleware whose limits follow config
// reloads.
type Server struct {
	watcher    config.Watcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	queue      *middleware.QueueMiddleware
	httpServer *http.Server
}

// NewServer creates a fully wired server from a config file path. It
// starts the config watcher, builds the provider handle, and assembles
// the router.
func NewServer(configPath string, logger *zap.Logger) (*Server, error) {
	watcher, err := config.NewConfigWatcher(configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	cfg := watcher.GetCurrentConfig()
	m := metrics.NewMetrics()

	llm, err := provider.NewLLM(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}
	client := provider.NewClient(llm, cfg.LLM, circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
		HalfOpenRequests: 1,
		TestMode:         cfg.CircuitBreaker.TestMode,
	}, logger, m.Registry())

	return NewServerWithClient(watcher, client, m, logger)
}

// NewServerWithClient assembles the server around an existing provider
// client. Tests use this with a mock client and a mock watcher.
func NewServerWithClient(watcher config.Watcher, client provider.Client, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	cfg := watcher.GetCurrentConfig()

	processor := batch.NewProcessor(client, cfg.Batch.WindowSize, logger, m)

	// The token counter is only built when a budget is configured at
	// startup; enabling budgets via hot reload requires a restart.
	var tokens *validation.TokenCounter
	if cfg.LLM.MaxContextTokens > 0 {
		var err error
		tokens, err = validation.NewTokenCounter(cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("initialize token counter: %w", err)
		}
	}

	s := &Server{
		watcher: watcher,
		logger:  logger,
		metrics: m,
	}

	if cfg.Queue.Enabled {
		s.queue = middleware.NewQueueMiddleware(middleware.QueueOptions{
			MaxSize: int64(cfg.Queue.MaxSize),
			Metrics: m,
		})
	}

	prompts := handlers.NewPromptHandler(processor, watcher, tokens, logger)
	router := s.buildRouter(cfg, prompts)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

func (s *Server) buildRouter(cfg *config.Config, prompts *handlers.PromptHandler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.CORS)
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.PrometheusMetrics(s.metrics))

	r.Get("/", handlers.Info)
	r.Get("/health", handlers.Health)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		// The key is read per request so rotations via config reload
		// take effect without a restart.
		api.Use(middleware.Authentication(func() string {
			return s.watcher.GetCurrentConfig().Auth.APIKey
		}))
		if cfg.RateLimit.Enabled {
			api.Use(middleware.RateLimit(cfg.RateLimit, s.metrics))
		}
		if s.queue != nil {
			api.Use(s.queue.Handler)
		}
		api.Post("/prompt", prompts.ProcessPrompt)
		api.Post("/prompts", prompts.ProcessPrompts)
	})

	return r
}

// Handler exposes the assembled router, used by httptest in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until the context is canceled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		updates := s.watcher.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return s.shutdown()
			case cfg, ok := <-updates:
				if !ok {
					return nil
				}
				s.applyConfig(cfg)
			}
		}
	})

	return g.Wait()
}

// applyConfig adjusts the runtime parameters that support hot reload.
// Server address and middleware topology changes require a restart.
func (s *Server) applyConfig(cfg *config.Config) {
	if s.queue != nil {
		s.queue.SetMaxSize(int64(cfg.Queue.MaxSize))
	}
	s.logger.Info("Configuration updated",
		zap.Int("batch_max_prompts", cfg.Batch.MaxPrompts),
		zap.Int("queue_max_size", cfg.Queue.MaxSize),
	)
}

func (s *Server) shutdown() error {
	cfg := s.watcher.GetCurrentConfig()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down server")
	if s.queue != nil {
		if err := s.queue.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Queue did not drain before shutdown", zap.Error(err))
		}
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}
