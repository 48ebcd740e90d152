// Package handlers provides HTTP handlers for the prompt endpoints.
// It implements single and batch prompt processing on top of the batch
// orchestrator, with consistent error handling via the errors package
// and structured logging with request IDs.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/humbleclay/humbleclay/config"
	"github.com/humbleclay/humbleclay/errors"
	"github.com/humbleclay/humbleclay/server/batch"
	"github.com/humbleclay/humbleclay/server/middleware"
	"github.com/humbleclay/humbleclay/server/validation"
)

// PromptHandler serves the single and batch prompt endpoints. Request
// limits come from the config watcher so they follow hot reloads; the
// token counter is optional and nil disables token budgeting.
type PromptHandler struct {
	processor *batch.Processor
	watcher   config.Watcher
	tokens    *validation.TokenCounter
	logger    *zap.Logger
	validate  *validator.Validate
}

// NewPromptHandler creates a prompt handler. tokens may be nil.
func NewPromptHandler(processor *batch.Processor, watcher config.Watcher, tokens *validation.TokenCounter, logger *zap.Logger) *PromptHandler {
	return &PromptHandler{
		processor: processor,
		watcher:   watcher,
		tokens:    tokens,
		logger:    logger,
		validate:  validator.New(),
	}
}

// ProcessPrompt handles POST /api/v1/prompt. The outcome is always
// written with status 200 once the request passes validation; provider
// and extraction failures are reported inside the outcome body.
func (h *PromptHandler) ProcessPrompt(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := h.logger.With(
		zap.String("request_id", requestID),
		zap.String("path", r.URL.Path),
	)

	var req batch.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.NewValidationError(
			requestID,
			"Invalid prompt request format",
			map[string]interface{}{"error": err.Error()},
		))
		return
	}

	if err := h.checkTokenBudget(req.Prompt); err != nil {
		errors.WriteError(w, errors.NewValidationError(
			requestID,
			err.Error(),
			map[string]interface{}{"field": "prompt"},
		))
		return
	}

	logger.Info("Processing prompt")
	outcome := h.processor.ProcessPrompt(r.Context(), req)

	writeJSON(w, requestID, outcome)
}

// ProcessPrompts handles POST /api/v1/prompts. The batch runs to
// completion and returns 200 with one outcome per input prompt, in
// input order; only request validation failures reject the call.
func (h *PromptHandler) ProcessPrompts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := h.logger.With(
		zap.String("request_id", requestID),
		zap.String("path", r.URL.Path),
	)

	var req batch.MultiplePromptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.NewValidationError(
			requestID,
			"Invalid prompts request format",
			map[string]interface{}{"error": err.Error()},
		))
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		errors.WriteError(w, errors.NewValidationError(
			requestID,
			"Request validation failed",
			map[string]interface{}{"error": err.Error()},
		))
		return
	}

	maxPrompts := h.watcher.GetCurrentConfig().Batch.MaxPrompts
	if len(req.Prompts) > maxPrompts {
		errors.WriteError(w, errors.NewValidationError(
			requestID,
			fmt.Sprintf("too many prompts: %d exceeds the limit of %d", len(req.Prompts), maxPrompts),
			map[string]interface{}{"field": "prompts"},
		))
		return
	}

	for i, item := range req.Prompts {
		if err := h.checkTokenBudget(item.Prompt); err != nil {
			errors.WriteError(w, errors.NewValidationError(
				requestID,
				err.Error(),
				map[string]interface{}{"field": fmt.Sprintf("prompts[%d]", i)},
			))
			return
		}
	}

	logger.Info("Processing prompt batch", zap.Int("total_prompts", len(req.Prompts)))
	resp, stats := h.processor.ProcessMultiplePrompts(r.Context(), &req)
	logger.Info("Prompt batch finished",
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration),
	)

	writeJSON(w, requestID, resp)
}

func (h *PromptHandler) checkTokenBudget(prompt string) error {
	if h.tokens == nil {
		return nil
	}
	budget := h.watcher.GetCurrentConfig().LLM.MaxContextTokens
	return h.tokens.ValidatePromptTokens(prompt, budget)
}

func writeJSON(w http.ResponseWriter, requestID string, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteError(w, errors.NewInternalError(
			requestID,
			fmt.Errorf("failed to encode response: %v", err),
		))
	}
}
