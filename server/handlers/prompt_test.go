package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humbleclay/humbleclay/config"
	"github.com/humbleclay/humbleclay/server/batch"
	"github.com/humbleclay/humbleclay/server/metrics"
	"github.com/humbleclay/humbleclay/server/mocks"
	"github.com/humbleclay/humbleclay/server/validation"
)

type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func newTestHandler(t *testing.T, client *mocks.MockClient, cfg *config.Config) *PromptHandler {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	processor := batch.NewProcessor(client, cfg.Batch.WindowSize, zap.NewNop(), metrics.NewMetrics())
	tokens := validation.NewTokenCounterWithTokenizer(wordTokenizer{})
	return NewPromptHandler(processor, mocks.NewMockConfigWatcher(cfg), tokens, zap.NewNop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestProcessPrompt(t *testing.T) {
	client := &mocks.MockClient{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "echo: " + prompt, nil
		},
	}
	h := newTestHandler(t, client, nil)

	t.Run("success", func(t *testing.T) {
		w := postJSON(t, h.ProcessPrompt, batch.PromptRequest{Prompt: "hello"})
		require.Equal(t, http.StatusOK, w.Code)

		var out batch.PromptResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
		assert.Equal(t, batch.StatusSuccess, out.Status)
		assert.Equal(t, "echo: hello", out.Response)
	})

	t.Run("provider failure still returns 200 with error outcome", func(t *testing.T) {
		failing := &mocks.MockClient{
			GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
				return "", fmt.Errorf("provider down")
			},
		}
		h := newTestHandler(t, failing, nil)

		w := postJSON(t, h.ProcessPrompt, batch.PromptRequest{Prompt: "hello"})
		require.Equal(t, http.StatusOK, w.Code)

		var out batch.PromptResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
		assert.Equal(t, batch.StatusError, out.Status)
		assert.Equal(t, "provider down", out.Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		h.ProcessPrompt(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var errResp map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
		assert.Equal(t, "validation_error", errResp["type"])
	})

	t.Run("token budget enforced", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.MaxContextTokens = 2
		h := newTestHandler(t, client, cfg)

		w := postJSON(t, h.ProcessPrompt, batch.PromptRequest{Prompt: "one two three four"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "exceed max context length")
	})
}

func TestProcessPrompts(t *testing.T) {
	client := &mocks.MockClient{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			if prompt == "fail" {
				return "", fmt.Errorf("boom")
			}
			return "echo: " + prompt, nil
		},
	}
	h := newTestHandler(t, client, nil)

	t.Run("ordered outcomes with per-item failure", func(t *testing.T) {
		w := postJSON(t, h.ProcessPrompts, batch.MultiplePromptsRequest{
			Prompts: []batch.PromptRequest{
				{Prompt: "a"},
				{Prompt: "fail"},
				{Prompt: "b"},
			},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp batch.MultiplePromptsResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Responses, 3)
		assert.Equal(t, "echo: a", resp.Responses[0].Response)
		assert.Equal(t, batch.StatusError, resp.Responses[1].Status)
		assert.Equal(t, "boom", resp.Responses[1].Error)
		assert.Equal(t, "echo: b", resp.Responses[2].Response)
	})

	t.Run("empty prompt list rejected", func(t *testing.T) {
		w := postJSON(t, h.ProcessPrompts, batch.MultiplePromptsRequest{Prompts: []batch.PromptRequest{}})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	t.Run("batch size limit follows config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Batch.MaxPrompts = 2
		h := newTestHandler(t, client, cfg)

		w := postJSON(t, h.ProcessPrompts, batch.MultiplePromptsRequest{
			Prompts: []batch.PromptRequest{{Prompt: "a"}, {Prompt: "b"}, {Prompt: "c"}},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "too many prompts")
	})

	t.Run("over-budget prompt names its index", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.MaxContextTokens = 2
		h := newTestHandler(t, client, cfg)

		w := postJSON(t, h.ProcessPrompts, batch.MultiplePromptsRequest{
			Prompts: []batch.PromptRequest{{Prompt: "ok"}, {Prompt: "way too many words here"}},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "prompts[1]")
	})
}

func TestInfoAndHealth(t *testing.T) {
	t.Run("info", func(t *testing.T) {
		w := httptest.NewRecorder()
		Info(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Humble Clay API")
	})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})
}
