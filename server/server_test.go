package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humbleclay/humbleclay/config"
	"github.com/humbleclay/humbleclay/server/batch"
	"github.com/humbleclay/humbleclay/server/metrics"
	"github.com/humbleclay/humbleclay/server/mocks"
)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *mocks.MockConfigWatcher) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Auth.APIKey = "test-key"
	}

	client := &mocks.MockClient{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "echo: " + prompt, nil
		},
	}
	watcher := mocks.NewMockConfigWatcher(cfg)

	s, err := NewServerWithClient(watcher, client, metrics.NewMetrics(), zap.NewNop())
	require.NoError(t, err)
	return s, watcher
}

func TestServerRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	t.Run("root", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServerAuthentication(t *testing.T) {
	s, watcher := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	body := []byte(`{"prompt": "hello"}`)

	post := func(t *testing.T, key string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/prompt", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("missing key is rejected", func(t *testing.T) {
		resp := post(t, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		resp := post(t, "wrong-key")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid key is accepted", func(t *testing.T) {
		resp := post(t, "test-key")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out batch.PromptResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "echo: hello", out.Response)
	})

	t.Run("rotated key takes effect without restart", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Auth.APIKey = "rotated-key"
		watcher.UpdateConfig(cfg)

		resp := post(t, "test-key")
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = post(t, "rotated-key")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServerBatchEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Auth.APIKey = "" // auth disabled
	s, _ := newTestServer(t, cfg)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	payload, err := json.Marshal(batch.MultiplePromptsRequest{
		Prompts: []batch.PromptRequest{{Prompt: "a"}, {Prompt: "b"}},
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/v1/prompts", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out batch.MultiplePromptsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Responses, 2)
	assert.Equal(t, "echo: a", out.Responses[0].Response)
	assert.Equal(t, "echo: b", out.Responses[1].Response)
}

func TestServerRequestID(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
