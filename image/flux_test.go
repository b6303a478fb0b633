package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFluxProvider_Defaults(t *testing.T) {
	p := NewFluxProvider(ProviderConfig{APIKey: "test"}, zap.NewNop())
	assert.Equal(t, "flux", p.Name())
	assert.Equal(t, "flux-2-pro", p.cfg.Model)
	assert.Equal(t, "https://api.bfl.ai", p.cfg.BaseURL)
}

func TestFluxProvider_Generate_SubmitAndPoll(t *testing.T) {
	polls := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/flux-2-pro":
			assert.Equal(t, "test-key", r.Header.Get("x-key"))
			json.NewEncoder(w).Encode(map[string]any{
				"id":          "task-1",
				"status":      "Pending",
				"polling_url": server.URL + "/v1/poll",
			})
		case "/v1/poll":
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(map[string]any{"id": "task-1", "status": "Processing"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "task-1",
				"status": "Ready",
				"result": map[string]any{"sample": "https://cdn.bfl.ai/img.jpg"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewFluxProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL}, zap.NewNop())
	p.pollInterval = 5 * time.Millisecond

	resp, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "a dog", Width: 1024, Height: 768, Steps: 28, CFGScale: 3.5})
	require.NoError(t, err)

	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "https://cdn.bfl.ai/img.jpg", resp.Assets[0].URL)
	assert.Equal(t, "task-1", resp.Assets[0].Meta["task_id"])
	assert.Equal(t, "flux", resp.Provider)
	assert.Equal(t, 2, polls)
	assert.Equal(t, 28, resp.AppliedParams["steps"])
}

func TestFluxProvider_Generate_PollFailure(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/flux-2-pro" {
			json.NewEncoder(w).Encode(map[string]any{
				"id":          "task-2",
				"status":      "Pending",
				"polling_url": server.URL + "/v1/poll",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "task-2", "status": "Error"})
	}))
	defer server.Close()

	p := NewFluxProvider(ProviderConfig{APIKey: "test", BaseURL: server.URL}, zap.NewNop())
	p.pollInterval = 5 * time.Millisecond

	_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "a dog", Width: 512, Height: 512})
	require.Error(t, err)

	env, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindProvider, env.Kind)
	assert.True(t, env.Retryable)
	assert.Equal(t, "flux", env.Provider)
}

func TestFluxProvider_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("too many requests"))
	}))
	defer server.Close()

	p := NewFluxProvider(ProviderConfig{APIKey: "test", BaseURL: server.URL}, zap.NewNop())
	_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "a dog", Width: 512, Height: 512})
	require.Error(t, err)

	env, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindRateLimit, env.Kind)
	assert.True(t, env.Retryable)
}

func TestFluxProvider_ValidateRequest(t *testing.T) {
	p := NewFluxProvider(ProviderConfig{APIKey: "test"}, zap.NewNop())

	res := p.ValidateRequest(&GenerateRequest{Prompt: "a dog", Width: 512, Height: 512, Steps: 100, CFGScale: 99})
	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, "steps", res.Issues[0].Path)
	assert.Equal(t, "cfg_scale", res.Issues[1].Path)
}

func TestFluxProvider_HealthCheck_Down(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewFluxProvider(ProviderConfig{APIKey: "test", BaseURL: server.URL}, zap.NewNop())
	health := p.HealthCheck(context.Background())
	assert.Equal(t, HealthDown, health.State)
	assert.Contains(t, health.Reason, "503")
}
