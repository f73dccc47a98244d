package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapter(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai", "ollama", "Anthropic"} {
		adapter, err := NewAdapter(ModelConfig{Provider: provider})
		require.NoError(t, err, provider)
		require.NotNil(t, adapter, provider)
	}

	_, err := NewAdapter(ModelConfig{Provider: "mystery"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestCountTokens(t *testing.T) {
	adapter, err := NewAdapter(ModelConfig{Provider: "anthropic"})
	require.NoError(t, err)

	// ~4 chars per token
	assert.Equal(t, 10, adapter.CountTokens("0123456789012345678901234567890123456789"))
	assert.Equal(t, 0, adapter.CountTokens("abc"))
}

func TestEstimateCost(t *testing.T) {
	adapter, err := NewAdapter(ModelConfig{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"})
	require.NoError(t, err)

	// 1M input at $3 + 1M output at $15
	assert.InDelta(t, 18.0, adapter.EstimateCost(1_000_000, 1_000_000), 1e-9)

	// Unlisted model falls back to the provider default
	fallback, err := NewAdapter(ModelConfig{Provider: "anthropic", Model: "claude-next"})
	require.NoError(t, err)
	assert.InDelta(t, 18.0, fallback.EstimateCost(1_000_000, 1_000_000), 1e-9)

	free, err := NewAdapter(ModelConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Zero(t, free.EstimateCost(1_000_000, 1_000_000))
}

func TestAnthropicChatCompletion(t *testing.T) {
	var captured anthropicRequest
	var apiKey, version string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		apiKey = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "APPROVED\nNice work."}},
			"usage":   map[string]int{"input_tokens": 120, "output_tokens": 8},
		})
	}))
	defer srv.Close()

	adapter, err := NewAdapter(ModelConfig{
		Provider: "anthropic",
		Model:    "claude-3-5-haiku-20241022",
		APIKey:   "test-key",
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)

	resp, err := adapter.ChatCompletion(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a reviewer."},
		{Role: RoleUser, Content: "Review this."},
	})
	require.NoError(t, err)

	assert.Equal(t, "APPROVED\nNice work.", resp.Content)
	assert.Equal(t, 120, resp.InputTokens)
	assert.Equal(t, 8, resp.OutputTokens)
	assert.Greater(t, resp.CostUSD, 0.0)

	assert.Equal(t, "test-key", apiKey)
	assert.Equal(t, anthropicAPIVersion, version)

	// System turns land in the system field, not the messages array
	assert.Equal(t, "You are a reviewer.", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestAnthropicChatCompletion_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter, err := NewAdapter(ModelConfig{Provider: "anthropic", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = adapter.ChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestOpenAIChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "done"}}},
			"usage":   map[string]int{"prompt_tokens": 50, "completion_tokens": 5},
		})
	}))
	defer srv.Close()

	adapter, err := NewAdapter(ModelConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := adapter.ChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 50, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
}

func TestOllamaChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"content": "local reply"},
			"prompt_eval_count": 30,
			"eval_count":        4,
		})
	}))
	defer srv.Close()

	adapter, err := NewAdapter(ModelConfig{Provider: "ollama", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := adapter.ChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "local reply", resp.Content)
	assert.Zero(t, resp.CostUSD)
}
