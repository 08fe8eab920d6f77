package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		endpoint string
	}{
		{"", DefaultOpenAIModel, DefaultOpenAIEndpoint},
		{"openai", DefaultOpenAIModel, DefaultOpenAIEndpoint},
		{"OpenRouter", DefaultOpenRouterModel, DefaultOpenRouterEndpoint},
		{"anthropic", DefaultAnthropicModel, ""},
	}
	for _, tt := range tests {
		cfg := Config{Provider: tt.provider}.withDefaults()
		assert.Equal(t, tt.model, cfg.Model, tt.provider)
		assert.Equal(t, tt.endpoint, cfg.Endpoint, tt.provider)
		assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
		assert.Equal(t, DefaultTimeout, cfg.Timeout)
	}

	cfg := Config{Provider: "openai", Model: "gpt-x", MaxTokens: 10}.withDefaults()
	assert.Equal(t, "gpt-x", cfg.Model)
	assert.Equal(t, 10, cfg.MaxTokens)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Provider: "anthropic"}.Validate())
	assert.ErrorIs(t, Config{Provider: "ollama"}.Validate(), ErrUnknownProvider)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrDisabled)

	p, err := NewProvider(Config{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())

	p, err = NewProvider(Config{Provider: ProviderOpenRouter, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, p.Name())

	p, err = NewProvider(Config{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())

	_, err = NewProvider(Config{Provider: "nope", APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOpenAIProvider(t *testing.T) {
	var got openAIChatRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": " {\"name\": \"Rex\"} "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Provider: ProviderOpenRouter, APIKey: "secret", Endpoint: srv.URL + "/", Model: "m1"})
	comp, err := p.Complete(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"name": "Rex"}`, comp.Text)
	assert.EqualValues(t, 12, comp.InputTokens)
	assert.EqualValues(t, 4, comp.OutputTokens)

	assert.Equal(t, "m1", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "sandboxd", headers.Get("X-Title"))
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited status", http.StatusTooManyRequests, `{}`, ErrRateLimited},
		{"rate limited code", http.StatusOK, `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`, ErrRateLimited},
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key","code":"invalid_api_key"}}`, nil},
		{"not json", http.StatusBadGateway, `<html>`, nil},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewOpenAIProvider(Config{APIKey: "k", Endpoint: srv.URL})
			_, err := p.Complete(context.Background(), "s", "p")
			require.Error(t, err)
			var pe *ProviderError
			assert.True(t, errors.As(err, &pe))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAnthropicProvider(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "[1, 2]"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{Provider: ProviderAnthropic, APIKey: "secret", Endpoint: srv.URL, Model: "claude-test"})
	comp, err := p.Complete(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", comp.Text)
	assert.EqualValues(t, 20, comp.InputTokens)
	assert.EqualValues(t, 3, comp.OutputTokens)
	assert.Equal(t, "claude-test", body["model"])
}

func TestAnthropicProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After-Ms", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{Provider: ProviderAnthropic, APIKey: "k", Endpoint: srv.URL})
	_, err := p.Complete(context.Background(), "s", "p")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestStripCodeBlocks(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1]\n```\n", `[1]`},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeBlocks(tt.in))
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(EnhanceRequest{Schema: json.RawMessage(`{"type":"string"}`), Count: 3, Hint: "pet names"})
	assert.Contains(t, p, "exactly 3 items")
	assert.Contains(t, p, `{"type":"string"}`)
	assert.Contains(t, p, "Context: pet names")

	p = buildPrompt(EnhanceRequest{Schema: json.RawMessage(`{}`), Count: 1})
	assert.Contains(t, p, "one JSON value")
	assert.NotContains(t, p, "Context:")
}
