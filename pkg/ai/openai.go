package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes bounds provider response bodies.
const maxResponseBytes = 8 << 20

// OpenAIProvider calls the chat completions API. It also serves
// OpenAI-compatible endpoints like OpenRouter.
type OpenAIProvider struct {
	name         string
	apiKey       string
	model        string
	baseURL      string
	maxTokens    int
	httpClient   *http.Client
	extraHeaders map[string]string
}

// NewOpenAIProvider creates an OpenAI or OpenRouter provider from a
// defaulted config.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	cfg = cfg.withDefaults()
	p := &OpenAIProvider{
		name:       cfg.Provider,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimSuffix(cfg.Endpoint, "/"),
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Provider == ProviderOpenRouter || strings.Contains(cfg.Endpoint, "openrouter.ai") {
		p.extraHeaders = map[string]string{
			"HTTP-Referer": "https://github.com/getmockd/sandbox",
			"X-Title":      "sandboxd",
		}
	}
	return p
}

// Name returns "openai" or "openrouter".
func (p *OpenAIProvider) Name() string { return p.name }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (*Completion, error) {
	reqBody := openAIChatRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   p.maxTokens,
		Temperature: 0.7,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Message: "API request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ProviderError{Provider: p.name, Message: "rate limited", Cause: ErrRateLimited}
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &ProviderError{
				Provider: p.name,
				Message:  fmt.Sprintf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200)),
			}
		}
		return nil, &ProviderError{Provider: p.name, Message: "failed to parse response", Cause: err}
	}
	if chatResp.Error != nil {
		if chatResp.Error.Code == "rate_limit_exceeded" {
			return nil, &ProviderError{Provider: p.name, Message: chatResp.Error.Message, Cause: ErrRateLimited}
		}
		return nil, &ProviderError{Provider: p.name, Message: chatResp.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: p.name,
			Message:  fmt.Sprintf("API returned status %d", resp.StatusCode),
		}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Message: "no choices returned", Cause: ErrInvalidResponse}
	}

	return &Completion{
		Text:         strings.TrimSpace(chatResp.Choices[0].Message.Content),
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
