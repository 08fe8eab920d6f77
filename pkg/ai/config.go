package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/getmockd/sandbox/pkg/config"
)

// Provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
)

// Default models and endpoints.
const (
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultOpenAIEndpoint     = "https://api.openai.com/v1"
	DefaultAnthropicModel     = "claude-3-5-haiku-latest"
	DefaultOpenRouterModel    = "google/gemini-2.5-flash"
	DefaultOpenRouterEndpoint = "https://openrouter.ai/api/v1"
	DefaultMaxTokens          = 4096
	DefaultTimeout            = 60 * time.Second
)

// Config holds the provider configuration.
type Config struct {
	Provider  string        `json:"provider"`
	APIKey    string        `json:"-"`
	Model     string        `json:"model,omitempty"`
	Endpoint  string        `json:"endpoint,omitempty"`
	MaxTokens int           `json:"maxTokens,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
}

// FromSection converts the server configuration section.
func FromSection(s config.AISection) Config {
	return Config{
		Provider:  s.Provider,
		APIKey:    s.APIKey,
		Model:     s.Model,
		Endpoint:  s.Endpoint,
		MaxTokens: s.MaxTokens,
		Timeout:   s.Timeout,
	}
}

// Enabled reports whether an API key is set.
func (c Config) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

// withDefaults fills the model, endpoint and limits for the provider.
func (c Config) withDefaults() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.Model == "" {
			c.Model = DefaultOpenAIModel
		}
		if c.Endpoint == "" {
			c.Endpoint = DefaultOpenAIEndpoint
		}
	case ProviderOpenRouter:
		if c.Model == "" {
			c.Model = DefaultOpenRouterModel
		}
		if c.Endpoint == "" {
			c.Endpoint = DefaultOpenRouterEndpoint
		}
	case ProviderAnthropic:
		if c.Model == "" {
			c.Model = DefaultAnthropicModel
		}
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate checks the provider name.
func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "", ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
}

// SupportedProviders returns the provider names.
func SupportedProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter}
}
