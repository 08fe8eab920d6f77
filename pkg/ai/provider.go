package ai

import (
	"context"
	"errors"
	"fmt"
)

// Provider sends one prompt to a hosted model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (*Completion, error)
}

// Completion is the text returned by a provider.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("AI enhancement is disabled: no API key configured")

	// ErrUnknownProvider is returned for unsupported provider names.
	ErrUnknownProvider = errors.New("unknown AI provider")

	// ErrRateLimited is returned when the provider rate limits the request.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrInvalidResponse is returned when the output is not JSON matching
	// the schema.
	ErrInvalidResponse = errors.New("invalid response from provider")

	// ErrInvalidSchema is returned when the request schema does not compile.
	ErrInvalidSchema = errors.New("invalid JSON schema")
)

// ProviderError wraps errors from AI providers with additional context.
type ProviderError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProvider creates the provider named by cfg. cfg must carry an API key.
func NewProvider(cfg Config) (Provider, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	cfg = cfg.withDefaults()
	switch cfg.Provider {
	case ProviderOpenAI, ProviderOpenRouter:
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}
