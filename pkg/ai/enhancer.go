package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/sandbox/pkg/logging"
	"github.com/getmockd/sandbox/pkg/metrics"
)

// MaxCount bounds EnhanceRequest.Count.
const MaxCount = 50

// EnhanceRequest asks for data matching Schema.
type EnhanceRequest struct {
	Schema json.RawMessage `json:"schema" validate:"required"`
	// Count > 1 requests an array of Count items.
	Count int    `json:"count" validate:"omitempty,min=1,max=50"`
	Hint  string `json:"hint,omitempty" validate:"omitempty,max=2000"`
}

// EnhanceResult is validated provider output.
type EnhanceResult struct {
	// Data is a single value, or an array when Count > 1.
	Data         json.RawMessage `json:"data"`
	Count        int             `json:"count"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	InputTokens  int64           `json:"inputTokens"`
	OutputTokens int64           `json:"outputTokens"`
	DurationMs   int64           `json:"durationMs"`
}

// Status describes the enhancer configuration.
type Status struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Enhancer generates schema-valid data through a Provider. It is safe for
// concurrent use; Reconfigure swaps the provider.
type Enhancer struct {
	mu       sync.RWMutex
	cfg      Config
	provider Provider

	metrics *metrics.Set
	log     *slog.Logger
	factory func(Config) (Provider, error)
}

// Option configures an Enhancer.
type Option func(*Enhancer)

// WithLogger sets the enhancer logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Enhancer) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics sets the metrics updated per provider call.
func WithMetrics(m *metrics.Set) Option {
	return func(e *Enhancer) { e.metrics = m }
}

// WithProvider uses p regardless of the configured provider name. A nil p,
// or a config without an API key, leaves the enhancer disabled.
func WithProvider(p Provider) Option {
	return func(e *Enhancer) {
		e.factory = func(cfg Config) (Provider, error) {
			if p == nil || !cfg.Enabled() {
				return nil, ErrDisabled
			}
			return p, nil
		}
	}
}

// New returns an enhancer for cfg. It is disabled when cfg has no API key.
func New(cfg Config, opts ...Option) (*Enhancer, error) {
	e := &Enhancer{log: logging.Nop(), factory: NewProvider}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reconfigure replaces the provider. A config without an API key disables
// the enhancer.
func (e *Enhancer) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()
	p, err := e.factory(cfg)
	if errors.Is(err, ErrDisabled) {
		p, err = nil, nil
	}
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg, e.provider = cfg, p
	e.mu.Unlock()
	if p == nil {
		e.log.Info("AI enhancement disabled")
	} else {
		e.log.Info("AI enhancement configured", "provider", p.Name(), "model", cfg.Model)
	}
	return nil
}

// Enabled reports whether a provider is configured.
func (e *Enhancer) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider != nil
}

// Status returns the current provider and model.
func (e *Enhancer) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.provider == nil {
		return Status{}
	}
	return Status{Enabled: true, Provider: e.provider.Name(), Model: e.cfg.Model}
}

// Config returns the active configuration, API key included.
func (e *Enhancer) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *Enhancer) current() (Provider, Config) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider, e.cfg
}

// Enhance asks the provider for data matching req.Schema and validates it.
func (e *Enhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResult, error) {
	p, cfg := e.current()
	if p == nil {
		return nil, ErrDisabled
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > MaxCount {
		return nil, fmt.Errorf("count must be at most %d", MaxCount)
	}
	schema, err := compileSchema(req.Schema)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	comp, err := p.Complete(ctx, systemPrompt, buildPrompt(req))
	if err != nil {
		e.metrics.ObserveAIRequest(p.Name(), "error")
		e.log.Warn("AI request failed", "provider", p.Name(), "error", err)
		return nil, err
	}

	data, n, err := validateOutput(schema, comp.Text, req.Count)
	if err != nil {
		e.metrics.ObserveAIRequest(p.Name(), "invalid")
		e.log.Warn("AI response rejected", "provider", p.Name(), "error", err)
		return nil, err
	}
	e.metrics.ObserveAIRequest(p.Name(), "ok")

	return &EnhanceResult{
		Data:         data,
		Count:        n,
		Provider:     p.Name(),
		Model:        cfg.Model,
		InputTokens:  comp.InputTokens,
		OutputTokens: comp.OutputTokens,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: schema is required", ErrInvalidSchema)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return s, nil
}

// validateOutput parses text as JSON and validates it, item by item when
// count > 1. Arrays shorter than count are rejected and longer ones are cut
// to count. It returns the number of values in the result.
func validateOutput(schema *jsonschema.Schema, text string, count int) (json.RawMessage, int, error) {
	cleaned := stripCodeBlocks(text)
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, 0, fmt.Errorf("%w: not JSON: %v", ErrInvalidResponse, err)
	}

	if count <= 1 {
		if err := schema.Validate(v); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return json.RawMessage(cleaned), 1, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, 0, fmt.Errorf("%w: expected a JSON array of %d items", ErrInvalidResponse, count)
	}
	if len(items) < count {
		return nil, 0, fmt.Errorf("%w: expected %d items, got %d", ErrInvalidResponse, count, len(items))
	}
	items = items[:count]
	for i, item := range v.([]any)[:count] {
		if err := schema.Validate(item); err != nil {
			return nil, 0, fmt.Errorf("%w: item %d: %v", ErrInvalidResponse, i, err)
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return data, len(items), nil
}
