package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/sandbox/pkg/ai"
	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/events"
	"github.com/getmockd/sandbox/pkg/httputil"
	"github.com/getmockd/sandbox/pkg/store"
)

const (
	settingsCollection = "settings"
	settingsKey        = "current"
)

// Settings are the runtime-editable options persisted in the store. They
// override the configuration file once saved.
type Settings struct {
	AI        AISettings `json:"ai"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AISettings configure the AI enhancer.
type AISettings struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"apiKey,omitempty"`
	Model     string `json:"model,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

// SettingsView is Settings as returned to clients, with secrets masked.
type SettingsView struct {
	AI        AISettingsView `json:"ai"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// AISettingsView masks the API key.
type AISettingsView struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"apiKey"`
	APIKeySet bool   `json:"apiKeySet"`
	Model     string `json:"model,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// SettingsUpdate is the body of PUT /api/admin/settings. Nil fields keep
// their value.
type SettingsUpdate struct {
	AI *AISettingsUpdate `json:"ai"`
}

// AISettingsUpdate changes the AI settings. An empty APIKey disables the
// enhancer; sending back the masked key leaves it unchanged.
type AISettingsUpdate struct {
	Provider  *string `json:"provider" validate:"omitempty,oneof=openai anthropic openrouter"`
	APIKey    *string `json:"apiKey" validate:"omitempty,max=500"`
	Model     *string `json:"model" validate:"omitempty,max=200"`
	Endpoint  *string `json:"endpoint" validate:"omitempty,url"`
	MaxTokens *int    `json:"maxTokens" validate:"omitempty,min=0,max=200000"`
}

type settingsStore struct {
	c *store.Collection[Settings]
}

func newSettingsStore(kv store.KV) *settingsStore {
	return &settingsStore{c: store.NewCollection[Settings](kv, settingsCollection)}
}

// load returns the saved settings, or nil when none were saved.
func (s *settingsStore) load(ctx context.Context) (*Settings, error) {
	st, err := s.c.Get(ctx, settingsKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return st, err
}

func (s *settingsStore) save(ctx context.Context, st *Settings) error {
	return s.c.Put(ctx, settingsKey, st)
}

// maskKey keeps enough of a key to recognize it.
func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return strings.Repeat("*", len(key))
	default:
		return key[:3] + "..." + key[len(key)-4:]
	}
}

func aiSettings(cfg ai.Config) AISettings {
	return AISettings{
		Provider:  cfg.Provider,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Endpoint:  cfg.Endpoint,
		MaxTokens: cfg.MaxTokens,
	}
}

// RestoreSettings applies settings saved by a previous process.
func (a *API) RestoreSettings(ctx context.Context) error {
	st, err := a.settings.load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if st == nil {
		return nil
	}
	cfg := a.enhancer.Config()
	cfg.Provider = st.AI.Provider
	cfg.APIKey = st.AI.APIKey
	cfg.Model = st.AI.Model
	cfg.Endpoint = st.AI.Endpoint
	cfg.MaxTokens = st.AI.MaxTokens
	if err := a.enhancer.Reconfigure(cfg); err != nil {
		return fmt.Errorf("apply saved settings: %w", err)
	}
	a.log.Info("restored saved settings", "updatedAt", st.UpdatedAt)
	return nil
}

func (a *API) settingsView(ctx context.Context) SettingsView {
	cfg := a.enhancer.Config()
	view := SettingsView{AI: AISettingsView{
		Provider:  cfg.Provider,
		APIKey:    maskKey(cfg.APIKey),
		APIKeySet: cfg.APIKey != "",
		Model:     cfg.Model,
		Endpoint:  cfg.Endpoint,
		MaxTokens: cfg.MaxTokens,
		Enabled:   a.enhancer.Enabled(),
	}}
	if st, err := a.settings.load(ctx); err == nil && st != nil {
		view.UpdatedAt = &st.UpdatedAt
	}
	return view
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, a.settingsView(r.Context()))
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if !a.decodeJSON(w, r, &req, false) {
		return
	}
	if err := config.Struct(&req); err != nil {
		a.writeServiceError(w, err, "update settings")
		return
	}

	cfg := a.enhancer.Config()
	if u := req.AI; u != nil {
		if u.Provider != nil && *u.Provider != cfg.Provider {
			// Model and endpoint defaults belong to the old provider.
			cfg.Provider = *u.Provider
			cfg.Model, cfg.Endpoint = "", ""
		}
		if u.APIKey != nil && *u.APIKey != maskKey(cfg.APIKey) {
			cfg.APIKey = strings.TrimSpace(*u.APIKey)
		}
		if u.Model != nil {
			cfg.Model = *u.Model
		}
		if u.Endpoint != nil {
			cfg.Endpoint = *u.Endpoint
		}
		if u.MaxTokens != nil {
			cfg.MaxTokens = *u.MaxTokens
		}
	}

	if err := a.enhancer.Reconfigure(cfg); err != nil {
		a.writeServiceError(w, err, "update settings")
		return
	}
	st := &Settings{AI: aiSettings(a.enhancer.Config()), UpdatedAt: time.Now().UTC()}
	if err := a.settings.save(r.Context(), st); err != nil {
		a.writeServiceError(w, err, "save settings")
		return
	}

	view := a.settingsView(r.Context())
	a.log.Info("settings updated", "aiProvider", view.AI.Provider, "aiEnabled", view.AI.Enabled)
	a.hub.Publish(events.TypeSettingsUpdated, view)
	httputil.WriteOK(w, view)
}
