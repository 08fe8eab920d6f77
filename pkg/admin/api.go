package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/sandbox/pkg/ai"
	"github.com/getmockd/sandbox/pkg/analytics"
	"github.com/getmockd/sandbox/pkg/events"
	"github.com/getmockd/sandbox/pkg/fakers"
	"github.com/getmockd/sandbox/pkg/logging"
	"github.com/getmockd/sandbox/pkg/metrics"
	"github.com/getmockd/sandbox/pkg/mockoon"
	"github.com/getmockd/sandbox/pkg/ratelimit"
	"github.com/getmockd/sandbox/pkg/specs"
	"github.com/getmockd/sandbox/pkg/store"
)

// Deps are the services the API serves. All fields are required.
type Deps struct {
	Specs        *specs.Service
	Environments *mockoon.Manager
	Enhancer     *ai.Enhancer
	Analytics    *analytics.Recorder
	Hub          *events.Hub
	// Store holds the persisted settings.
	Store  store.KV
	Fakers *fakers.Registry
}

// API is the admin HTTP handler.
type API struct {
	specs     *specs.Service
	envs      *mockoon.Manager
	enhancer  *ai.Enhancer
	analytics *analytics.Recorder
	hub       *events.Hub
	fakers    *fakers.Registry
	settings  *settingsStore

	logs         *logging.Ring
	registry     *metrics.Registry
	metrics      *metrics.Set
	log          *slog.Logger
	version      string
	apiKey       string
	cors         CORSConfig
	maxBodyBytes int64
	enhanceLimit *ratelimit.Limiter

	startTime time.Time
	handler   http.Handler
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the API logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMetrics exposes r at /metrics and records admin requests in s.
func WithMetrics(r *metrics.Registry, s *metrics.Set) Option {
	return func(a *API) {
		a.registry = r
		a.metrics = s
	}
}

// WithLogRing exposes the server's recent log records at /api/admin/logs.
func WithLogRing(r *logging.Ring) Option {
	return func(a *API) { a.logs = r }
}

// WithVersion sets the version reported by /api/status.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithAPIKey requires key on every request except health checks. An empty
// key disables authentication.
func WithAPIKey(key string) Option {
	return func(a *API) { a.apiKey = key }
}

// WithAllowedOrigins restricts CORS to origins. Empty allows all.
func WithAllowedOrigins(origins ...string) Option {
	return func(a *API) { a.cors.AllowedOrigins = origins }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithEnhanceRateLimit throttles the AI enhancement endpoints per client.
// A nil limiter leaves them unthrottled.
func WithEnhanceRateLimit(l *ratelimit.Limiter) Option {
	return func(a *API) { a.enhanceLimit = l }
}

// New builds the API.
func New(deps Deps, opts ...Option) *API {
	a := &API{
		specs:        deps.Specs,
		envs:         deps.Environments,
		enhancer:     deps.Enhancer,
		analytics:    deps.Analytics,
		hub:          deps.Hub,
		fakers:       deps.Fakers,
		settings:     newSettingsStore(deps.Store),
		log:          logging.Nop(),
		version:      "dev",
		cors:         DefaultCORSConfig(),
		maxBodyBytes: 10 << 20,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fakers == nil {
		a.fakers = fakers.Default
	}
	a.log = a.log.With("component", "admin")

	mux := http.NewServeMux()
	a.registerRoutes(mux)

	var h http.Handler = mux
	h = apiKeyAuth(a.apiKey, h)
	h = corsMiddleware(a.cors, h)
	h = loggingMiddleware(a.log, a.metrics, h)
	h = recoveryMiddleware(a.log, h)
	a.handler = h
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Uptime returns how long the API has been running.
func (a *API) Uptime() time.Duration {
	return time.Since(a.startTime)
}
