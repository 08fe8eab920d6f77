package metrics

import (
	"strconv"
	"time"
)

// Set holds the sandboxd metrics.
//
// Label conventions: method is the upper-case HTTP method, status is the
// numeric response code, environment is an environment ID.
type Set struct {
	// AdminRequestsTotal counts admin API requests. Labels: method, route, status
	AdminRequestsTotal *Counter
	// AdminRequestDuration tracks admin API latency in seconds. Labels: method, route
	AdminRequestDuration *Histogram

	// MockCallsTotal counts calls served by mock environments. Labels: environment, method, status
	MockCallsTotal *Counter
	// MockCallDuration tracks mock call latency in seconds. Labels: environment
	MockCallDuration *Histogram

	// EnvironmentsRunning is the number of running environments.
	EnvironmentsRunning *Gauge
	// SpecsTotal is the number of stored specifications.
	SpecsTotal *Gauge
	// WebSocketClients is the number of connected event clients.
	WebSocketClients *Gauge

	// AIRequestsTotal counts AI enhancer calls. Labels: provider, outcome
	AIRequestsTotal *Counter

	// Runtime collects Go runtime gauges.
	Runtime *RuntimeCollector
}

// NewSet registers the sandboxd metrics on r.
func NewSet(r *Registry) *Set {
	s := &Set{
		AdminRequestsTotal: r.NewCounter(
			"sandboxd_admin_requests_total",
			"Total number of admin API requests",
			"method", "route", "status",
		),
		AdminRequestDuration: r.NewHistogram(
			"sandboxd_admin_request_duration_seconds",
			"Duration of admin API requests in seconds",
			DefaultBuckets,
			"method", "route",
		),
		MockCallsTotal: r.NewCounter(
			"sandboxd_mock_calls_total",
			"Total number of calls served by mock environments",
			"environment", "method", "status",
		),
		MockCallDuration: r.NewHistogram(
			"sandboxd_mock_call_duration_seconds",
			"Duration of mock environment calls in seconds",
			DefaultBuckets,
			"environment",
		),
		EnvironmentsRunning: r.NewGauge(
			"sandboxd_environments_running",
			"Number of running mock environments",
		),
		SpecsTotal: r.NewGauge(
			"sandboxd_specs_total",
			"Number of stored specifications",
		),
		WebSocketClients: r.NewGauge(
			"sandboxd_websocket_clients",
			"Number of connected event stream clients",
		),
		AIRequestsTotal: r.NewCounter(
			"sandboxd_ai_requests_total",
			"Total number of AI enhancer requests",
			"provider", "outcome",
		),
	}
	uptime := r.NewGauge("sandboxd_uptime_seconds", "Server uptime in seconds")
	s.Runtime = NewRuntimeCollector(r, uptime)
	return s
}

// ObserveAdminRequest records one admin API request.
func (s *Set) ObserveAdminRequest(method, route string, status int, d time.Duration) {
	if s == nil {
		return
	}
	if vec, err := s.AdminRequestsTotal.WithLabels(method, route, strconv.Itoa(status)); err == nil {
		_ = vec.Inc()
	}
	if vec, err := s.AdminRequestDuration.WithLabels(method, route); err == nil {
		vec.Observe(d.Seconds())
	}
}

// ObserveMockCall records one call served by an environment.
func (s *Set) ObserveMockCall(environment, method string, status int, d time.Duration) {
	if s == nil {
		return
	}
	if vec, err := s.MockCallsTotal.WithLabels(environment, method, strconv.Itoa(status)); err == nil {
		_ = vec.Inc()
	}
	if vec, err := s.MockCallDuration.WithLabels(environment); err == nil {
		vec.Observe(d.Seconds())
	}
}

// SetEnvironmentsRunning sets the running environment gauge.
func (s *Set) SetEnvironmentsRunning(n int) {
	if s == nil {
		return
	}
	_ = s.EnvironmentsRunning.Set(float64(n))
}

// SetSpecs sets the stored specification gauge.
func (s *Set) SetSpecs(n int) {
	if s == nil {
		return
	}
	_ = s.SpecsTotal.Set(float64(n))
}

// SetWebSocketClients sets the event client gauge.
func (s *Set) SetWebSocketClients(n int) {
	if s == nil {
		return
	}
	_ = s.WebSocketClients.Set(float64(n))
}

// ObserveAIRequest records one AI call. outcome is "ok", "error" or "invalid".
func (s *Set) ObserveAIRequest(provider, outcome string) {
	if s == nil {
		return
	}
	if vec, err := s.AIRequestsTotal.WithLabels(provider, outcome); err == nil {
		_ = vec.Inc()
	}
}
