// Package metrics provides Prometheus-compatible metrics for sandboxd.
//
// It writes the Prometheus text exposition format (text/plain; version=0.0.4)
// directly. Supported metric types:
//   - Counter: monotonically increasing value (e.g., request counts)
//   - Gauge: value that can go up or down (e.g., running environments)
//   - Histogram: distribution of values with configurable buckets
//
// All metrics are safe for concurrent use.
//
// # Usage
//
//	reg := metrics.NewRegistry()
//	m := metrics.NewSet(reg)
//	m.ObserveAdminRequest("GET", "/api/specs", 200, 12*time.Millisecond)
//	http.Handle("/metrics", reg.Handler())
//
// A nil *Set is valid and records nothing, so components can take one
// optionally.
package metrics
