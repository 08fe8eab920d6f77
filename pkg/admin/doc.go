// Package admin provides the sandboxd REST API.
//
// The API is served on its own port (4300 by default) and groups its
// endpoints by concern:
//
//   - /api/specs: import and manage OpenAPI specifications
//   - /api/mockoon: create and run Mockoon environments built from specs
//   - /api/ai: generate schema-valid data through the configured provider
//   - /api/analytics: query and clear calls recorded by running environments
//   - /api/admin: settings, the custom faker registry and reset
//
// Changes are broadcast to WebSocket clients connected to /ws, and metrics
// are exposed in Prometheus text format at /metrics.
//
// When an API key is configured every endpoint except /api/health requires
// it, passed as the X-API-Key header, an "Authorization: Bearer" header or
// the api_key query parameter (for WebSocket clients).
//
// The two enhancement endpoints call a paid provider and can be rate
// limited per client with WithEnhanceRateLimit.
package admin
