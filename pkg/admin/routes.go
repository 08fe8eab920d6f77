package admin

import "net/http"

// registerRoutes sets up all admin API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	// Health and status
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/status", a.handleStatus)

	// Specifications
	mux.HandleFunc("GET /api/specs", a.handleListSpecs)
	mux.HandleFunc("POST /api/specs", a.handleImportSpec)
	mux.HandleFunc("GET /api/specs/{id}", a.handleGetSpec)
	mux.HandleFunc("PUT /api/specs/{id}", a.handleUpdateSpec)
	mux.HandleFunc("DELETE /api/specs/{id}", a.handleDeleteSpec)
	mux.HandleFunc("GET /api/specs/{id}/content", a.handleGetSpecContent)
	mux.HandleFunc("GET /api/specs/{id}/endpoints", a.handleGetSpecEndpoints)

	// Mockoon environments
	mux.HandleFunc("GET /api/mockoon/status", a.handleMockoonStatus)
	mux.HandleFunc("GET /api/mockoon/environments", a.handleListEnvironments)
	mux.HandleFunc("POST /api/mockoon/environments", a.handleCreateEnvironment)
	mux.HandleFunc("GET /api/mockoon/environments/{id}", a.handleGetEnvironment)
	mux.HandleFunc("DELETE /api/mockoon/environments/{id}", a.handleDeleteEnvironment)
	mux.HandleFunc("POST /api/mockoon/environments/{id}/start", a.handleStartEnvironment)
	mux.HandleFunc("POST /api/mockoon/environments/{id}/stop", a.handleStopEnvironment)
	mux.HandleFunc("POST /api/mockoon/environments/{id}/restart", a.handleRestartEnvironment)
	mux.Handle("POST /api/mockoon/environments/{id}/enhance", a.enhanceLimit.Wrap(noWriteDeadline(http.HandlerFunc(a.handleEnhanceEnvironment))))
	mux.HandleFunc("GET /api/mockoon/environments/{id}/logs", a.handleEnvironmentLogs)
	mux.HandleFunc("GET /api/mockoon/environments/{id}/export", a.handleExportEnvironment)

	// AI
	mux.HandleFunc("GET /api/ai/status", a.handleAIStatus)
	mux.Handle("POST /api/ai/enhance", a.enhanceLimit.Wrap(noWriteDeadline(http.HandlerFunc(a.handleAIEnhance))))

	// Analytics
	mux.HandleFunc("GET /api/analytics/calls", a.handleListCalls)
	mux.HandleFunc("DELETE /api/analytics/calls", a.handleClearCalls)
	mux.HandleFunc("GET /api/analytics/summary", a.handleAnalyticsSummary)

	// Settings and maintenance
	mux.HandleFunc("GET /api/admin/settings", a.handleGetSettings)
	mux.HandleFunc("PUT /api/admin/settings", a.handleUpdateSettings)
	mux.HandleFunc("GET /api/admin/fakers", a.handleListFakers)
	mux.HandleFunc("POST /api/admin/reset", a.handleReset)
	if a.logs != nil {
		mux.HandleFunc("GET /api/admin/logs", a.handleServerLogs)
	}

	// Event stream
	mux.Handle("GET /ws", a.hub)

	if a.registry != nil {
		mux.Handle("GET /metrics", a.registry.Handler())
	}
}
