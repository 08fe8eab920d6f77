package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getmockd/sandbox/pkg/ai"
	"github.com/getmockd/sandbox/pkg/httputil"
	"github.com/getmockd/sandbox/pkg/mockoon"
)

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Version      string                 `json:"version"`
	Uptime       int64                  `json:"uptime"`
	StartedAt    time.Time              `json:"startedAt"`
	Specs        int                    `json:"specs"`
	Environments *mockoon.StatusSummary `json:"environments"`
	AI           ai.Status              `json:"ai"`
	Analytics    AnalyticsStatus        `json:"analytics"`
	Clients      int                    `json:"websocketClients"`
}

// AnalyticsStatus reports recorder usage.
type AnalyticsStatus struct {
	Calls    int `json:"calls"`
	Capacity int `json:"capacity"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status: "ok",
		Uptime: int64(a.Uptime().Seconds()),
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	specCount, err := a.specs.Count(ctx)
	if err != nil {
		a.writeServiceError(w, err, "count specs")
		return
	}
	envs, err := a.envs.Status(ctx)
	if err != nil {
		a.writeServiceError(w, err, "environment status")
		return
	}
	httputil.WriteOK(w, StatusResponse{
		Version:      a.version,
		Uptime:       int64(a.Uptime().Seconds()),
		StartedAt:    a.startTime.UTC(),
		Specs:        specCount,
		Environments: envs,
		AI:           a.enhancer.Status(),
		Analytics: AnalyticsStatus{
			Calls:    a.analytics.Len(),
			Capacity: a.analytics.Capacity(),
		},
		Clients: a.hub.Count(),
	})
}

// decodeJSON decodes the request body into v and writes a 400 response on
// failure. It reports whether decoding succeeded.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := httputil.DecodeJSON(w, r, v, a.maxBodyBytes)
	if err == nil || (allowEmpty && errors.Is(err, httputil.ErrEmptyBody)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
		return false
	}
	httputil.WriteBadRequest(w, "invalid_json", ErrMsgInvalidJSON+": "+err.Error())
	return false
}

// queryInt reads a non-negative integer query parameter, writing a 400
// response when it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		httputil.WriteBadRequest(w, "invalid_parameter", key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
