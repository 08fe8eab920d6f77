package admin

import (
	"net/http"
	"time"

	"github.com/getmockd/sandbox/pkg/analytics"
	"github.com/getmockd/sandbox/pkg/httputil"
)

// defaultCallLimit applies when GET /api/analytics/calls has no limit.
const defaultCallLimit = 100

// CallsResponse is returned by GET /api/analytics/calls.
type CallsResponse struct {
	Calls  []*analytics.Call `json:"calls"`
	Count  int               `json:"count"`
	Total  int               `json:"total"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
}

func (a *API) handleListCalls(w http.ResponseWriter, r *http.Request) {
	f, err := analytics.ParseFilter(r.URL.Query())
	if err != nil {
		a.writeServiceError(w, err, "list calls")
		return
	}
	if f.Limit == 0 {
		f.Limit = defaultCallLimit
	}
	calls, total, err := a.analytics.Query(f)
	if err != nil {
		a.writeServiceError(w, err, "list calls")
		return
	}
	httputil.WriteOK(w, CallsResponse{
		Calls:  calls,
		Count:  len(calls),
		Total:  total,
		Offset: f.Offset,
		Limit:  f.Limit,
	})
}

// handleClearCalls removes recorded calls, optionally only those of
// ?environmentId=.
func (a *API) handleClearCalls(w http.ResponseWriter, r *http.Request) {
	removed := a.analytics.Clear(r.URL.Query().Get("environmentId"))
	httputil.WriteOK(w, map[string]int{"removed": removed})
}

// handleAnalyticsSummary aggregates calls. ?bucket= is a Go duration
// ("1m", "30s") setting the timeline interval.
func (a *API) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	f, err := analytics.ParseFilter(r.URL.Query())
	if err != nil {
		a.writeServiceError(w, err, "analytics summary")
		return
	}
	var bucket time.Duration
	if v := r.URL.Query().Get("bucket"); v != "" {
		bucket, err = time.ParseDuration(v)
		if err != nil || bucket <= 0 {
			httputil.WriteBadRequest(w, "invalid_parameter", "bucket must be a positive duration such as 1m")
			return
		}
	}
	sum, err := a.analytics.Summary(f, bucket)
	if err != nil {
		a.writeServiceError(w, err, "analytics summary")
		return
	}
	httputil.WriteOK(w, sum)
}
