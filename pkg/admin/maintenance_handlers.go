package admin

import (
	"net/http"

	"github.com/getmockd/sandbox/pkg/httputil"
	"github.com/getmockd/sandbox/pkg/logging"
)

// FakerInfo describes one registered faker.
type FakerInfo struct {
	Name    string `json:"name"`
	Example any    `json:"example,omitempty"`
}

// ResetResponse reports what POST /api/admin/reset did.
type ResetResponse struct {
	StoppedEnvironments int `json:"stoppedEnvironments"`
	ClearedCalls        int `json:"clearedCalls"`
}

// handleListFakers lists the custom faker registry with a sample value
// from each generator.
func (a *API) handleListFakers(w http.ResponseWriter, r *http.Request) {
	names := a.fakers.Names()
	out := make([]FakerInfo, 0, len(names))
	for _, name := range names {
		info := FakerInfo{Name: name}
		if v, err := a.fakers.Generate(name); err == nil {
			info.Example = v
		}
		out = append(out, info)
	}
	httputil.WriteList(w, "fakers", out)
}

// handleReset stops every environment and clears recorded calls. Specs and
// environment definitions are kept.
func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := a.envs.Status(ctx)
	if err != nil {
		a.writeServiceError(w, err, "reset")
		return
	}
	cleared := a.analytics.Clear("")
	if err := a.envs.StopAll(ctx); err != nil {
		a.writeServiceError(w, err, "reset")
		return
	}
	a.log.Info("sandbox reset", "stopped", st.Running, "clearedCalls", cleared)
	httputil.WriteOK(w, ResetResponse{StoppedEnvironments: st.Running, ClearedCalls: cleared})
}

// handleServerLogs returns recent server log records, oldest first.
// ?level= keeps records at or above that level.
func (a *API) handleServerLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultLogLimit)
	if !ok {
		return
	}
	records := a.logs.Records(0)
	if lv := r.URL.Query().Get("level"); lv != "" {
		minLevel := logging.ParseLevel(lv)
		kept := records[:0]
		for _, rec := range records {
			if logging.ParseLevel(rec.Level) >= minLevel {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	httputil.WriteList(w, "logs", records)
}
