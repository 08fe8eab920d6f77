package admin

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getmockd/sandbox/pkg/ai"
	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/httputil"
	"github.com/getmockd/sandbox/pkg/mockoon"
	"github.com/getmockd/sandbox/pkg/specs"
)

// defaultLogLimit is used when GET .../logs has no limit parameter.
const defaultLogLimit = 200

// EnhanceEnvironmentRequest is the optional body of POST .../enhance.
type EnhanceEnvironmentRequest struct {
	Hint string `json:"hint" validate:"omitempty,max=2000"`
}

// EnhanceEnvironmentResponse reports what the enhancer changed.
type EnhanceEnvironmentResponse struct {
	Environment *mockoon.Record       `json:"environment"`
	Result      *ai.EnvironmentResult `json:"result"`
}

// LogsResponse is returned by GET .../logs.
type LogsResponse struct {
	ID    string   `json:"id"`
	Logs  []string `json:"logs"`
	Count int      `json:"count"`
}

func (a *API) handleMockoonStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.envs.Status(r.Context())
	if err != nil {
		a.writeServiceError(w, err, "environment status")
		return
	}
	httputil.WriteOK(w, st)
}

func (a *API) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	all, err := a.envs.List(r.Context())
	if err != nil {
		a.writeServiceError(w, err, "list environments")
		return
	}
	out := make([]*mockoon.Record, len(all))
	for i, rec := range all {
		out[i] = rec.Summary()
	}
	httputil.WriteList(w, "environments", out)
}

func (a *API) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var req mockoon.CreateRequest
	if !a.decodeJSON(w, r, &req, false) {
		return
	}
	if err := config.Struct(&req); err != nil {
		a.writeServiceError(w, err, "create environment")
		return
	}

	rec, err := a.envs.Create(r.Context(), req)
	switch {
	case err == nil:
		httputil.WriteCreated(w, rec)
	case rec == nil:
		a.writeServiceError(w, err, "create environment", "spec", req.SpecID)
	default:
		// The record exists but did not start; the details carry its ID.
		a.writeLifecycle(w, rec, err, "create environment", rec.ID)
	}
}

func (a *API) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	rec, err := a.envs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err, "get environment", "id", r.PathValue("id"))
		return
	}
	httputil.WriteOK(w, rec)
}

func (a *API) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	if err := a.envs.Delete(r.Context(), r.PathValue("id")); err != nil {
		a.writeServiceError(w, err, "delete environment", "id", r.PathValue("id"))
		return
	}
	httputil.WriteNoContent(w)
}

func (a *API) handleStartEnvironment(w http.ResponseWriter, r *http.Request) {
	rec, err := a.envs.Start(r.Context(), r.PathValue("id"))
	a.writeLifecycle(w, rec, err, "start environment", r.PathValue("id"))
}

func (a *API) handleStopEnvironment(w http.ResponseWriter, r *http.Request) {
	rec, err := a.envs.Stop(r.Context(), r.PathValue("id"))
	a.writeLifecycle(w, rec, err, "stop environment", r.PathValue("id"))
}

func (a *API) handleRestartEnvironment(w http.ResponseWriter, r *http.Request) {
	rec, err := a.envs.Restart(r.Context(), r.PathValue("id"))
	a.writeLifecycle(w, rec, err, "restart environment", r.PathValue("id"))
}

// writeLifecycle reports the result of a start, stop or restart. A runner
// failure leaves the record in the error state; its message is the
// runner's, which is what the user needs to fix the environment.
func (a *API) writeLifecycle(w http.ResponseWriter, rec *mockoon.Record, err error, operation, envID string) {
	switch {
	case err == nil:
		httputil.WriteOK(w, rec.Summary())
	case rec != nil && rec.Status == mockoon.StatusError && !errors.Is(err, mockoon.ErrAlreadyRunning):
		a.log.Warn("environment lifecycle failed", "operation", operation, "id", envID, "error", err)
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, "runner_failed", rec.Error, rec.Summary())
	default:
		a.writeServiceError(w, err, operation, "id", envID)
	}
}

// handleEnhanceEnvironment regenerates response bodies of the environment
// with the AI enhancer and saves the result, restarting it if running.
func (a *API) handleEnhanceEnvironment(w http.ResponseWriter, r *http.Request) {
	var req EnhanceEnvironmentRequest
	if !a.decodeJSON(w, r, &req, true) {
		return
	}
	if err := config.Struct(&req); err != nil {
		a.writeServiceError(w, err, "enhance environment")
		return
	}
	if !a.enhancer.Enabled() {
		a.writeServiceError(w, ai.ErrDisabled, "enhance environment")
		return
	}

	ctx := r.Context()
	envID := r.PathValue("id")
	rec, err := a.envs.Get(ctx, envID)
	if err != nil {
		a.writeServiceError(w, err, "enhance environment", "id", envID)
		return
	}
	if rec.Environment == nil {
		httputil.WriteConflict(w, "no_environment", "environment has no routes to enhance")
		return
	}
	doc, err := a.specs.Document(ctx, rec.SpecID)
	if errors.Is(err, specs.ErrNotFound) {
		httputil.WriteConflict(w, "spec_missing", "the specification this environment was built from no longer exists")
		return
	}
	if err != nil {
		a.writeServiceError(w, err, "enhance environment", "id", envID)
		return
	}

	env := rec.Environment.Clone()
	res, err := a.enhancer.EnhanceEnvironment(ctx, doc, env, req.Hint)
	if err != nil {
		a.writeServiceError(w, err, "enhance environment", "id", envID)
		return
	}
	if res.Updated > 0 {
		if rec, err = a.envs.UpdateEnvironment(ctx, envID, env); err != nil {
			a.writeServiceError(w, err, "save enhanced environment", "id", envID)
			return
		}
	}
	httputil.WriteOK(w, EnhanceEnvironmentResponse{Environment: rec.Summary(), Result: res})
}

func (a *API) handleEnvironmentLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultLogLimit)
	if !ok {
		return
	}
	envID := r.PathValue("id")
	lines, err := a.envs.Logs(r.Context(), envID, limit)
	if err != nil {
		a.writeServiceError(w, err, "environment logs", "id", envID)
		return
	}
	httputil.WriteOK(w, LogsResponse{ID: envID, Logs: lines, Count: len(lines)})
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// handleExportEnvironment downloads the environment as a Mockoon data file.
func (a *API) handleExportEnvironment(w http.ResponseWriter, r *http.Request) {
	envID := r.PathValue("id")
	rec, err := a.envs.Get(r.Context(), envID)
	if err != nil {
		a.writeServiceError(w, err, "export environment", "id", envID)
		return
	}
	data, err := a.envs.Export(r.Context(), envID)
	if err != nil {
		a.writeServiceError(w, err, "export environment", "id", envID)
		return
	}

	name := strings.Trim(unsafeFilename.ReplaceAllString(rec.Name, "-"), "-")
	if name == "" {
		name = rec.ID
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
