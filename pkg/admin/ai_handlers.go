package admin

import (
	"net/http"

	"github.com/getmockd/sandbox/pkg/ai"
	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/httputil"
)

// AIStatusResponse is returned by GET /api/ai/status.
type AIStatusResponse struct {
	ai.Status
	Providers []string `json:"providers"`
}

func (a *API) handleAIStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, AIStatusResponse{
		Status:    a.enhancer.Status(),
		Providers: ai.SupportedProviders(),
	})
}

func (a *API) handleAIEnhance(w http.ResponseWriter, r *http.Request) {
	var req ai.EnhanceRequest
	if !a.decodeJSON(w, r, &req, false) {
		return
	}
	if err := config.Struct(&req); err != nil {
		a.writeServiceError(w, err, "ai enhance")
		return
	}
	res, err := a.enhancer.Enhance(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err, "ai enhance")
		return
	}
	httputil.WriteOK(w, res)
}
