// Error handling for the admin API. Known sentinel errors map to specific
// status codes; anything else is logged and reported generically.

package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/getmockd/sandbox/pkg/ai"
	"github.com/getmockd/sandbox/pkg/analytics"
	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/httputil"
	"github.com/getmockd/sandbox/pkg/mockoon"
	"github.com/getmockd/sandbox/pkg/specs"
	"github.com/getmockd/sandbox/pkg/store"
)

// Safe error messages for client responses.
const (
	ErrMsgInternalError    = "An internal error occurred"
	ErrMsgInvalidJSON      = "Invalid JSON in request body"
	ErrMsgOperationFailed  = "Operation failed"
	ErrMsgValidationFailed = "Request validation failed"
	ErrMsgNotFound         = "Resource not found"
	ErrMsgAIDisabled       = "AI enhancement is disabled; configure an API key in settings"
)

// sanitizeError logs err server-side and returns a message safe to send to
// the client.
func sanitizeError(err error, log *slog.Logger, operation string, details ...any) string {
	if log != nil {
		args := []any{"operation", operation, "error", err}
		args = append(args, details...)
		log.Error("operation failed", args...)
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrMsgNotFound
	}
	return ErrMsgOperationFailed
}

// writeServiceError maps an error returned by a service to a response.
// Errors that describe the caller's mistake are returned verbatim.
func (a *API) writeServiceError(w http.ResponseWriter, err error, operation string, details ...any) {
	var verr *config.ValidationError
	var perr *ai.ProviderError

	switch {
	case errors.As(err, &verr):
		httputil.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed", ErrMsgValidationFailed, verr.Fields)
	case errors.Is(err, specs.ErrNotFound):
		httputil.WriteNotFound(w, "spec_not_found", err.Error())
	case errors.Is(err, mockoon.ErrNotFound):
		httputil.WriteNotFound(w, "environment_not_found", err.Error())
	case errors.Is(err, specs.ErrInvalidSpec), errors.Is(err, specs.ErrEmpty):
		httputil.WriteBadRequest(w, "invalid_spec", err.Error())
	case errors.Is(err, mockoon.ErrInvalidPort):
		httputil.WriteBadRequest(w, "invalid_port", err.Error())
	case errors.Is(err, mockoon.ErrAlreadyRunning):
		httputil.WriteConflict(w, "already_running", err.Error())
	case errors.Is(err, mockoon.ErrPortInUse):
		httputil.WriteConflict(w, "port_in_use", err.Error())
	case errors.Is(err, mockoon.ErrNoFreePort):
		httputil.WriteConflict(w, "no_free_port", err.Error())
	case errors.Is(err, analytics.ErrInvalidFilter):
		httputil.WriteBadRequest(w, "invalid_filter", err.Error())
	case errors.Is(err, ai.ErrDisabled):
		httputil.WriteServiceUnavailable(w, "ai_disabled", ErrMsgAIDisabled)
	case errors.Is(err, ai.ErrUnknownProvider), errors.Is(err, ai.ErrInvalidSchema):
		httputil.WriteBadRequest(w, "invalid_request", err.Error())
	case errors.Is(err, ai.ErrRateLimited):
		httputil.WriteError(w, http.StatusTooManyRequests, "rate_limited", "The AI provider is rate limiting requests; try again later")
	case errors.Is(err, ai.ErrInvalidResponse):
		a.log.Warn("AI provider returned unusable output", "operation", operation, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "invalid_ai_response", err.Error())
	case errors.As(err, &perr):
		a.log.Warn("AI provider request failed", "operation", operation, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "provider_error", perr.Message)
	case errors.Is(err, store.ErrReadOnly):
		httputil.WriteError(w, http.StatusForbidden, "read_only", err.Error())
	default:
		httputil.WriteInternalError(w, "internal_error", sanitizeError(err, a.log, operation, details...))
	}
}
