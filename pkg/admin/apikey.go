package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/getmockd/sandbox/pkg/httputil"
)

// APIKeyHeader is the header carrying the admin API key.
const APIKeyHeader = "X-API-Key"

// exemptPaths are reachable without a key.
var exemptPaths = map[string]bool{
	"/api/health": true,
}

// apiKeyAuth rejects requests without the configured key. An empty key
// disables the check.
func apiKeyAuth(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	want := []byte(key)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		provided := providedAPIKey(r)
		if provided == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing_api_key",
				"API key required. Provide via X-API-Key header, Authorization: Bearer <key>, or api_key query parameter.")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), want) != 1 {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func providedAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Browsers can't set headers on WebSocket upgrades.
	return r.URL.Query().Get("api_key")
}
