package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/getmockd/sandbox/pkg/httputil"
)

// Wrap limits next with l. Rejected requests get 429 rate_limited with a
// Retry-After header. A nil l returns next unchanged.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, retry := l.Allow(l.ClientAddr(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		httputil.WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many enhancement requests; try again later")
	})
}

// WrapFunc is Wrap for a handler function.
func (l *Limiter) WrapFunc(next http.HandlerFunc) http.Handler {
	return l.Wrap(next)
}
