package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestNewDisabled(t *testing.T) {
	l := New(Config{})
	assert.Nil(t, l)

	ok, _, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 0, l.Burst())
	assert.Equal(t, 0, l.Clients())
}

func TestDefaultBurst(t *testing.T) {
	assert.Equal(t, 5, New(Config{PerMinute: 30}).Burst())
	assert.Equal(t, 1, New(Config{PerMinute: 2}).Burst())
	assert.Equal(t, 3, New(Config{PerMinute: 60, Burst: 3}).Burst())
}

func TestAllowExhaustsAndRefills(t *testing.T) {
	l, now := newTestLimiter(Config{PerMinute: 60, Burst: 2})

	ok, remaining, _ := l.Allow("a")
	require.True(t, ok)
	assert.Equal(t, 1, remaining)
	ok, remaining, _ = l.Allow("a")
	require.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, retry := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)

	// Other clients have their own bucket.
	ok, _, _ = l.Allow("b")
	assert.True(t, ok)

	*now = now.Add(time.Second)
	ok, _, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestRetryAfterReflectsRate(t *testing.T) {
	l, _ := newTestLimiter(Config{PerMinute: 6, Burst: 1})
	ok, _, _ := l.Allow("a")
	require.True(t, ok)
	ok, _, retry := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 10*time.Second, retry)
}

func TestIdleClientsArePruned(t *testing.T) {
	l, now := newTestLimiter(Config{PerMinute: 60, IdleTTL: time.Minute})
	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Clients())

	*now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Clients())
}

func TestClientAddr(t *testing.T) {
	l := New(Config{PerMinute: 60, TrustedProxies: []string{"10.0.0.0/8", "192.168.1.5", "bogus"}})
	require.Len(t, l.proxies, 2)

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"no port", "203.0.113.7", "", "", "203.0.113.7"},
		{"untrusted ignores headers", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted cidr", "10.1.2.3:80", "198.51.100.1", "", "198.51.100.1"},
		{"rightmost untrusted hop", "10.1.2.3:80", "203.0.113.9, 198.51.100.1", "", "198.51.100.1"},
		{"skips trusted hops", "10.1.2.3:80", "198.51.100.1, 10.9.9.9, 192.168.1.5", "", "198.51.100.1"},
		{"all hops trusted", "10.1.2.3:80", "10.9.9.9", "", "10.1.2.3"},
		{"trusted single address", "192.168.1.5:80", "198.51.100.2", "", "198.51.100.2"},
		{"x-real-ip fallback", "10.1.2.3:80", "", "198.51.100.3", "198.51.100.3"},
		{"invalid forwarded value", "10.1.2.3:80", "not-an-ip", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, l.ClientAddr(r))
		})
	}
}

func TestForgedForwardedForSharesBudget(t *testing.T) {
	l, _ := newTestLimiter(Config{PerMinute: 1, Burst: 1, TrustedProxies: []string{"10.0.0.1"}})
	h := l.WrapFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	allowed := 0
	for i := range 5 {
		r := httptest.NewRequest(http.MethodPost, "/api/ai/enhance", nil)
		r.RemoteAddr = "10.0.0.1:4000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d, 198.51.100.7", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code == http.StatusNoContent {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestWrap(t *testing.T) {
	l, _ := newTestLimiter(Config{PerMinute: 6, Burst: 1})
	calls := 0
	h := l.WrapFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/enhance", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ai/enhance", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"rate_limited"`)
	assert.Equal(t, 1, calls)
}

func TestWrapNilPassesThrough(t *testing.T) {
	var l *Limiter
	h := http.NewServeMux()
	assert.Same(t, h, l.Wrap(h))
}
