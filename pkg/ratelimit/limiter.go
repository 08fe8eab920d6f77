// Package ratelimit throttles expensive admin operations per client address
// with a token bucket for each client.
package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// DefaultIdleTTL is how long a client's bucket is kept without activity.
const DefaultIdleTTL = 10 * time.Minute

// Config configures a Limiter.
type Config struct {
	// PerMinute is the sustained number of requests a client may make.
	PerMinute float64
	// Burst is the bucket capacity. Zero means max(1, PerMinute/6).
	Burst int
	// TrustedProxies lists addresses or CIDR ranges whose X-Forwarded-For
	// and X-Real-IP headers are honoured.
	TrustedProxies []string
	IdleTTL        time.Duration
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter is a per-client token bucket limiter. It is safe for concurrent
// use. Stale buckets are pruned lazily on Allow.
type Limiter struct {
	perSecond float64
	burst     float64
	idleTTL   time.Duration
	proxies   []netip.Prefix

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
	now       func() time.Time
}

// New creates a Limiter. It returns nil when cfg.PerMinute is not positive;
// a nil Limiter allows everything.
func New(cfg Config) *Limiter {
	if cfg.PerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.PerMinute/6))
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	l := &Limiter{
		perSecond: cfg.PerMinute / 60,
		burst:     float64(burst),
		idleTTL:   ttl,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
	for _, p := range cfg.TrustedProxies {
		if prefix, ok := parsePrefix(p); ok {
			l.proxies = append(l.proxies, prefix)
		}
	}
	return l
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	if l == nil {
		return 0
	}
	return int(l.burst)
}

// Allow takes a token for client. It reports whether the request may
// proceed, how many whole tokens remain, and how long until the next token
// when it may not.
func (l *Limiter) Allow(client string) (ok bool, remaining int, retryAfter time.Duration) {
	if l == nil {
		return true, 0, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.idleTTL {
		l.prune(now)
	}

	b, found := l.buckets[client]
	if !found {
		b = &bucket{tokens: l.burst, seen: now}
		l.buckets[client] = b
	}
	b.tokens = min(l.burst, b.tokens+now.Sub(b.seen).Seconds()*l.perSecond)
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	wait := time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
	return false, 0, max(wait, time.Second)
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) prune(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastPrune = now
}

// ClientAddr returns the address a request is attributed to. Forwarding
// headers are only honoured when the peer is a trusted proxy. X-Forwarded-For
// is read from the right, skipping trusted hops, so entries a client
// prepends itself are never used.
func (l *Limiter) ClientAddr(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if l == nil || !l.trusted(peer) {
		return peer
	}
	if hops := r.Header.Values("X-Forwarded-For"); len(hops) > 0 {
		var addrs []string
		for _, h := range hops {
			addrs = append(addrs, strings.Split(h, ",")...)
		}
		for i := len(addrs) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(addrs[i]))
			if err != nil {
				// Unparseable hops cannot be attributed past.
				return peer
			}
			if !l.trusted(addr.String()) {
				return addr.Unmap().String()
			}
		}
		return peer
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	return peer
}

func (l *Limiter) trusted(peer string) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parsePrefix(s string) (netip.Prefix, bool) {
	s = strings.TrimSpace(s)
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Masked(), true
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, false
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), true
}
