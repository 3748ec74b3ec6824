package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/nkiryanov/bemserver/internal/handlers/render"
)

// Client IP address of the connection itself
// Headers are ignored: any client may send X-Forwarded-For
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Resolves client IP behind reverse proxies
// X-Forwarded-For is honored only if connection comes from a trusted proxy
type IPResolver struct {
	trusted []netip.Prefix
}

// Trusted proxies are given as CIDR ranges or single addresses
func NewIPResolver(trustedProxies []string) (*IPResolver, error) {
	trusted := make([]netip.Prefix, 0, len(trustedProxies))

	for _, value := range trustedProxies {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if strings.Contains(value, "/") {
			prefix, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q. Err: %w", value, err)
			}
			trusted = append(trusted, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q. Err: %w", value, err)
		}
		addr = addr.Unmap()
		trusted = append(trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return &IPResolver{trusted: trusted}, nil
}

func (res *IPResolver) isTrusted(value string) bool {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range res.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Client IP: the rightmost X-Forwarded-For hop not added by a trusted proxy
// Falls back to connection address if connection is not from a trusted proxy
func (res *IPResolver) ClientIP(r *http.Request) string {
	remote := ClientIP(r)
	if res == nil || !res.isTrusted(remote) {
		return remote
	}

	var hops []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(value, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}

	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		if _, err := netip.ParseAddr(hops[i]); err != nil {
			// Garbage in the chain: trust nothing beyond the last known hop
			return client
		}
		client = hops[i]
		if !res.isTrusted(hops[i]) {
			return client
		}
	}
	return client
}

type window struct {
	count   int
	resetAt time.Time
}

// Fixed window in-memory rate limiter
type RateLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu          sync.Mutex
	windows     map[string]*window
	nextCleanup time.Time
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow returns true if the key has not exceeded limit in current window
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanup(now)

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(rl.period)}
		return true
	}

	w.count++
	return w.count <= rl.limit
}

// Drop finished windows at most once a period
func (rl *RateLimiter) cleanup(now time.Time) {
	if now.Before(rl.nextCleanup) {
		return
	}

	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
	rl.nextCleanup = now.Add(rl.period)
}

func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r)) {
				render.ServiceError(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
