package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/Harvey-AU/linkstream/internal/util"
	"golang.org/x/time/rate"
)

// RateLimiter represents a rate limiting system based on client IP addresses
type RateLimiter struct {
	limits map[string]*ipLimiter
	mu     sync.Mutex
	rate   rate.Limit
	burst  int
	ttl    time.Duration
}

// ipLimiter wraps a token bucket rate limiter specific to an IP address
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests per client IP
// with the given burst capacity.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*ipLimiter),
		rate:   rate.Limit(perSecond),
		burst:  burst,
		ttl:    10 * time.Minute,
	}
}

// Allow checks if a request from this IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limits[ip]
	if !exists {
		rl.evictStale(now)
		limiter = &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limits[ip] = limiter
	}
	limiter.lastSeen = now

	return limiter.limiter.AllowN(now, 1)
}

// evictStale drops limiters for clients idle longer than the TTL. Callers hold mu.
func (rl *RateLimiter) evictStale(now time.Time) {
	for ip, l := range rl.limits {
		if now.Sub(l.lastSeen) > rl.ttl {
			delete(rl.limits, ip)
		}
	}
}

// Middleware rejects requests over the per-IP limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(util.GetClientIP(r)) {
			TooManyRequests(w, r, "Too many requests", time.Second)
			return
		}
		next.ServeHTTP(w, r)
	})
}
