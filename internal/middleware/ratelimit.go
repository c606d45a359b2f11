package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"landrace-threat/internal/config"
)

// RateLimiter implements a fixed window limit per client address. Idle
// visitors expire from the cache.
type RateLimiter struct {
	enabled  bool
	requests int
	duration time.Duration
	visitors *cache.Cache
	mu       sync.Mutex
	now      func() time.Time
}

type visitor struct {
	windowStart time.Time
	tokens      int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	duration := cfg.Duration
	if duration <= 0 {
		duration = time.Minute
	}
	return &RateLimiter{
		enabled:  cfg.Enabled && cfg.Requests > 0,
		requests: cfg.Requests,
		duration: duration,
		visitors: cache.New(3*duration, time.Minute),
		now:      time.Now,
	}
}

// Allow consumes one request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if cached, ok := rl.visitors.Get(key); ok {
		v := cached.(*visitor)
		if now.Sub(v.windowStart) >= rl.duration {
			v.windowStart = now
			v.tokens = rl.requests
		}
		if v.tokens == 0 {
			return false
		}
		v.tokens--
		rl.visitors.SetDefault(key, v)
		return true
	}

	rl.visitors.SetDefault(key, &visitor{windowStart: now, tokens: rl.requests - 1})
	return true
}

// Limit rate limits requests based on IP address
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(getIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.duration.Seconds())))
			respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getIP gets the client IP address from the request
func getIP(r *http.Request) string {
	// The first X-Forwarded-For entry is the original client
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
