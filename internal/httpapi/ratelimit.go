package httpapi

import (
	"net/http"
	"time"

	"manifold/internal/apierr"
)

// RateLimiter is the abstract token-bucket admission hook: a single
// chan struct{}-backed counter, not a pluggable rate-limiting algorithm
// registry (spec.md's Non-goals exclude the latter as a feature). It is
// wired into the server's middleware chain but, with zero capacity, admits
// every request unconditionally — rate limiting itself is unconfigured by
// default.
type RateLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
}

// NewRateLimiter builds a token bucket of the given capacity, refilled by
// one token every refillInterval. A non-positive capacity disables limiting
// entirely: NewRateLimiter returns nil, and rateLimitMiddleware treats a nil
// *RateLimiter as pass-through.
func NewRateLimiter(capacity int, refillInterval time.Duration) *RateLimiter {
	if capacity <= 0 {
		return nil
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}
	rl := &RateLimiter{
		tokens: make(chan struct{}, capacity),
		stop:   make(chan struct{}),
	}
	for i := 0; i < capacity; i++ {
		rl.tokens <- struct{}{}
	}
	go rl.refill(refillInterval)
	return rl
}

func (rl *RateLimiter) refill(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
				// bucket already full
			}
		}
	}
}

// Allow reports whether a request may proceed, consuming a token if so. A
// nil receiver always allows, so callers can pass around an unconfigured
// limiter without a nil check at every call site.
func (rl *RateLimiter) Allow() bool {
	if rl == nil {
		return true
	}
	select {
	case <-rl.tokens:
		return true
	default:
		return false
	}
}

// Close stops the refill goroutine. Safe to call on a nil receiver.
func (rl *RateLimiter) Close() {
	if rl == nil {
		return
	}
	close(rl.stop)
}

// rateLimitMiddleware rejects requests with a rate_limited envelope once
// the bucket is empty. A nil limiter is a no-op pass-through.
func rateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow() {
				respondError(w, r, apierr.RateLimited("request rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
