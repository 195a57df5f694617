package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"context-engine/internal/common/logging"
)

const (
	// limiterIdleTTL is how long an idle client bucket survives before the
	// next sweep discards it.
	limiterIdleTTL = 10 * time.Minute

	// maxTrackedClients caps the bucket map so an address scan cannot grow
	// it without bound. Hitting the cap forces an immediate sweep.
	maxTrackedClients = 10000
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket to incoming requests.
// Clients are keyed by remote IP, honoring X-Forwarded-For when present.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	logger    logging.Logger
}

// NewRateLimiter builds a limiter allowing requestsPerSecond sustained with
// the given burst per client.
func NewRateLimiter(requestsPerSecond float64, burst int, logger logging.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets:   make(map[string]*clientBucket),
		limit:     rate.Limit(requestsPerSecond),
		burst:     burst,
		lastSweep: time.Now(),
		logger:    logger,
	}
}

// Handler is the middleware entry point. Requests over the limit get a 429
// with a Retry-After hint; everything else passes through with the standard
// X-RateLimit headers attached.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := rl.bucketFor(clientKey(r))

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%g", float64(rl.limit)))
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			rl.logger.Warn("Request rate limited",
				logging.String("client", clientKey(r)),
				logging.String("path", r.URL.Path),
			)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastSweep) > limiterIdleTTL || len(rl.buckets) > maxTrackedClients {
		rl.sweep()
	}

	entry, ok := rl.buckets[key]
	if !ok {
		entry = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// sweep drops buckets idle past limiterIdleTTL. Caller holds rl.mu.
func (rl *RateLimiter) sweep() {
	cutoff := time.Now().Add(-limiterIdleTTL)
	for key, entry := range rl.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = time.Now()
}

func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
