package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tbourn/chemvision-backend/internal/apierr"
)

const (
	// bucketTTL is how long an idle caller's bucket is kept.
	bucketTTL = 10 * time.Minute
	// sweepEvery is the number of lookups between idle-bucket sweeps.
	sweepEvery = 5000
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByClientIP buckets callers by client IP address. The API is
// unauthenticated, so the address is the only stable identity.
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local, per-caller token bucket limiter built on
// golang.org/x/time/rate. Routes can be exempted (health checks, scrapes) or
// weighted so that one request spends several tokens (image uploads).
// It is safe for concurrent use once configured.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	ttl     time.Duration
	lookups uint64

	exempt map[string]struct{}
	weight map[string]int
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst (values <= 0 become 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		ttl:     bucketTTL,
		exempt:  make(map[string]struct{}),
		weight:  make(map[string]int),
	}
}

// Exempt registers route paths (as returned by c.FullPath) that bypass the
// limiter. Call before serving.
func (rl *RateLimiter) Exempt(paths ...string) *RateLimiter {
	for _, p := range paths {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// Weigh makes each request to path cost n tokens. n is clamped to
// [1, burst] so a weighted route can always be served from a full bucket.
// Call before serving.
func (rl *RateLimiter) Weigh(path string, n int) *RateLimiter {
	rl.weight[path] = min(max(n, 1), rl.burst)
	return rl
}

func (rl *RateLimiter) cost(path string) int {
	if n, ok := rl.weight[path]; ok {
		return n
	}
	return 1
}

// limiterFor returns the bucket for key, creating it on first use. Every
// sweepEvery lookups, buckets idle for at least ttl are dropped; the sweep
// runs before the lookup so a stale bucket is not refreshed by it.
func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// retryAfter estimates whole seconds until n tokens are available, at
// least 1. The trial reservation is cancelled so it does not consume tokens.
func retryAfter(lim *rate.Limiter, n int, now time.Time) int {
	r := lim.ReserveN(now, n)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return max(1, int(math.Ceil(d.Seconds())))
}

// Handler enforces the limits. Denied requests get the RATE_LIMITED
// envelope with a Retry-After header and retry_after_seconds in details.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if _, ok := rl.exempt[path]; ok {
			c.Next()
			return
		}

		now := time.Now()
		n := rl.cost(path)
		lim := rl.limiterFor(rl.keyFn(c), now)
		if lim.AllowN(now, n) {
			c.Next()
			return
		}

		secs := retryAfter(lim, n, now)
		c.Header("Retry-After", strconv.Itoa(secs))
		apierr.Abort(c, apierr.CodeRateLimited, "Rate limit exceeded",
			map[string]any{"retry_after_seconds": secs})
	}
}
