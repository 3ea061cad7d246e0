package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to the identity whose bucket it draws from.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP buckets authenticated requests per session user and the
// rest (POST /sessions) per client IP. The prefixes keep the two namespaces
// apart.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter hands out one token bucket per key. Buckets idle for longer
// than the idle TTL are dropped during a sweep that runs at most once per
// TTL. The limiter is process-local: instances sharing a Redis feed bus
// still budget independently.
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// RateOption customizes a RateLimiter.
type RateOption func(*RateLimiter)

// WithIdleTTL sets how long an unused bucket survives. Default 10 minutes.
func WithIdleTTL(d time.Duration) RateOption {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.idle = d
		}
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) RateOption {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter refills rps tokens per second up to burst (at least 1).
func NewRateLimiter(rps float64, burst int, key KeyFunc, opts ...RateOption) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		key:     key,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, o := range opts {
		o(rl)
	}
	rl.lastSweep = rl.now()
	return rl
}

// limiterFor returns the bucket of key, sweeping idle buckets first so that
// an expired entry is replaced by a full one.
func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idle {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.idle {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

// size reports the number of live buckets.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Handler enforces the limit. Idempotent replays pass without spending a
// token. A refused request gets 429 rate_limited with Retry-After set to the
// whole seconds until the next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.key(c)
		now := rl.now()
		res := rl.limiterFor(key, now).ReserveN(now, 1)
		wait := res.DelayFrom(now)
		if res.OK() && wait == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		rateLimited.WithLabelValues(keyKind(key)).Inc()
		c.Header("Retry-After", retryAfter(res.OK(), wait))
		abortWithError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}

func retryAfter(ok bool, wait time.Duration) string {
	if !ok || wait == rate.InfDuration {
		return "60"
	}
	return strconv.Itoa(max(1, int(math.Ceil(wait.Seconds()))))
}

func keyKind(key string) string {
	kind, _, found := strings.Cut(key, ":")
	if !found {
		return "other"
	}
	return kind
}
