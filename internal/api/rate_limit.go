package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// clientRateLimiter gives every client IP its own token bucket. Buckets of
// idle clients expire so the table stays bounded.
type clientRateLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// newClientRateLimiter returns nil when perMinute is 0, which disables limiting.
func newClientRateLimiter(perMinute int, burst int, now func() time.Time) *clientRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	if now == nil {
		now = time.Now
	}
	return &clientRateLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientIdleTTL),
		limit:   rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		burst:   burst,
		now:     now,
	}
}

func (l *clientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets.Get(client)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
	}
	l.buckets.Add(client, bucket)
	l.mu.Unlock()

	return bucket.AllowN(l.now(), 1)
}

func rateLimit(limiter *clientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		writeError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}
