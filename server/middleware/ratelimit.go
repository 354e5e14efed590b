package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotelab/feedgate/resilience"
)

// rateLimitWindow is the trailing window the HTTP guard measures against.
const rateLimitWindow = time.Minute

// RateLimitConfig configures the HTTP-level rate limiting middleware. This
// guard sits in front of the per-provider sliding windows: it protects the
// service itself, not the upstream feeds.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute per key.
	RequestsPerMinute int
	// KeyFunc extracts the rate limit key from a request. Defaults to client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a Gin middleware enforcing a per-key sliding window,
// backed by the same limiter used for provider budgets. Responses carry
// X-RateLimit headers; denied requests get a 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}

	limiter := resilience.NewSlidingLimiter(resilience.SlidingLimiterConfig{})

	// Idle clients drop out of the map so a long-running process does not
	// hold one bucket for every IP it has ever seen.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Prune(10 * time.Minute)
		}
	}()

	return func(c *gin.Context) {
		d := limiter.Check(cfg.KeyFunc(c), cfg.RequestsPerMinute, rateLimitWindow)
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.ResetAt)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// retryAfterSeconds converts the window reset time into whole seconds,
// rounded up so clients do not retry a moment too early.
func retryAfterSeconds(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Seconds()) + 1
	if secs < 1 {
		return 1
	}
	return secs
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}
