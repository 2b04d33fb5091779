package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/internal/config"
	"github.com/webpeel/webpeel/internal/ratelimit"
	"github.com/webpeel/webpeel/models"
)

// RateLimit returns sliding-window admission-control middleware. Identity
// is selected as API key > CF-Connecting-IP > X-Real-IP > peer address >
// "unknown". Every response carries X-RateLimit-Limit,
// X-RateLimit-Remaining, and X-RateLimit-Reset; denials additionally carry
// Retry-After and a 429 JSON error envelope.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	limiter := ratelimit.NewSlidingWindow(time.Duration(cfg.WindowMs) * time.Millisecond)
	stop := make(chan struct{})
	limiter.RunCleanupLoop(5*time.Minute, stop)

	return func(c *gin.Context) {
		identity := identify(c)
		decision := limiter.CheckLimit(identity, cfg.Limit)

		resetAt := time.Now().Add(time.Duration(cfg.WindowMs) * time.Millisecond).Unix()
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				models.NewEnvelope(models.KindRateLimited, "rate limit exceeded, please slow down").
					WithExtra("retryAfter", decision.RetryAfter))
			return
		}

		c.Next()
	}
}

// identify picks the rate-limit identity for a request: API key (set by
// the auth middleware) first, then well-known proxy headers, then the
// direct peer address, falling back to "unknown".
func identify(c *gin.Context) string {
	if key, ok := c.Get("api_key"); ok {
		if s, ok := key.(string); ok && s != "" {
			return s
		}
	}
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
