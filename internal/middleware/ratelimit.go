package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nsharda/edge-gateway/internal/metrics"
	"github.com/nsharda/edge-gateway/internal/ratelimit"
)

// RateLimit is the admission stage. Limit headers are set whenever the
// resolved tier carries a limit; an unexpected limiter failure admits the
// request (fail open) and logs.
func RateLimit(limiter *ratelimit.Service, m *metrics.Metrics, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		tier := c.GetString("tier")

		decision := safeCheck(limiter, ip, tier, log)

		if decision.Limit > 0 {
			remaining := decision.Remaining
			if remaining < 0 {
				remaining = 0
			}

			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", ceilSeconds(decision.ResetMs)))
		}

		if !decision.Allowed {
			if m != nil {
				m.RateLimitHits.Inc()
			}

			retryAfter := ceilSeconds(decision.ResetMs)
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"retryAfter": retryAfter,
			})
			return
		}

		c.Next()
	}
}

func safeCheck(limiter *ratelimit.Service, ip, tier string, log logrus.FieldLogger) (decision ratelimit.Decision) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("rate limiter failed, admitting request")
			decision = ratelimit.Unlimited()
		}
	}()
	return limiter.Check(ip, tier)
}

func ceilSeconds(ms int64) int64 {
	return (ms + 999) / 1000
}
