package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solace-app/solace-gateway/internal/ratelimit"
)

// RateLimit is the coarse burst smoother in front of the quota check. One
// process-local bucket per authenticated subject, falling back to client IP
// when no subject is set yet — so on authenticated groups it must be mounted
// after RequireAuth. Buckets reset on restart, which is fine here: hard
// limits are the ledger's job.
func RateLimit(registry *ratelimit.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("uid")
		if key == "" {
			key = c.ClientIP()
		}

		if !registry.Consume(key, 1) {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many requests",
				"message": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int(registry.Tokens(key))))

		c.Next()
	}
}
