package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solace-app/solace-gateway/internal/quota"
)

// defaultRetryAfter is used when a denial has no known reset time.
const defaultRetryAfter = 24 * time.Hour

// Classify derives the metered operation from the request target.
// AI-calling endpoints consume ai_request, mutating methods consume write,
// everything else is a read. This runs before any ledger is consulted
// because it decides which ledger applies.
func Classify(method, path string) quota.Operation {
	if strings.Contains(path, "/chat") {
		return quota.OpAIRequest
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return quota.OpWrite
	}

	return quota.OpRead
}

// Quota gates requests against the subject's daily ledgers. It only checks;
// charging happens downstream where the true cost of the operation is
// known. Anonymous requests are rejected outright - quota enforcement never
// runs for an unverified identity.
func Quota(manager *quota.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString("uid")
		if subject == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			c.Abort()
			return
		}

		op := Classify(c.Request.Method, c.Request.URL.Path)
		c.Set("operation", string(op))

		result := manager.Check(c.Request.Context(), subject, op, 1)

		if !result.Allowed {
			retryAfter := int(defaultRetryAfter.Seconds())
			if !result.ResetTime.IsZero() {
				if secs := int(time.Until(result.ResetTime).Seconds()); secs > 0 {
					retryAfter = secs
				}
			}

			c.Header("X-Quota-Remaining", "0")
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))

			body := gin.H{
				"error":      "Quota exceeded",
				"message":    fmt.Sprintf("Daily %s quota exceeded. Resets in %d hours.", op, (retryAfter+3599)/3600),
				"quota_type": op,
			}
			if !result.ResetTime.IsZero() {
				body["reset_time"] = result.ResetTime.UTC().Format(time.RFC3339)
			}

			c.JSON(http.StatusTooManyRequests, body)
			c.Abort()
			return
		}

		c.Header("X-Quota-Remaining", fmt.Sprintf("%d", result.Remaining))

		c.Next()
	}
}
