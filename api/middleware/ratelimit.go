package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/ratelimit"
)

// RateLimit returns per-identity (API key or IP) rate limiting middleware
// backed by an injected limiter.
//
// The limiter is a constructor dependency instead of a map owned by the
// middleware, so its eviction goroutine has an owner that stops it on
// shutdown and tests can substitute a permissive one.
func RateLimit(l ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity, exists := c.Get("api_key")
		if !exists {
			identity = c.ClientIP()
		}

		if !l.Allow(identity.(string)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
