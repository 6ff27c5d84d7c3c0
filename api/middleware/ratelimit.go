package middleware

import (
	"net/http"
	"sync"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware. The control server lives as long as one crawl, so identities
// are never evicted.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	getLimiter := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[identity]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[identity] = l
		}
		return l
	}

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.ClientIP()
		if key, ok := c.Get(identityKey); ok {
			identity = key.(string)
		}

		if !getLimiter(identity).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrKindRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
