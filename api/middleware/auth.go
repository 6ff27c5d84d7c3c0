package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/gin-gonic/gin"
)

// identityKey is where Auth stores the accepted key for RateLimit.
const identityKey = "api_key"

// Auth guards the crawl control endpoints with static API keys, accepted as
// "X-API-Key: <key>" or "Authorization: Bearer <key>". With no keys
// configured every request passes.
func Auth(apiKeys []string) gin.HandlerFunc {
	var keys [][]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		presented := requestKey(c)
		switch {
		case presented == "":
			deny(c, "API key required in X-API-Key or Authorization: Bearer")
		case !known(keys, presented):
			deny(c, "API key not accepted")
		default:
			c.Set(identityKey, presented)
			c.Next()
		}
	}
}

func known(keys [][]byte, presented string) bool {
	p := []byte(presented)
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, p) == 1 {
			return true
		}
	}
	return false
}

func requestKey(c *gin.Context) string {
	if k := c.GetHeader("X-API-Key"); k != "" {
		return k
	}
	if k, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(k)
	}
	return ""
}

func deny(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: models.ErrKindUnauthorized, Message: msg},
	})
}
