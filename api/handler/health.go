package handler

import (
	"net/http"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status is "paused" while the crawl waits for a challenge to be solved.
func Health(crawl Crawl, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := crawl.Snapshot()

		status := "healthy"
		if snap.Paused {
			status = "paused"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Phase:   snap.Phase,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: Version,
		})
	}
}
