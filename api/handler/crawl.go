package handler

import (
	"net/http"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/gin-gonic/gin"
)

// Crawl is the running crawl as seen by the control endpoints.
type Crawl interface {
	Snapshot() models.CrawlSnapshot
	Stop() bool
}

// Resolver delivers the manual challenge resolution signal.
type Resolver interface {
	Resolve() bool
}

// ReportFunc returns the final report, or nil while the crawl runs.
type ReportFunc func() *models.Report

// Status returns a handler for GET /api/v1/crawl/status.
func Status(crawl Crawl, report ReportFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.StatusResponse{
			Success:  true,
			Snapshot: crawl.Snapshot(),
			Report:   report(),
		})
	}
}

// Resume returns a handler for POST /api/v1/crawl/resume.
//
// Delivered is false when no challenge was pending. Such a signal is dropped.
func Resume(r Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.ActionResponse{
			Success:   true,
			Action:    "resume",
			Delivered: r.Resolve(),
		})
	}
}

// Stop returns a handler for POST /api/v1/crawl/stop. The crawl flushes
// what it has and aborts at its next page boundary.
func Stop(crawl Crawl) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusAccepted, models.ActionResponse{
			Success:   true,
			Action:    "stop",
			Delivered: crawl.Stop(),
		})
	}
}
