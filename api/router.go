// Package api is the optional local control server for a running crawl.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/api/handler"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/api/middleware"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/config"
	"github.com/gin-gonic/gin"
)

// Per-identity limit on the crawl control endpoints.
const (
	controlRPS   = 5
	controlBurst = 10
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Crawl:   Auth (if keys are configured) → RateLimit
//
// Health stays outside auth.
func NewRouter(crawl handler.Crawl, resolver handler.Resolver, report handler.ReportFunc, cfg config.ControlConfig, startTime time.Time) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(crawl, startTime))

	protected := v1.Group("/crawl")
	protected.Use(middleware.Auth(cfg.APIKeys))
	protected.Use(middleware.RateLimit(controlRPS, controlBurst))

	protected.GET("/status", handler.Status(crawl, report))
	protected.POST("/resume", handler.Resume(resolver))
	protected.POST("/stop", handler.Stop(crawl))

	return r
}

// Serve runs the control server on addr until ctx ends, then drains it.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("control server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("control server forced shutdown", "error", err)
		return err
	}
	slog.Info("control server drained gracefully")
	return nil
}
