// Package api wires the HTTP surface of the price service.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacostaf/tcg-ygoripper-sub000/api/handler"
	"github.com/jacostaf/tcg-ygoripper-sub000/api/middleware"
	"github.com/jacostaf/tcg-ygoripper-sub000/config"
	"github.com/jacostaf/tcg-ygoripper-sub000/metrics"
	"github.com/jacostaf/tcg-ygoripper-sub000/pool"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics endpoints are intentionally outside auth so monitoring
// probes always work.
func NewRouter(sc handler.PriceScraper, bp pool.BrowserProvisioner, cache handler.CacheStatsProvider, m *metrics.Metrics, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// Health is unauthenticated.
	v1.GET("/health", handler.Health(bp, startTime))

	// Everything else goes through auth and rate limiting.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/prices", handler.Price(sc, bp, m))
	protected.GET("/pool/stats", handler.PoolStats(bp))
	protected.GET("/cache/stats", handler.CacheStats(cache))

	return r
}
