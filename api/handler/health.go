package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
	"github.com/jacostaf/tcg-ygoripper-sub000/pool"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports pool utilisation and degrades status when every browser is
// checked out.
func Health(bp pool.BrowserProvisioner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := bp.Stats()

		status := "healthy"
		if stats.Initialized && stats.Available == 0 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}

// PoolStats returns a handler for GET /api/v1/pool/stats.
func PoolStats(bp pool.BrowserProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, bp.Stats())
	}
}
