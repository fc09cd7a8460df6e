package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// CacheStatsProvider reports price-cache occupancy. *pricecache.Cache
// satisfies it.
type CacheStatsProvider interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// CacheStats returns a handler for GET /api/v1/cache/stats.
func CacheStats(cache CacheStatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := cache.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeCacheUnavailable,
					Message: "cache store is unavailable",
				},
			})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
