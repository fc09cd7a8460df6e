package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jacostaf/tcg-ygoripper-sub000/metrics"
	"github.com/jacostaf/tcg-ygoripper-sub000/models"
	"github.com/jacostaf/tcg-ygoripper-sub000/pool"
)

// PriceScraper answers one price request. *scraper.Orchestrator satisfies it.
type PriceScraper interface {
	ScrapeCardPrice(ctx context.Context, req *models.PriceRequest) *models.PriceResult
}

// Price returns the handler for POST /api/v1/prices.
//
// Before entering the scrape workflow it probes the pool: a saturated pool
// (initialized, nothing available, at max size) rejects immediately with 503
// and a Retry-After derived from the observed average wait, instead of
// queueing the request behind browsers that will not free up in time.
func Price(sc PriceScraper, bp pool.BrowserProvisioner, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "card_number, card_name and card_rarity are required: " + err.Error(),
				},
			})
			return
		}

		stats := bp.Stats()
		if stats.Initialized && stats.Available == 0 && stats.PoolSize >= stats.MaxSize {
			retryAfter := int(stats.AvgWaitTime) + 10
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeCapacityExceeded,
					Message: "all browsers are busy, retry later",
				},
				RetryAfter: retryAfter,
			})
			m.RecordScrape("capacity", 0)
			return
		}

		start := time.Now()
		result := sc.ScrapeCardPrice(c.Request.Context(), &req)
		m.RecordScrape(outcome(result), time.Since(start).Seconds())
		if result.Cached {
			m.RecordCacheLookup("cached")
		} else {
			m.RecordCacheLookup("scraped")
		}

		after := bp.Stats()
		m.UpdatePool(after.PoolSize, after.Available, after.AvgWaitTime)

		c.JSON(statusFor(result), result)
	}
}

func outcome(r *models.PriceResult) string {
	switch {
	case r.Cached:
		return "cached"
	case r.Success:
		return "success"
	default:
		return "failure"
	}
}

// statusFor maps workflow outcomes onto HTTP statuses. Null-price scrapes
// are 200s carrying success=false; only definitive "this card/rarity does
// not exist here" outcomes are 404.
func statusFor(r *models.PriceResult) int {
	if r.Error == nil {
		return http.StatusOK
	}
	switch r.Error.Code {
	case models.ErrCodeNoResults, models.ErrCodeNoVariant, models.ErrCodeInvalidRarity:
		return http.StatusNotFound
	case models.ErrCodeCapacityExceeded:
		return http.StatusServiceUnavailable
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}
