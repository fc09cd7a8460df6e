// Package metrics exposes Prometheus instrumentation for the price service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the service updates.
type Metrics struct {
	ScrapesTotal   *prometheus.CounterVec
	ScrapeDuration prometheus.Histogram
	CacheHitsTotal *prometheus.CounterVec
	PoolSize       prometheus.Gauge
	PoolAvailable  prometheus.Gauge
	PoolWaitTime   prometheus.Gauge
}

// New registers the service's collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		ScrapesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ygoprices_scrapes_total",
			Help: "Total price scrape requests by outcome.",
		}, []string{"outcome"}), // success, failure, cached, capacity
		ScrapeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ygoprices_scrape_duration_seconds",
			Help:    "Wall time of one price request, cache hits included.",
			Buckets: []float64{0.05, 0.25, 1, 5, 10, 30, 60, 120},
		}),
		CacheHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ygoprices_cache_lookups_total",
			Help: "Price requests by cache outcome.",
		}, []string{"result"}), // cached, scraped
		PoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ygoprices_pool_size",
			Help: "Current number of pooled browser processes.",
		}),
		PoolAvailable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ygoprices_pool_available",
			Help: "Browser processes currently idle.",
		}),
		PoolWaitTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ygoprices_pool_avg_wait_seconds",
			Help: "Average browser checkout wait over the recent window.",
		}),
	}
}

// RecordCacheLookup counts whether a finished request was answered from the
// cache or required a scrape.
func (m *Metrics) RecordCacheLookup(result string) {
	m.CacheHitsTotal.WithLabelValues(result).Inc()
}

// RecordScrape counts one finished request.
func (m *Metrics) RecordScrape(outcome string, seconds float64) {
	m.ScrapesTotal.WithLabelValues(outcome).Inc()
	m.ScrapeDuration.Observe(seconds)
}

// UpdatePool refreshes the pool gauges from a stats snapshot.
func (m *Metrics) UpdatePool(size, available int, avgWait float64) {
	m.PoolSize.Set(float64(size))
	m.PoolAvailable.Set(float64(available))
	m.PoolWaitTime.Set(avgWait)
}
