package models

// PriceRequest is the payload for POST /api/v1/prices.
type PriceRequest struct {
	// CardNumber is the set+number identifier, e.g. "LOB-001". Required.
	CardNumber string `json:"card_number" binding:"required"`

	// CardName is the printed card name used for the search query. Required.
	CardName string `json:"card_name" binding:"required"`

	// CardRarity is the requested print rarity, e.g. "Ultra Rare". Required.
	CardRarity string `json:"card_rarity" binding:"required"`

	// ArtVariant is an optional alternate-artwork discriminator.
	// Accepts numeric ("7"), ordinal ("7th"), word ("seventh") and named
	// ("Arkana") forms; all are normalized before matching.
	ArtVariant string `json:"art_variant,omitempty"`

	// ForceRefresh bypasses the cache freshness check and always scrapes.
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// PriceResult is the outcome of one price request.
type PriceResult struct {
	// Success is true only when extraction produced at least one non-null
	// price and no error occurred during the scrape.
	Success bool `json:"success"`

	// Cached indicates the prices were served from the cache rather than a
	// live scrape.
	Cached bool `json:"cached"`

	CardNumber string `json:"card_number"`
	CardName   string `json:"card_name"`
	CardRarity string `json:"card_rarity"`
	ArtVariant string `json:"art_variant,omitempty"`

	// TCGPrice is the lowest listing price. Null when extraction failed.
	TCGPrice *float64 `json:"tcg_price"`

	// TCGMarketPrice is the market price. Null when extraction failed.
	TCGMarketPrice *float64 `json:"tcg_market_price"`

	// SourceURL is the product page the prices were extracted from.
	SourceURL string `json:"source_url,omitempty"`

	// LastUpdated is when the returned prices were scraped (cache writes on
	// the live path, the entry's own timestamp on the cached path).
	LastUpdated Timestamp `json:"last_updated,omitempty"`

	// Error is populated only when Success is false and a reason is known.
	Error *ErrorDetail `json:"error,omitempty"`
}

// CacheEntry is the persisted price document. One entry exists per
// (card_number, card_rarity, normalized art_variant) key.
type CacheEntry struct {
	CardNumber string `json:"card_number"`
	CardName   string `json:"card_name"`
	CardRarity string `json:"card_rarity"`

	// ArtVariant is stored in normalized form ("7", "arkana", ...).
	ArtVariant string `json:"art_variant,omitempty"`

	TCGPrice       *float64 `json:"tcg_price"`
	TCGMarketPrice *float64 `json:"tcg_market_price"`
	SourceURL      string   `json:"source_url,omitempty"`

	// ScrapeSuccess records whether the scrape that produced this entry's
	// prices succeeded.
	ScrapeSuccess bool `json:"scrape_success"`

	// LastUpdated is when the entry's prices were scraped.
	LastUpdated Timestamp `json:"last_price_updt"`

	// LastAttempt records the most recent scrape attempt, which may have
	// failed without replacing the prices above.
	LastAttempt        Timestamp `json:"last_attempt,omitempty"`
	LastAttemptSuccess bool      `json:"last_attempt_success"`
}

// HasPrices reports whether the entry holds at least one usable price.
func (e *CacheEntry) HasPrices() bool {
	return e != nil && (e.TCGPrice != nil || e.TCGMarketPrice != nil)
}

// StalenessVerdict is the result of one cache lookup: the entry plus a
// freshness determination. It is derived at read time and never persisted.
type StalenessVerdict struct {
	Entry      *CacheEntry
	IsStale    bool
	AgeInHours float64
}

// PoolStats reports the state of a browser provisioner.
type PoolStats struct {
	Initialized       bool    `json:"initialized"`
	PoolSize          int     `json:"pool_size"`
	Available         int     `json:"available"`
	MaxSize           int     `json:"max_size"`
	TotalRequests     int64   `json:"total_requests"`
	AvgWaitTime       float64 `json:"avg_wait_time"`
	AvailableMemoryMB int     `json:"available_memory_mb"`
}

// CacheStats reports price-cache occupancy for GET /api/v1/cache/stats.
type CacheStats struct {
	TotalEntries int `json:"total_entries"`
	FreshEntries int `json:"fresh_entries"`
	StaleEntries int `json:"stale_entries"`
	UniqueCards  int `json:"unique_cards"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}
