// Package scraper implements the price-scraping workflow: cache arbitration,
// browser checkout, storefront search, candidate scoring and price
// extraction for one request at a time.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacostaf/tcg-ygoripper-sub000/config"
	"github.com/jacostaf/tcg-ygoripper-sub000/match"
	"github.com/jacostaf/tcg-ygoripper-sub000/models"
	"github.com/jacostaf/tcg-ygoripper-sub000/pool"
)

// PriceCache is the staleness-aware cache consumed by the orchestrator.
// *pricecache.Cache satisfies it.
type PriceCache interface {
	Lookup(ctx context.Context, cardNumber, cardRarity, artVariant string) (*models.StalenessVerdict, error)
	Save(ctx context.Context, entry *models.CacheEntry) error
}

// CardCatalog validates rarities and resolves set names. *catalog.Catalog
// satisfies it.
type CardCatalog interface {
	IsValidRarity(ctx context.Context, cardNumber, rarityName string) bool
	SetName(ctx context.Context, cardNumber string) string
}

// Orchestrator answers one price request by arbitrating between the cache,
// a live scrape and stale-value fallback.
type Orchestrator struct {
	pool           pool.BrowserProvisioner
	cache          PriceCache
	catalog        CardCatalog
	cfg            config.ScraperConfig
	acquireTimeout time.Duration
	now            func() time.Time
}

// New wires an orchestrator. All collaborators are required.
func New(bp pool.BrowserProvisioner, cache PriceCache, cat CardCatalog, cfg config.ScraperConfig, acquireTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		pool:           bp,
		cache:          cache,
		catalog:        cat,
		cfg:            cfg,
		acquireTimeout: acquireTimeout,
		now:            time.Now,
	}
}

// scraped carries the outcome of one live scrape attempt.
type scraped struct {
	tcgPrice    *float64
	marketPrice *float64
	sourceURL   string
}

func (s scraped) hasPrices() bool { return s.tcgPrice != nil || s.marketPrice != nil }

// ScrapeCardPrice is the top-level workflow. Every failure mode comes back
// as a structured result; a panic anywhere in the scrape must not take down
// concurrent requests sharing the pool, so it is recovered here at the
// boundary.
func (o *Orchestrator) ScrapeCardPrice(ctx context.Context, req *models.PriceRequest) (result *models.PriceResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape panicked", "card_number", req.CardNumber, "panic", r)
			result = o.failure(req, models.NewScrapeError(models.ErrCodeInternal,
				fmt.Sprintf("internal fault during scrape: %v", r), nil))
		}
	}()

	log := slog.With("card_number", req.CardNumber, "card_rarity", req.CardRarity)

	// Names like "Dark Magician (7th Art)" carry the variant implicitly.
	if req.ArtVariant == "" {
		if v := match.ExtractArtVersionFromName(req.CardName); v != "" {
			log.Info("derived art variant from card name", "art_variant", v)
			req.ArtVariant = v
		}
	}

	// Fresh cache hit short-circuits the whole pipeline.
	if !req.ForceRefresh {
		verdict, err := o.cache.Lookup(ctx, req.CardNumber, req.CardRarity, req.ArtVariant)
		switch {
		case err != nil:
			log.Warn("cache lookup failed, proceeding without cache", "error", err)
		case verdict != nil && !verdict.IsStale && verdict.Entry.ScrapeSuccess && verdict.Entry.HasPrices():
			log.Info("serving fresh cached prices", "age_hours", verdict.AgeInHours)
			return o.cached(req, verdict.Entry)
		case verdict != nil:
			log.Info("cached entry unusable, scraping",
				"stale", verdict.IsStale, "has_prices", verdict.Entry.HasPrices())
		}
	}

	// A rarity the card was never printed in will never score well against
	// live listings; prefer a cached price over a doomed scrape. A cached
	// entry that never yielded prices still proves the card is known under
	// this rarity, so attempt the scrape anyway; only a card the cache has
	// never seen fails outward.
	if !o.catalog.IsValidRarity(ctx, req.CardNumber, req.CardRarity) {
		verdict, err := o.cache.Lookup(ctx, req.CardNumber, req.CardRarity, req.ArtVariant)
		switch {
		case err == nil && verdict != nil && verdict.Entry.ScrapeSuccess && verdict.Entry.HasPrices():
			log.Info("invalid rarity, serving cached entry instead", "stale", verdict.IsStale)
			return o.cached(req, verdict.Entry)
		case err == nil && verdict != nil:
			log.Info("invalid rarity but the card is cached, scraping anyway")
		default:
			return o.failure(req, models.NewScrapeError(models.ErrCodeInvalidRarity,
				fmt.Sprintf("card %s not found with rarity %q", req.CardNumber, req.CardRarity), nil))
		}
	}

	log.Info("scraping live prices", "art_variant", req.ArtVariant)
	data, scrapeErr := o.scrapeOnce(ctx, req)

	// Backpressure is transient and no scrape happened, so nothing is
	// persisted and the capacity signal goes straight back to the caller.
	var se *models.ScrapeError
	if errors.As(scrapeErr, &se) && se.Code == models.ErrCodeCapacityExceeded {
		return o.failure(req, se)
	}

	entry := o.buildEntry(req, data, scrapeErr)
	if err := o.cache.Save(ctx, entry); err != nil {
		log.Warn("persisting scrape result failed", "error", err)
	}

	// Null prices fall back to the cache even when the entry there was
	// previously deemed stale; a dated price beats no price.
	if !data.hasPrices() {
		if verdict, err := o.cache.Lookup(ctx, req.CardNumber, req.CardRarity, req.ArtVariant); err == nil && verdict != nil && verdict.Entry.HasPrices() {
			log.Info("scrape produced no prices, falling back to cached entry", "stale", verdict.IsStale)
			return o.cached(req, verdict.Entry)
		}
	}

	result = &models.PriceResult{
		Success:        scrapeErr == nil && data.hasPrices(),
		Cached:         false,
		CardNumber:     req.CardNumber,
		CardName:       req.CardName,
		CardRarity:     req.CardRarity,
		ArtVariant:     req.ArtVariant,
		TCGPrice:       data.tcgPrice,
		TCGMarketPrice: data.marketPrice,
		SourceURL:      data.sourceURL,
		LastUpdated:    entry.LastUpdated,
	}
	if scrapeErr != nil {
		var serr *models.ScrapeError
		if errors.As(scrapeErr, &serr) {
			result.Error = serr.ToDetail()
		} else {
			result.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: scrapeErr.Error()}
		}
	}
	log.Info("scrape finished", "success", result.Success,
		"tcg_price", data.tcgPrice, "market_price", data.marketPrice)
	return result
}

// scrapeOnce performs one full browser round trip: checkout, search, score,
// navigate, extract. The lease and the page are released on every exit path.
func (o *Orchestrator) scrapeOnce(ctx context.Context, req *models.PriceRequest) (scraped, error) {
	lease, err := o.pool.AcquireContext(ctx, o.acquireTimeout)
	if err != nil {
		return scraped{}, err
	}
	defer lease.Release()

	page, err := lease.Context().NewPage()
	if err != nil {
		return scraped{}, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to open page", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			slog.Warn("closing page failed", "error", cerr)
		}
	}()

	setName := o.catalog.SetName(ctx, req.CardNumber)
	searchURL := BuildSearchURL(o.cfg.SearchBaseURL, req.CardName, req.CardRarity, req.ArtVariant, setName)
	slog.Debug("navigating to search", "url", searchURL)

	navCtx, cancel := context.WithTimeout(ctx, o.cfg.NavigationTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, searchURL); err != nil {
		return scraped{}, models.NewScrapeError(models.ErrCodeNavTimeout, "search navigation failed", err)
	}

	count, err := waitForSearchResults(ctx, page, o.cfg.SelectorTimeout)
	if err != nil {
		return scraped{}, models.NewScrapeError(models.ErrCodeExtraction, "counting search results failed", err)
	}
	if count == 0 {
		return scraped{}, models.NewScrapeError(models.ErrCodeNoResults,
			fmt.Sprintf("no results found for %q", req.CardName), nil)
	}

	// Single-result searches land directly on the product page; only a
	// results grid needs candidate scoring.
	if !isProductPage(ctx, page) {
		candidates, err := extractCandidates(ctx, page)
		if err != nil {
			return scraped{}, models.NewScrapeError(models.ErrCodeExtraction, "extracting candidates failed", err)
		}
		target := match.Target{
			CardNumber: req.CardNumber,
			CardName:   req.CardName,
			Rarity:     req.CardRarity,
			ArtVariant: match.NormalizeArtVariant(req.ArtVariant),
		}
		best, ok := match.SelectBest(target, candidates)
		if !ok {
			return scraped{}, models.NewScrapeError(models.ErrCodeNoVariant,
				fmt.Sprintf("no suitable variant found for %s", req.CardNumber), nil)
		}
		slog.Debug("selected listing", "score", best.Score, "title", best.Candidate.Title)

		prodCtx, cancelProd := context.WithTimeout(ctx, o.cfg.NavigationTimeout)
		defer cancelProd()
		if err := page.Navigate(prodCtx, best.Candidate.URL); err != nil {
			return scraped{}, models.NewScrapeError(models.ErrCodeNavTimeout, "product navigation failed", err)
		}
	}

	waitForPriceData(ctx, page, o.cfg.SelectorTimeout)

	tcgPrice, marketPrice, err := extractPrices(ctx, page)
	if err != nil {
		return scraped{}, models.NewScrapeError(models.ErrCodeExtraction, "price extraction failed", err)
	}
	return scraped{tcgPrice: tcgPrice, marketPrice: marketPrice, sourceURL: page.URL()}, nil
}

// buildEntry converts one attempt into the persisted document. Failed
// attempts are persisted too so the failure is observable on later reads.
func (o *Orchestrator) buildEntry(req *models.PriceRequest, data scraped, scrapeErr error) *models.CacheEntry {
	now := models.NewTimestamp(o.now())
	return &models.CacheEntry{
		CardNumber:         req.CardNumber,
		CardName:           req.CardName,
		CardRarity:         req.CardRarity,
		ArtVariant:         match.NormalizeArtVariant(req.ArtVariant),
		TCGPrice:           data.tcgPrice,
		TCGMarketPrice:     data.marketPrice,
		SourceURL:          data.sourceURL,
		ScrapeSuccess:      scrapeErr == nil,
		LastUpdated:        now,
		LastAttempt:        now,
		LastAttemptSuccess: scrapeErr == nil && data.hasPrices(),
	}
}

func (o *Orchestrator) cached(req *models.PriceRequest, entry *models.CacheEntry) *models.PriceResult {
	return &models.PriceResult{
		Success:        true,
		Cached:         true,
		CardNumber:     req.CardNumber,
		CardName:       entry.CardName,
		CardRarity:     req.CardRarity,
		ArtVariant:     req.ArtVariant,
		TCGPrice:       entry.TCGPrice,
		TCGMarketPrice: entry.TCGMarketPrice,
		SourceURL:      entry.SourceURL,
		LastUpdated:    entry.LastUpdated,
	}
}

func (o *Orchestrator) failure(req *models.PriceRequest, err *models.ScrapeError) *models.PriceResult {
	return &models.PriceResult{
		Success:    false,
		Cached:     false,
		CardNumber: req.CardNumber,
		CardName:   req.CardName,
		CardRarity: req.CardRarity,
		ArtVariant: req.ArtVariant,
		Error:      err.ToDetail(),
	}
}
