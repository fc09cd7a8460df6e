package scraper

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ysmood/gson"

	"github.com/jacostaf/tcg-ygoripper-sub000/config"
	"github.com/jacostaf/tcg-ygoripper-sub000/models"
	"github.com/jacostaf/tcg-ygoripper-sub000/pool"
	"github.com/jacostaf/tcg-ygoripper-sub000/pricecache"
	"github.com/jacostaf/tcg-ygoripper-sub000/store"
)

// --- fakes ---

// fakeCache answers lookups from a fixed verdict and records saves without
// mutating lookup state, so tests control both reads and writes.
type fakeCache struct {
	mu      sync.Mutex
	verdict *models.StalenessVerdict
	lookErr error
	saved   []*models.CacheEntry
	lookups int
}

func (c *fakeCache) Lookup(ctx context.Context, cardNumber, cardRarity, artVariant string) (*models.StalenessVerdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.lookErr != nil {
		return nil, c.lookErr
	}
	return c.verdict, nil
}

func (c *fakeCache) Save(ctx context.Context, entry *models.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, entry)
	return nil
}

func (c *fakeCache) savedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.saved)
}

// entryStore is a minimal in-memory PriceStore so workflow tests can run
// against the real cache policy instead of a canned verdict.
type entryStore struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
}

func newEntryStore() *entryStore {
	return &entryStore{entries: make(map[string]*models.CacheEntry)}
}

func entryKey(number, rarity, variant string) string { return number + "|" + rarity + "|" + variant }

func (s *entryStore) put(e *models.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entries[entryKey(e.CardNumber, e.CardRarity, e.ArtVariant)] = &cp
}

func (s *entryStore) get(number, rarity, variant string) *models.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[entryKey(number, rarity, variant)]
}

func (s *entryStore) FindOne(ctx context.Context, q store.PriceQuery) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(q.ArtVariants) == 0 {
		for _, e := range s.entries {
			if e.CardNumber == q.CardNumber && e.CardRarity == q.CardRarity {
				return e, nil
			}
		}
		return nil, nil
	}
	for _, v := range q.ArtVariants {
		if e, ok := s.entries[entryKey(q.CardNumber, q.CardRarity, v)]; ok {
			return e, nil
		}
	}
	return nil, nil
}

func (s *entryStore) Upsert(ctx context.Context, e *models.CacheEntry) error {
	s.put(e)
	return nil
}

func (s *entryStore) Stats(ctx context.Context, freshCutoff time.Time) (models.CacheStats, error) {
	return models.CacheStats{}, nil
}
func (s *entryStore) SaveVariant(ctx context.Context, v store.VariantRecord) error { return nil }
func (s *entryStore) HasVariant(ctx context.Context, cardNumber string, rarities []string) (bool, error) {
	return false, nil
}
func (s *entryStore) SaveSet(ctx context.Context, rec store.SetRecord) error { return nil }
func (s *entryStore) SetName(ctx context.Context, setCode string) (string, error) {
	return "", nil
}
func (s *entryStore) Close() error { return nil }

type fakeCatalog struct {
	valid   bool
	setName string
}

func (f *fakeCatalog) IsValidRarity(ctx context.Context, cardNumber, rarityName string) bool {
	return f.valid
}
func (f *fakeCatalog) SetName(ctx context.Context, cardNumber string) string { return f.setName }

// scriptedPage answers each extraction script with canned data and records
// navigations.
type scriptedPage struct {
	mu           sync.Mutex
	resultsCount int
	productPage  bool
	links        []map[string]interface{}
	tcgPrice     interface{}
	marketPrice  interface{}
	navigations  []string
}

func (p *scriptedPage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	return nil
}

// evalResult mirrors how CDP results arrive: as decoded generic JSON.
func evalResult(v interface{}) gson.JSON {
	b, _ := json.Marshal(v)
	return gson.NewFrom(string(b))
}

func (p *scriptedPage) Eval(ctx context.Context, js string) (gson.JSON, error) {
	switch js {
	case jsResultsCount:
		return evalResult(p.resultsCount), nil
	case jsNoResults:
		return evalResult(p.resultsCount == 0), nil
	case jsProductLinkCount:
		return evalResult(len(p.links)), nil
	case jsIsProductPage:
		return evalResult(p.productPage), nil
	case jsProductLinks:
		return evalResult(p.links), nil
	case jsExtractPrices:
		return evalResult(map[string]interface{}{
			"tcg_price":        p.tcgPrice,
			"tcg_market_price": p.marketPrice,
		}), nil
	}
	return gson.New(nil), nil
}

func (p *scriptedPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (p *scriptedPage) Screenshot() ([]byte, error) { return nil, nil }
func (p *scriptedPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.navigations) == 0 {
		return ""
	}
	return p.navigations[len(p.navigations)-1]
}
func (p *scriptedPage) Close() error { return nil }

type scriptedContext struct{ page *scriptedPage }

func (c *scriptedContext) NewPage() (pool.Page, error) { return c.page, nil }
func (c *scriptedContext) Close() error                { return nil }

// scriptedPool hands every checkout the same scripted page.
type scriptedPool struct {
	mu         sync.Mutex
	page       *scriptedPage
	acquireErr error
	acquires   int
}

func (p *scriptedPool) Initialize(ctx context.Context) error { return nil }

func (p *scriptedPool) AcquireContext(ctx context.Context, timeout time.Duration) (*pool.Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquires++
	return pool.NewLease(&scriptedContext{page: p.page}, func() {}), nil
}

func (p *scriptedPool) Stats() models.PoolStats { return models.PoolStats{} }
func (p *scriptedPool) Shutdown()               {}

func (p *scriptedPool) acquireCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires
}

// --- helpers ---

func newOrchestrator(bp pool.BrowserProvisioner, cache PriceCache, cat CardCatalog) *Orchestrator {
	cfg := config.ScraperConfig{
		NavigationTimeout: time.Second,
		SelectorTimeout:   100 * time.Millisecond,
		SearchBaseURL:     "https://www.tcgplayer.com/search/yugioh/product",
	}
	return New(bp, cache, cat, cfg, time.Second)
}

func fptr(v float64) *float64 { return &v }

func blueEyesRequest() *models.PriceRequest {
	return &models.PriceRequest{
		CardNumber: "LOB-001",
		CardName:   "Blue-Eyes White Dragon",
		CardRarity: "Ultra Rare",
	}
}

// --- scenarios ---

func TestScrapePathOnEmptyCache(t *testing.T) {
	page := &scriptedPage{
		resultsCount: 3,
		links: []map[string]interface{}{
			{"url": "https://x/product/2", "title": "Blue-Eyes Toon Dragon - MP1-001"},
			{"url": "https://x/product/1", "title": "Blue-Eyes White Dragon [Ultra Rare] LOB-001"},
			{"url": "https://x/product/3", "title": "Blue-Eyes Shining Dragon - MOV-EN001"},
		},
		tcgPrice:    1.50,
		marketPrice: 2.25,
	}
	bp := &scriptedPool{page: page}
	cache := &fakeCache{}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if !res.Success || res.Cached {
		t.Fatalf("got success=%v cached=%v, want success uncached", res.Success, res.Cached)
	}
	if res.TCGPrice == nil || *res.TCGPrice != 1.50 {
		t.Errorf("TCGPrice = %v, want 1.50", res.TCGPrice)
	}
	if res.TCGMarketPrice == nil || *res.TCGMarketPrice != 2.25 {
		t.Errorf("TCGMarketPrice = %v, want 2.25", res.TCGMarketPrice)
	}
	if res.SourceURL != "https://x/product/1" {
		t.Errorf("SourceURL = %q, want the exact-match listing", res.SourceURL)
	}
	if bp.acquireCount() != 1 {
		t.Errorf("acquires = %d, want 1", bp.acquireCount())
	}
	if cache.savedCount() != 1 {
		t.Fatalf("saved %d entries, want 1", cache.savedCount())
	}
	if e := cache.saved[0]; !e.ScrapeSuccess || !e.HasPrices() {
		t.Errorf("persisted entry = %+v, want successful with prices", e)
	}
}

func TestFreshCacheHitSkipsBrowser(t *testing.T) {
	bp := &scriptedPool{page: &scriptedPage{}}
	cache := &fakeCache{verdict: &models.StalenessVerdict{
		Entry: &models.CacheEntry{
			CardNumber:    "LOB-001",
			CardName:      "Blue-Eyes White Dragon",
			CardRarity:    "Ultra Rare",
			TCGPrice:      fptr(1.50),
			ScrapeSuccess: true,
			LastUpdated:   models.NewTimestamp(time.Now().Add(-time.Hour)),
		},
		IsStale:    false,
		AgeInHours: 1,
	}}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if !res.Success || !res.Cached {
		t.Fatalf("got success=%v cached=%v, want cached success", res.Success, res.Cached)
	}
	if bp.acquireCount() != 0 {
		t.Errorf("acquires = %d, want 0 on a fresh cache hit", bp.acquireCount())
	}
}

func TestNullPricesFallBackToStaleCache(t *testing.T) {
	page := &scriptedPage{
		resultsCount: 1,
		productPage:  true,
		// extraction yields nulls
	}
	bp := &scriptedPool{page: page}
	cache := &fakeCache{verdict: &models.StalenessVerdict{
		Entry: &models.CacheEntry{
			CardNumber:    "LOB-001",
			TCGPrice:      fptr(3.10),
			ScrapeSuccess: true,
			LastUpdated:   models.NewTimestamp(time.Now().Add(-48 * time.Hour)),
		},
		IsStale:    true,
		AgeInHours: 48,
	}}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if !res.Cached {
		t.Fatalf("got cached=%v, want fallback to the stale entry", res.Cached)
	}
	if res.TCGPrice == nil || *res.TCGPrice != 3.10 {
		t.Errorf("TCGPrice = %v, want the stale cached 3.10", res.TCGPrice)
	}
	// The null-price attempt is still recorded.
	if cache.savedCount() != 1 {
		t.Errorf("saved %d entries, want 1", cache.savedCount())
	}
}

func TestStaleCachedPriceSurvivesNullRescrape(t *testing.T) {
	st := newEntryStore()
	st.put(&models.CacheEntry{
		CardNumber:    "LOB-001",
		CardRarity:    "ultra rare",
		TCGPrice:      fptr(19.99),
		ScrapeSuccess: true,
		LastUpdated:   models.NewTimestamp(time.Now().Add(-25 * time.Hour)),
	})
	cache := pricecache.New(st, 24*time.Hour)
	page := &scriptedPage{resultsCount: 1, productPage: true}
	bp := &scriptedPool{page: page}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if !res.Cached {
		t.Fatalf("got cached=%v success=%v, want the stale price served after a null re-scrape",
			res.Cached, res.Success)
	}
	if res.TCGPrice == nil || *res.TCGPrice != 19.99 {
		t.Errorf("TCGPrice = %v, want the preserved 19.99", res.TCGPrice)
	}

	stored := st.get("LOB-001", "ultra rare", "")
	if stored == nil || stored.TCGPrice == nil || *stored.TCGPrice != 19.99 {
		t.Fatalf("persisted entry = %+v, want prices carried forward through the save", stored)
	}
	if stored.LastAttemptSuccess {
		t.Error("priceless attempt recorded as successful")
	}
}

func TestCapacityErrorSurfacesWithoutPersisting(t *testing.T) {
	bp := &scriptedPool{acquireErr: models.NewScrapeError(
		models.ErrCodeCapacityExceeded, "no browser became available", nil)}
	cache := &fakeCache{}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if res.Success {
		t.Fatal("capacity-exceeded scrape reported success")
	}
	if res.Error == nil || res.Error.Code != models.ErrCodeCapacityExceeded {
		t.Fatalf("error = %+v, want CAPACITY_EXCEEDED", res.Error)
	}
	if cache.savedCount() != 0 {
		t.Errorf("saved %d entries, want 0 when no scrape happened", cache.savedCount())
	}
}

func TestScorerPicksExactMatchAmongFive(t *testing.T) {
	page := &scriptedPage{
		resultsCount: 5,
		links: []map[string]interface{}{
			{"url": "https://x/product/1", "title": "Exodia the Forbidden One [Ultra Rare] LOB-124"},
			{"url": "https://x/product/2", "title": "Firegrass - Legend of Blue Eyes (LOB-005)"},
			{"url": "https://x/product/3", "title": "Firegrass [Secret Rare] LOB-005 (7th Art)"},
			{"url": "https://x/product/4", "title": "Firegrass [Common] LOB-005"},
			{"url": "https://x/product/5", "title": "Dark Magician [Secret Rare] SDY-006"},
		},
		tcgPrice:    9.99,
		marketPrice: 12.50,
	}
	bp := &scriptedPool{page: page}
	o := newOrchestrator(bp, &fakeCache{}, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), &models.PriceRequest{
		CardNumber: "LOB-005",
		CardName:   "Firegrass",
		CardRarity: "Secret Rare",
		ArtVariant: "7",
	})

	if !res.Success {
		t.Fatalf("scrape failed: %+v", res.Error)
	}
	if res.SourceURL != "https://x/product/3" {
		t.Errorf("SourceURL = %q, want the exact number+rarity+variant match", res.SourceURL)
	}
}

func TestInvalidRarityFallsBackToAnyCacheEntry(t *testing.T) {
	bp := &scriptedPool{page: &scriptedPage{}}
	cache := &fakeCache{verdict: &models.StalenessVerdict{
		Entry:   &models.CacheEntry{CardNumber: "LOB-001", TCGPrice: fptr(5.00), ScrapeSuccess: true},
		IsStale: true,
	}}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: false})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if !res.Cached {
		t.Fatalf("got cached=%v, want the stale entry despite invalid rarity", res.Cached)
	}
	if bp.acquireCount() != 0 {
		t.Errorf("acquires = %d, want 0 for an invalid rarity", bp.acquireCount())
	}
}

func TestInvalidRarityWithPricelessCacheScrapes(t *testing.T) {
	page := &scriptedPage{resultsCount: 1, productPage: true, tcgPrice: 2.75, marketPrice: 3.00}
	bp := &scriptedPool{page: page}
	// The card is known to the cache but no attempt ever yielded prices.
	cache := &fakeCache{verdict: &models.StalenessVerdict{
		Entry:   &models.CacheEntry{CardNumber: "LOB-001", ScrapeSuccess: false},
		IsStale: true,
	}}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: false})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if !res.Success || res.Cached {
		t.Fatalf("got success=%v cached=%v, want a live scrape despite the rarity miss", res.Success, res.Cached)
	}
	if bp.acquireCount() != 1 {
		t.Errorf("acquires = %d, want 1", bp.acquireCount())
	}
}

func TestInvalidRarityWithoutCacheFails(t *testing.T) {
	bp := &scriptedPool{page: &scriptedPage{}}
	o := newOrchestrator(bp, &fakeCache{}, &fakeCatalog{valid: false})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if res.Success {
		t.Fatal("invalid rarity with empty cache reported success")
	}
	if res.Error == nil || res.Error.Code != models.ErrCodeInvalidRarity {
		t.Fatalf("error = %+v, want INVALID_RARITY", res.Error)
	}
}

func TestCacheBackendFailureStillScrapes(t *testing.T) {
	page := &scriptedPage{resultsCount: 1, productPage: true, tcgPrice: 4.20, marketPrice: 4.80}
	bp := &scriptedPool{page: page}
	cache := &fakeCache{lookErr: models.NewScrapeError(models.ErrCodeCacheUnavailable, "store down", nil)}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if !res.Success {
		t.Fatalf("scrape should succeed without cache: %+v", res.Error)
	}
	if res.Cached {
		t.Error("result claims cached with the cache down")
	}
}

func TestArtVariantDerivedFromCardName(t *testing.T) {
	page := &scriptedPage{resultsCount: 1, productPage: true, tcgPrice: 6.75, marketPrice: 7.10}
	bp := &scriptedPool{page: page}
	cache := &fakeCache{}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), &models.PriceRequest{
		CardNumber: "SDY-006",
		CardName:   "Dark Magician (7th Art)",
		CardRarity: "Ultra Rare",
	})

	if !res.Success {
		t.Fatalf("scrape failed: %+v", res.Error)
	}
	if res.ArtVariant != "7" {
		t.Errorf("ArtVariant = %q, want 7 derived from the card name", res.ArtVariant)
	}
	if cache.savedCount() != 1 {
		t.Fatalf("saved %d entries, want 1", cache.savedCount())
	}
	if got := cache.saved[0].ArtVariant; got != "7" {
		t.Errorf("persisted ArtVariant = %q, want 7", got)
	}
}

func TestNoResultsSurfacesErrorCode(t *testing.T) {
	page := &scriptedPage{resultsCount: 0}
	bp := &scriptedPool{page: page}
	cache := &fakeCache{}
	o := newOrchestrator(bp, cache, &fakeCatalog{valid: true})

	res := o.ScrapeCardPrice(context.Background(), blueEyesRequest())

	if res.Success {
		t.Fatal("empty result set reported success")
	}
	if res.Error == nil || res.Error.Code != models.ErrCodeNoResults {
		t.Fatalf("error = %+v, want NO_RESULTS_FOUND", res.Error)
	}
	// The failed attempt is still persisted for observability.
	if cache.savedCount() != 1 {
		t.Errorf("saved %d entries, want 1", cache.savedCount())
	}
}
