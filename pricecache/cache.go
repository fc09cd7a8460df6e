// Package pricecache answers "do we already have a good-enough price?".
// Freshness is a read-time computation against a TTL; there is no background
// eviction, stale entries stay until overwritten.
package pricecache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacostaf/tcg-ygoripper-sub000/match"
	"github.com/jacostaf/tcg-ygoripper-sub000/models"
	"github.com/jacostaf/tcg-ygoripper-sub000/store"
)

// DefaultTTL is the freshness window applied when none is configured.
const DefaultTTL = 24 * time.Hour

// Cache wraps the price store with staleness-aware lookups.
type Cache struct {
	store store.PriceStore
	ttl   time.Duration
	now   func() time.Time // injectable for tests
}

// New creates a Cache over the given store. ttl <= 0 selects DefaultTTL.
func New(st store.PriceStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: st, ttl: ttl, now: time.Now}
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Fresh reports whether an entry last updated at `last` is still fresh at
// `now` under the given TTL. The zero time (which unparsable persisted
// timestamps decode to) is never fresh.
func Fresh(now, last time.Time, ttl time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) <= ttl
}

// Lookup finds the cache entry for the card and computes its staleness
// verdict. When an art variant is requested the lookup probes every
// alternative spelling of that variant (numeric, ordinal and word forms),
// because upstream listings label variants inconsistently. Returns nil when
// no entry exists.
func (c *Cache) Lookup(ctx context.Context, cardNumber, cardRarity, artVariant string) (*models.StalenessVerdict, error) {
	q := store.PriceQuery{
		CardNumber:  cardNumber,
		CardRarity:  match.NormalizeRarity(cardRarity),
		ArtVariants: match.ArtVariantAlternatives(artVariant),
	}

	entry, err := c.store.FindOne(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	now := c.now()
	last := entry.LastUpdated.Time
	verdict := &models.StalenessVerdict{
		Entry:   entry,
		IsStale: !Fresh(now, last, c.ttl),
	}
	if !last.IsZero() {
		verdict.AgeInHours = now.Sub(last).Hours()
	}
	return verdict, nil
}

// Save upserts the entry under its composite key. Every scrape attempt is
// recorded, including priceless ones, so failure reasons stay observable.
// An attempt that extracted no prices never clobbers stored prices, however
// old: the existing prices are carried forward and only the attempt fields
// change. LastAttemptSuccess is the caller's to set; Save passes it through.
func (c *Cache) Save(ctx context.Context, entry *models.CacheEntry) error {
	entry.ArtVariant = match.NormalizeArtVariant(entry.ArtVariant)
	entry.CardRarity = match.NormalizeRarity(entry.CardRarity)

	now := c.now()
	if entry.LastUpdated.IsZero() {
		entry.LastUpdated = models.NewTimestamp(now)
	}
	if entry.LastAttempt.IsZero() {
		entry.LastAttempt = models.NewTimestamp(now)
	}

	if !entry.HasPrices() {
		existing, err := c.store.FindOne(ctx, store.PriceQuery{
			CardNumber:  entry.CardNumber,
			CardRarity:  entry.CardRarity,
			ArtVariants: []string{entry.ArtVariant},
		})
		if err != nil {
			slog.Warn("cache: could not check existing entry before priceless save",
				"card", entry.CardNumber, "error", err)
		} else if existing.HasPrices() {
			// Keep the stored prices, record only the new attempt.
			preserved := *existing
			preserved.LastAttempt = entry.LastAttempt
			preserved.LastAttemptSuccess = entry.LastAttemptSuccess
			return c.store.Upsert(ctx, &preserved)
		}
	}

	return c.store.Upsert(ctx, entry)
}

// Stats reports cache occupancy, splitting fresh from stale at the TTL.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	return c.store.Stats(ctx, c.now().Add(-c.ttl))
}
