// Package store persists price-cache entries and catalog records in an
// embedded key-value database. Freshness policy lives in pricecache; the
// store only answers point lookups and upserts.
package store

import (
	"context"
	"time"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// PriceQuery selects price entries by their composite key. ArtVariants is an
// any-of set of normalized spellings; when empty, entries with any (or no)
// art variant match.
type PriceQuery struct {
	CardNumber  string
	CardRarity  string
	ArtVariants []string
}

// VariantRecord is one known (card, rarity) print from the catalog,
// consulted during rarity validation.
type VariantRecord struct {
	SetCode string `json:"set_code"` // full card number, e.g. "LOB-001"
	Rarity  string `json:"set_rarity"`
}

// SetRecord maps a set code to the storefront's set name, used for the
// search setName filter.
type SetRecord struct {
	SetCode string `json:"set_code"` // e.g. "LOB"
	SetName string `json:"set_name"` // e.g. "Legend of Blue Eyes White Dragon"
}

// PriceStore is the persistence boundary for the price cache and catalog.
// Upsert has replace-if-match, insert-if-absent semantics: one atomic write
// per save, never partial multi-step updates.
type PriceStore interface {
	// FindOne returns the first entry matching the query, or nil when none
	// exists.
	FindOne(ctx context.Context, q PriceQuery) (*models.CacheEntry, error)

	// Upsert replaces the entry stored under the composite key
	// (card_number, card_rarity, art_variant).
	Upsert(ctx context.Context, entry *models.CacheEntry) error

	// Stats counts entries, splitting fresh from stale at the given cutoff.
	Stats(ctx context.Context, freshCutoff time.Time) (models.CacheStats, error)

	// SaveVariant records a known (card, rarity) print.
	SaveVariant(ctx context.Context, v VariantRecord) error

	// HasVariant reports whether the card is known to exist in any of the
	// given rarity spellings.
	HasVariant(ctx context.Context, cardNumber string, rarities []string) (bool, error)

	// SaveSet records a set code to set name mapping.
	SaveSet(ctx context.Context, s SetRecord) error

	// SetName returns the storefront set name for a set code, or "" when
	// unknown.
	SetName(ctx context.Context, setCode string) (string, error)

	// Close releases the underlying database.
	Close() error
}
