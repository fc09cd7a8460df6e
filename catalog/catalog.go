// Package catalog validates requested rarities against known prints and
// resolves set codes to storefront set names.
package catalog

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jacostaf/tcg-ygoripper-sub000/match"
	"github.com/jacostaf/tcg-ygoripper-sub000/store"
)

var setCodeRe = regexp.MustCompile(`^([A-Za-z0-9]{2,4})-`)

// ExtractSetCode returns the set prefix of a card number ("LOB-001" -> "LOB")
// or "" when the number has no recognizable prefix.
func ExtractSetCode(cardNumber string) string {
	if m := setCodeRe.FindStringSubmatch(strings.TrimSpace(cardNumber)); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// Catalog answers rarity-validity questions from stored variant records.
type Catalog struct {
	store store.PriceStore
}

// New creates a Catalog over the given store.
func New(st store.PriceStore) *Catalog {
	return &Catalog{store: st}
}

// IsValidRarity reports whether the card is known to exist in the given
// rarity, matching across the rarity's equivalence class (cosmetic variants,
// anniversary branding, abbreviations). Store failures degrade to permissive:
// an unreachable catalog never blocks a request.
func (c *Catalog) IsValidRarity(ctx context.Context, cardNumber, rarityName string) bool {
	alternatives := match.RarityAlternatives(rarityName)
	if len(alternatives) == 0 {
		return false
	}

	ok, err := c.store.HasVariant(ctx, cardNumber, alternatives)
	if err != nil {
		slog.Warn("catalog unavailable, accepting rarity unchecked",
			"card", cardNumber, "rarity", rarityName, "error", err)
		return true
	}
	return ok
}

// SetName resolves a card number's set prefix to the storefront set name.
// Returns "" when the set is unknown or the catalog is unreachable.
func (c *Catalog) SetName(ctx context.Context, cardNumber string) string {
	code := ExtractSetCode(cardNumber)
	if code == "" {
		return ""
	}
	name, err := c.store.SetName(ctx, code)
	if err != nil {
		slog.Warn("set name lookup failed", "setCode", code, "error", err)
		return ""
	}
	return name
}
