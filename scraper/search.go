package scraper

import (
	"net/url"
	"strings"

	"github.com/jacostaf/tcg-ygoripper-sub000/match"
)

// namedArtVariants are character-themed alternate artworks searched by name
// rather than by ordinal.
var namedArtVariants = map[string]bool{
	"arkana":       true,
	"kaiba":        true,
	"joey wheeler": true,
	"pharaoh":      true,
}

// ArtSearchTerms expands a card name plus art variant into the search
// queries most likely to surface the right printing, best first. Numeric
// variants search as ordinals ("Dark Magician 7th art") because that is how
// sellers caption alternate artworks; named variants search by character.
func ArtSearchTerms(cardName, artVariant string) []string {
	v := match.NormalizeArtVariant(artVariant)
	if v == "" {
		return nil
	}
	if isDigits(v) {
		return []string{
			cardName + " " + v + "th art",
			cardName + " " + v + "th",
			cardName + " " + v,
		}
	}
	if namedArtVariants[strings.ToLower(v)] {
		return []string{
			cardName + " " + v,
			cardName + "-" + v,
		}
	}
	return []string{
		cardName + " " + v,
		cardName + " " + v + " art",
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BuildSearchURL assembles the storefront search URL for one request. The
// rarity and set filters narrow server-side; setName may be empty when the
// set code is unknown to the catalog.
func BuildSearchURL(baseURL, cardName, cardRarity, artVariant, setName string) string {
	query := cardName
	if terms := ArtSearchTerms(cardName, artVariant); len(terms) > 0 {
		query = terms[0]
	}

	var b strings.Builder
	b.WriteString(baseURL)
	b.WriteString("?Language=English&productLineName=yugioh&q=")
	b.WriteString(url.QueryEscape(query))
	b.WriteString("&view=grid")

	if cardRarity != "" {
		if filter := match.RarityFilter(cardRarity); filter != "" {
			b.WriteString("&Rarity=")
			b.WriteString(url.QueryEscape(filter))
		}
	}
	if setName != "" {
		b.WriteString("&setName=")
		b.WriteString(url.QueryEscape(setName))
	}
	return b.String()
}
