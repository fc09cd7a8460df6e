// Package match ranks storefront search-result listings against a requested
// card and normalizes the loosely-labeled attributes (art variants, rarities)
// that upstream listings disagree on.
package match

import (
	"regexp"
	"strconv"
	"strings"
)

// cardinalWords maps the word forms listings use for art numbering. Only 1-10
// exist as alternate-art numbers in practice, so higher numbers get no word or
// ordinal forms.
var cardinalWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

var numberForWord = func() map[int][2]string {
	m := make(map[int][2]string, 10)
	for w, n := range cardinalWords {
		e := m[n]
		e[0] = w
		m[n] = e
	}
	for w, n := range ordinalWords {
		e := m[n]
		e[1] = w
		m[n] = e
	}
	return m
}()

var (
	ordinalRe    = regexp.MustCompile(`^(\d+)(?:st|nd|rd|th)$`)
	artNumberRe  = regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)?[\s-]*art(?:work)?`)
	spacesRe     = regexp.MustCompile(`\s+`)
	namedVariant = []string{"joey wheeler", "arkana", "kaiba", "pharaoh"}
)

// NormalizeArtVariant reduces any spelling of an art variant to its canonical
// form: a bare number for numeric variants ("1st" -> "1", "seventh" -> "7",
// "2nd Art" -> "2") and a lowercased string for named variants.
func NormalizeArtVariant(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	s = spacesRe.ReplaceAllString(s, " ")
	if s == "" {
		return ""
	}
	if m := artNumberRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := ordinalRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if n, ok := ordinalWords[s]; ok {
		return strconv.Itoa(n)
	}
	if n, ok := cardinalWords[s]; ok {
		return strconv.Itoa(n)
	}
	return s
}

// ArtVariantAlternatives returns the equivalence class of spellings for an
// art variant. Numeric variants 1-10 expand to numeral, ordinal-numeral,
// cardinal-word and ordinal-word forms ("7" -> 7, 7th, seven, seventh);
// numbers above 10 and named variants stay as a single spelling. An empty
// input has no alternatives.
func ArtVariantAlternatives(v string) []string {
	norm := NormalizeArtVariant(v)
	if norm == "" {
		return nil
	}
	n, err := strconv.Atoi(norm)
	if err != nil {
		return []string{norm}
	}
	if n < 1 || n > 10 {
		return []string{norm}
	}
	words := numberForWord[n]
	return []string{
		norm,
		norm + ordinalSuffix(n),
		words[0],
		words[1],
	}
}

// ExtractArtVariant pulls an art-variant token out of a listing title or URL.
// It recognizes numbered art forms ("7th Art", "2 artwork"), named variants
// ("Arkana", "Kaiba") and bare bracketed ordinals. Returns the normalized
// form, or "" when the text carries no variant information.
func ExtractArtVariant(text string) string {
	s := strings.ToLower(text)
	if m := artNumberRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	for _, name := range namedVariant {
		if strings.Contains(s, name) {
			return name
		}
	}
	return ""
}

// ExtractArtVersionFromName pulls an art version embedded in a card name,
// e.g. `Blue-Eyes White Dragon (2nd Art)` -> "2". Used when the caller did
// not specify an art variant explicitly.
func ExtractArtVersionFromName(cardName string) string {
	if m := artNumberRe.FindStringSubmatch(cardName); m != nil {
		return m[1]
	}
	return ""
}

func ordinalSuffix(n int) string {
	switch n {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
