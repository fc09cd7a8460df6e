package match

import "strings"

// rarityAbbreviations expands the shorthand rarity names callers and
// listings use. Keys are matched against the whole (lowercased) input.
var rarityAbbreviations = map[string]string{
	"c":    "common",
	"r":    "rare",
	"ur":   "ultra rare",
	"sr":   "secret rare",
	"scr":  "secret rare",
	"spr":  "super rare",
	"ulr":  "ultra rare",
	"gr":   "ghost rare",
	"gsr":  "ghost rare",
	"str":  "starlight rare",
	"stsr": "starlight rare",
	"plr":  "platinum rare",
	"psr":  "platinum secret rare",
	"qcsr": "quarter century secret rare",
	"qcur": "quarter century ultra rare",
	"kcr":  "kaiba corporation rare",
	"mlr":  "millennium rare",
	"phr":  "pharaoh rare",
}

// cosmeticPrefixes are rarity prefixes that denote a cosmetic-only finish of
// the same base rarity; two rarities differing only by such a prefix are
// treated as equivalent.
var cosmeticPrefixes = []string{"prismatic "}

// NormalizeRarity lowercases, collapses whitespace and expands known
// abbreviations.
func NormalizeRarity(r string) string {
	s := strings.ToLower(strings.TrimSpace(r))
	s = spacesRe.ReplaceAllString(s, " ")
	if full, ok := rarityAbbreviations[s]; ok {
		return full
	}
	return s
}

// RarityAlternatives returns the set of normalized spellings a rarity may
// appear under in catalog data and listings, including cosmetic-prefix and
// anniversary-branding synonyms.
func RarityAlternatives(r string) []string {
	norm := NormalizeRarity(r)
	if norm == "" {
		return nil
	}
	seen := map[string]bool{norm: true}
	out := []string{norm}
	add := func(vals ...string) {
		for _, v := range vals {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}

	for _, p := range cosmeticPrefixes {
		if strings.HasPrefix(norm, p) {
			add(strings.TrimPrefix(norm, p))
		} else {
			add(p + norm)
		}
	}

	// Quarter Century and 25th Anniversary are the same product line.
	if strings.HasPrefix(norm, "quarter century ") {
		add("25th anniversary " + strings.TrimPrefix(norm, "quarter century "))
	}
	if strings.HasPrefix(norm, "25th anniversary ") {
		add("quarter century " + strings.TrimPrefix(norm, "25th anniversary "))
	}

	return out
}

// EquivalentRarities reports whether two rarity names denote the same base
// rarity, collapsing cosmetic-only variants ("Ultimate Rare" and "Prismatic
// Ultimate Rare" are one rarity; "Secret Rare" and "Ultra Rare" are not).
func EquivalentRarities(a, b string) bool {
	na, nb := NormalizeRarity(a), NormalizeRarity(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	for _, alt := range RarityAlternatives(na) {
		if alt == nb {
			return true
		}
	}
	return false
}

// RarityFilter maps a rarity to the storefront's search-filter value, which
// uses title-cased full names.
func RarityFilter(r string) string {
	norm := NormalizeRarity(r)
	if norm == "" {
		return ""
	}
	words := strings.Split(norm, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
