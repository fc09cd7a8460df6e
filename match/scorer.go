package match

import (
	"sort"
	"strings"
)

// Candidate is one search-result listing scraped from the storefront,
// before scoring. Parsed fields may be empty when DOM extraction could not
// recover them from the listing title.
type Candidate struct {
	URL        string
	Title      string
	CardNumber string
	CardName   string
	Rarity     string
}

// Target is the card specification a candidate set is ranked against.
type Target struct {
	CardNumber string
	CardName   string
	Rarity     string
	ArtVariant string
}

// ScoredCandidate pairs a candidate with its computed score.
type ScoredCandidate struct {
	Candidate Candidate
	Score     int
}

// Scoring weights. Additive; higher is better. A mismatch on a field both
// sides are explicit about is penalized, missing information is penalized
// lightly or not at all.
const (
	scoreNumberExact   = 200
	scoreNumberPartial = 100
	scoreNumberLoose   = 75
	scoreRarityExact   = 100
	scoreRarityPartial = 50
	scoreRarityClash   = -50
	scoreNameExact     = 100
	scoreNamePartial   = 50
	scoreVariantExact  = 100
	scoreVariantClash  = -50
	scoreVariantWeak   = 25
	scoreVariantNone   = -10
	scoreTitleCap      = 5
)

// Score computes the match score of one candidate against the target.
// Identical inputs always produce identical scores.
func Score(target Target, c Candidate) int {
	score := 0
	haystack := strings.ToLower(c.Title + " " + c.URL)

	// Card number.
	if target.CardNumber != "" {
		num := strings.ToLower(target.CardNumber)
		candNum := strings.ToLower(c.CardNumber)
		switch {
		case candNum != "" && candNum == num:
			score += scoreNumberExact
		case candNum != "" && (strings.Contains(candNum, num) || strings.Contains(num, candNum)):
			score += scoreNumberPartial
		case strings.Contains(haystack, num):
			score += scoreNumberLoose
		}
	}

	// Rarity.
	if target.Rarity != "" && c.Rarity != "" {
		tr, cr := NormalizeRarity(target.Rarity), NormalizeRarity(c.Rarity)
		switch {
		case EquivalentRarities(tr, cr):
			score += scoreRarityExact
		case strings.Contains(cr, tr) || strings.Contains(tr, cr):
			score += scoreRarityPartial
		default:
			score += scoreRarityClash
		}
	} else if target.Rarity != "" && strings.Contains(haystack, NormalizeRarity(target.Rarity)) {
		score += scoreRarityPartial
	}

	// Card name.
	if target.CardName != "" {
		tn := strings.ToLower(strings.TrimSpace(target.CardName))
		cn := strings.ToLower(strings.TrimSpace(c.CardName))
		switch {
		case cn != "" && cn == tn:
			score += scoreNameExact
		case cn != "" && (strings.Contains(cn, tn) || strings.Contains(tn, cn)):
			score += scoreNamePartial
		case strings.Contains(haystack, tn):
			score += scoreNamePartial
		}
	}

	// Art variant, only when the target asks for one.
	if target.ArtVariant != "" {
		want := NormalizeArtVariant(target.ArtVariant)
		got := ExtractArtVariant(c.Title + " " + c.URL)
		switch {
		case got != "" && got == want:
			score += scoreVariantExact
		case got != "":
			score += scoreVariantClash
		case strings.Contains(haystack, want):
			score += scoreVariantWeak
		default:
			score += scoreVariantNone
		}
	}

	// Richer titles win ties between otherwise equal listings.
	bonus := len(c.Title) / 30
	if bonus > scoreTitleCap {
		bonus = scoreTitleCap
	}
	score += bonus

	return score
}

// SelectBest ranks candidates against the target and returns the best match.
// The top-scoring candidate wins when its score is positive. When no
// candidate scores above zero the first candidate in original order is
// returned as a best-effort pick rather than reporting no match. Returns
// false only for an empty candidate set.
func SelectBest(target Target, candidates []Candidate) (ScoredCandidate, bool) {
	if len(candidates) == 0 {
		return ScoredCandidate{}, false
	}

	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredCandidate{Candidate: c, Score: Score(target, c)}
	}

	ranked := make([]ScoredCandidate, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if ranked[0].Score > 0 {
		return ranked[0], true
	}
	return scored[0], true
}
