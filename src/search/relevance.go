package search

import (
	"sort"
	"strings"
	"unicode"

	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// Relevance scoring
// -----------------------------------------------------------------------------

// Primary match tiers. The precedence order is fixed; popularity only breaks
// ties within a tier and must never lift a candidate across tiers.
const (
	scoreExact     = 1.0
	scorePrefix    = 0.9
	scoreWordStart = 0.8
	scoreContains  = 0.6
	scoreFuzzy     = 0.3 // provider-side fuzzy hit with no literal overlap

	// popularity contribution is clamped below the 0.1 tier gap
	maxPopularityBoost = 0.09
)

// -----------------------------------------------------------------------------

// Candidate pairs a stock with its historical search frequency for the
// popularity tiebreaker.
type Candidate struct {
	Stock       models.MStock
	SearchCount int64
}

// -----------------------------------------------------------------------------

// Scorer ranks name-search candidates. Pure and deterministic for a given
// candidate set: popularity is normalized against the maxima within the set
// being scored, not against live table state.
type Scorer struct {
	PopularityWeight float64
}

// -----------------------------------------------------------------------------

func NewScorer(popularityWeight float64) *Scorer {
	return &Scorer{PopularityWeight: popularityWeight}
}

// -----------------------------------------------------------------------------

// Score returns the primary match score in [0,1] and the matched field.
func (s *Scorer) Score(query string, candidate Candidate) (float64, string) {
	q := strings.ToLower(strings.TrimSpace(query))
	name := strings.ToLower(strings.TrimSpace(candidate.Stock.Name))

	switch {
	case name != "" && name == q:
		return scoreExact, "name"
	case strings.EqualFold(candidate.Stock.Symbol, q):
		return scoreExact, "symbol"
	case strings.EqualFold(candidate.Stock.ISIN, q):
		return scoreExact, "isin"
	case strings.EqualFold(candidate.Stock.WKN, q):
		return scoreExact, "wkn"
	case strings.HasPrefix(name, q):
		return scorePrefix, "name"
	case wordStartsWith(name, q):
		return scoreWordStart, "name"
	case strings.Contains(name, q):
		return scoreContains, "name"
	default:
		return scoreFuzzy, "name"
	}
}

// -----------------------------------------------------------------------------

// wordStartsWith reports whether any whole word inside name starts with q.
func wordStartsWith(name, q string) bool {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if strings.HasPrefix(w, q) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// ScoreBatch scores all candidates and returns the top limit matches sorted
// descending by score. Ties break by candidate name lexical order.
func (s *Scorer) ScoreBatch(query string, candidates []Candidate, limit int) []models.MSearchMatch {
	if len(candidates) == 0 {
		return nil
	}

	var maxCount int64
	var maxCap int64
	for _, c := range candidates {
		if c.SearchCount > maxCount {
			maxCount = c.SearchCount
		}
		if c.Stock.Metadata.MarketCap > maxCap {
			maxCap = c.Stock.Metadata.MarketCap
		}
	}

	matches := make([]models.MSearchMatch, 0, len(candidates))
	for _, c := range candidates {
		score, field := s.Score(query, c)

		boost := s.PopularityWeight * s.popularity(c, maxCount, maxCap)
		if boost > maxPopularityBoost {
			boost = maxPopularityBoost
		}
		score += boost
		if score > 1.0 {
			score = 1.0
		}

		matches = append(matches, models.MSearchMatch{
			Stock:          c.Stock,
			RelevanceScore: score,
			MatchedField:   field,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RelevanceScore != matches[j].RelevanceScore {
			return matches[i].RelevanceScore > matches[j].RelevanceScore
		}
		return matches[i].Stock.Name < matches[j].Stock.Name
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// -----------------------------------------------------------------------------

// popularity sums search-frequency and market-cap terms, each min-max
// normalized to [0,100] against the candidate set.
func (s *Scorer) popularity(c Candidate, maxCount, maxCap int64) float64 {
	var p float64
	if maxCount > 0 {
		p += float64(c.SearchCount) / float64(maxCount) * 100
	}
	if maxCap > 0 {
		p += float64(c.Stock.Metadata.MarketCap) / float64(maxCap) * 100
	}
	return p
}
