package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------

func namedCandidate(symbol, name string) Candidate {
	return Candidate{Stock: models.MStock{Symbol: symbol, Name: name}}
}

// -----------------------------------------------------------------------------

func TestScorePrecedence(t *testing.T) {
	s := NewScorer(0)

	score, field := s.Score("apple inc.", namedCandidate("AAPL", "Apple Inc."))
	assert.Equal(t, scoreExact, score)
	assert.Equal(t, "name", field)

	score, _ = s.Score("app", namedCandidate("AAPL", "Apple Inc."))
	assert.Equal(t, scorePrefix, score)

	score, _ = s.Score("materials", namedCandidate("AMAT", "Applied Materials"))
	assert.Equal(t, scoreWordStart, score)

	score, _ = s.Score("app", namedCandidate("SNAP1", "Snapple Group"))
	assert.Equal(t, scoreContains, score)
	assert.Less(t, score, scoreWordStart)

	score, _ = s.Score("zzz", namedCandidate("AAPL", "Apple Inc."))
	assert.Equal(t, scoreFuzzy, score)
}

// -----------------------------------------------------------------------------

func TestScoreMatchesIdentifierFields(t *testing.T) {
	s := NewScorer(0)

	c := Candidate{Stock: models.MStock{Symbol: "AAPL", Name: "Apple Inc.", ISIN: "US0378331005"}}

	score, field := s.Score("aapl", c)
	assert.Equal(t, scoreExact, score)
	assert.Equal(t, "symbol", field)

	score, field = s.Score("us0378331005", c)
	assert.Equal(t, scoreExact, score)
	assert.Equal(t, "isin", field)
}

// -----------------------------------------------------------------------------

func TestScoreBatchRanking(t *testing.T) {
	s := NewScorer(0)

	candidates := []Candidate{
		namedCandidate("SNAP1", "Snapple Group"),
		namedCandidate("AMAT", "Applied Materials"),
		namedCandidate("AAPL", "Apple Inc."),
	}

	matches := s.ScoreBatch("app", candidates, 10)
	require.Len(t, matches, 3)

	// both prefix matches ahead of the substring match, ties in name order
	assert.Equal(t, "Apple Inc.", matches[0].Stock.Name)
	assert.Equal(t, "Applied Materials", matches[1].Stock.Name)
	assert.Equal(t, "Snapple Group", matches[2].Stock.Name)
	assert.Equal(t, scorePrefix, matches[0].RelevanceScore)
	assert.Less(t, matches[2].RelevanceScore, scoreWordStart)
}

// -----------------------------------------------------------------------------

func TestPopularityBreaksTiesOnly(t *testing.T) {
	s := NewScorer(0.0005)

	popular := namedCandidate("AMAT", "Applied Materials")
	popular.SearchCount = 100000
	popular.Stock.Metadata.MarketCap = 3000000000000

	candidates := []Candidate{
		namedCandidate("AAPL", "Apple Inc."),
		popular,
	}

	matches := s.ScoreBatch("app", candidates, 10)
	require.Len(t, matches, 2)

	// same prefix tier, higher popularity wins the tie
	assert.Equal(t, "Applied Materials", matches[0].Stock.Name)
	assert.Equal(t, "Apple Inc.", matches[1].Stock.Name)
}

// -----------------------------------------------------------------------------

func TestPopularityNeverOverridesMatchTier(t *testing.T) {
	s := NewScorer(1.0) // absurdly high weight, still clamped

	contains := namedCandidate("SNAP1", "Snapple Group")
	contains.SearchCount = 1000000
	contains.Stock.Metadata.MarketCap = 9000000000000

	candidates := []Candidate{
		contains,
		namedCandidate("AMAT", "Applied Materials"),
	}

	matches := s.ScoreBatch("materials", candidates, 10)
	require.Len(t, matches, 2)

	assert.Equal(t, "Applied Materials", matches[0].Stock.Name)
	assert.Greater(t, matches[0].RelevanceScore, matches[1].RelevanceScore)
}

// -----------------------------------------------------------------------------

func TestScoreBatchLimit(t *testing.T) {
	s := NewScorer(0)

	candidates := []Candidate{
		namedCandidate("A", "Alpha Systems"),
		namedCandidate("B", "Alpha Metals"),
		namedCandidate("C", "Alpha Foods"),
	}

	matches := s.ScoreBatch("alpha", candidates, 2)
	assert.Len(t, matches, 2)
}
