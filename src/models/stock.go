package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// MDataSource tags which tier or provider produced a stock payload.
type MDataSource string

const (
	SourceMemoryCache MDataSource = "memory_cache"
	SourceRedisCache  MDataSource = "redis_cache"
	SourceDatabase    MDataSource = "database"
	SourceYahoo       MDataSource = "yahoo_finance"
)

// -----------------------------------------------------------------------------

// MStockPrice holds the quote data for a stock.
// Decimals serialize as quoted strings, so prices survive JSON round-trips
// without float drift.
type MStockPrice struct {
	Current        decimal.Decimal  `json:"current"`
	Currency       string           `json:"currency"`
	PreviousClose  *decimal.Decimal `json:"previous_close,omitempty"`
	ChangeAbsolute *decimal.Decimal `json:"change_absolute,omitempty"`
	ChangePercent  *decimal.Decimal `json:"change_percent,omitempty"`
}

// -----------------------------------------------------------------------------

// CalculateChangePercent derives the percent change from current vs previous
// close. The bool is false when previous close is missing or zero.
func (p MStockPrice) CalculateChangePercent() (decimal.Decimal, bool) {
	if p.PreviousClose == nil || p.PreviousClose.IsZero() {
		return decimal.Zero, false
	}
	diff := p.Current.Sub(*p.PreviousClose)
	return diff.Div(*p.PreviousClose).Mul(decimal.NewFromInt(100)).Round(4), true
}

// -----------------------------------------------------------------------------

// MStockMetadata carries optional descriptive attributes.
type MStockMetadata struct {
	Exchange  string `json:"exchange,omitempty"`
	Sector    string `json:"sector,omitempty"`
	Industry  string `json:"industry,omitempty"`
	MarketCap int64  `json:"market_cap,omitempty"`
}

// -----------------------------------------------------------------------------

// MStock is the aggregate returned by every lookup path. Instances are
// replaced wholesale on refresh, never partially updated.
type MStock struct {
	Symbol      string         `json:"symbol"`
	Name        string         `json:"name"`
	ISIN        string         `json:"isin,omitempty"`
	WKN         string         `json:"wkn,omitempty"`
	Price       MStockPrice    `json:"price"`
	Metadata    MStockMetadata `json:"metadata"`
	DataSource  MDataSource    `json:"data_source"`
	LastUpdated time.Time      `json:"last_updated"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

// -----------------------------------------------------------------------------

// IsStale reports whether the stock is older than maxAge.
func (s *MStock) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdated) > maxAge
}

// -----------------------------------------------------------------------------

// CacheKey returns the preferred cache key for the stock: symbol first,
// then ISIN, then WKN. Free-text names are never used as cache keys.
func (s *MStock) CacheKey() string {
	switch {
	case s.Symbol != "":
		return strings.ToUpper(s.Symbol)
	case s.ISIN != "":
		return strings.ToUpper(s.ISIN)
	default:
		return strings.ToUpper(s.WKN)
	}
}

// -----------------------------------------------------------------------------

// MSearchMatch pairs a stock with its relevance score for name search
// responses. Never persisted.
type MSearchMatch struct {
	Stock          MStock  `json:"stock"`
	RelevanceScore float64 `json:"relevance_score"`
	MatchedField   string  `json:"matched_field"`
}

// -----------------------------------------------------------------------------

// MSearchHistoryRecord tracks how often a query was searched and whether it
// ever resolved. Rows are only ever inserted or incremented.
type MSearchHistoryRecord struct {
	Query        string    `json:"query"`
	ResultFound  bool      `json:"result_found"`
	SearchCount  int64     `json:"search_count"`
	LastSearched time.Time `json:"last_searched"`
}
