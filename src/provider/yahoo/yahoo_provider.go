package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"
	"github.com/shopspring/decimal"

	"stock-search-service/src/helpers"
	"stock-search-service/src/identifier"
	"stock-search-service/src/interfaces"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
	"stock-search-service/src/resilience"
)

// -----------------------------------------------------------------------------

// Provider is the outermost tier: the upstream market-data dependency.
// Every call passes the rate limiter first, then the circuit breaker, so a
// flood of misses can neither hammer Yahoo nor keep poking a failing API.
type Provider struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Limiter *resilience.RateLimiter
	Breaker *resilience.CircuitBreaker
	Logger  *logger.Logger

	// injectable for tests
	quoteFn     func(symbol string) (*finance.Equity, error)
	quoteListFn func(symbols []string) ([]*finance.Equity, error)
}

// -----------------------------------------------------------------------------

func NewProvider(
	cfg *models.MConfig,
	netMgr interfaces.INetworkManager,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	log *logger.Logger,
) *Provider {
	return &Provider{
		Config:      cfg,
		Network:     netMgr,
		Limiter:     limiter,
		Breaker:     breaker,
		Logger:      log,
		quoteFn:     equity.Get,
		quoteListFn: listQuotes,
	}
}

// -----------------------------------------------------------------------------

func listQuotes(symbols []string) ([]*finance.Equity, error) {
	iter := equity.List(symbols)
	var quotes []*finance.Equity
	for iter.Next() {
		quotes = append(quotes, iter.Equity())
	}
	return quotes, iter.Err()
}

// -----------------------------------------------------------------------------

func (p *Provider) Name() string {
	return p.Config.Provider.Name
}

// -----------------------------------------------------------------------------

// FetchStock resolves a single stock. Symbols go straight to the quote API;
// ISIN/WKN lookups resolve to a symbol through the search endpoint first.
// Name lookups never take this path.
func (p *Provider) FetchStock(ctx context.Context, id identifier.Identifier) (*models.MStock, error) {
	if id.Name != "" {
		return nil, helpers.NewValidationError("identifier", "name lookups must use the search path")
	}

	symbol := strings.ToUpper(id.Symbol)
	if symbol == "" {
		resolved, err := p.resolveSymbol(ctx, id.String())
		if err != nil {
			return nil, err
		}
		symbol = resolved
	}

	if err := p.Limiter.Acquire(); err != nil {
		return nil, err
	}

	var q *finance.Equity
	err := p.Breaker.Call(func() error {
		var ferr error
		q, ferr = p.quoteFn(symbol)
		return ferr
	})
	if err != nil {
		return nil, p.wrapUpstreamError("quote fetch failed", err)
	}

	if q == nil || q.RegularMarketPrice <= 0 {
		return nil, helpers.NewStockNotFoundError(id.String())
	}

	return p.mapQuote(q, id), nil
}

// -----------------------------------------------------------------------------

// SearchByName runs the provider-native fuzzy search and enriches the
// candidates with quotes so results can be cached for direct lookups.
func (p *Provider) SearchByName(ctx context.Context, query string, limit int) ([]models.MStock, error) {
	candidates, err := p.searchCandidates(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	symbols := make([]string, 0, len(candidates))
	for _, c := range candidates {
		symbols = append(symbols, c.Symbol)
	}

	if err := p.Limiter.Acquire(); err != nil {
		return nil, err
	}

	var quotes []*finance.Equity
	err = p.Breaker.Call(func() error {
		var ferr error
		quotes, ferr = p.quoteListFn(symbols)
		return ferr
	})
	if err != nil {
		return nil, p.wrapUpstreamError("quote list failed", err)
	}

	bySymbol := make(map[string]*finance.Equity, len(quotes))
	for _, q := range quotes {
		bySymbol[strings.ToUpper(q.Symbol)] = q
	}

	stocks := make([]models.MStock, 0, len(candidates))
	for _, c := range candidates {
		q, ok := bySymbol[strings.ToUpper(c.Symbol)]
		if !ok || q.RegularMarketPrice <= 0 {
			continue
		}
		stock := p.mapQuote(q, identifier.Identifier{Symbol: c.Symbol})
		if stock.Name == "" {
			stock.Name = c.name()
		}
		if stock.Metadata.Sector == "" {
			stock.Metadata.Sector = c.Sector
		}
		if stock.Metadata.Industry == "" {
			stock.Metadata.Industry = c.Industry
		}
		stocks = append(stocks, *stock)
	}

	return stocks, nil
}

// -----------------------------------------------------------------------------

// resolveSymbol turns an ISIN or WKN into a provider symbol via the search
// endpoint, which accepts standardized identifiers as queries.
func (p *Provider) resolveSymbol(ctx context.Context, value string) (string, error) {
	candidates, err := p.searchCandidates(ctx, value, 1)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 || candidates[0].Symbol == "" {
		return "", helpers.NewStockNotFoundError(value)
	}
	return strings.ToUpper(candidates[0].Symbol), nil
}

// -----------------------------------------------------------------------------

func (p *Provider) searchCandidates(ctx context.Context, query string, limit int) ([]searchQuote, error) {
	if err := p.Limiter.Acquire(); err != nil {
		return nil, err
	}

	params := map[string]string{
		"q":           query,
		"quotesCount": fmt.Sprintf("%d", limit),
		"newsCount":   "0",
	}

	var body []byte
	err := p.Breaker.Call(func() error {
		var nerr error
		body, nerr = p.Network.Get(p.Config.Provider.SearchURL, params)
		return nerr
	})
	if err != nil {
		return nil, p.wrapUpstreamError("search request failed", err)
	}

	candidates, err := parseSearchResponse(body)
	if err != nil {
		return nil, helpers.NewExternalServiceError(p.Name(), "malformed search payload", err)
	}
	return candidates, nil
}

// -----------------------------------------------------------------------------

// wrapUpstreamError passes protective rejections through untouched so the
// orchestrator can tell "unavailable right now" from "upstream broke".
func (p *Provider) wrapUpstreamError(message string, err error) error {
	var openErr *helpers.CircuitOpenError
	var limitErr *helpers.RateLimitError
	if errors.As(err, &openErr) || errors.As(err, &limitErr) {
		return err
	}
	return helpers.NewExternalServiceError(p.Name(), message, err)
}

// -----------------------------------------------------------------------------
// Payload mapping. Raw provider shapes are converted to the typed domain
// model here and never leak further in.
// -----------------------------------------------------------------------------

type searchQuote struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	LongName  string `json:"longname"`
	Exchange  string `json:"exchange"`
	QuoteType string `json:"quoteType"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
}

func (q searchQuote) name() string {
	if q.LongName != "" {
		return q.LongName
	}
	return q.ShortName
}

type searchResponse struct {
	Quotes []searchQuote `json:"quotes"`
}

// -----------------------------------------------------------------------------

func parseSearchResponse(data []byte) ([]searchQuote, error) {
	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	// only equity-like results carry a usable symbol
	candidates := resp.Quotes[:0]
	for _, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		candidates = append(candidates, q)
	}
	return candidates, nil
}

// -----------------------------------------------------------------------------

func (p *Provider) mapQuote(q *finance.Equity, id identifier.Identifier) *models.MStock {
	price := models.MStockPrice{
		Current:  decimal.NewFromFloat(q.RegularMarketPrice),
		Currency: q.CurrencyID,
	}
	if q.RegularMarketPreviousClose > 0 {
		prev := decimal.NewFromFloat(q.RegularMarketPreviousClose)
		chg := decimal.NewFromFloat(q.RegularMarketChange)
		pct := decimal.NewFromFloat(q.RegularMarketChangePercent)
		price.PreviousClose = &prev
		price.ChangeAbsolute = &chg
		price.ChangePercent = &pct
	}

	return &models.MStock{
		Symbol: strings.ToUpper(q.Symbol),
		Name:   q.ShortName,
		ISIN:   id.ISIN,
		WKN:    id.WKN,
		Price:  price,
		Metadata: models.MStockMetadata{
			Exchange:  q.FullExchangeName,
			MarketCap: q.MarketCap,
		},
		DataSource:  models.MDataSource(p.Name()),
		LastUpdated: time.Now().UTC(),
	}
}
