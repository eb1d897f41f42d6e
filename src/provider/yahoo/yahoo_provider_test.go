package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-search-service/src/helpers"
	"stock-search-service/src/identifier"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
	"stock-search-service/src/resilience"
)

// -----------------------------------------------------------------------------

const searchPayload = `{
	"quotes": [
		{"symbol": "AAPL", "shortname": "Apple Inc.", "longname": "Apple Inc.", "exchange": "NMS", "quoteType": "EQUITY"},
		{"symbol": "", "shortname": "Some News Item"},
		{"symbol": "APC.F", "shortname": "Apple Inc.", "exchange": "FRA", "quoteType": "EQUITY"}
	]
}`

type fakeNetwork struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeNetwork) Get(url string, params map[string]string) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

// -----------------------------------------------------------------------------

func newTestProvider(net *fakeNetwork) *Provider {
	cfg := &models.MConfig{
		Provider: models.MProviderConfig{
			Name:      string(models.SourceYahoo),
			SearchURL: "https://example.invalid/search",
		},
	}
	log := logger.NewLogger("INFO", "Provider-test")
	limiter := resilience.NewRateLimiter(100, time.Minute)
	breaker := resilience.NewCircuitBreaker("yahoo", 3, 30*time.Second, log)
	return NewProvider(cfg, net, limiter, breaker, log)
}

func appleQuote() *finance.Equity {
	return &finance.Equity{
		Quote: finance.Quote{
			Symbol:                     "AAPL",
			ShortName:                  "Apple Inc.",
			RegularMarketPrice:         228.02,
			RegularMarketPreviousClose: 227.40,
			RegularMarketChange:        0.62,
			RegularMarketChangePercent: 0.27,
			CurrencyID:                 "USD",
		},
		MarketCap: 3456789012345,
	}
}

// -----------------------------------------------------------------------------

func TestParseSearchResponseSkipsSymbollessQuotes(t *testing.T) {
	candidates, err := parseSearchResponse([]byte(searchPayload))
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "AAPL", candidates[0].Symbol)
	assert.Equal(t, "Apple Inc.", candidates[0].name())

	_, err = parseSearchResponse([]byte("<html>rate limited</html>"))
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestFetchStockBySymbol(t *testing.T) {
	p := newTestProvider(&fakeNetwork{})
	p.quoteFn = func(symbol string) (*finance.Equity, error) {
		assert.Equal(t, "AAPL", symbol)
		return appleQuote(), nil
	}

	stock, err := p.FetchStock(context.Background(), identifier.Identifier{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", stock.Symbol)
	assert.Equal(t, "228.02", stock.Price.Current.String())
	assert.Equal(t, "USD", stock.Price.Currency)
	require.NotNil(t, stock.Price.PreviousClose)
	assert.Equal(t, models.SourceYahoo, stock.DataSource)
}

// -----------------------------------------------------------------------------

func TestFetchStockResolvesISINThroughSearch(t *testing.T) {
	net := &fakeNetwork{body: []byte(searchPayload)}
	p := newTestProvider(net)
	p.quoteFn = func(symbol string) (*finance.Equity, error) {
		assert.Equal(t, "AAPL", symbol)
		return appleQuote(), nil
	}

	stock, err := p.FetchStock(context.Background(), identifier.Identifier{ISIN: "US0378331005"})
	require.NoError(t, err)
	assert.Equal(t, 1, net.calls)
	assert.Equal(t, "AAPL", stock.Symbol)
	assert.Equal(t, "US0378331005", stock.ISIN)
}

// -----------------------------------------------------------------------------

func TestFetchStockMissingPriceIsNotFound(t *testing.T) {
	p := newTestProvider(&fakeNetwork{})
	p.quoteFn = func(string) (*finance.Equity, error) {
		return &finance.Equity{Quote: finance.Quote{Symbol: "AAPL"}}, nil
	}

	_, err := p.FetchStock(context.Background(), identifier.Identifier{Symbol: "AAPL"})
	var nfErr *helpers.StockNotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

// -----------------------------------------------------------------------------

func TestFetchStockRejectsNamePath(t *testing.T) {
	p := newTestProvider(&fakeNetwork{})

	_, err := p.FetchStock(context.Background(), identifier.Identifier{Name: "Apple"})
	var verr *helpers.ValidationError
	assert.ErrorAs(t, err, &verr)
}

// -----------------------------------------------------------------------------

func TestFetchStockBreakerOpens(t *testing.T) {
	p := newTestProvider(&fakeNetwork{})
	p.quoteFn = func(string) (*finance.Equity, error) {
		return nil, errors.New("upstream timeout")
	}

	id := identifier.Identifier{Symbol: "AAPL"}
	for i := 0; i < 3; i++ {
		_, err := p.FetchStock(context.Background(), id)
		var extErr *helpers.ExternalServiceError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, string(models.SourceYahoo), extErr.Provider)
	}

	// breaker is open now: rejection passes through untouched, fn not called
	calls := 0
	p.quoteFn = func(string) (*finance.Equity, error) { calls++; return appleQuote(), nil }
	_, err := p.FetchStock(context.Background(), id)
	var openErr *helpers.CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Zero(t, calls)
}

// -----------------------------------------------------------------------------

func TestFetchStockRateLimited(t *testing.T) {
	p := newTestProvider(&fakeNetwork{})
	p.Limiter = resilience.NewRateLimiter(1, time.Minute)
	p.quoteFn = func(string) (*finance.Equity, error) { return appleQuote(), nil }

	_, err := p.FetchStock(context.Background(), identifier.Identifier{Symbol: "AAPL"})
	require.NoError(t, err)

	_, err = p.FetchStock(context.Background(), identifier.Identifier{Symbol: "AAPL"})
	var limitErr *helpers.RateLimitError
	assert.ErrorAs(t, err, &limitErr)
}

// -----------------------------------------------------------------------------

func TestSearchByNameEnrichesWithQuotes(t *testing.T) {
	net := &fakeNetwork{body: []byte(searchPayload)}
	p := newTestProvider(net)
	p.quoteListFn = func(symbols []string) ([]*finance.Equity, error) {
		assert.Equal(t, []string{"AAPL", "APC.F"}, symbols)
		return []*finance.Equity{appleQuote()}, nil
	}

	stocks, err := p.SearchByName(context.Background(), "apple", 10)
	require.NoError(t, err)
	// APC.F had no quote, so only AAPL survives
	require.Len(t, stocks, 1)
	assert.Equal(t, "AAPL", stocks[0].Symbol)
	assert.Equal(t, "Apple Inc.", stocks[0].Name)
}
