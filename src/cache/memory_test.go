package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-search-service/src/identifier"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------

func testStock(symbol string) *models.MStock {
	return &models.MStock{
		Symbol: symbol,
		Name:   symbol + " Corp",
		Price: models.MStockPrice{
			Current:  decimal.NewFromFloat(123.45),
			Currency: "USD",
		},
		DataSource:  models.SourceYahoo,
		LastUpdated: time.Now(),
	}
}

func newTestCache(t *testing.T, size int) *MemoryCache {
	t.Helper()
	c, err := NewMemoryCache(size, logger.NewLogger("INFO", "MemoryCache-test"))
	require.NoError(t, err)
	return c
}

// -----------------------------------------------------------------------------

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := newTestCache(t, 10)

	c.Set("AAPL", testStock("AAPL"), time.Minute)
	got, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.True(t, decimal.NewFromFloat(123.45).Equal(got.Price.Current))

	_, ok = c.Get("MSFT")
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t, 10)
	current := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("AAPL", testStock("AAPL"), 30*time.Second)

	_, ok := c.Get("AAPL")
	require.True(t, ok)

	current = current.Add(31 * time.Second)
	_, ok = c.Get("AAPL")
	assert.False(t, ok)

	// lazy purge counted as miss, entry physically gone
	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Evictions)
}

// -----------------------------------------------------------------------------

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := newTestCache(t, 3)

	c.Set("A", testStock("A"), time.Minute)
	c.Set("B", testStock("B"), time.Minute)
	c.Set("C", testStock("C"), time.Minute)

	// touching A makes B the least recently used
	_, ok := c.Get("A")
	require.True(t, ok)

	c.Set("D", testStock("D"), time.Minute)

	_, ok = c.Get("B")
	assert.False(t, ok, "B should have been evicted")
	for _, key := range []string{"A", "C", "D"} {
		_, ok = c.Get(key)
		assert.True(t, ok, "%s should remain", key)
	}

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

// -----------------------------------------------------------------------------

func TestMemoryCacheUpdateIsNotEviction(t *testing.T) {
	c := newTestCache(t, 2)

	c.Set("A", testStock("A"), time.Minute)
	c.Set("B", testStock("B"), time.Minute)
	c.Set("A", testStock("A"), time.Minute)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(0), stats.Evictions)
}

// -----------------------------------------------------------------------------

func TestMemoryCacheWarmupAndClear(t *testing.T) {
	c := newTestCache(t, 10)

	loaded := c.Warmup([]*models.MStock{testStock("AAPL"), testStock("MSFT"), nil}, time.Minute)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 2, c.Stats().Size)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)
}

// -----------------------------------------------------------------------------

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := newTestCache(t, 64)

	var wg sync.WaitGroup
	keys := []string{"AAPL", "MSFT", "SAP", "BMW", "VOW3"}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := keys[j%len(keys)]
				c.Set(key, testStock(key), time.Minute)
				if got, ok := c.Get(key); ok {
					assert.Equal(t, key, got.Symbol)
				}
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Size, 64)
	assert.Positive(t, stats.Hits)
}

// -----------------------------------------------------------------------------

func TestMemoryTierKeysEveryIdentifier(t *testing.T) {
	c := newTestCache(t, 10)
	tier := NewMemoryTier(c, time.Minute)
	ctx := context.Background()

	stock := testStock("AAPL")
	stock.ISIN = "US0378331005"
	require.NoError(t, tier.Save(ctx, stock, time.Minute))

	got, ok := tier.FindByIdentifier(ctx, identifier.Identifier{ISIN: "US0378331005"})
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, models.SourceMemoryCache, got.DataSource)

	// names never hit the in-process tier
	_, ok = tier.FindByIdentifier(ctx, identifier.Identifier{Name: "Apple"})
	assert.False(t, ok)
}
