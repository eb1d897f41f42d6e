package storage

import (
	"context"
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

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()

	cfg := &models.MConfig{
		Name:    "stock-search-service-test",
		Storage: models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:"},
	}
	db, err := NewSQLiteDB(cfg, logger.NewLogger("INFO", "SQLiteDB-test"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func storedStock(symbol, name string) *models.MStock {
	prev := decimal.RequireFromString("148.5")
	return &models.MStock{
		Symbol: symbol,
		Name:   name,
		ISIN:   "US0378331005",
		Price: models.MStockPrice{
			Current:       decimal.RequireFromString("150.25"),
			Currency:      "USD",
			PreviousClose: &prev,
		},
		Metadata:    models.MStockMetadata{Exchange: "NMS", MarketCap: 2500000000000},
		DataSource:  models.SourceYahoo,
		LastUpdated: time.Now().UTC().Truncate(time.Second),
	}
}

// -----------------------------------------------------------------------------

func TestSQLiteSaveAndFind(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, storedStock("AAPL", "Apple Inc."), time.Hour))

	got, ok := db.FindByIdentifier(ctx, identifier.Identifier{Symbol: "AAPL"})
	require.True(t, ok)
	assert.Equal(t, "Apple Inc.", got.Name)
	assert.Equal(t, "150.25", got.Price.Current.String())
	assert.Equal(t, models.SourceDatabase, got.DataSource)
	require.NotNil(t, got.ExpiresAt)

	// ISIN resolves to the same row
	got, ok = db.FindByIdentifier(ctx, identifier.Identifier{ISIN: "US0378331005"})
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)

	_, ok = db.FindByIdentifier(ctx, identifier.Identifier{Symbol: "MSFT"})
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestSQLiteExpiredRowsAreAbsent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, storedStock("AAPL", "Apple Inc."), -time.Second))

	_, ok := db.FindByIdentifier(ctx, identifier.Identifier{Symbol: "AAPL"})
	assert.False(t, ok, "expired rows are treated as absent on the read path")

	// cleanup is the only place rows are hard-deleted
	removed, err := db.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 0, db.Stats().Size)
}

// -----------------------------------------------------------------------------

func TestSQLiteUpsertIncrementsCacheHits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, storedStock("AAPL", "Apple Inc."), time.Hour))
	require.NoError(t, db.Save(ctx, storedStock("AAPL", "Apple Inc."), time.Hour))
	require.NoError(t, db.Save(ctx, storedStock("AAPL", "Apple Inc."), time.Hour))

	var hits int64
	require.NoError(t, db.DB.QueryRow(`SELECT cache_hits FROM stock_cache WHERE symbol = 'AAPL'`).Scan(&hits))
	assert.Equal(t, int64(2), hits)

	assert.Equal(t, 1, db.Stats().Size)
}

// -----------------------------------------------------------------------------

func TestSQLiteFindByName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	apple := storedStock("AAPL", "Apple Inc.")
	applied := storedStock("AMAT", "Applied Materials")
	applied.ISIN = "US0382221051"
	require.NoError(t, db.Save(ctx, apple, time.Hour))
	require.NoError(t, db.Save(ctx, applied, time.Hour))

	candidates, err := db.FindByName(ctx, "app", 10)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	candidates, err = db.FindByName(ctx, "materials", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "AMAT", candidates[0].Symbol)
}

// -----------------------------------------------------------------------------

func TestSQLiteLikeMetacharactersMatchLiterally(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, storedStock("AAPL", "Apple Inc."), time.Hour))
	oddball := storedStock("PCT1", "100% Growth Fund")
	oddball.ISIN = "US0382221051"
	require.NoError(t, db.Save(ctx, oddball, time.Hour))

	// wildcards in the query must not match every row
	candidates, err := db.FindByName(ctx, "%%%", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	candidates, err = db.FindByName(ctx, "a___e", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// a literal % in the stored name is still findable
	candidates, err = db.FindByName(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "PCT1", candidates[0].Symbol)

	require.NoError(t, db.RecordSearch(ctx, "AAPL", true))
	suggestions, err := db.Suggestions(ctx, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

// -----------------------------------------------------------------------------

func TestSQLiteSearchHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordSearch(ctx, "AAPL", true))
	require.NoError(t, db.RecordSearch(ctx, "aapl", true))
	require.NoError(t, db.RecordSearch(ctx, "apple", true))
	require.NoError(t, db.RecordSearch(ctx, "atlantis gold", false))

	// case-insensitive aggregation into one record
	suggestions, err := db.Suggestions(ctx, "aa", 10)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "aapl", suggestions[0].Query)
	assert.Equal(t, int64(2), suggestions[0].SearchCount)

	// not-found queries never surface as suggestions
	suggestions, err = db.Suggestions(ctx, "atlantis", 10)
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	top, err := db.TopSearches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "aapl", top[0].Query)
}
