package cache

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"stock-search-service/src/identifier"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// RedisCache (L1)
// -----------------------------------------------------------------------------

// RedisCache is the distributed tier. Expiry is server-side TTL, so there is
// no local expiry bookkeeping. The tier is an optimization, not a source of
// truth: every network or payload error degrades to a cache miss.
type RedisCache struct {
	client *redis.Client
	hits   atomic.Int64
	misses atomic.Int64
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisCache(cfg models.MRedisConfig, log *logger.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Ping verifies connectivity at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Name() string {
	return string(models.SourceRedisCache)
}

// -----------------------------------------------------------------------------

// cacheKey builds the namespaced key scheme stock:{type}:{value}.
func cacheKey(idType identifier.Type, value string) string {
	return "stock:" + string(idType) + ":" + strings.ToUpper(value)
}

// -----------------------------------------------------------------------------

func keyForIdentifier(id identifier.Identifier) (string, bool) {
	switch {
	case id.Symbol != "":
		return cacheKey(identifier.TypeSymbol, id.Symbol), true
	case id.ISIN != "":
		return cacheKey(identifier.TypeISIN, id.ISIN), true
	case id.WKN != "":
		return cacheKey(identifier.TypeWKN, id.WKN), true
	default:
		return "", false
	}
}

// -----------------------------------------------------------------------------

func (c *RedisCache) FindByIdentifier(ctx context.Context, id identifier.Identifier) (*models.MStock, bool) {
	key, ok := keyForIdentifier(id)
	if !ok {
		return nil, false
	}

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		c.logger.Warning("Redis get failed for %s: %v", key, err)
		c.misses.Add(1)
		return nil, false
	}
	if len(fields) == 0 {
		c.misses.Add(1)
		return nil, false
	}

	stock, err := decodeStock(fields)
	if err != nil {
		c.logger.Warning("Redis payload for %s is malformed, treating as miss: %v", key, err)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	stock.DataSource = models.SourceRedisCache
	return stock, true
}

// -----------------------------------------------------------------------------

// FindByName always returns empty. Trigram/full-text matching belongs to the
// relational tier.
func (c *RedisCache) FindByName(ctx context.Context, query string, limit int) ([]models.MStock, error) {
	return nil, nil
}

// -----------------------------------------------------------------------------

// Save writes the flat field encoding under every identifier key the stock
// carries. Best effort: failures are logged and swallowed.
func (c *RedisCache) Save(ctx context.Context, stock *models.MStock, ttl time.Duration) error {
	fields := encodeStock(stock)

	pipe := c.client.Pipeline()
	for _, key := range stockKeys(stock) {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warning("Redis save failed for %s: %v", stock.CacheKey(), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func stockKeys(stock *models.MStock) []string {
	keys := make([]string, 0, 3)
	if stock.Symbol != "" {
		keys = append(keys, cacheKey(identifier.TypeSymbol, stock.Symbol))
	}
	if stock.ISIN != "" {
		keys = append(keys, cacheKey(identifier.TypeISIN, stock.ISIN))
	}
	if stock.WKN != "" {
		keys = append(keys, cacheKey(identifier.TypeWKN, stock.WKN))
	}
	return keys
}

// -----------------------------------------------------------------------------

// DeleteExpired is a no-op: Redis expires keys server-side.
func (c *RedisCache) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Stats() models.MCacheStats {
	stats := models.MCacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if size, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.Size = int(size)
	}
	return stats
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// -----------------------------------------------------------------------------
// Serialization: a flat field-by-field hash encoding. Prices travel as
// decimal strings so they survive the round-trip without float loss.
// -----------------------------------------------------------------------------

func encodeStock(stock *models.MStock) map[string]string {
	fields := map[string]string{
		"symbol":       stock.Symbol,
		"name":         stock.Name,
		"isin":         stock.ISIN,
		"wkn":          stock.WKN,
		"price":        stock.Price.Current.String(),
		"currency":     stock.Price.Currency,
		"exchange":     stock.Metadata.Exchange,
		"sector":       stock.Metadata.Sector,
		"industry":     stock.Metadata.Industry,
		"market_cap":   strconv.FormatInt(stock.Metadata.MarketCap, 10),
		"data_source":  string(stock.DataSource),
		"last_updated": stock.LastUpdated.UTC().Format(time.RFC3339),
	}
	if stock.Price.PreviousClose != nil {
		fields["previous_close"] = stock.Price.PreviousClose.String()
	}
	if stock.Price.ChangeAbsolute != nil {
		fields["change_absolute"] = stock.Price.ChangeAbsolute.String()
	}
	if stock.Price.ChangePercent != nil {
		fields["change_percent"] = stock.Price.ChangePercent.String()
	}
	return fields
}

// -----------------------------------------------------------------------------

func decodeStock(fields map[string]string) (*models.MStock, error) {
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, err
	}

	stock := &models.MStock{
		Symbol: fields["symbol"],
		Name:   fields["name"],
		ISIN:   fields["isin"],
		WKN:    fields["wkn"],
		Price: models.MStockPrice{
			Current:  price,
			Currency: fields["currency"],
		},
		Metadata: models.MStockMetadata{
			Exchange: fields["exchange"],
			Sector:   fields["sector"],
			Industry: fields["industry"],
		},
		DataSource: models.MDataSource(fields["data_source"]),
	}

	if raw := fields["market_cap"]; raw != "" {
		if mc, err := strconv.ParseInt(raw, 10, 64); err == nil {
			stock.Metadata.MarketCap = mc
		}
	}
	if raw := fields["last_updated"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			stock.LastUpdated = ts
		}
	}

	stock.Price.PreviousClose = parseOptionalDecimal(fields["previous_close"])
	stock.Price.ChangeAbsolute = parseOptionalDecimal(fields["change_absolute"])
	stock.Price.ChangePercent = parseOptionalDecimal(fields["change_percent"])

	return stock, nil
}

// -----------------------------------------------------------------------------

func parseOptionalDecimal(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}
