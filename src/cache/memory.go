package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"stock-search-service/src/identifier"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// MemoryCache (L0)
// -----------------------------------------------------------------------------

// MemoryCache is the fixed-capacity in-process LRU tier. Keys are uppercased
// symbol/ISIN/WKN strings, never free-text names. A single mutex serializes
// the LRU touch, expiry purge and counter updates so concurrent requests
// cannot interleave a lookup with an eviction.
type MemoryCache struct {
	entries *lru.Cache[string, models.MCacheEntry[*models.MStock]]

	hits      int64
	misses    int64
	evictions int64

	mu     sync.Mutex
	now    func() time.Time
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewMemoryCache(maxSize int, log *logger.Logger) (*MemoryCache, error) {
	entries, err := lru.New[string, models.MCacheEntry[*models.MStock]](maxSize)
	if err != nil {
		return nil, err
	}

	return &MemoryCache{
		entries: entries,
		now:     time.Now,
		logger:  log,
	}, nil
}

// -----------------------------------------------------------------------------

// Get returns the cached stock if present and not expired. Expired entries
// are purged lazily here and counted as a miss.
func (c *MemoryCache) Get(key string) (*models.MStock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}

	if entry.Expired(c.now()) {
		c.entries.Remove(key)
		c.misses++
		return nil, false
	}

	c.hits++
	return entry.Value, true
}

// -----------------------------------------------------------------------------

// Set stores a stock under key with the given TTL. Inserting past capacity
// evicts the least-recently-used entry; updating an existing key does not.
func (c *MemoryCache) Set(key string, stock *models.MStock, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(key, stock, ttl)
}

// -----------------------------------------------------------------------------

// set requires the lock to be held.
func (c *MemoryCache) set(key string, stock *models.MStock, ttl time.Duration) {
	entry := models.MCacheEntry[*models.MStock]{
		Value:     stock,
		ExpiresAt: c.now().Add(ttl),
	}
	if evicted := c.entries.Add(key, entry); evicted {
		c.evictions++
	}
}

// -----------------------------------------------------------------------------

// Delete removes a key. Returns true if it was present.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Remove(key)
}

// -----------------------------------------------------------------------------

// Clear drops every entry without touching the counters.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
}

// -----------------------------------------------------------------------------

// Warmup bulk pre-loads entries and returns the count loaded.
func (c *MemoryCache) Warmup(stocks []*models.MStock, ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, stock := range stocks {
		if stock == nil || stock.CacheKey() == "" {
			continue
		}
		c.set(stock.CacheKey(), stock, ttl)
		loaded++
	}
	return loaded
}

// -----------------------------------------------------------------------------

// Stats returns size, hit/miss/eviction counters and the hit rate.
func (c *MemoryCache) Stats() models.MCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := models.MCacheStats{
		Size:      c.entries.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// -----------------------------------------------------------------------------

// purgeExpired removes every expired entry and returns the count removed.
func (c *MemoryCache) purgeExpired(cutoff time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	for _, key := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(key); ok && cutoff.After(entry.ExpiresAt) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// -----------------------------------------------------------------------------
// MemoryTier adapts MemoryCache to the shared repository contract so the
// orchestrator can treat it like any other tier.
// -----------------------------------------------------------------------------

type MemoryTier struct {
	Cache *MemoryCache
	TTL   time.Duration
}

// -----------------------------------------------------------------------------

func NewMemoryTier(cache *MemoryCache, ttl time.Duration) *MemoryTier {
	return &MemoryTier{Cache: cache, TTL: ttl}
}

// -----------------------------------------------------------------------------

func (t *MemoryTier) Name() string {
	return string(models.SourceMemoryCache)
}

// -----------------------------------------------------------------------------

func (t *MemoryTier) FindByIdentifier(ctx context.Context, id identifier.Identifier) (*models.MStock, bool) {
	if id.Name != "" {
		return nil, false
	}

	stock, ok := t.Cache.Get(strings.ToUpper(id.String()))
	if !ok {
		return nil, false
	}

	// copy so callers never mutate the shared cached instance
	hit := *stock
	hit.DataSource = models.SourceMemoryCache
	return &hit, true
}

// -----------------------------------------------------------------------------

// FindByName always returns empty: the in-process tier never indexes names.
func (t *MemoryTier) FindByName(ctx context.Context, query string, limit int) ([]models.MStock, error) {
	return nil, nil
}

// -----------------------------------------------------------------------------

// Save stores the stock under every identifier it carries, so a later ISIN
// or WKN lookup hits without going back down the tiers.
func (t *MemoryTier) Save(ctx context.Context, stock *models.MStock, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.TTL
	}
	for _, key := range []string{stock.Symbol, stock.ISIN, stock.WKN} {
		if key != "" {
			t.Cache.Set(strings.ToUpper(key), stock, ttl)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (t *MemoryTier) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return t.Cache.purgeExpired(cutoff), nil
}

// -----------------------------------------------------------------------------

func (t *MemoryTier) Stats() models.MCacheStats {
	return t.Cache.Stats()
}

// -----------------------------------------------------------------------------

func (t *MemoryTier) Close() error {
	t.Cache.Clear()
	return nil
}
