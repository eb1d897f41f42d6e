package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"stock-search-service/src/cache"
	"stock-search-service/src/helpers"
	"stock-search-service/src/identifier"
	"stock-search-service/src/interfaces"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
	"stock-search-service/src/resilience"
	"stock-search-service/src/utils"
)

// -----------------------------------------------------------------------------
// Search orchestrator
// -----------------------------------------------------------------------------

// historyCountsLimit bounds the history rows pulled to feed the popularity
// tiebreaker on a name search.
const historyCountsLimit = 100

// -----------------------------------------------------------------------------

// Tier is one cache level in the fallthrough chain, fastest first, together
// with the base TTL used when writing back into it.
type Tier struct {
	Repo interfaces.IStockRepository
	TTL  time.Duration
}

// -----------------------------------------------------------------------------

// Service walks the tier chain for identifier lookups, falls back to the
// provider, backfills faster tiers on a hit and records every outcome in the
// search history.
type Service struct {
	Config    *models.MConfig
	Tiers     []Tier
	Provider  interfaces.IStockProvider
	History   *HistoryTracker
	Scorer    *Scorer
	TTLPolicy *utils.TTLPolicy
	Memory    *cache.MemoryCache
	Breaker   *resilience.CircuitBreaker
	Limiter   *resilience.RateLimiter
	Logger    *logger.Logger

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewService(
	cfg *models.MConfig,
	tiers []Tier,
	provider interfaces.IStockProvider,
	history *HistoryTracker,
	scorer *Scorer,
	ttlPolicy *utils.TTLPolicy,
	memory *cache.MemoryCache,
	breaker *resilience.CircuitBreaker,
	limiter *resilience.RateLimiter,
	log *logger.Logger,
) *Service {
	return &Service{
		Config:    cfg,
		Tiers:     tiers,
		Provider:  provider,
		History:   history,
		Scorer:    scorer,
		TTLPolicy: ttlPolicy,
		Memory:    memory,
		Breaker:   breaker,
		Limiter:   limiter,
		Logger:    log,
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

// Search resolves a raw query. Symbol/ISIN/WKN inputs walk the tier chain and
// fall back to the provider; name-classified inputs go through the fuzzy
// search path and return the best match.
func (s *Service) Search(ctx context.Context, raw string) (*models.MStock, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, helpers.NewValidationError("query", "must not be empty")
	}

	id := identifier.FromRaw(trimmed)
	if err := id.Validate(); err != nil {
		return nil, err
	}

	if id.Name != "" {
		return s.searchBestByName(ctx, id.Name)
	}

	for i, tier := range s.Tiers {
		stock, ok := tier.Repo.FindByIdentifier(ctx, id)
		if !ok {
			continue
		}
		s.Logger.Debug("hit for %s in tier %s", id.String(), tier.Repo.Name())
		s.backfill(ctx, stock, i)
		s.History.Record(ctx, trimmed, true)
		return stock, nil
	}

	s.Logger.Debug("all tiers missed for %s, asking %s", id.String(), s.Provider.Name())
	stock, err := s.Provider.FetchStock(ctx, id)
	if err != nil {
		var notFound *helpers.StockNotFoundError
		if errors.As(err, &notFound) {
			s.History.Record(ctx, trimmed, false)
		}
		return nil, err
	}

	s.backfill(ctx, stock, len(s.Tiers))
	s.History.Record(ctx, trimmed, true)
	return stock, nil
}

// -----------------------------------------------------------------------------

// SearchByName runs the fuzzy name search: local candidates first, provider
// fallback when the local tiers have nothing, scored and ranked.
func (s *Service) SearchByName(ctx context.Context, query string, limit int) ([]models.MSearchMatch, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < 3 {
		return nil, helpers.NewValidationError("query", "must be at least 3 characters")
	}
	if limit <= 0 {
		limit = 10
	}

	matches, err := s.nameSearch(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	s.History.Record(ctx, q, len(matches) > 0)
	return matches, nil
}

// -----------------------------------------------------------------------------

// searchBestByName backs the single-result search path for name-classified
// queries.
func (s *Service) searchBestByName(ctx context.Context, name string) (*models.MStock, error) {
	if len([]rune(name)) < 3 {
		return nil, helpers.NewValidationError("query", "must be at least 3 characters")
	}

	matches, err := s.nameSearch(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		s.History.Record(ctx, name, false)
		return nil, helpers.NewStockNotFoundError(name)
	}

	s.History.Record(ctx, name, true)
	best := matches[0].Stock
	return &best, nil
}

// -----------------------------------------------------------------------------

// nameSearch gathers candidates and scores them. History recording is left to
// the callers so each public operation records exactly once.
func (s *Service) nameSearch(ctx context.Context, query string, limit int) ([]models.MSearchMatch, error) {
	// tiers return candidates ordered by popularity, so fetching only limit
	// rows could drop a better-matching name before scoring ever sees it
	candidates, fromProvider, err := s.nameCandidates(ctx, query, candidatePoolSize(limit))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	counts := s.History.counts(ctx, historyCountsLimit)
	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, Candidate{
			Stock:       c,
			SearchCount: s.searchCountFor(counts, c),
		})
	}

	matches := s.Scorer.ScoreBatch(query, scored, limit)

	if fromProvider {
		for i := range matches {
			stock := matches[i].Stock
			s.backfill(ctx, &stock, len(s.Tiers))
		}
	}
	return matches, nil
}

// -----------------------------------------------------------------------------

// nameCandidates prefers locally cached candidates; only when every tier comes
// back empty does the provider get asked. The bool reports a provider origin.
func (s *Service) nameCandidates(ctx context.Context, query string, limit int) ([]models.MStock, bool, error) {
	for _, tier := range s.Tiers {
		candidates, err := tier.Repo.FindByName(ctx, query, limit)
		if err != nil {
			s.Logger.Warning("name lookup failed in tier %s: %v", tier.Repo.Name(), err)
			continue
		}
		if len(candidates) > 0 {
			s.Logger.Debug("%d name candidates for %q from tier %s", len(candidates), query, tier.Repo.Name())
			return candidates, false, nil
		}
	}

	candidates, err := s.Provider.SearchByName(ctx, query, limit)
	if err != nil {
		return nil, false, err
	}
	return candidates, true, nil
}

// -----------------------------------------------------------------------------

// candidatePoolSize is how many rows to pull for scoring. Relevance
// precedence is decided by the scorer, never by retrieval order, so the pool
// has to be comfortably larger than the response limit.
func candidatePoolSize(limit int) int {
	pool := limit * 5
	if pool < 20 {
		pool = 20
	}
	return pool
}

// -----------------------------------------------------------------------------

func (s *Service) searchCountFor(counts map[string]int64, stock models.MStock) int64 {
	total := counts[strings.ToLower(stock.Symbol)]
	total += counts[strings.ToLower(stock.Name)]
	return total
}

// -----------------------------------------------------------------------------

// backfill writes stock into the tiers faster than the one that produced it.
// Best effort: tier failures are logged by the tiers and never fail a search.
// TTLs stretch by the closed-market factor when the stock's home exchange is
// closed.
func (s *Service) backfill(ctx context.Context, stock *models.MStock, upto int) {
	for i := 0; i < upto && i < len(s.Tiers); i++ {
		tier := s.Tiers[i]
		ttl := s.TTLPolicy.TTLFor(stock.Symbol, tier.TTL)
		if err := tier.Repo.Save(ctx, stock, ttl); err != nil {
			s.Logger.Warning("write-back to tier %s failed for %s: %v", tier.Repo.Name(), stock.Symbol, err)
		}
	}
}

// -----------------------------------------------------------------------------

// Suggestions returns autocomplete entries from the search history.
func (s *Service) Suggestions(ctx context.Context, prefix string, limit int) ([]models.MSearchHistoryRecord, error) {
	p := strings.TrimSpace(prefix)
	if p == "" {
		return nil, helpers.NewValidationError("prefix", "must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}
	return s.History.Suggestions(ctx, p, limit)
}

// -----------------------------------------------------------------------------

// WarmCache preloads the in-process cache with the most searched stocks that
// are still resolvable from the slower tiers. Returns the number loaded.
func (s *Service) WarmCache(ctx context.Context) (int, error) {
	topN := s.Config.Warmup.TopN
	records, err := s.History.TopSearches(ctx, topN)
	if err != nil {
		return 0, err
	}

	var stocks []*models.MStock
	for _, rec := range records {
		// history stores queries lowercased; restore identifier casing
		id := identifier.FromRaw(strings.ToUpper(rec.Query))
		if id.Name != "" {
			continue
		}
		for i := len(s.Tiers) - 1; i >= 1; i-- {
			if stock, ok := s.Tiers[i].Repo.FindByIdentifier(ctx, id); ok {
				stocks = append(stocks, stock)
				break
			}
		}
	}

	if len(stocks) == 0 {
		return 0, nil
	}
	ttl := time.Duration(s.Config.Cache.CacheTTLSeconds) * time.Second
	loaded := s.Memory.Warmup(stocks, ttl)
	s.Logger.Info("cache warmup loaded %d of %d candidates", loaded, len(stocks))
	return loaded, nil
}

// -----------------------------------------------------------------------------

// Cleanup removes expired rows from every tier and returns the total count.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now()
	var total int64
	for _, tier := range s.Tiers {
		removed, err := tier.Repo.DeleteExpired(ctx, cutoff)
		if err != nil {
			s.Logger.Warning("cleanup failed in tier %s: %v", tier.Repo.Name(), err)
			continue
		}
		total += removed
	}
	return total, nil
}

// -----------------------------------------------------------------------------

// ClearMemoryCache drops every in-process entry.
func (s *Service) ClearMemoryCache() {
	s.Memory.Clear()
}

// -----------------------------------------------------------------------------

// ResetBreaker force-closes the circuit breaker.
func (s *Service) ResetBreaker() {
	s.Breaker.Reset()
}

// -----------------------------------------------------------------------------

// Snapshot assembles the observability view over all tiers and the
// protection layer.
func (s *Service) Snapshot() models.MStatusSnapshot {
	tiers := make(map[string]models.MCacheStats, len(s.Tiers))
	for _, tier := range s.Tiers {
		tiers[tier.Repo.Name()] = tier.Repo.Stats()
	}
	return models.MStatusSnapshot{
		Timestamp: s.now().Unix(),
		Tiers:     tiers,
		Breaker:   s.Breaker.Status(),
		Limiter:   s.Limiter.CurrentUsage(),
	}
}

// -----------------------------------------------------------------------------

// Close shuts down every tier.
func (s *Service) Close() {
	for _, tier := range s.Tiers {
		if err := tier.Repo.Close(); err != nil {
			s.Logger.Warning("closing tier %s: %v", tier.Repo.Name(), err)
		}
	}
}
