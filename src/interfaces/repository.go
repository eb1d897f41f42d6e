package interfaces

import (
	"context"
	"time"

	"stock-search-service/src/identifier"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// IStockRepository is the shared contract of all cache tiers, so the search
// orchestrator can walk them polymorphically in its fallthrough loop.
// -----------------------------------------------------------------------------

type IStockRepository interface {

	// Name returns the tier identifier used in logs and stats.
	Name() string

	// -----------------------------------------------------------------------------

	// FindByIdentifier resolves a symbol/ISIN/WKN lookup. Tier-local
	// failures (network blips, bad payloads) are logged inside the tier
	// and surface as a plain miss, never as an error.
	FindByIdentifier(ctx context.Context, id identifier.Identifier) (*models.MStock, bool)

	// -----------------------------------------------------------------------------

	// FindByName returns raw candidates for fuzzy name search. Tiers that
	// cannot match names return an empty slice.
	FindByName(ctx context.Context, query string, limit int) ([]models.MStock, error)

	// -----------------------------------------------------------------------------

	// Save writes a stock with the given TTL. Best effort: failures are
	// logged by the tier and must never fail the overall search.
	Save(ctx context.Context, stock *models.MStock, ttl time.Duration) error

	// -----------------------------------------------------------------------------

	// DeleteExpired bulk-removes entries expired before cutoff and returns
	// the count removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// -----------------------------------------------------------------------------

	// Stats exposes hit/miss counters for the observability surface.
	Stats() models.MCacheStats

	// -----------------------------------------------------------------------------

	// Close releases the tier's resources.
	Close() error
}
