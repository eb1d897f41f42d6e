package interfaces

import (
	"context"

	"stock-search-service/src/identifier"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// IStockProvider is the upstream market-data dependency behind the caches.
// -----------------------------------------------------------------------------

type IStockProvider interface {

	// Name returns the provider tag recorded in fetched stocks.
	Name() string

	// -----------------------------------------------------------------------------

	// FetchStock resolves a single stock. Returns StockNotFoundError when
	// the provider has no price data, ExternalServiceError on upstream
	// failures, and the limiter/breaker rejections when protection kicks in.
	FetchStock(ctx context.Context, id identifier.Identifier) (*models.MStock, error)

	// -----------------------------------------------------------------------------

	// SearchByName runs the provider-native fuzzy search path.
	SearchByName(ctx context.Context, query string, limit int) ([]models.MStock, error)
}
