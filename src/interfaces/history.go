package interfaces

import (
	"context"

	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// ISearchHistoryStore persists search outcomes. Implemented by the relational
// storage backends alongside the stock cache tables.
// -----------------------------------------------------------------------------

type ISearchHistoryStore interface {

	// RecordSearch upserts the record for query: first occurrence inserts
	// with count 1, later ones increment and refresh last_searched.
	RecordSearch(ctx context.Context, query string, found bool) error

	// -----------------------------------------------------------------------------

	// Suggestions returns up to limit previously successful queries starting
	// with prefix, most searched first, most recent breaking ties.
	Suggestions(ctx context.Context, prefix string, limit int) ([]models.MSearchHistoryRecord, error)

	// -----------------------------------------------------------------------------

	// TopSearches returns the most searched successful queries. This is the
	// feed for cache warming.
	TopSearches(ctx context.Context, limit int) ([]models.MSearchHistoryRecord, error)
}
