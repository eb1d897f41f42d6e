package search

import (
	"context"
	"strings"

	"stock-search-service/src/interfaces"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// Search history
// -----------------------------------------------------------------------------

// HistoryTracker records search outcomes and serves suggestion lookups. A
// failing store never fails the search that triggered the recording.
type HistoryTracker struct {
	Store  interfaces.ISearchHistoryStore
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewHistoryTracker(store interfaces.ISearchHistoryStore, log *logger.Logger) *HistoryTracker {
	return &HistoryTracker{Store: store, Logger: log}
}

// -----------------------------------------------------------------------------

// Record stores one search outcome, aggregated case-insensitively.
func (h *HistoryTracker) Record(ctx context.Context, query string, found bool) {
	q := strings.TrimSpace(query)
	if q == "" || h.Store == nil {
		return
	}
	if err := h.Store.RecordSearch(ctx, q, found); err != nil {
		h.Logger.Warning("history record failed for %q: %v", q, err)
	}
}

// -----------------------------------------------------------------------------

// Suggestions returns past successful queries starting with prefix, most
// searched first.
func (h *HistoryTracker) Suggestions(ctx context.Context, prefix string, limit int) ([]models.MSearchHistoryRecord, error) {
	if h.Store == nil {
		return nil, nil
	}
	return h.Store.Suggestions(ctx, prefix, limit)
}

// -----------------------------------------------------------------------------

// TopSearches returns the most frequent successful queries.
func (h *HistoryTracker) TopSearches(ctx context.Context, limit int) ([]models.MSearchHistoryRecord, error) {
	if h.Store == nil {
		return nil, nil
	}
	return h.Store.TopSearches(ctx, limit)
}

// -----------------------------------------------------------------------------

// counts builds a lookup of lowercased query to search count from the most
// frequent history rows, used to feed the popularity tiebreaker. Failures
// degrade to an empty map.
func (h *HistoryTracker) counts(ctx context.Context, limit int) map[string]int64 {
	out := make(map[string]int64)
	if h.Store == nil {
		return out
	}
	records, err := h.Store.TopSearches(ctx, limit)
	if err != nil {
		h.Logger.Debug("history counts unavailable: %v", err)
		return out
	}
	for _, r := range records {
		out[strings.ToLower(r.Query)] = r.SearchCount
	}
	return out
}
