package interfaces

// -----------------------------------------------------------------------------
// IDatabase is the relational tier: stock cache plus search history, selected
// by Storage.DBType at startup.
// -----------------------------------------------------------------------------

type IDatabase interface {
	IStockRepository
	ISearchHistoryStore

	// Initialize opens the connection and creates missing tables.
	Initialize() error
}
