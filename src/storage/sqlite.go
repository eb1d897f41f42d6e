package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stock-search-service/src/identifier"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------

// SQLiteDB is the embedded variant of the relational tier, used for local
// development and tests. Same contract as PostgresDB.
type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	// modernc's driver is not safe for concurrent writes on one connection
	db.SetMaxOpenConns(1)
	d.DB = db

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("SQLiteDB initialized successfully (Path: %s)", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS stock_cache (
			symbol TEXT PRIMARY KEY,
			name TEXT,
			isin TEXT,
			wkn TEXT,
			price TEXT NOT NULL,
			currency TEXT,
			previous_close TEXT,
			change_absolute TEXT,
			change_percent TEXT,
			exchange TEXT,
			sector TEXT,
			industry TEXT,
			market_cap INTEGER,
			data_source TEXT,
			last_updated INTEGER,
			expires_at INTEGER NOT NULL,
			cache_hits INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS stock_cache_isin_idx ON stock_cache (isin);`,
		`CREATE INDEX IF NOT EXISTS stock_cache_wkn_idx ON stock_cache (wkn);`,
		`CREATE TABLE IF NOT EXISTS search_history (
			query TEXT PRIMARY KEY,
			result_found INTEGER NOT NULL,
			search_count INTEGER NOT NULL DEFAULT 1,
			last_searched INTEGER NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Name() string {
	return string(models.SourceDatabase)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) FindByIdentifier(ctx context.Context, id identifier.Identifier) (*models.MStock, bool) {
	if id.Name != "" {
		return nil, false
	}

	value := strings.ToUpper(id.String())
	query := fmt.Sprintf(`
		SELECT %s FROM stock_cache
		WHERE (symbol = ? OR isin = ? OR wkn = ?) AND expires_at > ?
		LIMIT 1
	`, stockColumns)

	row := d.DB.QueryRowContext(ctx, query, value, value, value, time.Now().Unix())
	stock, err := scanStock(row)
	if err != nil {
		if err != sql.ErrNoRows {
			d.Logger.Warning("SQLiteDB lookup failed for %s: %v", value, err)
		}
		d.misses.Add(1)
		return nil, false
	}

	d.hits.Add(1)
	stock.DataSource = models.SourceDatabase
	return stock, true
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) FindByName(ctx context.Context, nameQuery string, limit int) ([]models.MStock, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_cache
		WHERE LOWER(name) LIKE '%%' || LOWER(?) || '%%' ESCAPE '\'
		ORDER BY cache_hits DESC
		LIMIT ?
	`, stockColumns)

	rows, err := d.DB.QueryContext(ctx, query, escapeLike(nameQuery), limit)
	if err != nil {
		return nil, fmt.Errorf("name search failed: %w", err)
	}
	defer rows.Close()

	return collectStocks(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Save(ctx context.Context, stock *models.MStock, ttl time.Duration) error {
	if stock.Symbol == "" {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO stock_cache (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (symbol) DO UPDATE SET
			name = excluded.name,
			isin = excluded.isin,
			wkn = excluded.wkn,
			price = excluded.price,
			currency = excluded.currency,
			previous_close = excluded.previous_close,
			change_absolute = excluded.change_absolute,
			change_percent = excluded.change_percent,
			exchange = excluded.exchange,
			sector = excluded.sector,
			industry = excluded.industry,
			market_cap = excluded.market_cap,
			data_source = excluded.data_source,
			last_updated = excluded.last_updated,
			expires_at = excluded.expires_at,
			cache_hits = cache_hits + 1
	`, stockColumns)

	args := stockArgs(stock, time.Now().Add(ttl))
	if _, err := d.DB.ExecContext(ctx, query, args...); err != nil {
		d.Logger.Warning("SQLiteDB save failed for %s: %v", stock.Symbol, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.DB.ExecContext(ctx, `DELETE FROM stock_cache WHERE expires_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Stats() models.MCacheStats {
	stats := models.MCacheStats{
		Hits:   d.hits.Load(),
		Misses: d.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	var size int
	if err := d.DB.QueryRow(`SELECT COUNT(*) FROM stock_cache`).Scan(&size); err == nil {
		stats.Size = size
	}
	return stats
}

// -----------------------------------------------------------------------------
// Search history
// -----------------------------------------------------------------------------

func (d *SQLiteDB) RecordSearch(ctx context.Context, searchQuery string, found bool) error {
	normalized := normalizeQuery(searchQuery)
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO search_history (query, result_found, search_count, last_searched)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (query) DO UPDATE SET
			search_count = search_count + 1,
			result_found = excluded.result_found,
			last_searched = excluded.last_searched
	`, normalized, found, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record search %q: %w", normalized, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Suggestions(ctx context.Context, prefix string, limit int) ([]models.MSearchHistoryRecord, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT query, result_found, search_count, last_searched
		FROM search_history
		WHERE result_found AND query LIKE ? || '%' ESCAPE '\'
		ORDER BY search_count DESC, last_searched DESC
		LIMIT ?
	`, escapeLike(normalizeQuery(prefix)), limit)
	if err != nil {
		return nil, fmt.Errorf("suggestions query failed: %w", err)
	}
	defer rows.Close()

	return collectHistory(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) TopSearches(ctx context.Context, limit int) ([]models.MSearchHistoryRecord, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT query, result_found, search_count, last_searched
		FROM search_history
		WHERE result_found
		ORDER BY search_count DESC, last_searched DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top searches query failed: %w", err)
	}
	defer rows.Close()

	return collectHistory(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
