package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"stock-search-service/src/identifier"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------

// PostgresDB is the relational cache tier (L2) and the system of record for
// fuzzy name search and search history.
type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	schema := strings.ToLower(strings.ReplaceAll(cfg.Name, "-", "_"))
	if schema == "" {
		return nil, fmt.Errorf("cannot derive schema name from empty app name")
	}

	return &PostgresDB{
		Config: cfg,
		Schema: schema,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	// Cached stocks survive restarts, so tables are created, never dropped.
	// Timestamps are stored as Unix seconds.
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."stock_cache" (
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
			market_cap BIGINT,
			data_source TEXT,
			last_updated BIGINT,
			expires_at BIGINT NOT NULL,
			cache_hits BIGINT NOT NULL DEFAULT 0
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create stock_cache: %w", err)
	}

	for _, idx := range []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS stock_cache_isin_idx ON "%s"."stock_cache" (isin)`, d.Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS stock_cache_wkn_idx ON "%s"."stock_cache" (wkn)`, d.Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS stock_cache_name_idx ON "%s"."stock_cache" (LOWER(name))`, d.Schema),
	} {
		if _, err := d.DB.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."search_history" (
			query TEXT PRIMARY KEY,
			result_found BOOLEAN NOT NULL,
			search_count BIGINT NOT NULL DEFAULT 1,
			last_searched BIGINT NOT NULL
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create search_history: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Name() string {
	return string(models.SourceDatabase)
}

// -----------------------------------------------------------------------------

const stockColumns = `symbol, name, isin, wkn, price, currency, previous_close, change_absolute,
	change_percent, exchange, sector, industry, market_cap, data_source, last_updated, expires_at, cache_hits`

// -----------------------------------------------------------------------------

// FindByIdentifier looks up a non-expired row by symbol, ISIN or WKN.
// Expired rows are treated as absent; cleanup happens in DeleteExpired.
func (d *PostgresDB) FindByIdentifier(ctx context.Context, id identifier.Identifier) (*models.MStock, bool) {
	if id.Name != "" {
		return nil, false
	}

	value := strings.ToUpper(id.String())
	query := fmt.Sprintf(`
		SELECT %s FROM "%s"."stock_cache"
		WHERE (symbol = $1 OR isin = $1 OR wkn = $1) AND expires_at > $2
		LIMIT 1
	`, stockColumns, d.Schema)

	row := d.DB.QueryRowContext(ctx, query, value, time.Now().Unix())
	stock, err := scanStock(row)
	if err != nil {
		if err != sql.ErrNoRows {
			d.Logger.Warning("PostgresDB lookup failed for %s: %v", value, err)
		}
		d.misses.Add(1)
		return nil, false
	}

	d.hits.Add(1)
	stock.DataSource = models.SourceDatabase
	return stock, true
}

// -----------------------------------------------------------------------------

// FindByName returns raw candidates for the relevance scorer. No scoring
// logic lives here.
func (d *PostgresDB) FindByName(ctx context.Context, nameQuery string, limit int) ([]models.MStock, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM "%s"."stock_cache"
		WHERE LOWER(name) LIKE '%%' || LOWER($1) || '%%' ESCAPE '\'
		ORDER BY cache_hits DESC
		LIMIT $2
	`, stockColumns, d.Schema)

	rows, err := d.DB.QueryContext(ctx, query, escapeLike(nameQuery), limit)
	if err != nil {
		return nil, fmt.Errorf("name search failed: %w", err)
	}
	defer rows.Close()

	return collectStocks(rows)
}

// -----------------------------------------------------------------------------

// Save upserts keyed by symbol, refreshing expires_at and incrementing the
// hit counter on repeat writes.
func (d *PostgresDB) Save(ctx context.Context, stock *models.MStock, ttl time.Duration) error {
	if stock.Symbol == "" {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO "%s"."stock_cache" (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 0)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			isin = EXCLUDED.isin,
			wkn = EXCLUDED.wkn,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			previous_close = EXCLUDED.previous_close,
			change_absolute = EXCLUDED.change_absolute,
			change_percent = EXCLUDED.change_percent,
			exchange = EXCLUDED.exchange,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			market_cap = EXCLUDED.market_cap,
			data_source = EXCLUDED.data_source,
			last_updated = EXCLUDED.last_updated,
			expires_at = EXCLUDED.expires_at,
			cache_hits = "stock_cache".cache_hits + 1
	`, d.Schema, stockColumns)

	args := stockArgs(stock, time.Now().Add(ttl))
	if _, err := d.DB.ExecContext(ctx, query, args...); err != nil {
		d.Logger.Warning("PostgresDB save failed for %s: %v", stock.Symbol, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// DeleteExpired bulk-removes rows expired before cutoff. This is the only
// place rows are hard-deleted.
func (d *PostgresDB) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM "%s"."stock_cache" WHERE expires_at < $1`, d.Schema)
	res, err := d.DB.ExecContext(ctx, query, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Stats() models.MCacheStats {
	stats := models.MCacheStats{
		Hits:   d.hits.Load(),
		Misses: d.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	var size int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"."stock_cache"`, d.Schema)
	if err := d.DB.QueryRow(query).Scan(&size); err == nil {
		stats.Size = size
	}
	return stats
}

// -----------------------------------------------------------------------------
// Search history
// -----------------------------------------------------------------------------

func (d *PostgresDB) RecordSearch(ctx context.Context, searchQuery string, found bool) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."search_history" (query, result_found, search_count, last_searched)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (query) DO UPDATE SET
			search_count = "search_history".search_count + 1,
			result_found = EXCLUDED.result_found,
			last_searched = EXCLUDED.last_searched
	`, d.Schema)

	normalized := normalizeQuery(searchQuery)
	_, err := d.DB.ExecContext(ctx, query, normalized, found, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record search %q: %w", normalized, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Suggestions(ctx context.Context, prefix string, limit int) ([]models.MSearchHistoryRecord, error) {
	query := fmt.Sprintf(`
		SELECT query, result_found, search_count, last_searched
		FROM "%s"."search_history"
		WHERE result_found AND query LIKE $1 || '%%' ESCAPE '\'
		ORDER BY search_count DESC, last_searched DESC
		LIMIT $2
	`, d.Schema)

	rows, err := d.DB.QueryContext(ctx, query, escapeLike(normalizeQuery(prefix)), limit)
	if err != nil {
		return nil, fmt.Errorf("suggestions query failed: %w", err)
	}
	defer rows.Close()

	return collectHistory(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) TopSearches(ctx context.Context, limit int) ([]models.MSearchHistoryRecord, error) {
	query := fmt.Sprintf(`
		SELECT query, result_found, search_count, last_searched
		FROM "%s"."search_history"
		WHERE result_found
		ORDER BY search_count DESC, last_searched DESC
		LIMIT $1
	`, d.Schema)

	rows, err := d.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top searches query failed: %w", err)
	}
	defer rows.Close()

	return collectHistory(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
