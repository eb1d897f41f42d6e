package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------
// Row mapping shared by the Postgres and SQLite backends. Payloads are parsed
// into the typed models here, at the storage boundary.
// -----------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// -----------------------------------------------------------------------------

func scanStock(row rowScanner) (*models.MStock, error) {
	var (
		stock       models.MStock
		name        sql.NullString
		isin        sql.NullString
		wkn         sql.NullString
		price       string
		currency    sql.NullString
		prevClose   sql.NullString
		changeAbs   sql.NullString
		changePct   sql.NullString
		exchange    sql.NullString
		sector      sql.NullString
		industry    sql.NullString
		marketCap   sql.NullInt64
		dataSource  sql.NullString
		lastUpdated sql.NullInt64
		expiresAt   int64
		cacheHits   int64
	)

	err := row.Scan(&stock.Symbol, &name, &isin, &wkn, &price, &currency, &prevClose, &changeAbs,
		&changePct, &exchange, &sector, &industry, &marketCap, &dataSource, &lastUpdated, &expiresAt, &cacheHits)
	if err != nil {
		return nil, err
	}

	current, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}

	stock.Name = name.String
	stock.ISIN = isin.String
	stock.WKN = wkn.String
	stock.Price = models.MStockPrice{
		Current:        current,
		Currency:       currency.String,
		PreviousClose:  nullDecimal(prevClose),
		ChangeAbsolute: nullDecimal(changeAbs),
		ChangePercent:  nullDecimal(changePct),
	}
	stock.Metadata = models.MStockMetadata{
		Exchange:  exchange.String,
		Sector:    sector.String,
		Industry:  industry.String,
		MarketCap: marketCap.Int64,
	}
	stock.DataSource = models.MDataSource(dataSource.String)
	if lastUpdated.Valid {
		stock.LastUpdated = time.Unix(lastUpdated.Int64, 0).UTC()
	}
	expiry := time.Unix(expiresAt, 0).UTC()
	stock.ExpiresAt = &expiry

	return &stock, nil
}

// -----------------------------------------------------------------------------

func collectStocks(rows *sql.Rows) ([]models.MStock, error) {
	var stocks []models.MStock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stock.DataSource = models.SourceDatabase
		stocks = append(stocks, *stock)
	}
	return stocks, rows.Err()
}

// -----------------------------------------------------------------------------

func collectHistory(rows *sql.Rows) ([]models.MSearchHistoryRecord, error) {
	var records []models.MSearchHistoryRecord
	for rows.Next() {
		var (
			rec          models.MSearchHistoryRecord
			lastSearched int64
		)
		if err := rows.Scan(&rec.Query, &rec.ResultFound, &rec.SearchCount, &lastSearched); err != nil {
			return nil, err
		}
		rec.LastSearched = time.Unix(lastSearched, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// -----------------------------------------------------------------------------

// stockArgs builds the insert argument list matching stockColumns order,
// minus the trailing cache_hits column.
func stockArgs(stock *models.MStock, expiresAt time.Time) []interface{} {
	return []interface{}{
		strings.ToUpper(stock.Symbol),
		nullString(stock.Name),
		nullString(strings.ToUpper(stock.ISIN)),
		nullString(strings.ToUpper(stock.WKN)),
		stock.Price.Current.String(),
		nullString(stock.Price.Currency),
		decimalString(stock.Price.PreviousClose),
		decimalString(stock.Price.ChangeAbsolute),
		decimalString(stock.Price.ChangePercent),
		nullString(stock.Metadata.Exchange),
		nullString(stock.Metadata.Sector),
		nullString(stock.Metadata.Industry),
		stock.Metadata.MarketCap,
		string(stock.DataSource),
		stock.LastUpdated.Unix(),
		expiresAt.Unix(),
	}
}

// -----------------------------------------------------------------------------

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// -----------------------------------------------------------------------------

func nullDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

// -----------------------------------------------------------------------------

func decimalString(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// -----------------------------------------------------------------------------

// normalizeQuery lowercases and trims history keys so "AAPL" and "aapl"
// aggregate into one record.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// -----------------------------------------------------------------------------

// escapeLike neutralizes LIKE metacharacters in user input so a query like
// "100%" matches literally instead of every row. Queries using it must carry
// an ESCAPE '\' clause.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
