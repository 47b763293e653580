package marketdata

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// PriceRepository stores daily prices in the consolidated history database,
// one row per symbol and date.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a price repository.
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// InitSchema creates the daily_prices table when missing.
func (r *PriceRepository) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_prices (
		symbol      TEXT NOT NULL,
		date        TEXT NOT NULL,
		open_price  REAL,
		high_price  REAL,
		low_price   REAL,
		close_price REAL NOT NULL,
		adj_close   REAL NOT NULL,
		volume      INTEGER,
		source      TEXT NOT NULL DEFAULT 'yahoo',
		PRIMARY KEY (symbol, date)
	);
	CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create price schema: %w", err)
	}
	return nil
}

// UpsertPrices inserts or replaces bars for a symbol. Re-syncing the same
// range is idempotent.
func (r *PriceRepository) UpsertPrices(symbol string, bars []Bar) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("empty symbol")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
		(symbol, date, open_price, high_price, low_price, close_price, adj_close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'yahoo')`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare price insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, bar := range bars {
		if bar.AdjClose <= 0 {
			continue
		}
		_, err := stmt.Exec(
			symbol,
			bar.Date.Format(dateLayout),
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			bar.AdjClose,
			bar.Volume,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert price for %s %s: %w", symbol, bar.Date.Format(dateLayout), err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prices: %w", err)
	}

	r.log.Debug().Str("symbol", symbol).Int("rows", count).Msg("Upserted daily prices")
	return count, nil
}

// ClosePrice is a dated adjusted close.
type ClosePrice struct {
	Date     time.Time
	AdjClose float64
}

// GetCloses returns the adjusted close series for a symbol in ascending date
// order, optionally bounded by an inclusive date range (zero times mean
// unbounded).
func (r *PriceRepository) GetCloses(symbol string, from, to time.Time) ([]ClosePrice, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	query := `SELECT date, adj_close FROM daily_prices WHERE symbol = ?`
	args := []interface{}{symbol}
	if !from.IsZero() {
		query += ` AND date >= ?`
		args = append(args, from.Format(dateLayout))
	}
	if !to.IsZero() {
		query += ` AND date <= ?`
		args = append(args, to.Format(dateLayout))
	}
	query += ` ORDER BY date ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var closes []ClosePrice
	for rows.Next() {
		var (
			date  string
			close ClosePrice
		)
		if err := rows.Scan(&date, &close.AdjClose); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		if close.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("failed to parse price date: %w", err)
		}
		closes = append(closes, close)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}

	return closes, nil
}

// Symbols lists all symbols with stored prices.
func (r *PriceRepository) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// LatestDate returns the most recent stored date for a symbol, or the zero
// time when no rows exist.
func (r *PriceRepository) LatestDate(symbol string) (time.Time, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var date sql.NullString
	err := r.db.QueryRow(
		`SELECT MAX(date) FROM daily_prices WHERE symbol = ?`, symbol,
	).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest date for %s: %w", symbol, err)
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, date.String)
}
