// Package sqlite is the system of record: raw candles, indicator rows and
// the joined read path all live in one SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	"ohlc-systemv1/internal/metrics"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a SQLite database holding candles and indicator tables.
// Writes are batched per call in a single transaction.
type Store struct {
	db  *sql.DB
	met *metrics.Metrics
}

// New opens (and if needed creates) the database with WAL mode and schema.
// met may be nil in tests.
func New(dbPath string, met *metrics.Metrics) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; readers share the same pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", dbPath)
	return &Store{db: db, met: met}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ohlc_data (
			symbol         TEXT    NOT NULL,
			timeframe      TEXT    NOT NULL,
			ts             INTEGER NOT NULL,
			open           REAL    NOT NULL,
			high           REAL    NOT NULL,
			low            REAL    NOT NULL,
			close          REAL    NOT NULL,
			volume         REAL    NOT NULL,
			candle_pattern TEXT,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS ema_data (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			period    INTEGER NOT NULL,
			value     REAL    NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts, period)
		);

		CREATE TABLE IF NOT EXISTS rsi_data (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			period    INTEGER NOT NULL,
			value     REAL    NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts, period)
		);

		CREATE TABLE IF NOT EXISTS obv_data (
			symbol     TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			obv        REAL    NOT NULL,
			ma_period  INTEGER NOT NULL,
			ma_value   REAL,
			bb_std     REAL    NOT NULL,
			upper_band REAL,
			lower_band REAL,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS pivot_data (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			pp REAL NOT NULL,
			r1 REAL NOT NULL, r2 REAL NOT NULL, r3 REAL NOT NULL,
			r4 REAL NOT NULL, r5 REAL NOT NULL,
			s1 REAL NOT NULL, s2 REAL NOT NULL, s3 REAL NOT NULL,
			s4 REAL NOT NULL, s5 REAL NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS ce_data (
			symbol         TEXT    NOT NULL,
			timeframe      TEXT    NOT NULL,
			ts             INTEGER NOT NULL,
			atr_period     INTEGER NOT NULL,
			atr_multiplier REAL    NOT NULL,
			atr_value      REAL    NOT NULL,
			long_stop      REAL    NOT NULL,
			short_stop     REAL    NOT NULL,
			direction      INTEGER NOT NULL,
			buy_signal     INTEGER NOT NULL,
			sell_signal    INTEGER NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts)
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
