package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"ohlc-systemv1/internal/model"
)

// UpsertCandles writes a page of candles in one transaction. A key conflict
// refreshes the OHLCV fields but leaves candle_pattern alone, so a label
// already assigned to a closed candle survives refetches.
func (s *Store) UpsertCandles(ctx context.Context, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ohlc_data (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare ohlc upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, string(c.Timeframe), c.TS.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite upsert candle %s: %w", c.TS.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit candles: %w", err)
	}
	if s.met != nil {
		s.met.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Candles returns the stored series for (symbol, tf) ordered by ts
// ascending, optionally bounded by start/end (inclusive).
func (s *Store) Candles(ctx context.Context, symbol string, tf model.Timeframe, start, end *time.Time) ([]model.Candle, error) {
	query := `
		SELECT symbol, timeframe, ts, open, high, low, close, volume, candle_pattern
		FROM ohlc_data
		WHERE symbol = ? AND timeframe = ?`
	args := []any{symbol, string(tf)}
	if start != nil {
		query += " AND ts >= ?"
		args = append(args, start.UnixMilli())
	}
	if end != nil {
		query += " AND ts <= ?"
		args = append(args, end.UnixMilli())
	}
	query += " ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func scanCandle(rows *sql.Rows) (model.Candle, error) {
	var c model.Candle
	var tf string
	var tsMS int64
	var pattern sql.NullString
	if err := rows.Scan(&c.Symbol, &tf, &tsMS, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &pattern); err != nil {
		return c, fmt.Errorf("sqlite scan candle: %w", err)
	}
	c.Timeframe = model.Timeframe(tf)
	c.TS = time.UnixMilli(tsMS).UTC()
	c.Pattern = pattern.String
	return c, nil
}

// LastCandleTS returns the newest stored candle timestamp for the key.
func (s *Store) LastCandleTS(ctx context.Context, symbol string, tf model.Timeframe) (time.Time, bool, error) {
	var tsMS sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM ohlc_data WHERE symbol = ? AND timeframe = ?`,
		symbol, string(tf),
	).Scan(&tsMS)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite last candle ts: %w", err)
	}
	if !tsMS.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(tsMS.Int64).UTC(), true, nil
}

// UpdatePatterns writes pattern labels onto existing candle rows. Labels
// are the one indicator output that is updated in place: a recompute can
// re-label a candle after a refetch changed its OHLCV.
func (s *Store) UpdatePatterns(ctx context.Context, symbol string, tf model.Timeframe, updates []model.PatternUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE ohlc_data SET candle_pattern = ?
		WHERE symbol = ? AND timeframe = ? AND ts = ?
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare pattern update: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Pattern, symbol, string(tf), u.TS.UnixMilli())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite update pattern at %s: %w", u.TS.Format(time.RFC3339), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit patterns: %w", err)
	}
	if updated < len(updates) {
		log.Printf("[sqlite] %s %s: %d of %d pattern labels had no matching candle", symbol, tf, len(updates)-updated, len(updates))
	}
	return nil
}
