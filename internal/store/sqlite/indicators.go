package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ohlc-systemv1/internal/model"
)

// Indicator inserts use INSERT OR IGNORE: a value computed once for a
// closed candle is final, recomputes only fill gaps.

// InsertEMA writes EMA rows, skipping keys that already exist.
func (s *Store) InsertEMA(ctx context.Context, rows []model.EMARow) error {
	return s.insertBatch(ctx, `
		INSERT OR IGNORE INTO ema_data (symbol, timeframe, ts, period, value)
		VALUES (?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, r.Symbol, string(r.Timeframe), r.TS.UnixMilli(), r.Period, r.Value)
		return err
	})
}

// InsertRSI writes RSI rows, skipping keys that already exist.
func (s *Store) InsertRSI(ctx context.Context, rows []model.RSIRow) error {
	return s.insertBatch(ctx, `
		INSERT OR IGNORE INTO rsi_data (symbol, timeframe, ts, period, value)
		VALUES (?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, r.Symbol, string(r.Timeframe), r.TS.UnixMilli(), r.Period, r.Value)
		return err
	})
}

// InsertOBV writes OBV rows, skipping keys that already exist.
func (s *Store) InsertOBV(ctx context.Context, rows []model.OBVRow) error {
	return s.insertBatch(ctx, `
		INSERT OR IGNORE INTO obv_data (symbol, timeframe, ts, obv, ma_period, ma_value, bb_std, upper_band, lower_band)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, r.Symbol, string(r.Timeframe), r.TS.UnixMilli(),
			r.OBV, r.MAPeriod, nullFloat(r.MA), r.BBStd, nullFloat(r.Upper), nullFloat(r.Lower))
		return err
	})
}

// InsertPivots writes pivot rows, skipping keys that already exist.
func (s *Store) InsertPivots(ctx context.Context, rows []model.PivotRow) error {
	return s.insertBatch(ctx, `
		INSERT OR IGNORE INTO pivot_data (symbol, timeframe, ts, pp, r1, r2, r3, r4, r5, s1, s2, s3, s4, s5)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, r.Symbol, string(r.Timeframe), r.TS.UnixMilli(),
			r.PP, r.R1, r.R2, r.R3, r.R4, r.R5, r.S1, r.S2, r.S3, r.S4, r.S5)
		return err
	})
}

// InsertChandelier writes Chandelier Exit rows, skipping keys that already exist.
func (s *Store) InsertChandelier(ctx context.Context, rows []model.ChandelierRow) error {
	return s.insertBatch(ctx, `
		INSERT OR IGNORE INTO ce_data (symbol, timeframe, ts, atr_period, atr_multiplier, atr_value, long_stop, short_stop, direction, buy_signal, sell_signal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, r.Symbol, string(r.Timeframe), r.TS.UnixMilli(),
			r.ATRPeriod, r.Multiplier, r.ATR, r.LongStop, r.ShortStop, r.Direction,
			boolInt(r.BuySignal), boolInt(r.SellSignal))
		return err
	})
}

// insertBatch runs n statement executions in a single transaction.
func (s *Store) insertBatch(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	if s.met != nil {
		s.met.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
