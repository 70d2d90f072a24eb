package sqlite

import (
	"context"
	"fmt"
	"time"

	"ohlc-systemv1/internal/model"
)

// JoinedRows returns candles with every indicator value attached, ordered
// by ts ascending. A positive limit keeps the most recent limit rows.
// Indicator lookups happen over the candle window only, so a bounded read
// never scans whole indicator tables.
func (s *Store) JoinedRows(ctx context.Context, symbol string, tf model.Timeframe, start, end *time.Time, limit int) ([]model.JoinedRow, error) {
	candles, err := s.windowCandles(ctx, symbol, tf, start, end, limit)
	if err != nil || len(candles) == 0 {
		return nil, err
	}

	loMS := candles[0].TS.UnixMilli()
	hiMS := candles[len(candles)-1].TS.UnixMilli()

	ema, err := s.emaByTS(ctx, symbol, tf, loMS, hiMS)
	if err != nil {
		return nil, err
	}
	rsi, err := s.rsiByTS(ctx, symbol, tf, loMS, hiMS)
	if err != nil {
		return nil, err
	}
	obv, err := s.obvByTS(ctx, symbol, tf, loMS, hiMS)
	if err != nil {
		return nil, err
	}
	pivots, err := s.pivotsByTS(ctx, symbol, tf, loMS, hiMS)
	if err != nil {
		return nil, err
	}
	ce, err := s.chandelierByTS(ctx, symbol, tf, loMS, hiMS)
	if err != nil {
		return nil, err
	}

	joined := make([]model.JoinedRow, len(candles))
	for i, c := range candles {
		ms := c.TS.UnixMilli()
		joined[i] = model.JoinedRow{
			Symbol:     c.Symbol,
			Timeframe:  c.Timeframe,
			TS:         c.TS,
			Open:       c.Open,
			High:       c.High,
			Low:        c.Low,
			Close:      c.Close,
			Volume:     c.Volume,
			Pattern:    c.Pattern,
			EMA:        ema[ms],
			RSI:        rsi[ms],
			OBV:        obv[ms],
			Pivot:      pivots[ms],
			Chandelier: ce[ms],
		}
	}
	return joined, nil
}

// LatestJoined returns the newest joined row for the key, or nil when the
// series is empty.
func (s *Store) LatestJoined(ctx context.Context, symbol string, tf model.Timeframe) (*model.JoinedRow, error) {
	rows, err := s.JoinedRows(ctx, symbol, tf, nil, nil, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) windowCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end *time.Time, limit int) ([]model.Candle, error) {
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
	if limit > 0 {
		// Newest limit rows, returned ascending.
		query += " ORDER BY ts DESC LIMIT ?"
		args = append(args, limit)
	} else {
		query += " ORDER BY ts ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query window candles: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 {
		for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
			candles[i], candles[j] = candles[j], candles[i]
		}
	}
	return candles, nil
}

func (s *Store) emaByTS(ctx context.Context, symbol string, tf model.Timeframe, loMS, hiMS int64) (map[int64]map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, period, value FROM ema_data
		WHERE symbol = ? AND timeframe = ? AND ts BETWEEN ? AND ?
	`, symbol, string(tf), loMS, hiMS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query ema: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[int]float64)
	for rows.Next() {
		var ts int64
		var period int
		var value float64
		if err := rows.Scan(&ts, &period, &value); err != nil {
			return nil, fmt.Errorf("sqlite scan ema: %w", err)
		}
		if out[ts] == nil {
			out[ts] = make(map[int]float64)
		}
		out[ts][period] = value
	}
	return out, rows.Err()
}

func (s *Store) rsiByTS(ctx context.Context, symbol string, tf model.Timeframe, loMS, hiMS int64) (map[int64]map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, period, value FROM rsi_data
		WHERE symbol = ? AND timeframe = ? AND ts BETWEEN ? AND ?
	`, symbol, string(tf), loMS, hiMS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query rsi: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[int]float64)
	for rows.Next() {
		var ts int64
		var period int
		var value float64
		if err := rows.Scan(&ts, &period, &value); err != nil {
			return nil, fmt.Errorf("sqlite scan rsi: %w", err)
		}
		if out[ts] == nil {
			out[ts] = make(map[int]float64)
		}
		out[ts][period] = value
	}
	return out, rows.Err()
}

func (s *Store) obvByTS(ctx context.Context, symbol string, tf model.Timeframe, loMS, hiMS int64) (map[int64]*model.OBVRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, obv, ma_period, ma_value, bb_std, upper_band, lower_band FROM obv_data
		WHERE symbol = ? AND timeframe = ? AND ts BETWEEN ? AND ?
	`, symbol, string(tf), loMS, hiMS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query obv: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*model.OBVRow)
	for rows.Next() {
		var ts int64
		r := model.OBVRow{Symbol: symbol, Timeframe: tf}
		if err := rows.Scan(&ts, &r.OBV, &r.MAPeriod, &r.MA, &r.BBStd, &r.Upper, &r.Lower); err != nil {
			return nil, fmt.Errorf("sqlite scan obv: %w", err)
		}
		r.TS = time.UnixMilli(ts).UTC()
		out[ts] = &r
	}
	return out, rows.Err()
}

func (s *Store) pivotsByTS(ctx context.Context, symbol string, tf model.Timeframe, loMS, hiMS int64) (map[int64]*model.PivotRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, pp, r1, r2, r3, r4, r5, s1, s2, s3, s4, s5 FROM pivot_data
		WHERE symbol = ? AND timeframe = ? AND ts BETWEEN ? AND ?
	`, symbol, string(tf), loMS, hiMS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query pivots: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*model.PivotRow)
	for rows.Next() {
		var ts int64
		r := model.PivotRow{Symbol: symbol, Timeframe: tf}
		if err := rows.Scan(&ts, &r.PP, &r.R1, &r.R2, &r.R3, &r.R4, &r.R5,
			&r.S1, &r.S2, &r.S3, &r.S4, &r.S5); err != nil {
			return nil, fmt.Errorf("sqlite scan pivots: %w", err)
		}
		r.TS = time.UnixMilli(ts).UTC()
		out[ts] = &r
	}
	return out, rows.Err()
}

func (s *Store) chandelierByTS(ctx context.Context, symbol string, tf model.Timeframe, loMS, hiMS int64) (map[int64]*model.ChandelierRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, atr_period, atr_multiplier, atr_value, long_stop, short_stop, direction, buy_signal, sell_signal
		FROM ce_data
		WHERE symbol = ? AND timeframe = ? AND ts BETWEEN ? AND ?
	`, symbol, string(tf), loMS, hiMS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query chandelier: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*model.ChandelierRow)
	for rows.Next() {
		var ts int64
		var buy, sell int
		r := model.ChandelierRow{Symbol: symbol, Timeframe: tf}
		if err := rows.Scan(&ts, &r.ATRPeriod, &r.Multiplier, &r.ATR,
			&r.LongStop, &r.ShortStop, &r.Direction, &buy, &sell); err != nil {
			return nil, fmt.Errorf("sqlite scan chandelier: %w", err)
		}
		r.TS = time.UnixMilli(ts).UTC()
		r.BuySignal = buy != 0
		r.SellSignal = sell != 0
		out[ts] = &r
	}
	return out, rows.Err()
}
