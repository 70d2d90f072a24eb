package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These interfaces decouple the backfill and indicator engines from the
// concrete exchange client and SQLite stores. Consumers take the interface,
// implementations return concrete types.

// KlineSource fetches raw candles from the upstream exchange REST API.
type KlineSource interface {
	// GetKlines returns at most limit candles with open time in
	// [startMS, endMS), ascending. An empty slice means no more history.
	GetKlines(ctx context.Context, symbol string, tf Timeframe, startMS, endMS int64, limit int) ([]Candle, error)
}

// CandleStore persists and reads raw OHLCV candles.
type CandleStore interface {
	// UpsertCandles inserts candles, overwriting OHLCV fields on key conflict.
	UpsertCandles(ctx context.Context, candles []Candle) error

	// Candles returns the series for (symbol, tf) ordered by ts ascending,
	// optionally bounded by start/end (inclusive).
	Candles(ctx context.Context, symbol string, tf Timeframe, start, end *time.Time) ([]Candle, error)

	// LastCandleTS returns the newest stored candle timestamp for the key.
	// ok is false when the series is empty.
	LastCandleTS(ctx context.Context, symbol string, tf Timeframe) (ts time.Time, ok bool, err error)
}

// IndicatorStore persists computed indicator rows. All inserts are
// insert-if-absent: a stored value is never overwritten by a recompute.
// Pattern labels are the exception — they live on the candle row and are
// updated in place.
type IndicatorStore interface {
	InsertEMA(ctx context.Context, rows []EMARow) error
	InsertRSI(ctx context.Context, rows []RSIRow) error
	InsertOBV(ctx context.Context, rows []OBVRow) error
	InsertPivots(ctx context.Context, rows []PivotRow) error
	InsertChandelier(ctx context.Context, rows []ChandelierRow) error
	UpdatePatterns(ctx context.Context, symbol string, tf Timeframe, updates []PatternUpdate) error
}
