// Package indicator computes technical indicator series over full OHLCV
// candle histories.
//
// Every family recomputes from scratch on each pass: several recurrences
// (the OBV accumulator, the Chandelier Exit ratchet) are order-sensitive,
// so incremental updates would need careful state snapshotting to avoid
// drift. Correctness wins over speed here.
package indicator

import (
	"ohlc-systemv1/internal/model"
)

// Config holds the per-family parameters for one computation pass.
type Config struct {
	EMAPeriods []int
	RSIPeriod  int
	OBV        OBVConfig

	// PivotTimeframe is the only timeframe pivots are computed for.
	PivotTimeframe model.Timeframe

	CEPeriod     int
	CEMultiplier float64
}

// Result carries every family's rows for one (symbol, timeframe) pass.
// A family that failed has its rows nil and an entry in Errors; the other
// families are still usable.
type Result struct {
	EMA        []model.EMARow
	RSI        []model.RSIRow
	OBV        []model.OBVRow
	Pivots     []model.PivotRow
	Chandelier []model.ChandelierRow
	Patterns   []model.PatternUpdate

	Errors map[string]error // family name → compute error
}

// Engine computes all indicator families for one series at a time.
// Stateless across calls — safe to share between sequential refresh cycles.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine with the given parameters.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// ComputeAll runs every family over the ascending-time candle series for a
// single (symbol, timeframe). A family's failure never blocks the others.
func (e *Engine) ComputeAll(candles []model.Candle) Result {
	res := Result{Errors: make(map[string]error)}
	if len(candles) == 0 {
		res.Errors["series"] = model.ErrEmptySeries
		return res
	}

	for _, period := range e.cfg.EMAPeriods {
		res.EMA = append(res.EMA, EMASeries(candles, period)...)
	}

	res.RSI = RSISeries(candles, e.cfg.RSIPeriod)
	res.OBV = OBVSeries(candles, e.cfg.OBV)

	if candles[0].Timeframe == e.cfg.PivotTimeframe {
		res.Pivots = PivotSeries(candles)
	}

	res.Chandelier = ChandelierSeries(candles, e.cfg.CEPeriod, e.cfg.CEMultiplier)
	res.Patterns = PatternSeries(candles)

	return res
}
