package indicator

import (
	"math"

	"ohlc-systemv1/internal/model"
)

// ChandelierSeries computes the Chandelier Exit volatility stop tracker.
//
// ATR uses the Wilder recurrence seeded from a simple mean of the first
// `period` true ranges; stops trail the highest/lowest close over the
// trailing window, ratcheted against the previous bar's stops using the
// previous close (the reference platform's recurrence, evaluated on final
// previous-bar values). Rows before `period` bars of history are omitted.
func ChandelierSeries(candles []model.Candle, period int, mult float64) []model.ChandelierRow {
	n := len(candles)
	if n <= period {
		return nil
	}

	// True range; the first bar has no previous close, so TR = high − low.
	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		prevClose := candles[i-1].Close
		tr[i] = math.Max(candles[i].High-candles[i].Low,
			math.Max(math.Abs(candles[i].High-prevClose), math.Abs(candles[i].Low-prevClose)))
	}

	// Wilder ATR: seed = mean of the first `period` TRs, assigned at period−1.
	atr := make([]float64, n)
	var seed float64
	for i := 0; i < period; i++ {
		seed += tr[i]
	}
	atr[period-1] = seed / float64(period)
	alpha := 1.0 / float64(period)
	for i := period; i < n; i++ {
		atr[i] = atr[i-1]*(1-alpha) + tr[i]*alpha
	}

	rows := make([]model.ChandelierRow, 0, n-period)
	var prevLong, prevShort float64
	prevDir := 1

	for i := period; i < n; i++ {
		scaledATR := atr[i] * mult

		highest, lowest := candles[i].Close, candles[i].Close
		for j := i - period + 1; j <= i; j++ {
			highest = math.Max(highest, candles[j].Close)
			lowest = math.Min(lowest, candles[j].Close)
		}
		rawLong := highest - scaledATR
		rawShort := lowest + scaledATR

		longStop, shortStop := rawLong, rawShort
		dir := 1
		buy, sell := false, false

		if i > period {
			prevClose := candles[i-1].Close

			// Ratchet: stops only tighten while price stays on their side.
			if prevClose > prevLong {
				longStop = math.Max(rawLong, prevLong)
			}
			if prevClose < prevShort {
				shortStop = math.Min(rawShort, prevShort)
			}

			close := candles[i].Close
			switch {
			case close > prevShort:
				dir = 1
			case close < prevLong:
				dir = -1
			default:
				dir = prevDir
			}

			buy = dir == 1 && prevDir == -1
			sell = dir == -1 && prevDir == 1
		}

		rows = append(rows, model.ChandelierRow{
			Symbol:     candles[i].Symbol,
			Timeframe:  candles[i].Timeframe,
			TS:         candles[i].TS,
			ATRPeriod:  period,
			Multiplier: mult,
			ATR:        scaledATR,
			LongStop:   longStop,
			ShortStop:  shortStop,
			Direction:  dir,
			BuySignal:  buy,
			SellSignal: sell,
		})

		prevLong, prevShort, prevDir = longStop, shortStop, dir
	}
	return rows
}
