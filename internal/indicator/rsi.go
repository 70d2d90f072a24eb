package indicator

import "ohlc-systemv1/internal/model"

// RSISeries computes the relative-strength index using Wilder-style
// exponential smoothing (α = 1/period) of per-bar gains and losses.
// The averages are seeded at t=0 with gain = loss = 0 (the first delta is
// undefined and treated as zero) and the t=0 bar is omitted from output.
func RSISeries(candles []model.Candle, period int) []model.RSIRow {
	if len(candles) < 2 {
		return nil
	}

	alpha := 1.0 / float64(period)
	rows := make([]model.RSIRow, 0, len(candles)-1)

	var avgGain, avgLoss float64
	for i := 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		avgGain = alpha*gain + (1-alpha)*avgGain
		avgLoss = alpha*loss + (1-alpha)*avgLoss

		var rsi float64
		if avgLoss == 0 {
			rsi = 100.0
		} else {
			rs := avgGain / avgLoss
			rsi = 100.0 - 100.0/(1.0+rs)
		}

		rows = append(rows, model.RSIRow{
			Symbol:    candles[i].Symbol,
			Timeframe: candles[i].Timeframe,
			TS:        candles[i].TS,
			Period:    period,
			Value:     rsi,
		})
	}
	return rows
}
