package indicator

import "ohlc-systemv1/internal/model"

// EMASeries computes the exponential moving average of closes for one period.
// Seeded with the first close (no SMA warm-up):
//
//	y[0] = close[0]
//	y[t] = α·close[t] + (1−α)·y[t−1],  α = 2/(period+1)
//
// Defined for every bar, so one row per candle.
func EMASeries(candles []model.Candle, period int) []model.EMARow {
	if len(candles) == 0 {
		return nil
	}

	alpha := 2.0 / float64(period+1)
	rows := make([]model.EMARow, 0, len(candles))

	ema := candles[0].Close
	for i, c := range candles {
		if i > 0 {
			ema = alpha*c.Close + (1-alpha)*ema
		}
		rows = append(rows, model.EMARow{
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			TS:        c.TS,
			Period:    period,
			Value:     ema,
		})
	}
	return rows
}
