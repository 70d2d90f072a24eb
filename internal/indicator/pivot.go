package indicator

import "ohlc-systemv1/internal/model"

// PivotSeries computes floor-trader pivot levels for each candle from the
// previous period's high, low and close. The first candle has no previous
// period and is omitted. Intended for the higher-period (monthly) series.
func PivotSeries(candles []model.Candle) []model.PivotRow {
	if len(candles) < 2 {
		return nil
	}

	rows := make([]model.PivotRow, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		h, l, c := candles[i-1].High, candles[i-1].Low, candles[i-1].Close
		pp := (h + l + c) / 3

		rows = append(rows, model.PivotRow{
			Symbol:    candles[i].Symbol,
			Timeframe: candles[i].Timeframe,
			TS:        candles[i].TS,
			PP:        pp,
			R1:        2*pp - l,
			R2:        pp + (h - l),
			R3:        h + 2*(pp-l),
			R4:        3*pp + (h - 3*l),
			R5:        4*pp + (h - 4*l),
			S1:        2*pp - h,
			S2:        pp - (h - l),
			S3:        l - 2*(h-pp),
			S4:        3*pp - (3*h - l),
			S5:        4*pp - (4*h - l),
		})
	}
	return rows
}
