package indicator

import (
	"math"

	"ohlc-systemv1/internal/model"
)

// obvBase seeds the accumulator at a fixed positive offset so the series
// stays positive on typical volumes and plots cleanly against price.
const obvBase = 106100.0

// OBV moving-average modes.
const (
	OBVMANone  = "None"
	OBVMASMA   = "SMA"
	OBVMAEMA   = "EMA"
	OBVMASMMA  = "SMMA"
	OBVMAWMA   = "WMA"
	OBVMASMABB = "SMA+BB" // SMA with Bollinger bands
)

// OBVConfig selects the secondary smoothing applied to the OBV accumulator.
type OBVConfig struct {
	MAType   string
	MAPeriod int
	BBStd    float64
}

// OBVSeries computes the on-balance-volume accumulator and, depending on the
// configured mode, a moving average and Bollinger bands over it. Bars where
// the smoothing window hasn't filled yet still emit the raw accumulator with
// nil MA/band fields.
func OBVSeries(candles []model.Candle, cfg OBVConfig) []model.OBVRow {
	if len(candles) == 0 {
		return nil
	}

	obv := make([]float64, len(candles))
	obv[0] = obvBase
	for i := 1; i < len(candles); i++ {
		obv[i] = obv[i-1]
		switch {
		case candles[i].Close > candles[i-1].Close:
			obv[i] += candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			obv[i] -= candles[i].Volume
		}
	}

	ma := obvMA(obv, cfg)

	withBands := cfg.MAType == OBVMASMABB
	rows := make([]model.OBVRow, 0, len(candles))
	for i, c := range candles {
		row := model.OBVRow{
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			TS:        c.TS,
			OBV:       obv[i],
			MAPeriod:  cfg.MAPeriod,
			BBStd:     cfg.BBStd,
		}
		if ma != nil && ma[i] != nil {
			row.MA = ma[i]
			if withBands {
				if sd, ok := rollingStddev(obv, i, cfg.MAPeriod); ok {
					upper := *ma[i] + sd*cfg.BBStd
					lower := *ma[i] - sd*cfg.BBStd
					row.Upper = &upper
					row.Lower = &lower
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// obvMA computes the configured moving average over the accumulator.
// Returns nil when smoothing is disabled; individual entries are nil during
// the rolling-window warm-up (exponential modes have no warm-up).
func obvMA(obv []float64, cfg OBVConfig) []*float64 {
	p := cfg.MAPeriod
	switch cfg.MAType {
	case OBVMASMA, OBVMASMABB:
		return rollingMean(obv, p)

	case OBVMAEMA:
		out := make([]*float64, len(obv))
		alpha := 2.0 / float64(p+1)
		ema := obv[0]
		for i := range obv {
			if i > 0 {
				ema = alpha*obv[i] + (1-alpha)*ema
			}
			v := ema
			out[i] = &v
		}
		return out

	case OBVMASMMA:
		out := make([]*float64, len(obv))
		alpha := 1.0 / float64(p)
		smma := obv[0]
		for i := range obv {
			if i > 0 {
				smma = alpha*obv[i] + (1-alpha)*smma
			}
			v := smma
			out[i] = &v
		}
		return out

	case OBVMAWMA:
		out := make([]*float64, len(obv))
		weightSum := float64(p*(p+1)) / 2
		for i := p - 1; i < len(obv); i++ {
			var sum float64
			for j := 0; j < p; j++ {
				sum += obv[i-p+1+j] * float64(j+1)
			}
			v := sum / weightSum
			out[i] = &v
		}
		return out

	default:
		return nil
	}
}

func rollingMean(xs []float64, period int) []*float64 {
	out := make([]*float64, len(xs))
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			v := sum / float64(period)
			out[i] = &v
		}
	}
	return out
}

// rollingStddev returns the sample standard deviation (n-1 denominator)
// of the window ending at index i.
func rollingStddev(xs []float64, i, period int) (float64, bool) {
	if i < period-1 || period < 2 {
		return 0, false
	}
	window := xs[i-period+1 : i+1]
	var sum float64
	for _, x := range window {
		sum += x
	}
	mean := sum / float64(period)
	var ss float64
	for _, x := range window {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(period-1)), true
}
