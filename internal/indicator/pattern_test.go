package indicator

import (
	"testing"
	"time"

	"ohlc-systemv1/internal/model"
)

func bar(o, h, l, c float64) model.Candle {
	return model.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: model.TF1d,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    100,
	}
}

// lastLabel runs the classifier over the candles and returns the label on the
// final bar, or "" if it produced no update.
func lastLabel(candles []model.Candle) string {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i].TS = base.Add(time.Duration(i) * 24 * time.Hour)
	}
	last := candles[len(candles)-1].TS
	for _, u := range PatternSeries(candles) {
		if u.TS.Equal(last) {
			return u.Pattern
		}
	}
	return ""
}

func TestPatternSeries_RuleTable(t *testing.T) {
	neutral := bar(10, 11, 9.5, 10.5)

	cases := []struct {
		name    string
		candles []model.Candle
		want    string
	}{
		{
			// Body 0.05 on a range of 2, well under the 10% doji cutoff.
			name:    "doji",
			candles: []model.Candle{neutral, bar(10, 11, 9, 10.05)},
			want:    PatternDoji,
		},
		{
			// Long lower shadow (74% of range), small bullish body (21%).
			name:    "hammer",
			candles: []model.Candle{neutral, bar(7, 9.5, 0, 9)},
			want:    PatternHammer,
		},
		{
			// Body fills 96% of the range with stub wicks on both ends.
			name:    "bullish marubozu",
			candles: []model.Candle{neutral, bar(10, 19.8, 9.9, 19.5)},
			want:    PatternBullishMarubozu,
		},
		{
			// Dominant bullish body (65%) with a lower shadow above 30%.
			name:    "inverted hammer",
			candles: []model.Candle{neutral, bar(13, 19.2, 10, 19)},
			want:    PatternInvertedHammer,
		},
		{
			// Long upper shadow (76%), small bearish body (22%).
			name:    "shooting star",
			candles: []model.Candle{neutral, bar(13, 20, 10.8, 11)},
			want:    PatternShootingStar,
		},
		{
			name:    "bearish marubozu",
			candles: []model.Candle{neutral, bar(19.5, 19.8, 9.9, 10)},
			want:    PatternBearishMarubozu,
		},
		{
			// Dominant bearish body (66%) with an upper shadow above 30%.
			name:    "hanging man",
			candles: []model.Candle{neutral, bar(19, 22, 12.9, 13)},
			want:    PatternHangingMan,
		},
		{
			// Bearish bar opens above the prior close and closes below the
			// prior open, with 2x the prior body. Shaped so no single-bar
			// rule fires first (45% body, short upper wick).
			name: "bearish engulfing",
			candles: []model.Candle{
				bar(10, 11.2, 9.9, 11),
				bar(11.5, 11.7, 7.256, 9.5),
			},
			want: PatternBearishEngulfing,
		},
		{
			name: "bullish engulfing",
			candles: []model.Candle{
				bar(11, 11.1, 9.8, 10),
				bar(9.5, 13.744, 9.3, 11.5),
			},
			want: PatternBullishEngulfing,
		},
		{
			// Bullish reversal bar whose low sits within 10% of the prior
			// bearish bar's low.
			name: "tweezer bottom",
			candles: []model.Candle{
				bar(11.2, 11.3, 9.85, 10.4),
				bar(10, 12.3, 9.8, 11),
			},
			want: PatternTweezerBottom,
		},
		{
			name: "tweezer top",
			candles: []model.Candle{
				bar(10.4, 11.3, 10.3, 11.2),
				bar(11, 11.35, 8.85, 10),
			},
			want: PatternTweezerTop,
		},
		{
			// Big bearish bar, small bearish middle, bullish close above the
			// middle bar's open.
			name: "morning star",
			candles: []model.Candle{
				bar(20, 20.5, 9.5, 10),
				bar(10, 10.2, 8.8, 9),
				bar(9.5, 13.5, 9.4, 12),
			},
			want: PatternMorningStar,
		},
		{
			name: "evening star",
			candles: []model.Candle{
				bar(10, 20.5, 9.5, 20),
				bar(20, 21.2, 19.8, 21),
				bar(20.5, 20.6, 16.5, 18),
			},
			want: PatternEveningStar,
		},
		{
			// Doji geometry with a hammer-length lower shadow: doji is
			// checked first and wins.
			name:    "doji precedence over hammer",
			candles: []model.Candle{neutral, bar(10, 10.1, 9, 10.05)},
			want:    PatternDoji,
		},
		{
			// Balanced bar matching no rule.
			name:    "no match",
			candles: []model.Candle{neutral, bar(10, 11.25, 9.25, 10.8)},
			want:    "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := lastLabel(tc.candles); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPatternSeries_FirstBarNeverLabeled(t *testing.T) {
	// A lone doji-shaped bar in first position has no lookback window.
	candles := []model.Candle{bar(10, 11, 9, 10.05), bar(10, 11.25, 9.25, 10.8)}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i].TS = base.Add(time.Duration(i) * 24 * time.Hour)
	}
	for _, u := range PatternSeries(candles) {
		if u.TS.Equal(base) {
			t.Errorf("first bar labeled %q, expected no update", u.Pattern)
		}
	}
}

func TestPatternSeries_ShortSeries(t *testing.T) {
	if got := PatternSeries([]model.Candle{bar(10, 11, 9, 10.05)}); got != nil {
		t.Errorf("single-bar series: expected nil, got %v", got)
	}
	if got := PatternSeries(nil); got != nil {
		t.Errorf("nil series: expected nil, got %v", got)
	}
}
