package indicator

import (
	"math"

	"ohlc-systemv1/internal/model"
)

// Pattern labels written onto candle rows.
const (
	PatternDoji             = "Doji"
	PatternHammer           = "Hammer"
	PatternInvertedHammer   = "Inverted Hammer"
	PatternBullishMarubozu  = "Bullish Marubozu"
	PatternShootingStar     = "Shooting Star"
	PatternHangingMan       = "Hanging Man"
	PatternBearishMarubozu  = "Bearish Marubozu"
	PatternBullishEngulfing = "Bullish Engulfing"
	PatternBearishEngulfing = "Bearish Engulfing"
	PatternTweezerTop       = "Tweezer Top"
	PatternTweezerBottom    = "Tweezer Bottom"
	PatternMorningStar      = "Morning Star"
	PatternEveningStar      = "Evening Star"
)

// shape holds per-bar candle geometry used by the rule table.
type shape struct {
	body       float64 // |close − open|
	upperWick  float64 // high − max(open, close)
	lowerWick  float64 // min(open, close) − low
	totalRange float64 // high − low
	bodyRatio  float64
	upperRatio float64
	lowerRatio float64
	bullish    bool
	doji       bool // body < 10% of range
}

func newShape(c model.Candle) shape {
	s := shape{
		body:       math.Abs(c.Close - c.Open),
		upperWick:  c.High - math.Max(c.Open, c.Close),
		lowerWick:  math.Min(c.Open, c.Close) - c.Low,
		totalRange: c.High - c.Low,
		bullish:    c.Close > c.Open,
	}
	s.doji = s.body < s.totalRange*0.1
	if s.totalRange > 0 {
		s.bodyRatio = s.body / s.totalRange
		s.upperRatio = s.upperWick / s.totalRange
		s.lowerRatio = s.lowerWick / s.totalRange
	}
	return s
}

// PatternSeries classifies each bar against an ordered rule table — first
// match wins — using 1-, 2- and 3-bar lookback windows. Bars with no match
// (including the first bar, which has no lookback) produce no update.
func PatternSeries(candles []model.Candle) []model.PatternUpdate {
	if len(candles) < 2 {
		return nil
	}

	shapes := make([]shape, len(candles))
	for i, c := range candles {
		shapes[i] = newShape(c)
	}

	var updates []model.PatternUpdate
	for i := 1; i < len(candles); i++ {
		if label := classify(candles, shapes, i); label != "" {
			updates = append(updates, model.PatternUpdate{TS: candles[i].TS, Pattern: label})
		}
	}
	return updates
}

func classify(candles []model.Candle, shapes []shape, i int) string {
	s := shapes[i]

	// Single-bar rules.
	if s.doji {
		return PatternDoji
	}
	if s.bullish {
		switch {
		case s.lowerRatio > 0.6 && s.bodyRatio < 0.3:
			return PatternHammer
		case s.bodyRatio > 0.8 && s.upperRatio < 0.1 && s.lowerRatio < 0.1:
			return PatternBullishMarubozu
		case s.bodyRatio > 0.5 && s.lowerRatio > 0.3:
			return PatternInvertedHammer
		}
	} else {
		switch {
		case s.upperRatio > 0.6 && s.bodyRatio < 0.3:
			return PatternShootingStar
		case s.bodyRatio > 0.8 && s.upperRatio < 0.1 && s.lowerRatio < 0.1:
			return PatternBearishMarubozu
		case s.bodyRatio > 0.5 && s.upperRatio > 0.3:
			return PatternHangingMan
		}
	}

	// Two-bar rules.
	prev, ps := candles[i-1], shapes[i-1]
	curr := candles[i]
	switch {
	case ps.bullish && !s.bullish &&
		curr.Close < prev.Open && curr.Open > prev.Close &&
		s.body > ps.body*1.5:
		return PatternBearishEngulfing
	case !ps.bullish && s.bullish &&
		curr.Close > prev.Open && curr.Open < prev.Close &&
		s.body > ps.body*1.5:
		return PatternBullishEngulfing
	case ps.bullish && !s.bullish &&
		math.Abs(prev.High-curr.High) < s.totalRange*0.1:
		return PatternTweezerTop
	case !ps.bullish && s.bullish &&
		math.Abs(prev.Low-curr.Low) < s.totalRange*0.1:
		return PatternTweezerBottom
	}

	// Three-bar rules.
	if i > 1 {
		s2, s1 := shapes[i-2], shapes[i-1]
		mid := candles[i-1]
		switch {
		case !s2.bullish && !s1.bullish && s.bullish &&
			curr.Close > mid.Open && s1.body < s2.body*0.3:
			return PatternMorningStar
		case s2.bullish && s1.bullish && !s.bullish &&
			curr.Close < mid.Open && s1.body < s2.body*0.3:
			return PatternEveningStar
		}
	}

	return ""
}
