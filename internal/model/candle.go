package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV bar for a (symbol, timeframe) series.
// Prices are float64 — upstream quotes arrive as decimal strings and the
// indicator recurrences all operate in floating point.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	TS        time.Time `json:"ts"` // bar open time (UTC, period-aligned)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Pattern   string    `json:"pattern,omitempty"` // candle pattern label, "" if none
}

// Key returns a unique key for this candle's series: "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + string(c.Timeframe)
}

// Valid reports whether the candle satisfies the basic OHLCV invariants:
// high >= low and high, low, volume non-negative.
func (c *Candle) Valid() bool {
	return c.High >= c.Low && c.High >= 0 && c.Low >= 0 && c.Volume >= 0
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
