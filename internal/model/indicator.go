package model

import "time"

// EMARow is one exponential-moving-average value, keyed by
// (symbol, timeframe, ts, period).
type EMARow struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	TS        time.Time `json:"ts"`
	Period    int       `json:"period"`
	Value     float64   `json:"value"`
}

// RSIRow is one relative-strength-index value, keyed by
// (symbol, timeframe, ts, period).
type RSIRow struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	TS        time.Time `json:"ts"`
	Period    int       `json:"period"`
	Value     float64   `json:"value"`
}

// OBVRow is one on-balance-volume value with optional smoothing and bands.
// MA and the bands are nil during the smoothing window's warm-up; the raw
// accumulator is always present.
type OBVRow struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	TS        time.Time `json:"ts"`
	OBV       float64   `json:"obv"`
	MAPeriod  int       `json:"ma_period"`
	MA        *float64  `json:"ma_value"`
	BBStd     float64   `json:"bb_std"`
	Upper     *float64  `json:"upper_band"`
	Lower     *float64  `json:"lower_band"`
}

// PivotRow holds floor-trader pivot levels derived from the previous
// period's high, low and close.
type PivotRow struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	TS        time.Time `json:"ts"`
	PP        float64   `json:"pp"`
	R1        float64   `json:"r1"`
	R2        float64   `json:"r2"`
	R3        float64   `json:"r3"`
	R4        float64   `json:"r4"`
	R5        float64   `json:"r5"`
	S1        float64   `json:"s1"`
	S2        float64   `json:"s2"`
	S3        float64   `json:"s3"`
	S4        float64   `json:"s4"`
	S5        float64   `json:"s5"`
}

// ChandelierRow is one Chandelier Exit bar: scaled ATR, ratcheted stops,
// direction and flip signals.
type ChandelierRow struct {
	Symbol     string    `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	TS         time.Time `json:"ts"`
	ATRPeriod  int       `json:"atr_period"`
	Multiplier float64   `json:"atr_multiplier"`
	ATR        float64   `json:"atr_value"` // already scaled by the multiplier
	LongStop   float64   `json:"long_stop"`
	ShortStop  float64   `json:"short_stop"`
	Direction  int       `json:"direction"` // +1 long, -1 short
	BuySignal  bool      `json:"buy_signal"`
	SellSignal bool      `json:"sell_signal"`
}

// PatternUpdate assigns a pattern label to the candle at TS.
type PatternUpdate struct {
	TS      time.Time
	Pattern string
}

// JoinedRow is one candle with every indicator value computed for its
// timestamp. Pointer/map fields are nil or empty where no value exists yet
// (warm-up windows, families not applicable to the timeframe).
type JoinedRow struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	TS        time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Pattern   string    `json:"pattern"`

	EMA        map[int]float64 `json:"ema,omitempty"` // period → value
	RSI        map[int]float64 `json:"rsi,omitempty"` // period → value
	OBV        *OBVRow         `json:"obv,omitempty"`
	Pivot      *PivotRow       `json:"pivot,omitempty"`
	Chandelier *ChandelierRow  `json:"chandelier,omitempty"`
}
