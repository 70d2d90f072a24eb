package model

import (
	"testing"
	"time"
)

func TestParseTimeframe(t *testing.T) {
	for _, s := range []string{"1m", "5m", "15m", "1h", "4h", "1d", "1w", "1M"} {
		if _, err := ParseTimeframe(s); err != nil {
			t.Errorf("ParseTimeframe(%q): unexpected error %v", s, err)
		}
	}
	for _, s := range []string{"", "2h", "1mo", "M", "daily"} {
		if _, err := ParseTimeframe(s); err == nil {
			t.Errorf("ParseTimeframe(%q): expected error", s)
		}
	}
}

func TestTruncate(t *testing.T) {
	// Wednesday 2024-03-13 14:37:22 UTC
	ref := time.Date(2024, 3, 13, 14, 37, 22, 0, time.UTC)

	cases := []struct {
		tf   Timeframe
		want time.Time
	}{
		{TF1h, time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)},
		{TF4h, time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)},
		{TF1d, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)},
		// Week starts Monday 2024-03-11
		{TF1w, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{TF1M, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := c.tf.Truncate(ref); !got.Equal(c.want) {
			t.Errorf("%s.Truncate: got %v, want %v", c.tf, got, c.want)
		}
	}
}

func TestNextBoundary(t *testing.T) {
	ref := time.Date(2024, 3, 13, 14, 37, 22, 0, time.UTC)

	cases := []struct {
		tf   Timeframe
		want time.Time
	}{
		{TF1h, time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)},
		{TF4h, time.Date(2024, 3, 13, 16, 0, 0, 0, time.UTC)},
		{TF1d, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		{TF1w, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)},
		{TF1M, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := c.tf.NextBoundary(ref); !got.Equal(c.want) {
			t.Errorf("%s.NextBoundary: got %v, want %v", c.tf, got, c.want)
		}
	}

	// Already aligned → boundary is the instant itself.
	aligned := time.Date(2024, 3, 13, 16, 0, 0, 0, time.UTC)
	if got := TF4h.NextBoundary(aligned); !got.Equal(aligned) {
		t.Errorf("aligned NextBoundary: got %v, want %v", got, aligned)
	}
}

func TestCandleValid(t *testing.T) {
	good := Candle{Open: 10, High: 12, Low: 9, Close: 11, Volume: 100}
	if !good.Valid() {
		t.Error("expected valid candle")
	}

	cases := []Candle{
		{Open: 10, High: 9, Low: 12, Close: 11, Volume: 100}, // high < low
		{Open: 10, High: -1, Low: -2, Close: 11, Volume: 100},
		{Open: 10, High: 12, Low: 9, Close: 11, Volume: -5},
	}
	for i, c := range cases {
		if c.Valid() {
			t.Errorf("case %d: expected invalid candle", i)
		}
	}
}
