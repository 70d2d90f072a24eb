package model

import (
	"fmt"
	"time"
)

// Timeframe is a bar period in the upstream exchange's interval notation.
type Timeframe string

// Supported timeframes. "1M" is calendar-monthly, not to be confused with "1m".
const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
	TF1M  Timeframe = "1M"
)

var intervals = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
	TF1w:  7 * 24 * time.Hour,
	TF1M:  30 * 24 * time.Hour, // month approximated as 30 days, matching the upstream API convention
}

// ParseTimeframe validates s and returns it as a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := intervals[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Interval returns the nominal bar duration. Used for pagination advance;
// calendar-aware alignment goes through Truncate/NextBoundary instead.
func (tf Timeframe) Interval() time.Duration {
	return intervals[tf]
}

// IntervalMS returns the nominal bar duration in milliseconds.
func (tf Timeframe) IntervalMS() int64 {
	return intervals[tf].Milliseconds()
}

// Truncate returns t truncated to the start of the period containing it, in UTC.
// Daily and shorter periods truncate on fixed durations; weeks start on Monday
// 00:00 UTC and months on the first of the month.
func (tf Timeframe) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch tf {
	case TF1w:
		d := t.Truncate(24 * time.Hour)
		// Monday-based week start
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case TF1M:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(intervals[tf])
	}
}

// NextBoundary returns the earliest period start that is strictly after t,
// unless t is already period-aligned, in which case t itself is returned.
func (tf Timeframe) NextBoundary(t time.Time) time.Time {
	start := tf.Truncate(t)
	if start.Equal(t.UTC()) {
		return start
	}
	switch tf {
	case TF1w:
		return start.AddDate(0, 0, 7)
	case TF1M:
		return start.AddDate(0, 1, 0)
	default:
		return start.Add(intervals[tf])
	}
}

func (tf Timeframe) String() string { return string(tf) }
