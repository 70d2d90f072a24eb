package model

import "errors"

// Shared error taxonomy. Callers classify with errors.Is; anything not
// matching one of these sentinels coming out of the kline source is treated
// as transient I/O and retried.
var (
	// ErrDataIntegrity marks a malformed or out-of-range candle page.
	// Never retried — the page is rejected without partial persistence.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrEmptySeries marks an indicator computation attempted on an empty
	// or too-short candle series.
	ErrEmptySeries = errors.New("empty candle series")
)
