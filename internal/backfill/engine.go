// Package backfill walks the upstream kline history page by page and brings
// the local candle store up to the current timeframe boundary.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ohlc-systemv1/internal/metrics"
	"ohlc-systemv1/internal/model"
)

// Config tunes one engine instance.
type Config struct {
	// PageLimit is the maximum klines requested per upstream call.
	PageLimit int

	// MaxRetries caps retry attempts for transient fetch failures.
	MaxRetries int

	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration

	// DefaultStart is where history begins for a symbol never seen before.
	DefaultStart time.Time
}

// Engine backfills one (symbol, timeframe) series at a time.
type Engine struct {
	src   model.KlineSource
	store model.CandleStore
	cfg   Config
	met   *metrics.Metrics
	now   func() time.Time
}

// NewEngine creates a backfill engine. met may be nil in tests.
func NewEngine(src model.KlineSource, store model.CandleStore, cfg Config, met *metrics.Metrics) *Engine {
	return &Engine{src: src, store: store, cfg: cfg, met: met, now: time.Now}
}

// Refresh fetches every missing candle for (symbol, tf) and upserts it into
// the store. It returns the number of candles fetched.
//
// The window starts at the newest stored candle (refetched, since it may
// have been open when last stored) or at DefaultStart for an empty series,
// and ends at the next timeframe boundary after now. Transient upstream
// errors are retried with exponential backoff; a malformed page aborts the
// whole refresh with ErrDataIntegrity and persists nothing from that page.
func (e *Engine) Refresh(ctx context.Context, symbol string, tf model.Timeframe) (int, error) {
	start, err := e.windowStart(ctx, symbol, tf)
	if err != nil {
		return 0, err
	}
	end := tf.NextBoundary(e.now().UTC())

	startMS := start.UnixMilli()
	endMS := end.UnixMilli()

	total := 0
	for startMS < endMS {
		page, err := e.fetchPage(ctx, symbol, tf, startMS, endMS)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			break
		}
		if err := validatePage(page); err != nil {
			if e.met != nil {
				e.met.IntegrityErrors.Inc()
			}
			return total, fmt.Errorf("%s %s page at %d: %w", symbol, tf, startMS, err)
		}

		if err := e.store.UpsertCandles(ctx, page); err != nil {
			return total, fmt.Errorf("upsert %s %s: %w", symbol, tf, err)
		}

		total += len(page)
		if e.met != nil {
			e.met.KlinesFetched.WithLabelValues(symbol, tf.String()).Add(float64(len(page)))
			e.met.PagesFetched.Inc()
		}

		startMS = page[len(page)-1].TS.UnixMilli() + tf.IntervalMS()
	}

	if total > 0 {
		log.Printf("[backfill] %s %s: fetched %d candles up to %s", symbol, tf, total, end.Format(time.RFC3339))
	}
	return total, nil
}

func (e *Engine) windowStart(ctx context.Context, symbol string, tf model.Timeframe) (time.Time, error) {
	last, ok, err := e.store.LastCandleTS(ctx, symbol, tf)
	if err != nil {
		return time.Time{}, fmt.Errorf("last candle ts %s %s: %w", symbol, tf, err)
	}
	if ok {
		// Refetch the newest stored candle: it may have been open when
		// written and its OHLCV can still move.
		return last, nil
	}
	return e.cfg.DefaultStart, nil
}

func (e *Engine) fetchPage(ctx context.Context, symbol string, tf model.Timeframe, startMS, endMS int64) ([]model.Candle, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.cfg.RetryBase << (attempt - 1)
			log.Printf("[backfill] %s %s: fetch failed, retry %d/%d in %v: %v",
				symbol, tf, attempt, e.cfg.MaxRetries, delay, lastErr)
			if e.met != nil {
				e.met.FetchRetries.Inc()
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		page, err := e.src.GetKlines(ctx, symbol, tf, startMS, endMS, e.cfg.PageLimit)
		if err == nil {
			return page, nil
		}
		if errors.Is(err, model.ErrDataIntegrity) {
			// Malformed payload will not fix itself on retry.
			if e.met != nil {
				e.met.IntegrityErrors.Inc()
			}
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s %s after %d retries: %w", symbol, tf, e.cfg.MaxRetries, lastErr)
}

// validatePage checks per-candle field sanity and strict ascending order.
func validatePage(page []model.Candle) error {
	for i, c := range page {
		if !c.Valid() {
			return fmt.Errorf("candle %s at %s: %w", c.Symbol, c.TS.Format(time.RFC3339), model.ErrDataIntegrity)
		}
		if i > 0 && !page[i-1].TS.Before(c.TS) {
			return fmt.Errorf("non-ascending timestamps at %s: %w", c.TS.Format(time.RFC3339), model.ErrDataIntegrity)
		}
	}
	return nil
}
