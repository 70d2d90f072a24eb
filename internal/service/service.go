// Package service ties the engine together: scheduled backfill, indicator
// computation, persistence, the latest-row cache and the HTTP API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ohlc-systemv1/config"
	"ohlc-systemv1/internal/indicator"
	"ohlc-systemv1/internal/logger"
	"ohlc-systemv1/internal/metrics"
	"ohlc-systemv1/internal/model"
)

// Backfiller brings the stored candle series up to date.
type Backfiller interface {
	Refresh(ctx context.Context, symbol string, tf model.Timeframe) (int, error)
}

// Store is the SQLite surface the service needs: candle reads, indicator
// writes and the joined read path.
type Store interface {
	model.CandleStore
	model.IndicatorStore
	JoinedRows(ctx context.Context, symbol string, tf model.Timeframe, start, end *time.Time, limit int) ([]model.JoinedRow, error)
	LatestJoined(ctx context.Context, symbol string, tf model.Timeframe) (*model.JoinedRow, error)
}

// Cache is the latest-row cache. May be nil; the service then serves
// latest reads straight from SQLite.
type Cache interface {
	SetLatest(ctx context.Context, row model.JoinedRow) error
	Latest(ctx context.Context, symbol string, tf model.Timeframe) (*model.JoinedRow, error)
}

// Service runs refresh cycles and serves the HTTP API.
type Service struct {
	cfg      config.Config
	backfill Backfiller
	store    Store
	cache    Cache
	engine   *indicator.Engine
	met      *metrics.Metrics
	health   *metrics.HealthStatus
	log      *slog.Logger
}

// New wires a service from its parts. cache and met may be nil.
func New(cfg config.Config, backfill Backfiller, store Store, cache Cache,
	engine *indicator.Engine, met *metrics.Metrics, health *metrics.HealthStatus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		backfill: backfill,
		store:    store,
		cache:    cache,
		engine:   engine,
		met:      met,
		health:   health,
		log:      log,
	}
}

// RefreshPair runs one full cycle for (symbol, tf): backfill, recompute
// every indicator family over the stored series, persist, refresh the
// latest-row cache. Indicator families are isolated: one family failing to
// compute or persist never blocks the others, and the error is reported at
// the end.
func (s *Service) RefreshPair(ctx context.Context, symbol string, tf model.Timeframe) (int, error) {
	started := time.Now()
	key := symbol + "-" + string(tf)
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(key, started))

	fetched, err := s.backfill.Refresh(ctx, symbol, tf)
	if err != nil {
		s.countRefreshError(symbol, tf)
		return fetched, fmt.Errorf("backfill %s: %w", key, err)
	}

	candles, err := s.store.Candles(ctx, symbol, tf, nil, nil)
	if err != nil {
		s.countRefreshError(symbol, tf)
		return fetched, fmt.Errorf("load series %s: %w", key, err)
	}

	computeStart := time.Now()
	res := s.engine.ComputeAll(candles)
	if s.met != nil {
		s.met.ComputeDur.WithLabelValues("all").Observe(time.Since(computeStart).Seconds())
	}
	for family, ferr := range res.Errors {
		s.log.Warn("indicator family failed", append(logger.LogWithTrace(ctx),
			slog.String("symbol", symbol), slog.String("tf", string(tf)),
			slog.String("family", family), slog.String("err", ferr.Error()))...)
		if s.met != nil {
			s.met.ComputeFailures.WithLabelValues(family).Inc()
		}
	}

	failed := s.persist(ctx, symbol, tf, res)

	s.updateLatestCache(ctx, symbol, tf)

	if s.health != nil {
		s.health.SetLastRefreshAt(time.Now())
	}
	if s.met != nil {
		s.met.RefreshDur.Observe(time.Since(started).Seconds())
	}

	s.log.Info("refresh complete", append(logger.LogWithTrace(ctx),
		slog.String("symbol", symbol), slog.String("tf", string(tf)),
		slog.Int("fetched", fetched), slog.Int("candles", len(candles)),
		slog.Duration("took", time.Since(started)))...)

	if len(failed) > 0 {
		s.countRefreshError(symbol, tf)
		return fetched, fmt.Errorf("persist %s: families failed: %s", key, strings.Join(failed, ", "))
	}
	return fetched, nil
}

// persist writes every computed family, continuing past per-family errors.
// Returns the names of families that failed to persist.
func (s *Service) persist(ctx context.Context, symbol string, tf model.Timeframe, res indicator.Result) []string {
	var failed []string
	write := func(family string, rows int, fn func() error) {
		if rows == 0 {
			return
		}
		if err := fn(); err != nil {
			s.log.Error("persist failed", append(logger.LogWithTrace(ctx),
				slog.String("symbol", symbol), slog.String("tf", string(tf)),
				slog.String("family", family), slog.String("err", err.Error()))...)
			if s.met != nil {
				s.met.ComputeFailures.WithLabelValues(family).Inc()
			}
			failed = append(failed, family)
			return
		}
		if s.met != nil {
			s.met.IndicatorRows.WithLabelValues(family).Add(float64(rows))
		}
	}

	write("ema", len(res.EMA), func() error { return s.store.InsertEMA(ctx, res.EMA) })
	write("rsi", len(res.RSI), func() error { return s.store.InsertRSI(ctx, res.RSI) })
	write("obv", len(res.OBV), func() error { return s.store.InsertOBV(ctx, res.OBV) })
	write("pivot", len(res.Pivots), func() error { return s.store.InsertPivots(ctx, res.Pivots) })
	write("chandelier", len(res.Chandelier), func() error { return s.store.InsertChandelier(ctx, res.Chandelier) })
	write("pattern", len(res.Patterns), func() error { return s.store.UpdatePatterns(ctx, symbol, tf, res.Patterns) })
	return failed
}

// updateLatestCache writes the newest joined row through the cache.
// Cache failures are logged only; Redis being down never fails a refresh.
func (s *Service) updateLatestCache(ctx context.Context, symbol string, tf model.Timeframe) {
	row, err := s.store.LatestJoined(ctx, symbol, tf)
	if err != nil || row == nil {
		return
	}
	s.flagRSIExtremes(ctx, row)

	if s.cache == nil {
		return
	}
	if err := s.cache.SetLatest(ctx, *row); err != nil {
		s.log.Warn("latest cache update failed", append(logger.LogWithTrace(ctx),
			slog.String("symbol", symbol), slog.String("tf", string(tf)),
			slog.String("err", err.Error()))...)
	}
}

// flagRSIExtremes logs when the newest bar's RSI crosses the configured
// overbought/oversold levels.
func (s *Service) flagRSIExtremes(ctx context.Context, row *model.JoinedRow) {
	v, ok := row.RSI[s.cfg.Market.RSIPeriod]
	if !ok {
		return
	}
	var state string
	switch {
	case s.cfg.Market.RSIOverbought > 0 && v >= s.cfg.Market.RSIOverbought:
		state = "overbought"
	case s.cfg.Market.RSIOversold > 0 && v <= s.cfg.Market.RSIOversold:
		state = "oversold"
	default:
		return
	}
	s.log.Info("rsi extreme", append(logger.LogWithTrace(ctx),
		slog.String("symbol", row.Symbol), slog.String("tf", string(row.Timeframe)),
		slog.String("state", state), slog.Float64("rsi", v))...)
}

// RefreshAll runs RefreshPair for every configured (symbol, timeframe),
// sequentially to keep upstream request pressure bounded. Errors are
// logged per pair; one bad pair never stops the sweep.
func (s *Service) RefreshAll(ctx context.Context) {
	for _, symbol := range s.cfg.Symbols {
		for _, tf := range s.cfg.Timeframes {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.RefreshPair(ctx, symbol, tf); err != nil {
				s.log.Error("refresh failed",
					slog.String("symbol", symbol), slog.String("tf", string(tf)),
					slog.String("err", err.Error()))
			}
		}
	}
}

func (s *Service) countRefreshError(symbol string, tf model.Timeframe) {
	if s.met != nil {
		s.met.RefreshErrors.WithLabelValues(symbol, string(tf)).Inc()
	}
}
