package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ohlc-systemv1/internal/model"
)

// refreshCadence maps a candle timeframe to how often its series is
// re-polled. Short timeframes close candles constantly and need tight
// polling; a monthly candle moves once a day at most.
var refreshCadence = map[model.Timeframe]time.Duration{
	model.TF1m:  time.Minute,
	model.TF5m:  2 * time.Minute,
	model.TF15m: 5 * time.Minute,
	model.TF1h:  5 * time.Minute,
	model.TF4h:  15 * time.Minute,
	model.TF1d:  time.Hour,
	model.TF1w:  6 * time.Hour,
	model.TF1M:  24 * time.Hour,
}

func cadenceFor(tf model.Timeframe) time.Duration {
	if d, ok := refreshCadence[tf]; ok {
		return d
	}
	return 5 * time.Minute
}

// Run performs an initial full sweep, then keeps every configured pair
// fresh on its timeframe's cadence while serving the HTTP API. Blocks
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("starting initial sweep",
		slog.Any("symbols", s.cfg.Symbols), slog.Any("timeframes", s.cfg.Timeframes))
	s.RefreshAll(ctx)

	var wg sync.WaitGroup
	for _, tf := range s.cfg.Timeframes {
		wg.Add(1)
		go func(tf model.Timeframe) {
			defer wg.Done()
			s.runTimeframe(ctx, tf)
		}(tf)
	}

	srv := s.startHTTP()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		s.log.Warn("http shutdown", slog.String("err", err.Error()))
	}

	wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// runTimeframe refreshes every symbol for one timeframe on its cadence.
// Symbols run sequentially so the upstream sees one request stream per
// timeframe.
func (s *Service) runTimeframe(ctx context.Context, tf model.Timeframe) {
	cadence := cadenceFor(tf)
	s.log.Info("timeframe scheduler started",
		slog.String("tf", string(tf)), slog.Duration("cadence", cadence))

	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range s.cfg.Symbols {
				if ctx.Err() != nil {
					return
				}
				if _, err := s.RefreshPair(ctx, symbol, tf); err != nil {
					s.log.Error("scheduled refresh failed",
						slog.String("symbol", symbol), slog.String("tf", string(tf)),
						slog.String("err", err.Error()))
				}
			}
		}
	}
}
