package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ohlc-systemv1/config"
	"ohlc-systemv1/internal/backfill"
	"ohlc-systemv1/internal/binance"
	"ohlc-systemv1/internal/indicator"
	"ohlc-systemv1/internal/logger"
	"ohlc-systemv1/internal/metrics"
	"ohlc-systemv1/internal/service"
	"ohlc-systemv1/internal/store/redis"
	"ohlc-systemv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	slogger := logger.Init("ohlcengine", slog.LevelInfo)

	cfg := config.Load()
	log.Printf("[ohlcengine] symbols: %v, timeframes: %v", cfg.Symbols, cfg.Timeframes)

	met := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	tfs := make([]string, len(cfg.Timeframes))
	for i, tf := range cfg.Timeframes {
		tfs[i] = string(tf)
	}
	health.SetEnabledTFs(tfs)

	store, err := sqlite.New(cfg.SQLitePath, met)
	if err != nil {
		log.Fatalf("[ohlcengine] sqlite init failed: %v", err)
	}
	defer store.Close()

	// Redis is optional: without it, latest reads go straight to SQLite.
	var cache service.Cache
	rcache, err := redis.New(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}, met)
	if err != nil {
		log.Printf("[ohlcengine] redis unavailable, serving latest from sqlite: %v", err)
	} else {
		cache = rcache
		defer rcache.Close()
	}

	client := binance.NewClient(cfg.BinanceBaseURL, cfg.RequestTimeout)
	backfiller := backfill.NewEngine(client, store, backfill.Config{
		PageLimit:    cfg.KlinePageLimit,
		MaxRetries:   cfg.MaxRetries,
		RetryBase:    cfg.RetryBaseDelay,
		DefaultStart: cfg.DefaultStartDate,
	}, met)

	engine := indicator.NewEngine(indicator.Config{
		EMAPeriods:     cfg.Market.EMAPeriods,
		RSIPeriod:      cfg.Market.RSIPeriod,
		OBV:            indicator.OBVConfig{MAType: cfg.Market.OBVMAType, MAPeriod: cfg.Market.OBVMAPeriod, BBStd: cfg.Market.OBVBBStd},
		PivotTimeframe: cfg.Market.PivotTimeframe,
		CEPeriod:       cfg.Market.CEPeriod,
		CEMultiplier:   cfg.Market.CEMultiplier,
	})

	svc := service.New(cfg, backfiller, store, cache, engine, met, health, slogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if rcache != nil {
		health.StartLivenessChecker(ctx, rcache.Client(), store.DB(), 15*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 15*time.Second)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[ohlcengine] shutdown signal received")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[ohlcengine] fatal: %v", err)
	}
}
