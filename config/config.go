package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"ohlc-systemv1/internal/model"
)

// Config holds all application configuration loaded from environment variables.
// It is built once at startup and passed by value into constructors; nothing
// mutates it after Load returns.
type Config struct {
	// Upstream exchange API
	BinanceBaseURL string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	KlinePageLimit int

	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	HTTPAddr      string

	// Universe
	Symbols    []string
	Timeframes []model.Timeframe

	// Backfill
	DefaultStartDate time.Time

	Market MarketConfig
}

// MarketConfig holds per-indicator parameters. Immutable during a
// computation pass.
type MarketConfig struct {
	EMAPeriods []int

	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64

	// OBV smoothing: "None", "SMA", "EMA", "SMMA", "WMA", "SMA+BB"
	OBVMAType   string
	OBVMAPeriod int
	OBVBBStd    float64

	PivotTimeframe model.Timeframe

	CEPeriod     int
	CEMultiplier float64
}

// Load reads configuration from environment variables with sensible defaults.
// Invalid required values are fatal — a process with a broken configuration
// must not start.
func Load() Config {
	cfg := Config{
		BinanceBaseURL: getEnv("BINANCE_API_URL", "https://api.binance.com"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxRetries:     getInt("MAX_RETRIES", 3),
		RetryBaseDelay: getDuration("RETRY_BASE_DELAY", time.Second),
		KlinePageLimit: getInt("KLINE_PAGE_LIMIT", 1000),

		SQLitePath:    getEnv("SQLITE_PATH", "data/ohlc.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		Symbols:          splitList(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT")),
		Timeframes:       parseTimeframes(getEnv("TIMEFRAMES", "1h,4h,1d,1w,1M")),
		DefaultStartDate: getDate("DEFAULT_START_DATE", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),

		Market: MarketConfig{
			EMAPeriods:     parseInts(getEnv("EMA_PERIODS", "9,20,50,100,200")),
			RSIPeriod:      getInt("RSI_PERIOD", 14),
			RSIOverbought:  getFloat("RSI_OVERBOUGHT", 70),
			RSIOversold:    getFloat("RSI_OVERSOLD", 30),
			OBVMAType:      getEnv("OBV_MA_TYPE", "SMA+BB"),
			OBVMAPeriod:    getInt("OBV_MA_PERIOD", 20),
			OBVBBStd:       getFloat("OBV_BB_STD", 2.0),
			PivotTimeframe: model.TF1M,
			CEPeriod:       getInt("CE_PERIOD", 22),
			CEMultiplier:   getFloat("CE_MULTIPLIER", 3.0),
		},
	}

	if ptf := os.Getenv("PIVOT_TIMEFRAME"); ptf != "" {
		tf, err := model.ParseTimeframe(ptf)
		if err != nil {
			log.Fatalf("[config] PIVOT_TIMEFRAME: %v", err)
		}
		cfg.Market.PivotTimeframe = tf
	}

	if len(cfg.Symbols) == 0 {
		log.Fatal("[config] SYMBOLS must not be empty")
	}
	if len(cfg.Timeframes) == 0 {
		log.Fatal("[config] TIMEFRAMES must not be empty")
	}
	if len(cfg.Market.EMAPeriods) == 0 {
		log.Fatal("[config] EMA_PERIODS must not be empty")
	}
	if cfg.Market.RSIPeriod <= 1 || cfg.Market.CEPeriod <= 1 || cfg.Market.OBVMAPeriod <= 1 {
		log.Fatal("[config] indicator periods must be > 1")
	}

	return cfg
}

func parseTimeframes(s string) []model.Timeframe {
	var tfs []model.Timeframe
	for _, p := range splitList(s) {
		tf, err := model.ParseTimeframe(p)
		if err != nil {
			log.Fatalf("[config] TIMEFRAMES: %v", err)
		}
		tfs = append(tfs, tf)
	}
	return tfs
}

func parseInts(s string) []int {
	var out []int
	for _, p := range splitList(s) {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid period value: %q", p)
			continue
		}
		out = append(out, n)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid integer %q", key, v)
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("[config] %s: invalid number %q", key, v)
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid duration %q", key, v)
	}
	return d
}

func getDate(key string, fallback time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		log.Fatalf("[config] %s: invalid date %q (want YYYY-MM-DD)", key, v)
	}
	return t.UTC()
}
