package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the OHLC engine.
type Metrics struct {
	// Backfill
	KlinesFetched   *prometheus.CounterVec // labels: symbol, tf
	PagesFetched    prometheus.Counter
	FetchRetries    prometheus.Counter
	IntegrityErrors prometheus.Counter
	RefreshErrors   *prometheus.CounterVec // labels: symbol, tf
	RefreshDur      prometheus.Histogram

	// Indicator engine
	ComputeDur      *prometheus.HistogramVec // labels: family
	IndicatorRows   *prometheus.CounterVec   // labels: family
	ComputeFailures *prometheus.CounterVec   // labels: family

	// Storage
	SQLiteCommitDur prometheus.Histogram
	RedisWriteDur   prometheus.Histogram
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// HTTP API
	RequestDur *prometheus.HistogramVec // labels: endpoint
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		KlinesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ohlcengine_klines_fetched_total",
			Help: "Klines fetched from the upstream REST API",
		}, []string{"symbol", "tf"}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ohlcengine_pages_fetched_total",
			Help: "Kline pages fetched from the upstream REST API",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ohlcengine_fetch_retries_total",
			Help: "Upstream fetch attempts retried after a transient failure",
		}),
		IntegrityErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ohlcengine_integrity_errors_total",
			Help: "Pages rejected due to malformed or invalid candle data",
		}),
		RefreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ohlcengine_refresh_errors_total",
			Help: "Refresh cycles that ended in an error",
		}, []string{"symbol", "tf"}),
		RefreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ohlcengine_refresh_duration_seconds",
			Help:    "Full refresh cycle latency (fetch + compute + persist)",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		ComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ohlcengine_compute_duration_seconds",
			Help:    "Indicator family compute latency per series",
			Buckets: prometheus.DefBuckets,
		}, []string{"family"}),
		IndicatorRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ohlcengine_indicator_rows_total",
			Help: "Indicator rows computed (by family)",
		}, []string{"family"}),
		ComputeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ohlcengine_compute_failures_total",
			Help: "Indicator families that failed to compute",
		}, []string{"family"}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ohlcengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ohlcengine_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ohlcengine_cache_hits_total",
			Help: "Latest-row reads served from Redis",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ohlcengine_cache_misses_total",
			Help: "Latest-row reads that fell through to SQLite",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ohlcengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ohlcengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		RequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ohlcengine_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	prometheus.MustRegister(
		m.KlinesFetched,
		m.PagesFetched,
		m.FetchRetries,
		m.IntegrityErrors,
		m.RefreshErrors,
		m.RefreshDur,
		m.ComputeDur,
		m.IndicatorRows,
		m.ComputeFailures,
		m.SQLiteCommitDur,
		m.RedisWriteDur,
		m.CacheHits,
		m.CacheMisses,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RequestDur,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool
	SQLiteOK       bool
	EnabledTFs     []string
	LastRefreshAt  time.Time

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetEnabledTFs(tfs []string) {
	h.mu.Lock()
	h.EnabledTFs = tfs
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastRefreshAt(t time.Time) {
	h.mu.Lock()
	h.LastRefreshAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the health endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected {
		// Redis is a cache; degrade, don't fail.
		overallStatus = "degraded"
	}
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	refreshAge := ""
	if !h.LastRefreshAt.IsZero() {
		refreshAge = time.Since(h.LastRefreshAt).Round(time.Second).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		EnabledTFs      []string `json:"enabled_tfs"`
		LastRefreshAt   string   `json:"last_refresh_at"`
		RefreshAge      string   `json:"refresh_age"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		EnabledTFs:      h.EnabledTFs,
		LastRefreshAt:   h.LastRefreshAt.Format(time.RFC3339),
		RefreshAge:      refreshAge,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
