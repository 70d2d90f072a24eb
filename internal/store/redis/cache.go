// Package redis caches the latest joined row per (symbol, timeframe) so
// the hot read path skips the SQLite join. SQLite stays authoritative; a
// Redis outage degrades reads, never refreshes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"ohlc-systemv1/internal/metrics"
	"ohlc-systemv1/internal/model"
)

const (
	defaultLatestTTL = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// Config configures the cache connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // latest-row expiry, defaults to 30m
}

// Cache is a latest-row cache in front of SQLite. All commands run through
// a circuit breaker so a dead Redis fails fast instead of stalling every
// refresh cycle on dial timeouts.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
	cb     *CircuitBreaker
	met    *metrics.Metrics
}

// New connects to Redis and pings it once. met may be nil in tests.
func New(cfg Config, met *metrics.Metrics) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	cb := NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s → %s", from, to)
		if met != nil {
			met.RedisCircuitBreakerState.Set(float64(to))
			if to == StateOpen {
				met.RedisCircuitBreakerTrips.Inc()
			}
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client, ttl: ttl, cb: cb, met: met}, nil
}

func latestKey(symbol string, tf model.Timeframe) string {
	return fmt.Sprintf("latest:%s:%s", symbol, tf)
}

// SetLatest stores the newest joined row for its key.
func (c *Cache) SetLatest(ctx context.Context, row model.JoinedRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal latest row: %w", err)
	}

	start := time.Now()
	err = c.cb.Execute(func() error {
		return c.client.Set(ctx, latestKey(row.Symbol, row.Timeframe), data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set latest: %w", err)
	}
	if c.met != nil {
		c.met.RedisWriteDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Latest returns the cached joined row, or nil on a miss. An open breaker
// or a Redis error also reads as a miss — the caller falls back to SQLite.
func (c *Cache) Latest(ctx context.Context, symbol string, tf model.Timeframe) (*model.JoinedRow, error) {
	var data []byte
	err := c.cb.Execute(func() error {
		b, err := c.client.Get(ctx, latestKey(symbol, tf)).Bytes()
		if err == goredis.Nil {
			// A miss is a valid answer, not a Redis failure.
			return nil
		}
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		if c.met != nil {
			c.met.CacheMisses.Inc()
		}
		if err == ErrCircuitOpen {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get latest: %w", err)
	}
	if data == nil {
		if c.met != nil {
			c.met.CacheMisses.Inc()
		}
		return nil, nil
	}

	var row model.JoinedRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal latest row: %w", err)
	}
	if c.met != nil {
		c.met.CacheHits.Inc()
	}
	return &row, nil
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// Close closes the connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
