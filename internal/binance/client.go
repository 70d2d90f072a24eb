// Package binance implements the upstream market-data source: a thin client
// for the Binance-style public klines REST endpoint. It parses the wire
// format into model.Candle values; well-formedness failures are reported as
// data-integrity errors, transport failures bubble up for the caller's retry
// policy.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ohlc-systemv1/internal/model"
)

const klinesPath = "/api/v3/klines"

// Client is a Binance REST API client for historical candle data.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a klines client. The given timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// GetKlines fetches at most limit candles for (symbol, tf) with open time in
// [startMS, endMS), ascending. startMS/endMS <= 0 are omitted from the
// request. An empty slice with nil error means the requested window holds no
// more history.
func (c *Client) GetKlines(ctx context.Context, symbol string, tf model.Timeframe, startMS, endMS int64, limit int) ([]model.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(tf))
	params.Set("limit", strconv.Itoa(limit))
	if startMS > 0 {
		params.Set("startTime", strconv.FormatInt(startMS, 10))
	}
	if endMS > 0 {
		params.Set("endTime", strconv.FormatInt(endMS, 10))
	}

	reqURL := c.baseURL + klinesPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("klines request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("klines fetch %s %s: %w", symbol, tf, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("klines read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines fetch %s %s: status %d: %s", symbol, tf, resp.StatusCode, truncate(body, 200))
	}

	return ParseKlines(symbol, tf, body)
}

// ParseKlines decodes the exchange's kline wire format: a JSON array of
// arrays, each [openTimeMS, "open", "high", "low", "close", "volume", ...].
// Malformed rows are data-integrity errors, never retried.
func ParseKlines(symbol string, tf model.Timeframe, body []byte) ([]model.Candle, error) {
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: kline response is not a list of tuples: %v", model.ErrDataIntegrity, err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for i, row := range raw {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: kline row %d has %d fields, want >= 6", model.ErrDataIntegrity, i, len(row))
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: kline row %d: open time is not numeric", model.ErrDataIntegrity, i)
		}
		vals := make([]float64, 5) // open, high, low, close, volume
		for j := 1; j <= 5; j++ {
			s, ok := row[j].(string)
			if !ok {
				return nil, fmt.Errorf("%w: kline row %d field %d: not a decimal string", model.ErrDataIntegrity, i, j)
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: kline row %d field %d: %v", model.ErrDataIntegrity, i, j, err)
			}
			vals[j-1] = f
		}

		candles = append(candles, model.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			TS:        time.UnixMilli(int64(openTime)).UTC(),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return candles, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
