package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ohlc-systemv1/internal/model"
)

func doRequest(t *testing.T, svc *Service, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	svc.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleCandles_Validation(t *testing.T) {
	svc := newTestService(&fakeBackfiller{}, &fakeStore{}, nil)

	cases := []struct {
		name   string
		target string
		code   int
	}{
		{"missing symbol", "/api/v1/candles?timeframe=1h", http.StatusBadRequest},
		{"missing timeframe", "/api/v1/candles?symbol=BTCUSDT", http.StatusBadRequest},
		{"bad timeframe", "/api/v1/candles?symbol=BTCUSDT&timeframe=2h", http.StatusBadRequest},
		{"bad limit", "/api/v1/candles?symbol=BTCUSDT&timeframe=1h&limit=-5", http.StatusBadRequest},
		{"bad start", "/api/v1/candles?symbol=BTCUSDT&timeframe=1h&start=yesterday", http.StatusBadRequest},
		{"ok empty", "/api/v1/candles?symbol=BTCUSDT&timeframe=1h", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, svc, http.MethodGet, tc.target)
			if rec.Code != tc.code {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, tc.code, rec.Body.String())
			}
		})
	}

	if rec := doRequest(t, svc, http.MethodPost, "/api/v1/candles?symbol=BTCUSDT&timeframe=1h"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: got %d, want 405", rec.Code)
	}
}

func TestHandleCandles_ReturnsRows(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{joined: []model.JoinedRow{
		{Symbol: "BTCUSDT", Timeframe: model.TF1h, TS: ts, Close: 100},
		{Symbol: "BTCUSDT", Timeframe: model.TF1h, TS: ts.Add(time.Hour), Close: 101},
	}}
	svc := newTestService(&fakeBackfiller{}, store, nil)

	rec := doRequest(t, svc, http.MethodGet, "/api/v1/candles?symbol=BTCUSDT&timeframe=1h&limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Symbol    string            `json:"symbol"`
		Timeframe string            `json:"timeframe"`
		Count     int               `json:"count"`
		Candles   []model.JoinedRow `json:"candles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Candles) != 2 {
		t.Errorf("count: got %d/%d rows, want 2", resp.Count, len(resp.Candles))
	}
	if resp.Candles[1].Close != 101 {
		t.Errorf("close: got %v", resp.Candles[1].Close)
	}
}

func TestHandleLatest_CacheHitAndFallback(t *testing.T) {
	row := &model.JoinedRow{Symbol: "BTCUSDT", Timeframe: model.TF1h, Close: 42}

	// Cache hit serves without touching SQLite.
	cache := &fakeCache{row: row}
	svc := newTestService(&fakeBackfiller{}, &fakeStore{}, cache)
	rec := doRequest(t, svc, http.MethodGet, "/api/v1/latest?symbol=BTCUSDT&timeframe=1h")
	if rec.Code != http.StatusOK {
		t.Fatalf("cache hit status %d", rec.Code)
	}
	var got model.JoinedRow
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Close != 42 {
		t.Errorf("close: got %v, want 42", got.Close)
	}

	// Cache miss falls back to the store.
	svc = newTestService(&fakeBackfiller{}, &fakeStore{latest: row}, &fakeCache{})
	if rec := doRequest(t, svc, http.MethodGet, "/api/v1/latest?symbol=BTCUSDT&timeframe=1h"); rec.Code != http.StatusOK {
		t.Errorf("fallback status %d", rec.Code)
	}

	// Nothing stored anywhere → 404.
	svc = newTestService(&fakeBackfiller{}, &fakeStore{}, nil)
	if rec := doRequest(t, svc, http.MethodGet, "/api/v1/latest?symbol=BTCUSDT&timeframe=1h"); rec.Code != http.StatusNotFound {
		t.Errorf("empty status: got %d, want 404", rec.Code)
	}
}

func TestHandleRefresh(t *testing.T) {
	store := &fakeStore{series: testSeries(30)}
	bf := &fakeBackfiller{fetched: 30}
	svc := newTestService(bf, store, nil)

	if rec := doRequest(t, svc, http.MethodGet, "/api/v1/refresh"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: got %d, want 405", rec.Code)
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/v1/refresh?symbol=BTCUSDT&timeframe=1h")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Fetched int `json:"fetched"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Fetched != 30 {
		t.Errorf("fetched: got %d, want 30", resp.Fetched)
	}
	if bf.calls != 1 {
		t.Errorf("backfill calls: got %d, want 1", bf.calls)
	}

	// No params starts a background sweep.
	if rec := doRequest(t, svc, http.MethodPost, "/api/v1/refresh"); rec.Code != http.StatusAccepted {
		t.Errorf("sweep: got %d, want 202", rec.Code)
	}
}
