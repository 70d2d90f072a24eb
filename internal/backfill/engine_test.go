package backfill

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ohlc-systemv1/internal/model"
)

// fakeSource replays a scripted sequence of responses and records every
// request window it receives.
type fakeSource struct {
	responses []fakeResponse
	calls     []fakeCall
}

type fakeResponse struct {
	page []model.Candle
	err  error
}

type fakeCall struct {
	startMS, endMS int64
	limit          int
}

func (f *fakeSource) GetKlines(_ context.Context, _ string, _ model.Timeframe, startMS, endMS int64, limit int) ([]model.Candle, error) {
	f.calls = append(f.calls, fakeCall{startMS, endMS, limit})
	if len(f.responses) == 0 {
		return nil, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.page, r.err
}

type fakeStore struct {
	candles   []model.Candle
	last      time.Time
	hasLast   bool
	upsertErr error
}

func (f *fakeStore) UpsertCandles(_ context.Context, candles []model.Candle) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.candles = append(f.candles, candles...)
	return nil
}

func (f *fakeStore) Candles(context.Context, string, model.Timeframe, *time.Time, *time.Time) ([]model.Candle, error) {
	return f.candles, nil
}

func (f *fakeStore) LastCandleTS(context.Context, string, model.Timeframe) (time.Time, bool, error) {
	return f.last, f.hasLast, nil
}

var (
	testStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	testNow   = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
)

func newTestEngine(src *fakeSource, store *fakeStore) *Engine {
	eng := NewEngine(src, store, Config{
		PageLimit:    1000,
		MaxRetries:   3,
		RetryBase:    time.Millisecond,
		DefaultStart: testStart,
	}, nil)
	eng.now = func() time.Time { return testNow }
	return eng
}

// page builds n valid hourly candles starting at startMS.
func page(startMS int64, n int) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		ts := time.UnixMilli(startMS + int64(i)*3600_000).UTC()
		candles[i] = model.Candle{
			Symbol: "BTCUSDT", Timeframe: model.TF1h, TS: ts,
			Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
	}
	return candles
}

func TestRefresh_PaginatesFromDefaultStart(t *testing.T) {
	first := page(testStart.UnixMilli(), 1000)
	second := page(testStart.UnixMilli()+1000*3600_000, 500)
	src := &fakeSource{responses: []fakeResponse{
		{page: first},
		{page: second},
		{page: nil}, // history exhausted
	}}
	store := &fakeStore{}

	n, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1500 {
		t.Errorf("fetched: got %d, want 1500", n)
	}
	if len(store.candles) != 1500 {
		t.Errorf("stored: got %d, want 1500", len(store.candles))
	}

	if len(src.calls) != 3 {
		t.Fatalf("calls: got %d, want 3", len(src.calls))
	}
	if src.calls[0].startMS != testStart.UnixMilli() {
		t.Errorf("first window start: got %d, want %d", src.calls[0].startMS, testStart.UnixMilli())
	}
	// Each next window starts one interval after the last candle received.
	wantSecond := first[len(first)-1].TS.UnixMilli() + 3600_000
	if src.calls[1].startMS != wantSecond {
		t.Errorf("second window start: got %d, want %d", src.calls[1].startMS, wantSecond)
	}
	// End is the next 1h boundary after "now" (12:30 → 13:00).
	wantEnd := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC).UnixMilli()
	if src.calls[0].endMS != wantEnd {
		t.Errorf("window end: got %d, want %d", src.calls[0].endMS, wantEnd)
	}
	if src.calls[0].limit != 1000 {
		t.Errorf("limit: got %d, want 1000", src.calls[0].limit)
	}
}

func TestRefresh_ResumesFromLastStoredCandle(t *testing.T) {
	last := time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)
	src := &fakeSource{responses: []fakeResponse{{page: nil}}}
	store := &fakeStore{last: last, hasLast: true}

	if _, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The newest stored candle is fetched again, not skipped.
	if got := src.calls[0].startMS; got != last.UnixMilli() {
		t.Errorf("window start: got %d, want %d (last stored ts)", got, last.UnixMilli())
	}
}

func TestRefresh_EmptyFirstPage(t *testing.T) {
	src := &fakeSource{responses: []fakeResponse{{page: nil}}}
	store := &fakeStore{}

	n, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || len(store.candles) != 0 {
		t.Errorf("expected nothing fetched or stored, got n=%d stored=%d", n, len(store.candles))
	}
	if len(src.calls) != 1 {
		t.Errorf("calls: got %d, want 1", len(src.calls))
	}
}

func TestRefresh_InvalidCandleAbortsWithoutPersisting(t *testing.T) {
	bad := page(testStart.UnixMilli(), 3)
	bad[1].High = bad[1].Low - 1 // high below low
	src := &fakeSource{responses: []fakeResponse{{page: bad}}}
	store := &fakeStore{}

	_, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h)
	if !errors.Is(err, model.ErrDataIntegrity) {
		t.Fatalf("expected ErrDataIntegrity, got %v", err)
	}
	if len(store.candles) != 0 {
		t.Errorf("rejected page must not be persisted, stored %d", len(store.candles))
	}
	if len(src.calls) != 1 {
		t.Errorf("integrity failures must not be retried, calls=%d", len(src.calls))
	}
}

func TestRefresh_NonAscendingPageRejected(t *testing.T) {
	bad := page(testStart.UnixMilli(), 3)
	bad[2].TS = bad[1].TS
	src := &fakeSource{responses: []fakeResponse{{page: bad}}}
	store := &fakeStore{}

	_, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h)
	if !errors.Is(err, model.ErrDataIntegrity) {
		t.Fatalf("expected ErrDataIntegrity, got %v", err)
	}
	if len(store.candles) != 0 {
		t.Errorf("rejected page must not be persisted, stored %d", len(store.candles))
	}
}

func TestRefresh_TransientErrorRetriedThenSucceeds(t *testing.T) {
	src := &fakeSource{responses: []fakeResponse{
		{err: fmt.Errorf("status 502")},
		{err: fmt.Errorf("connection reset")},
		{page: page(testStart.UnixMilli(), 10)},
		{page: nil},
	}}
	store := &fakeStore{}

	n, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 10 {
		t.Errorf("fetched: got %d, want 10", n)
	}
	if len(src.calls) != 4 {
		t.Errorf("calls: got %d, want 4 (2 failures + success + empty)", len(src.calls))
	}
}

func TestRefresh_RetriesExhausted(t *testing.T) {
	upstream := fmt.Errorf("status 503")
	src := &fakeSource{responses: []fakeResponse{
		{err: upstream}, {err: upstream}, {err: upstream}, {err: upstream},
	}}
	store := &fakeStore{}

	n, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if errors.Is(err, model.ErrDataIntegrity) {
		t.Errorf("transient failure must not classify as integrity error: %v", err)
	}
	if n != 0 {
		t.Errorf("fetched: got %d, want 0", n)
	}
	// Initial attempt + MaxRetries.
	if len(src.calls) != 4 {
		t.Errorf("calls: got %d, want 4", len(src.calls))
	}
}

func TestRefresh_UpsertErrorPropagates(t *testing.T) {
	src := &fakeSource{responses: []fakeResponse{{page: page(testStart.UnixMilli(), 5)}}}
	store := &fakeStore{upsertErr: fmt.Errorf("disk full")}

	if _, err := newTestEngine(src, store).Refresh(context.Background(), "BTCUSDT", model.TF1h); err == nil {
		t.Fatal("expected upsert error to propagate")
	}
}
