package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ohlc-systemv1/internal/model"
)

// routes builds the API mux. Split out from startHTTP so tests can drive
// the handlers through httptest without binding a port.
func (s *Service) routes() *http.ServeMux {
	mux := http.NewServeMux()
	if s.health != nil {
		mux.Handle("/api/v1/health", s.health)
	}
	mux.HandleFunc("/api/v1/candles", s.instrument("candles", s.handleCandles))
	mux.HandleFunc("/api/v1/latest", s.instrument("latest", s.handleLatest))
	mux.HandleFunc("/api/v1/refresh", s.instrument("refresh", s.handleRefresh))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Service) startHTTP() *http.Server {
	srv := &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		s.log.Info("http server listening", slog.String("addr", s.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server", slog.String("err", err.Error()))
		}
	}()
	return srv
}

func (s *Service) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		if s.met != nil {
			s.met.RequestDur.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

// handleCandles serves GET /api/v1/candles?symbol=&timeframe=&start=&end=&limit=.
// Rows come back ascending; limit keeps the most recent limit rows.
func (s *Service) handleCandles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	symbol, tf, ok := requireKey(w, r)
	if !ok {
		return
	}

	start, ok := parseTimeParam(w, r, "start")
	if !ok {
		return
	}
	end, ok := parseTimeParam(w, r, "end")
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rows, err := s.store.JoinedRows(r.Context(), symbol, tf, start, end, limit)
	if err != nil {
		s.log.Error("candles query failed", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []model.JoinedRow{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    symbol,
		"timeframe": tf,
		"count":     len(rows),
		"candles":   rows,
	})
}

// handleLatest serves GET /api/v1/latest?symbol=&timeframe=. Reads hit the
// Redis cache first and fall back to SQLite.
func (s *Service) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	symbol, tf, ok := requireKey(w, r)
	if !ok {
		return
	}

	if s.cache != nil {
		row, err := s.cache.Latest(r.Context(), symbol, tf)
		if err != nil {
			s.log.Warn("latest cache read failed", slog.String("err", err.Error()))
		}
		if row != nil {
			writeJSON(w, http.StatusOK, row)
			return
		}
	}

	row, err := s.store.LatestJoined(r.Context(), symbol, tf)
	if err != nil {
		s.log.Error("latest query failed", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "no candles stored for this key")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleRefresh serves POST /api/v1/refresh. With symbol and timeframe it
// refreshes that pair synchronously; without them it kicks off a full
// sweep in the background.
func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	q := r.URL.Query()
	if q.Get("symbol") == "" && q.Get("timeframe") == "" {
		// Detached from the request context: a sweep outlives the caller.
		go s.RefreshAll(context.Background())
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "sweep started"})
		return
	}

	symbol, tf, ok := requireKey(w, r)
	if !ok {
		return
	}

	fetched, err := s.RefreshPair(r.Context(), symbol, tf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    symbol,
		"timeframe": tf,
		"fetched":   fetched,
	})
}

// requireKey pulls the mandatory symbol and timeframe query params,
// writing a 400 and returning ok=false when either is missing or invalid.
func requireKey(w http.ResponseWriter, r *http.Request) (string, model.Timeframe, bool) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return "", "", false
	}
	tfs := q.Get("timeframe")
	if tfs == "" {
		writeError(w, http.StatusBadRequest, "timeframe is required")
		return "", "", false
	}
	tf, err := model.ParseTimeframe(tfs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return symbol, tf, true
}

// parseTimeParam accepts RFC3339 or YYYY-MM-DD.
func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		t = t.UTC()
		return &t, true
	}
	writeError(w, http.StatusBadRequest, name+" must be RFC3339 or YYYY-MM-DD")
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
