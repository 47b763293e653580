package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/backtester/internal/backtest"
	"github.com/aristath/backtester/internal/marketdata"
)

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns basic liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunRequest is the payload for POST /api/backtests.
type RunRequest struct {
	Symbols   []string             `json:"symbols"`
	Frequency marketdata.Frequency `json:"frequency,omitempty"` // daily (default) or weekly
	Start     string               `json:"start,omitempty"`     // YYYY-MM-DD, inclusive
	End       string               `json:"end,omitempty"`
	Config    backtest.Config      `json:"config"`
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Symbols) == 0 {
		s.writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	var start, end time.Time
	var err error
	if req.Start != "" {
		if start, err = time.Parse("2006-01-02", req.Start); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start date: "+req.Start)
			return
		}
	}
	if req.End != "" {
		if end, err = time.Parse("2006-01-02", req.End); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end date: "+req.End)
			return
		}
	}

	// Assemble the aligned return table from stored prices.
	symbols := make([]string, len(req.Symbols))
	series := make(map[string][]marketdata.ClosePrice, len(req.Symbols))
	for i, symbol := range req.Symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(symbol))

		closes, err := s.prices.GetCloses(symbols[i], start, end)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to load prices: "+err.Error())
			return
		}
		if req.Frequency == marketdata.Weekly {
			closes = marketdata.ResampleWeekly(closes)
		}
		series[symbols[i]] = closes
	}

	table, err := marketdata.BuildReturnTable(symbols, series)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "failed to build return table: "+err.Error())
		return
	}

	cfg := req.Config
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = req.Frequency.PeriodsPerYear()
	}

	engine, err := backtest.NewEngine(table, cfg, s.log)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshots, err := engine.Run(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "backtest failed: "+err.Error())
		return
	}

	result := &backtest.Result{
		Symbols:   symbols,
		Config:    cfg,
		Snapshots: snapshots,
	}
	if err := s.runs.SaveRun(result); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist run, returning transient result")
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	summaries, err := s.runs.ListRuns(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []backtest.RunSummary{}
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.runs.GetRun(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.prices.Symbols()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	s.writeJSON(w, http.StatusOK, symbols)
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	closes, err := s.prices.GetCloses(symbol, time.Time{}, time.Time{})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(closes) == 0 {
		s.writeError(w, http.StatusNotFound, "no prices stored for "+symbol)
		return
	}

	type point struct {
		Date     string  `json:"date"`
		AdjClose float64 `json:"adj_close"`
	}
	points := make([]point, len(closes))
	for i, c := range closes {
		points[i] = point{Date: c.Date.Format("2006-01-02"), AdjClose: c.AdjClose}
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleTriggerPriceSync(w http.ResponseWriter, r *http.Request) {
	if s.syncJob == nil || s.scheduler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "price sync job not registered")
		return
	}

	s.log.Info().Msg("Manual price sync triggered")
	go func() {
		if err := s.scheduler.RunNow(s.syncJob); err != nil {
			s.log.Error().Err(err).Msg("Manual price sync failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "price sync started",
	})
}
