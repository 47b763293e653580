package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/backtester/internal/allocation"
	"github.com/aristath/backtester/internal/backtest"
	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/database"
	"github.com/aristath/backtester/internal/marketdata"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()

	historyDB, err := database.New(database.Config{
		Path: filepath.Join(dir, "history.db"),
		Name: "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = historyDB.Close() })

	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "results.db"),
		Profile: database.ProfileLedger,
		Name:    "results",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resultsDB.Close() })

	prices := marketdata.NewPriceRepository(historyDB.Conn(), zerolog.Nop())
	require.NoError(t, prices.InitSchema())

	runs := backtest.NewRepository(resultsDB.Conn(), zerolog.Nop())
	require.NoError(t, runs.InitSchema())

	return New(Config{
		Log:       zerolog.Nop(),
		Config:    &config.Config{DataDir: dir},
		HistoryDB: historyDB,
		ResultsDB: resultsDB,
		Prices:    prices,
		Runs:      runs,
		Port:      0,
	})
}

func seedPrices(t *testing.T, s *Server, symbol string, start float64) {
	t.Helper()

	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, 10)
	price := start
	for i := range bars {
		price *= 1.0 + 0.002*float64(i%3)
		bars[i] = marketdata.Bar{
			Date:     base.AddDate(0, 0, i),
			Close:    price,
			AdjClose: price,
			Volume:   1000,
		}
	}

	_, err := s.prices.UpsertPrices(symbol, bars)
	require.NoError(t, err)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleRunBacktest_EndToEnd(t *testing.T) {
	s := testServer(t)
	seedPrices(t, s, "XLK", 100)
	seedPrices(t, s, "XLE", 50)

	body, err := json.Marshal(RunRequest{
		Symbols: []string{"xlk", "xle"},
		Config: backtest.Config{
			Model:          allocation.EqualWeight,
			RebalanceEvery: 1,
		},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backtests", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result backtest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, []string{"XLK", "XLE"}, result.Symbols)
	// Ten closes leave nine return periods.
	assert.Len(t, result.Snapshots, 9)

	// The run is persisted and listable.
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/backtests", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []backtest.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, result.ID, summaries[0].ID)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/backtests/"+result.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRunBacktest_ValidationErrors(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backtests",
		bytes.NewReader([]byte(`{"symbols":[]}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown symbol: no stored prices, table build fails.
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backtests",
		bytes.NewReader([]byte(`{"symbols":["ZZZ"],"config":{"model":"equal_weight"}}`))))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleRunBacktest_UnknownModel(t *testing.T) {
	s := testServer(t)
	seedPrices(t, s, "XLK", 100)
	seedPrices(t, s, "XLE", 50)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backtests",
		bytes.NewReader([]byte(`{"symbols":["XLK","XLE"],"config":{"model":"momentum"}}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetRun_NotFound(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/backtests/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePrices(t *testing.T) {
	s := testServer(t)
	seedPrices(t, s, "XLK", 100)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/symbols", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["XLK"]`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/XLK", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/ZZZ", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTriggerPriceSync_NotRegistered(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/system/sync/prices", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
