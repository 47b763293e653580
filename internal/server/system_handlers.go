package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/backtester/internal/database"
)

// SystemHandlers serves process and database health information.
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	historyDB   *database.DB
	resultsDB   *database.DB
}

// NewSystemHandlers creates a new system handlers instance.
func NewSystemHandlers(log zerolog.Logger, historyDB, resultsDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		historyDB:   historyDB,
		resultsDB:   resultsDB,
	}
}

// SystemStatusResponse is the GET /api/system/status payload.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	HistoryDB     string  `json:"history_db"`
	ResultsDB     string  `json:"results_db"`
}

// HandleSystemStatus returns process and database health.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		HistoryDB:     h.checkDB(r, h.historyDB),
		ResultsDB:     h.checkDB(r, h.resultsDB),
	}
	if resp.HistoryDB != "ok" || resp.ResultsDB != "ok" {
		resp.Status = "degraded"
	}

	h.writeJSON(w, resp)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) checkDB(r *http.Request, db *database.DB) string {
	if db == nil {
		return "not configured"
	}
	if err := db.QuickCheck(r.Context()); err != nil {
		h.log.Warn().Err(err).Str("db", db.Name()).Msg("Database health check failed")
		return "unreachable"
	}
	return "ok"
}

// getSystemStats samples CPU and RAM usage. The 100ms CPU window keeps the
// endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
