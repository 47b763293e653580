package backtest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Result bundles a completed run with its configuration for persistence.
type Result struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Symbols   []string         `json:"symbols"`
	Config    Config           `json:"config"`
	Snapshots []PeriodSnapshot `json:"snapshots"`
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Model       string    `json:"model"`
	Scaling     string    `json:"scaling"`
	Periods     int       `json:"periods"`
	FinalEquity float64   `json:"final_equity"`
}

// Repository stores run histories in the results database. Rows are
// append-only; a run is never updated after it is saved.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a results repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "backtest_repository").Logger(),
	}
}

// InitSchema creates the runs and snapshots tables when missing.
func (r *Repository) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id           TEXT PRIMARY KEY,
		created_at   TEXT NOT NULL,
		symbols      TEXT NOT NULL,
		config       TEXT NOT NULL,
		periods      INTEGER NOT NULL,
		final_equity REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS backtest_snapshots (
		run_id       TEXT NOT NULL REFERENCES backtest_runs(id),
		period       INTEGER NOT NULL,
		date         TEXT NOT NULL,
		weights      TEXT NOT NULL,
		cash         REAL NOT NULL,
		cost         REAL NOT NULL,
		gross_return REAL NOT NULL,
		net_return   REAL NOT NULL,
		equity       REAL NOT NULL,
		rebalanced   INTEGER NOT NULL,
		fallback     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, period)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON backtest_snapshots(run_id);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create backtest schema: %w", err)
	}
	return nil
}

// SaveRun persists a run and its full snapshot history in one transaction.
// A missing ID is assigned here.
func (r *Repository) SaveRun(result *Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	symbolsJSON, err := json.Marshal(result.Symbols)
	if err != nil {
		return fmt.Errorf("failed to encode symbols: %w", err)
	}
	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	finalEquity := 1.0
	if len(result.Snapshots) > 0 {
		finalEquity = result.Snapshots[len(result.Snapshots)-1].Equity
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO backtest_runs (id, created_at, symbols, config, periods, final_equity)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.CreatedAt.Format(time.RFC3339),
		string(symbolsJSON),
		string(configJSON),
		len(result.Snapshots),
		finalEquity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO backtest_snapshots
		 (run_id, period, date, weights, cash, cost, gross_return, net_return, equity, rebalanced, fallback)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for period, snap := range result.Snapshots {
		weightsJSON, err := json.Marshal(snap.Weights)
		if err != nil {
			return fmt.Errorf("failed to encode weights for period %d: %w", period, err)
		}

		rebalanced := 0
		if snap.Rebalanced {
			rebalanced = 1
		}

		_, err = stmt.Exec(
			result.ID,
			period,
			snap.Date.Format(time.RFC3339),
			string(weightsJSON),
			snap.Cash,
			snap.Cost,
			snap.GrossReturn,
			snap.Return,
			snap.Equity,
			rebalanced,
			snap.Fallback,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot for period %d: %w", period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	r.log.Info().
		Str("run_id", result.ID).
		Int("periods", len(result.Snapshots)).
		Float64("final_equity", finalEquity).
		Msg("Saved backtest run")

	return nil
}

// GetRun loads a stored run with its full history.
func (r *Repository) GetRun(id string) (*Result, error) {
	var (
		createdAt   string
		symbolsJSON string
		configJSON  string
	)
	err := r.db.QueryRow(
		`SELECT created_at, symbols, config FROM backtest_runs WHERE id = ?`, id,
	).Scan(&createdAt, &symbolsJSON, &configJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	result := &Result{ID: id}
	if result.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &result.Symbols); err != nil {
		return nil, fmt.Errorf("failed to decode symbols: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &result.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	rows, err := r.db.Query(
		`SELECT date, weights, cash, cost, gross_return, net_return, equity, rebalanced, fallback
		 FROM backtest_snapshots WHERE run_id = ? ORDER BY period`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap        PeriodSnapshot
			date        string
			weightsJSON string
			rebalanced  int
		)
		err := rows.Scan(&date, &weightsJSON, &snap.Cash, &snap.Cost,
			&snap.GrossReturn, &snap.Return, &snap.Equity, &rebalanced, &snap.Fallback)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		if snap.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot date: %w", err)
		}
		if err := json.Unmarshal([]byte(weightsJSON), &snap.Weights); err != nil {
			return nil, fmt.Errorf("failed to decode weights: %w", err)
		}
		snap.Rebalanced = rebalanced != 0

		result.Snapshots = append(result.Snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return result, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, created_at, config, periods, final_equity
		 FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			summary    RunSummary
			createdAt  string
			configJSON string
		)
		if err := rows.Scan(&summary.ID, &createdAt, &configJSON, &summary.Periods, &summary.FinalEquity); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}

		if summary.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
		}

		var cfg Config
		if err := json.Unmarshal([]byte(configJSON), &cfg); err == nil {
			summary.Model = string(cfg.Model)
			summary.Scaling = string(cfg.Scaling)
		}

		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return summaries, nil
}
