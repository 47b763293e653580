// Package estimator derives covariance, volatility and expected-return
// estimates from trailing windows of an immutable return table.
package estimator

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/pkg/formulas"
)

// Expected-return estimation methods
const (
	MethodMean = "mean"
	MethodEMA  = "ema"
)

// Config holds estimation parameters.
type Config struct {
	Window               int    // trailing observations per estimate
	MinObservations      int    // below this an estimate is refused
	ExpectedReturnMethod string // "mean" (default) or "ema"
	EMASpan              int    // span for the EMA method
}

// Estimates is one rebalance date's worth of estimator output. It is
// computed fresh per rebalance and never mutated afterwards.
type Estimates struct {
	Index           int
	Observations    int
	Covariance      [][]float64 // per-period sample covariance, n x n
	Volatilities    []float64   // per-asset per-period vols, sqrt(diag)
	ExpectedReturns []float64   // per-period expected returns
}

// Estimator computes trailing-window estimates over a fixed return table.
type Estimator struct {
	table *domain.ReturnTable
	cfg   Config
	log   zerolog.Logger
}

// New creates an estimator bound to a return table.
func New(table *domain.ReturnTable, cfg Config, log zerolog.Logger) *Estimator {
	if cfg.MinObservations < 2 {
		cfg.MinObservations = 2
	}
	if cfg.ExpectedReturnMethod == "" {
		cfg.ExpectedReturnMethod = MethodMean
	}
	return &Estimator{
		table: table,
		cfg:   cfg,
		log:   log.With().Str("component", "estimator").Logger(),
	}
}

// EstimateAt computes estimates from the trailing window ending at index-1.
// Returns an error when too few observations are available or the window
// produces a non-finite estimate; callers treat both as recoverable.
func (e *Estimator) EstimateAt(index int) (*Estimates, error) {
	window := e.table.Window(index, e.cfg.Window)
	if len(window) < e.cfg.MinObservations {
		return nil, fmt.Errorf("insufficient observations at index %d: have %d, need %d",
			index, len(window), e.cfg.MinObservations)
	}

	n := e.table.NumAssets()
	obs := len(window)

	// Column-major copy of the window for per-asset series
	columns := make([][]float64, n)
	for i := 0; i < n; i++ {
		columns[i] = make([]float64, obs)
		for t := 0; t < obs; t++ {
			columns[i][t] = window[t][i]
		}
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(columns[i], columns[j], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	vols := make([]float64, n)
	mu := make([]float64, n)
	for i := 0; i < n; i++ {
		vols[i] = math.Sqrt(math.Max(cov[i][i], 0))
		switch e.cfg.ExpectedReturnMethod {
		case MethodEMA:
			mu[i] = formulas.EMAMean(columns[i], e.cfg.EMASpan)
		default:
			mu[i] = formulas.Mean(columns[i])
		}
	}

	for i := 0; i < n; i++ {
		if math.IsNaN(mu[i]) || math.IsNaN(vols[i]) {
			return nil, fmt.Errorf("non-finite estimate for %s at index %d", e.table.Symbols[i], index)
		}
		for j := 0; j < n; j++ {
			if math.IsNaN(cov[i][j]) || math.IsInf(cov[i][j], 0) {
				return nil, fmt.Errorf("non-finite covariance at index %d", index)
			}
		}
	}

	return &Estimates{
		Index:           index,
		Observations:    obs,
		Covariance:      cov,
		Volatilities:    vols,
		ExpectedReturns: mu,
	}, nil
}

// PrecomputeAll computes estimates for every given index in parallel.
// The per-index computations are pure functions of disjoint windows of the
// read-only table, so they can run ahead of the sequential walk. Indices
// whose estimation fails recoverably are simply absent from the result;
// the walk decides what to do about them.
func (e *Estimator) PrecomputeAll(ctx context.Context, indices []int) (map[int]*Estimates, error) {
	results := make(map[int]*Estimates, len(indices))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, index := range indices {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			est, err := e.EstimateAt(index)
			if err != nil {
				e.log.Warn().Int("index", index).Err(err).Msg("Estimation failed, walk will fall back")
				return nil
			}

			mu.Lock()
			results[index] = est
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.log.Debug().
		Int("requested", len(indices)).
		Int("computed", len(results)).
		Msg("Precomputed rebalance estimates")

	return results, nil
}
