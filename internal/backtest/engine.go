// Package backtest drives the walk-forward simulation: a strictly
// sequential state machine that rebalances or drifts weights at each period,
// charges transaction costs on turnover, and compounds equity.
package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/allocation"
	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/estimator"
	"github.com/aristath/backtester/internal/scaling"
)

// Engine walks a return table forward in time and produces the period
// snapshot history.
type Engine struct {
	cfg      Config
	table    *domain.ReturnTable
	model    allocation.Model
	fallback allocation.Model // equal weight, used by the equal-weight fallback policy
	scaler   scaling.Scaler   // nil when scaling is disabled
	est      *estimator.Estimator
	log      zerolog.Logger
}

// NewEngine validates the configuration against the table and wires the
// selected strategies. All fatal (configuration) errors surface here,
// before the walk begins.
func NewEngine(table *domain.ReturnTable, cfg Config, log zerolog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(table); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}

	model, err := allocation.New(cfg.Model, cfg.Solver)
	if err != nil {
		return nil, err
	}
	fallback, err := allocation.New(allocation.EqualWeight, cfg.Solver)
	if err != nil {
		return nil, err
	}

	var scaler scaling.Scaler
	if cfg.Scaling != scaling.None {
		scaler, err = scaling.New(cfg.Scaling, cfg.scalingConfig())
		if err != nil {
			return nil, err
		}
	}

	est := estimator.New(table, estimator.Config{
		Window:               cfg.Window,
		MinObservations:      cfg.MinObservations,
		ExpectedReturnMethod: cfg.ExpectedReturnMethod,
		EMASpan:              cfg.EMASpan,
	}, log)

	return &Engine{
		cfg:      cfg,
		table:    table,
		model:    model,
		fallback: fallback,
		scaler:   scaler,
		est:      est,
		log:      log.With().Str("component", "backtest").Logger(),
	}, nil
}

// Run executes the walk and returns the completed snapshot history.
//
// Per-rebalance estimates are precomputed in parallel up front; the walk
// itself is inherently sequential because each period's drift depends on the
// prior period's realized weights.
func (e *Engine) Run(ctx context.Context) ([]PeriodSnapshot, error) {
	schedule := e.cfg.scheduleIndices(e.table)

	var estimates map[int]*estimator.Estimates
	if e.needsEstimates() {
		indices := make([]int, 0, len(schedule))
		for idx := range schedule {
			indices = append(indices, idx)
		}
		var err error
		estimates, err = e.est.PrecomputeAll(ctx, indices)
		if err != nil {
			return nil, fmt.Errorf("estimate precompute aborted: %w", err)
		}
	}

	n := e.table.NumAssets()
	T := e.table.NumPeriods()

	history := make([]PeriodSnapshot, 0, T)
	grossReturns := make([]float64, 0, T)

	// Initial state: all cash, unit equity.
	weights := make([]float64, n)
	cash := 1.0
	equity := 1.0

	for t := 0; t < T; t++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		periodReturns := e.table.Returns[t]

		// The book drifts with the elapsed period's returns before anything
		// trades at t; the snapshot weights then earn period t's return. At
		// t=0 nothing has elapsed and the all-cash state carries over.
		drifted, driftedCash := weights, cash
		if t > 0 {
			drifted, driftedCash = DriftWeights(weights, cash, e.table.Returns[t-1])
		}

		target := drifted
		targetCash := driftedCash
		rebalanced := schedule[t]
		fallbackReason := ""

		if rebalanced {
			target, targetCash, fallbackReason = e.rebalance(t, drifted, driftedCash, estimates[t], grossReturns)
		}

		cost := TransactionCost(target, drifted, e.cfg.TransactionCost)
		gross := dot(target, periodReturns)
		net := gross - cost
		equity *= 1.0 + net

		history = append(history, PeriodSnapshot{
			Date:        e.table.Dates[t],
			Weights:     target,
			Cash:        targetCash,
			Cost:        cost,
			GrossReturn: gross,
			Return:      net,
			Equity:      equity,
			Rebalanced:  rebalanced,
			Fallback:    fallbackReason,
		})

		grossReturns = append(grossReturns, gross)
		weights = target
		cash = targetCash
	}

	e.log.Info().
		Int("periods", T).
		Int("assets", n).
		Str("model", string(e.cfg.Model)).
		Float64("final_equity", equity).
		Msg("Backtest completed")

	return history, nil
}

// rebalance computes the post-trade target weights for a rebalance date,
// routing every recoverable failure (estimation, optimization, scaling)
// through the configured fallback.
func (e *Engine) rebalance(
	t int,
	drifted []float64,
	driftedCash float64,
	est *estimator.Estimates,
	grossReturns []float64,
) (target []float64, targetCash float64, fallbackReason string) {
	in := allocation.Inputs{NumAssets: e.table.NumAssets()}
	var cov [][]float64
	if est != nil {
		in.ExpectedReturns = est.ExpectedReturns
		in.Covariance = est.Covariance
		in.Volatilities = est.Volatilities
		cov = est.Covariance
	}

	cross, err := e.model.Weights(in)
	if err != nil {
		e.log.Warn().
			Int("index", t).
			Str("model", string(e.cfg.Model)).
			Err(err).
			Msg("Allocation failed, applying fallback")

		switch {
		case e.cfg.Fallback == FallbackPreviousWeights && t > 0:
			// Keep the drifted weights in place; they already embed any
			// prior scaling, so no new trade and no new leverage decision.
			return drifted, driftedCash, string(FallbackPreviousWeights)
		default:
			// Equal weight, also the degraded form of previous_weights at
			// t=0 where no prior weights exist. It only fails on an empty
			// universe, which validation rules out; hold the book if it
			// somehow does.
			eq, eqErr := e.fallback.Weights(in)
			if eqErr != nil {
				return drifted, driftedCash, string(FallbackPreviousWeights)
			}
			cross = eq
			fallbackReason = string(FallbackEqualWeight)
		}
	}

	leverage := 1.0
	if e.scaler != nil {
		leverage, err = e.scaler.Leverage(cross, cov, grossReturns)
		if err != nil {
			e.log.Warn().
				Int("index", t).
				Str("scaler", string(e.cfg.Scaling)).
				Err(err).
				Msg("Exposure scaling failed, holding leverage at 1.0")
			leverage = 1.0
			if fallbackReason == "" {
				fallbackReason = "scaling_failed"
			}
		}
	}

	target = make([]float64, len(cross))
	invested := 0.0
	for i := range cross {
		target[i] = leverage * cross[i]
		invested += target[i]
	}
	return target, 1.0 - invested, fallbackReason
}

// needsEstimates reports whether the selected strategies consume estimator
// output at all. Equal weight without volatility targeting walks the table
// with no estimation work.
func (e *Engine) needsEstimates() bool {
	if e.cfg.Model != allocation.EqualWeight {
		return true
	}
	return e.cfg.Scaling == scaling.VolatilityTarget
}
