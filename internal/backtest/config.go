package backtest

import (
	"fmt"
	"time"

	"github.com/aristath/backtester/internal/allocation"
	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/scaling"
)

// FallbackPolicy selects how a recoverable allocation failure at a
// rebalance date is handled.
type FallbackPolicy string

const (
	// FallbackPreviousWeights keeps the drifted prior weights in place.
	FallbackPreviousWeights FallbackPolicy = "previous_weights"
	// FallbackEqualWeight reallocates to 1/n.
	FallbackEqualWeight FallbackPolicy = "equal_weight"
)

// Config is the immutable run configuration handed to the engine at
// construction. Validation happens once, before the walk starts; anything
// wrong here is fatal.
type Config struct {
	Model  allocation.ModelName     `json:"model"`
	Solver allocation.SolverOptions `json:"-"`

	Scaling          scaling.Method `json:"scaling"`
	TargetVolatility float64        `json:"target_volatility,omitempty"` // annualized
	TargetCVaR       float64        `json:"target_cvar,omitempty"`       // per-period, loss-positive
	CVaRConfidence   float64        `json:"cvar_confidence,omitempty"`

	TransactionCost float64 `json:"transaction_cost"` // per unit of turnover

	// RebalanceEvery triggers a rebalance every k periods. Alternatively an
	// explicit date schedule may be given; dates must be timestamps of the
	// return table. t=0 always rebalances.
	RebalanceEvery int         `json:"rebalance_every,omitempty"`
	RebalanceDates []time.Time `json:"rebalance_dates,omitempty"`

	Window               int    `json:"window"`           // trailing estimation window
	MinObservations      int    `json:"min_observations"` // below this estimation fails recoverably
	PeriodsPerYear       int    `json:"periods_per_year"`
	ExpectedReturnMethod string `json:"expected_return_method,omitempty"` // "mean" or "ema"
	EMASpan              int    `json:"ema_span,omitempty"`

	Fallback FallbackPolicy `json:"fallback"`

	// Solver knobs mirrored for the external interface
	Tolerance     float64 `json:"tolerance,omitempty"`
	MaxIterations int     `json:"max_iterations,omitempty"`
}

// withDefaults fills unset optional fields.
func (c Config) withDefaults() Config {
	if c.RebalanceEvery <= 0 && len(c.RebalanceDates) == 0 {
		c.RebalanceEvery = 1
	}
	if c.Window <= 0 {
		c.Window = 252
	}
	if c.MinObservations <= 0 {
		c.MinObservations = 20
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = 252
	}
	if c.Scaling == "" {
		c.Scaling = scaling.None
	}
	if c.Fallback == "" {
		c.Fallback = FallbackEqualWeight
	}
	if c.CVaRConfidence <= 0 || c.CVaRConfidence >= 1 {
		c.CVaRConfidence = 0.95
	}
	if c.Tolerance > 0 {
		c.Solver.Tolerance = c.Tolerance
	}
	if c.MaxIterations > 0 {
		c.Solver.MaxIterations = c.MaxIterations
	}
	return c
}

// validate enforces the fatal (configuration) error tier against a given
// return table.
func (c Config) validate(table *domain.ReturnTable) error {
	if table == nil || table.NumPeriods() == 0 {
		return fmt.Errorf("empty return table")
	}

	if _, err := allocation.New(c.Model, c.Solver); err != nil {
		return err
	}

	switch c.Fallback {
	case FallbackPreviousWeights, FallbackEqualWeight:
	default:
		return fmt.Errorf("unknown fallback policy: %s", c.Fallback)
	}

	if c.TransactionCost < 0 {
		return fmt.Errorf("transaction cost must be non-negative, got %.6g", c.TransactionCost)
	}

	if c.Scaling != scaling.None {
		if _, err := scaling.New(c.Scaling, c.scalingConfig()); err != nil {
			return err
		}
	}

	for _, date := range c.RebalanceDates {
		if table.IndexOfDate(date) < 0 {
			return fmt.Errorf("rebalance date %s outside the data horizon", date.Format("2006-01-02"))
		}
	}

	return nil
}

// scalingConfig maps the flat run configuration onto the scaler's own.
func (c Config) scalingConfig() scaling.Config {
	return scaling.Config{
		TargetVolatility: c.TargetVolatility,
		TargetCVaR:       c.TargetCVaR,
		CVaRConfidence:   c.CVaRConfidence,
		PeriodsPerYear:   c.PeriodsPerYear,
		Window:           c.Window,
	}
}

// scheduleIndices resolves the rebalance schedule to table row indices.
// Index 0 is always a forced rebalance.
func (c Config) scheduleIndices(table *domain.ReturnTable) map[int]bool {
	indices := map[int]bool{0: true}

	if len(c.RebalanceDates) > 0 {
		for _, date := range c.RebalanceDates {
			if idx := table.IndexOfDate(date); idx >= 0 {
				indices[idx] = true
			}
		}
		return indices
	}

	for t := 0; t < table.NumPeriods(); t += c.RebalanceEvery {
		indices[t] = true
	}
	return indices
}
