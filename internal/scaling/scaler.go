// Package scaling implements portfolio-level exposure scaling: a single
// leverage multiplier applied uniformly to an already-chosen cross-sectional
// weight vector to hit a risk target. Leverage is capped at 1.0; the
// uninvested residual is zero-return cash.
package scaling

import (
	"fmt"
	"math"

	"github.com/aristath/backtester/pkg/formulas"
)

// Method identifies a scaling model.
type Method string

const (
	None             Method = "none"
	VolatilityTarget Method = "volatility_target"
	CVaRTarget       Method = "cvar_target"
)

// Config holds scaling parameters.
type Config struct {
	TargetVolatility float64 // annualized target for VolatilityTarget
	TargetCVaR       float64 // per-period expected shortfall target for CVaRTarget
	CVaRConfidence   float64 // e.g. 0.95
	PeriodsPerYear   int     // annualization factor for portfolio volatility
	Window           int     // trailing realized returns considered for CVaR
}

// Scaler produces the leverage multiplier L in (0, 1].
//
// The covariance matrix may be nil when estimation failed and the realized
// slice holds the engine's gross portfolio returns so far; each
// implementation uses what it needs.
type Scaler interface {
	Name() Method
	Leverage(weights []float64, cov [][]float64, realized []float64) (float64, error)
}

// New returns the scaler for the given selector. None is handled by the
// caller (no scaling at all) and is not a valid selector here.
func New(method Method, cfg Config) (Scaler, error) {
	switch method {
	case VolatilityTarget:
		if cfg.TargetVolatility <= 0 {
			return nil, fmt.Errorf("volatility targeting requires a positive target, got %.6g", cfg.TargetVolatility)
		}
		ppy := cfg.PeriodsPerYear
		if ppy <= 0 {
			ppy = 252
		}
		return &volatilityScaler{target: cfg.TargetVolatility, periodsPerYear: ppy}, nil
	case CVaRTarget:
		if cfg.TargetCVaR <= 0 {
			return nil, fmt.Errorf("CVaR targeting requires a positive target, got %.6g", cfg.TargetCVaR)
		}
		confidence := cfg.CVaRConfidence
		if confidence <= 0 || confidence >= 1 {
			confidence = 0.95
		}
		return &cvarScaler{target: cfg.TargetCVaR, confidence: confidence, window: cfg.Window}, nil
	default:
		return nil, fmt.Errorf("unknown scaling method: %s", method)
	}
}

// volatilityScaler sizes exposure inversely to the portfolio volatility
// implied by the covariance estimate: L = min(1, target / sigma_p).
type volatilityScaler struct {
	target         float64
	periodsPerYear int
}

func (s *volatilityScaler) Name() Method { return VolatilityTarget }

func (s *volatilityScaler) Leverage(weights []float64, cov [][]float64, _ []float64) (float64, error) {
	if len(cov) != len(weights) {
		return 0, fmt.Errorf("covariance matrix size %d doesn't match weight count %d", len(cov), len(weights))
	}

	variance := formulas.PortfolioVariance(weights, cov)
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return 0, fmt.Errorf("non-finite portfolio variance")
	}

	estimate := math.Sqrt(math.Max(variance, 0) * float64(s.periodsPerYear))
	return capLeverage(s.target, estimate), nil
}

// cvarScaler sizes exposure inversely to the expected shortfall of the
// trailing realized portfolio return distribution.
type cvarScaler struct {
	target     float64
	confidence float64
	window     int
}

func (s *cvarScaler) Name() Method { return CVaRTarget }

func (s *cvarScaler) Leverage(_ []float64, _ [][]float64, realized []float64) (float64, error) {
	if s.window > 0 && len(realized) > s.window {
		realized = realized[len(realized)-s.window:]
	}

	estimate := formulas.CalculateExpectedShortfall(realized, s.confidence)
	if math.IsNaN(estimate) {
		return 0, fmt.Errorf("non-finite CVaR estimate")
	}

	return capLeverage(s.target, estimate), nil
}

// capLeverage applies the shared policy: a zero (or negative) risk estimate
// means no scaling, and leverage never exceeds full investment.
func capLeverage(target, estimate float64) float64 {
	if estimate <= 0 {
		return 1.0
	}
	return math.Min(1.0, target/estimate)
}
