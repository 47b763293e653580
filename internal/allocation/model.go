// Package allocation implements the cross-sectional weight allocation
// models. All models share one contract: given estimator outputs, produce a
// nonnegative weight vector summing to one, or report a failure the caller
// can recover from.
package allocation

import (
	"fmt"
	"math"
)

// ModelName identifies a cross-sectional allocation model.
type ModelName string

const (
	EqualWeight             ModelName = "equal_weight"
	MaxSharpe               ModelName = "max_sharpe"
	GlobalMinVariance       ModelName = "global_min_variance"
	MostDiversified         ModelName = "most_diversified"
	RiskParity              ModelName = "risk_parity"
	EqualMarginalVolatility ModelName = "equal_marginal_volatility"
)

// ModelNames lists every supported selector.
func ModelNames() []ModelName {
	return []ModelName{
		EqualWeight,
		MaxSharpe,
		GlobalMinVariance,
		MostDiversified,
		RiskParity,
		EqualMarginalVolatility,
	}
}

// Inputs carries the estimator outputs a model may consume. NumAssets is
// always set; the estimate fields may be nil when estimation failed or was
// skipped, in which case models that need them return an error.
type Inputs struct {
	NumAssets       int
	ExpectedReturns []float64
	Covariance      [][]float64
	Volatilities    []float64
}

// Model produces a cross-sectional weight vector on the simplex.
type Model interface {
	Name() ModelName
	Weights(in Inputs) ([]float64, error)
}

// New returns the model for the given selector. An unrecognized selector is
// a configuration error.
func New(name ModelName, opts SolverOptions) (Model, error) {
	switch name {
	case EqualWeight:
		return &equalWeightModel{}, nil
	case MaxSharpe:
		return &maxSharpeModel{opts: opts}, nil
	case GlobalMinVariance:
		return &minVarianceModel{opts: opts}, nil
	case MostDiversified:
		return &mostDiversifiedModel{opts: opts}, nil
	case RiskParity:
		return &riskParityModel{opts: opts}, nil
	case EqualMarginalVolatility:
		return &equalMarginalVolModel{}, nil
	default:
		return nil, fmt.Errorf("unknown allocation model: %s", name)
	}
}

// requireCovariance validates that the inputs carry a usable n x n
// covariance matrix.
func requireCovariance(in Inputs) error {
	if in.NumAssets == 0 {
		return fmt.Errorf("no assets provided")
	}
	if len(in.Covariance) != in.NumAssets {
		return fmt.Errorf("covariance matrix size %d doesn't match asset count %d", len(in.Covariance), in.NumAssets)
	}
	for i := range in.Covariance {
		if len(in.Covariance[i]) != in.NumAssets {
			return fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(in.Covariance[i]), in.NumAssets)
		}
		for j := range in.Covariance[i] {
			if math.IsNaN(in.Covariance[i][j]) || math.IsInf(in.Covariance[i][j], 0) {
				return fmt.Errorf("non-finite covariance entry at (%d,%d)", i, j)
			}
		}
	}
	return nil
}
