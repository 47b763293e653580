package allocation

import (
	"fmt"
	"math"
)

// minVarianceModel minimizes portfolio variance w'*Sigma*w.
type minVarianceModel struct {
	opts SolverOptions
}

func (m *minVarianceModel) Name() ModelName { return GlobalMinVariance }

func (m *minVarianceModel) Weights(in Inputs) ([]float64, error) {
	if err := requireCovariance(in); err != nil {
		return nil, err
	}
	sigma := in.Covariance
	n := in.NumAssets

	objective := func(w []float64) float64 {
		return quadraticForm(w, sigma)
	}
	gradient := func(grad, w []float64) {
		for i := 0; i < n; i++ {
			grad[i] = 0
			for j := 0; j < n; j++ {
				grad[i] += 2 * sigma[i][j] * w[j]
			}
		}
	}

	return minimizeOnSimplex(n, objective, gradient, m.opts)
}

// maxSharpeModel maximizes (mu'w) / sqrt(w'*Sigma*w), risk-free rate zero.
type maxSharpeModel struct {
	opts SolverOptions
}

func (m *maxSharpeModel) Name() ModelName { return MaxSharpe }

func (m *maxSharpeModel) Weights(in Inputs) ([]float64, error) {
	if err := requireCovariance(in); err != nil {
		return nil, err
	}
	if len(in.ExpectedReturns) != in.NumAssets {
		return nil, fmt.Errorf("expected-return vector size %d doesn't match asset count %d", len(in.ExpectedReturns), in.NumAssets)
	}

	return maximizeRatioOnSimplex(in.ExpectedReturns, in.Covariance, m.opts)
}

// mostDiversifiedModel maximizes the diversification ratio
// (w'*vol) / sqrt(w'*Sigma*w). Same fractional program as max Sharpe with
// standalone vols standing in for expected returns.
type mostDiversifiedModel struct {
	opts SolverOptions
}

func (m *mostDiversifiedModel) Name() ModelName { return MostDiversified }

func (m *mostDiversifiedModel) Weights(in Inputs) ([]float64, error) {
	if err := requireCovariance(in); err != nil {
		return nil, err
	}
	if len(in.Volatilities) != in.NumAssets {
		return nil, fmt.Errorf("volatility vector size %d doesn't match asset count %d", len(in.Volatilities), in.NumAssets)
	}

	return maximizeRatioOnSimplex(in.Volatilities, in.Covariance, m.opts)
}

// riskParityModel equalizes risk contributions by minimizing the squared
// deviation of each asset's contribution from 1/n:
//
//	sum_i (w_i*(Sigma*w)_i / portVar - 1/n)^2
//
// The objective is non-convex; the gradient is left to finite differences.
type riskParityModel struct {
	opts SolverOptions
}

func (m *riskParityModel) Name() ModelName { return RiskParity }

func (m *riskParityModel) Weights(in Inputs) ([]float64, error) {
	if err := requireCovariance(in); err != nil {
		return nil, err
	}
	sigma := in.Covariance
	n := in.NumAssets
	target := 1.0 / float64(n)

	objective := func(w []float64) float64 {
		portVar := quadraticForm(w, sigma)
		if portVar < 1e-12 {
			portVar = 1e-12
		}

		var sum float64
		for i := 0; i < n; i++ {
			marginal := 0.0
			for j := 0; j < n; j++ {
				marginal += sigma[i][j] * w[j]
			}
			contribution := w[i] * marginal / portVar
			diff := contribution - target
			sum += diff * diff
		}
		return sum
	}

	return minimizeOnSimplex(n, objective, nil, m.opts)
}

// maximizeRatioOnSimplex maximizes (num'w) / sqrt(w'*Sigma*w) by minimizing
// its negation, with the analytic gradient of the ratio.
func maximizeRatioOnSimplex(num []float64, sigma [][]float64, opts SolverOptions) ([]float64, error) {
	n := len(num)

	objective := func(w []float64) float64 {
		var top float64
		for i := 0; i < n; i++ {
			top += num[i] * w[i]
		}
		stdDev := math.Sqrt(math.Max(quadraticForm(w, sigma), 1e-10))
		return -top / stdDev
	}

	gradient := func(grad, w []float64) {
		var top float64
		for i := 0; i < n; i++ {
			top += num[i] * w[i]
		}
		variance := math.Max(quadraticForm(w, sigma), 1e-10)
		stdDev := math.Sqrt(variance)

		for i := 0; i < n; i++ {
			var dVariance float64
			for j := 0; j < n; j++ {
				dVariance += 2 * sigma[i][j] * w[j]
			}
			grad[i] = -num[i]/stdDev + top*dVariance/(2*stdDev*stdDev*stdDev)
		}
	}

	return minimizeOnSimplex(n, objective, gradient, opts)
}

// quadraticForm computes w' * Sigma * w.
func quadraticForm(w []float64, sigma [][]float64) float64 {
	var total float64
	for i := range w {
		for j := range w {
			total += w[i] * w[j] * sigma[i][j]
		}
	}
	return total
}
