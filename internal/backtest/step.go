package backtest

import "math"

// DriftWeights applies one period of passive drift: each invested weight
// grows with its realized return, cash grows with zero return, and the
// result is renormalized so invested weights plus cash again sum to one.
//
// The drifted vector is the compounding-consistent pre-trade baseline for
// the same period's transaction cost; this drift-before-cost ordering is
// load-bearing and must not be reversed.
func DriftWeights(weights []float64, cash float64, returns []float64) ([]float64, float64) {
	grown := make([]float64, len(weights))
	denom := cash
	for i := range weights {
		grown[i] = weights[i] * (1.0 + returns[i])
		denom += grown[i]
	}

	if denom <= 0 {
		// Unreachable with a validated table (returns > -100%); keep the
		// prior state rather than divide by zero.
		drifted := make([]float64, len(weights))
		copy(drifted, weights)
		return drifted, cash
	}

	for i := range grown {
		grown[i] /= denom
	}
	return grown, cash / denom
}

// TransactionCost charges the rate on the total turnover between the
// drifted pre-trade weights and the post-trade targets. Moving into or out
// of cash is free; only asset legs trade.
func TransactionCost(target, drifted []float64, rate float64) float64 {
	var turnover float64
	for i := range target {
		turnover += math.Abs(target[i] - drifted[i])
	}
	return turnover * rate
}

// dot computes the portfolio return of a weight vector over one period.
func dot(weights, returns []float64) float64 {
	var total float64
	for i := range weights {
		total += weights[i] * returns[i]
	}
	return total
}
