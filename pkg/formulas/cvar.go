package formulas

import (
	"math"
	"sort"
)

// CalculateCVaR calculates Conditional Value at Risk (expected shortfall)
// at the specified confidence level. CVaR is the mean of the returns at or
// below the loss quantile.
//
// Args:
//   - returns: Historical periodic returns (negative values are losses)
//   - confidence: Confidence level (e.g., 0.95 for 95%)
//
// Returns:
//   - CVaR value in return units (negative when the tail is a loss)
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	if len(returns) == 1 {
		return returns[0]
	}

	// Sort returns in ascending order (worst first)
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// For 95% confidence we average the worst 5% of returns. The epsilon
	// keeps float noise in 1-confidence from ceiling an exact-integer tail
	// to the next integer (20 * 0.05 must stay 1 observation, not 2).
	tailProbability := 1.0 - confidence
	tailCount := int(math.Ceil(float64(len(sorted))*tailProbability - 1e-9))

	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	tailReturns := sorted[:tailCount]
	sum := 0.0
	for _, r := range tailReturns {
		sum += r
	}

	return sum / float64(len(tailReturns))
}

// CalculateExpectedShortfall is CVaR with a loss-positive sign convention:
// a 3% expected tail loss is reported as +0.03. Tail gains clamp to zero.
func CalculateExpectedShortfall(returns []float64, confidence float64) float64 {
	cvar := CalculateCVaR(returns, confidence)
	if cvar >= 0 {
		return 0.0
	}
	return -cvar
}
