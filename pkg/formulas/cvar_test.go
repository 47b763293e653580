package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCVaR_EmptyReturns(t *testing.T) {
	assert.Equal(t, 0.0, CalculateCVaR(nil, 0.95))
}

func TestCalculateCVaR_SingleReturn(t *testing.T) {
	assert.Equal(t, -0.02, CalculateCVaR([]float64{-0.02}, 0.95))
}

func TestCalculateCVaR_TailAverage(t *testing.T) {
	// 20 observations, 95% confidence -> worst single observation
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[7] = -0.08

	cvar := CalculateCVaR(returns, 0.95)
	assert.InDelta(t, -0.08, cvar, 1e-12)
}

func TestCalculateCVaR_WiderTail(t *testing.T) {
	// 10 observations, 80% confidence -> worst two observations
	returns := []float64{0.02, 0.01, -0.05, 0.015, -0.03, 0.005, 0.01, 0.0, 0.02, 0.01}

	cvar := CalculateCVaR(returns, 0.80)
	assert.InDelta(t, (-0.05-0.03)/2.0, cvar, 1e-12)
}

func TestCalculateExpectedShortfall_LossPositive(t *testing.T) {
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[3] = -0.04

	es := CalculateExpectedShortfall(returns, 0.95)
	assert.InDelta(t, 0.04, es, 1e-12)
}

func TestCalculateExpectedShortfall_GainTailClampsToZero(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03, 0.04}
	assert.Equal(t, 0.0, CalculateExpectedShortfall(returns, 0.95))
}
