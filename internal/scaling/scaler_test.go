package scaling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scalerCov = [][]float64{
	{0.0004, 0.0001},
	{0.0001, 0.0003},
}

func TestNew_UnknownMethod(t *testing.T) {
	_, err := New("kelly", Config{})
	assert.ErrorContains(t, err, "unknown scaling method")
}

func TestNew_RequiresPositiveTargets(t *testing.T) {
	_, err := New(VolatilityTarget, Config{TargetVolatility: 0})
	assert.Error(t, err)

	_, err = New(CVaRTarget, Config{TargetCVaR: -0.01})
	assert.Error(t, err)
}

func TestVolatilityTarget_ScalesDownToTarget(t *testing.T) {
	scaler, err := New(VolatilityTarget, Config{TargetVolatility: 0.10, PeriodsPerYear: 252})
	require.NoError(t, err)

	weights := []float64{0.5, 0.5}
	leverage, err := scaler.Leverage(weights, scalerCov, nil)
	require.NoError(t, err)

	// Annualized portfolio vol exceeds 10%, so leverage must land exactly on
	// target / estimate.
	variance := 0.25*0.0004 + 2*0.25*0.0001 + 0.25*0.0003
	estimate := math.Sqrt(variance * 252)
	require.Greater(t, estimate, 0.10)
	assert.InDelta(t, 0.10/estimate, leverage, 1e-12)

	// Scaled weights reproduce the target exactly.
	scaledVariance := leverage * leverage * variance
	assert.InDelta(t, 0.10, math.Sqrt(scaledVariance*252), 1e-9)
}

func TestVolatilityTarget_NeverLeversUp(t *testing.T) {
	scaler, err := New(VolatilityTarget, Config{TargetVolatility: 5.0, PeriodsPerYear: 252})
	require.NoError(t, err)

	leverage, err := scaler.Leverage([]float64{0.5, 0.5}, scalerCov, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, leverage)
}

func TestVolatilityTarget_ZeroVarianceMeansNoScaling(t *testing.T) {
	scaler, err := New(VolatilityTarget, Config{TargetVolatility: 0.10})
	require.NoError(t, err)

	zeroCov := [][]float64{{0, 0}, {0, 0}}
	leverage, err := scaler.Leverage([]float64{0.5, 0.5}, zeroCov, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, leverage)
}

func TestVolatilityTarget_ShapeMismatch(t *testing.T) {
	scaler, err := New(VolatilityTarget, Config{TargetVolatility: 0.10})
	require.NoError(t, err)

	_, err = scaler.Leverage([]float64{1.0}, scalerCov, nil)
	assert.Error(t, err)
}

func TestCVaRTarget_ScalesWithTailLoss(t *testing.T) {
	scaler, err := New(CVaRTarget, Config{TargetCVaR: 0.02, CVaRConfidence: 0.95})
	require.NoError(t, err)

	realized := make([]float64, 40)
	for i := range realized {
		realized[i] = 0.005
	}
	realized[10] = -0.06
	realized[25] = -0.04

	// Worst 5% of 40 observations -> worst 2: mean loss 5%
	leverage, err := scaler.Leverage(nil, nil, realized)
	require.NoError(t, err)
	assert.InDelta(t, 0.02/0.05, leverage, 1e-12)
}

func TestCVaRTarget_NoTailLossMeansNoScaling(t *testing.T) {
	scaler, err := New(CVaRTarget, Config{TargetCVaR: 0.05})
	require.NoError(t, err)

	leverage, err := scaler.Leverage(nil, nil, []float64{0.01, 0.02, 0.015})
	require.NoError(t, err)
	assert.Equal(t, 1.0, leverage)

	// No history at all behaves the same way
	leverage, err = scaler.Leverage(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, leverage)
}

func TestCVaRTarget_WindowLimitsHistory(t *testing.T) {
	scaler, err := New(CVaRTarget, Config{TargetCVaR: 0.02, CVaRConfidence: 0.95, Window: 10})
	require.NoError(t, err)

	// A large loss outside the trailing window is ignored.
	realized := make([]float64, 50)
	realized[0] = -0.50
	for i := 1; i < 50; i++ {
		realized[i] = 0.01
	}

	leverage, err := scaler.Leverage(nil, nil, realized)
	require.NoError(t, err)
	assert.Equal(t, 1.0, leverage)
}
