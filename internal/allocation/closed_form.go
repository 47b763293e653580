package allocation

import (
	"fmt"
	"math"
)

// equalWeightModel assigns 1/n to every asset. It needs no estimates and
// therefore can never fail on degenerate data.
type equalWeightModel struct{}

func (m *equalWeightModel) Name() ModelName { return EqualWeight }

func (m *equalWeightModel) Weights(in Inputs) ([]float64, error) {
	if in.NumAssets == 0 {
		return nil, fmt.Errorf("no assets provided")
	}

	weights := make([]float64, in.NumAssets)
	for i := range weights {
		weights[i] = 1.0 / float64(in.NumAssets)
	}
	return weights, nil
}

// equalMarginalVolModel weights assets proportionally to inverse
// volatility: w_i = (1/vol_i) / sum_j(1/vol_j). Equivalent to risk parity
// under zero cross-correlations.
type equalMarginalVolModel struct{}

func (m *equalMarginalVolModel) Name() ModelName { return EqualMarginalVolatility }

func (m *equalMarginalVolModel) Weights(in Inputs) ([]float64, error) {
	if in.NumAssets == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	if len(in.Volatilities) != in.NumAssets {
		return nil, fmt.Errorf("volatility vector size %d doesn't match asset count %d", len(in.Volatilities), in.NumAssets)
	}

	invSum := 0.0
	inverse := make([]float64, in.NumAssets)
	for i, vol := range in.Volatilities {
		if vol <= 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
			return nil, fmt.Errorf("degenerate volatility %.6g at index %d", vol, i)
		}
		inverse[i] = 1.0 / vol
		invSum += inverse[i]
	}

	weights := make([]float64, in.NumAssets)
	for i := range weights {
		weights[i] = inverse[i] / invSum
	}
	return weights, nil
}
