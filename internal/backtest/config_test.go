package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/backtester/internal/allocation"
	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/scaling"
)

func configTable(t *testing.T, periods int) *domain.ReturnTable {
	t.Helper()

	dates := make([]time.Time, periods)
	returns := make([][]float64, periods)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < periods; i++ {
		dates[i] = base.AddDate(0, 0, i)
		returns[i] = []float64{0.001, -0.001}
	}

	table, err := domain.NewReturnTable(dates, []string{"AAA", "BBB"}, returns)
	require.NoError(t, err)
	return table
}

func TestConfigValidate_UnknownModel(t *testing.T) {
	cfg := Config{Model: "momentum"}.withDefaults()
	err := cfg.validate(configTable(t, 10))
	assert.ErrorContains(t, err, "unknown allocation model")
}

func TestConfigValidate_UnknownFallback(t *testing.T) {
	cfg := Config{Model: allocation.EqualWeight, Fallback: "hold_cash"}.withDefaults()
	err := cfg.validate(configTable(t, 10))
	assert.ErrorContains(t, err, "unknown fallback policy")
}

func TestConfigValidate_NegativeTransactionCost(t *testing.T) {
	cfg := Config{Model: allocation.EqualWeight, TransactionCost: -0.001}.withDefaults()
	err := cfg.validate(configTable(t, 10))
	assert.ErrorContains(t, err, "transaction cost")
}

func TestConfigValidate_ScalingWithoutTarget(t *testing.T) {
	cfg := Config{Model: allocation.EqualWeight, Scaling: scaling.VolatilityTarget}.withDefaults()
	err := cfg.validate(configTable(t, 10))
	assert.Error(t, err)
}

func TestConfigValidate_RebalanceDateOutsideHorizon(t *testing.T) {
	cfg := Config{
		Model:          allocation.EqualWeight,
		RebalanceDates: []time.Time{time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
	}.withDefaults()
	err := cfg.validate(configTable(t, 10))
	assert.ErrorContains(t, err, "outside the data horizon")
}

func TestConfigValidate_ZeroValueOptionalFields(t *testing.T) {
	// Only the model is set; everything optional, scaling included, must
	// default to something validate accepts.
	cfg := Config{Model: allocation.EqualWeight}.withDefaults()
	assert.NoError(t, cfg.validate(configTable(t, 10)))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Model: allocation.EqualWeight}.withDefaults()

	assert.Equal(t, scaling.None, cfg.Scaling)
	assert.Equal(t, 1, cfg.RebalanceEvery)
	assert.Equal(t, 252, cfg.Window)
	assert.Equal(t, 20, cfg.MinObservations)
	assert.Equal(t, 252, cfg.PeriodsPerYear)
	assert.Equal(t, FallbackEqualWeight, cfg.Fallback)
	assert.InDelta(t, 0.95, cfg.CVaRConfidence, 1e-12)
}

func TestScheduleIndices_EveryK(t *testing.T) {
	table := configTable(t, 10)
	cfg := Config{Model: allocation.EqualWeight, RebalanceEvery: 3}.withDefaults()

	schedule := cfg.scheduleIndices(table)
	assert.Equal(t, map[int]bool{0: true, 3: true, 6: true, 9: true}, schedule)
}

func TestScheduleIndices_ExplicitDatesAlwaysIncludeStart(t *testing.T) {
	table := configTable(t, 10)
	cfg := Config{
		Model:          allocation.EqualWeight,
		RebalanceDates: []time.Time{table.Dates[4], table.Dates[7]},
	}.withDefaults()

	schedule := cfg.scheduleIndices(table)
	assert.Equal(t, map[int]bool{0: true, 4: true, 7: true}, schedule)
}
