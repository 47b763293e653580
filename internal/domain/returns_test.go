package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewReturnTable_Valid(t *testing.T) {
	table, err := NewReturnTable(
		[]time.Time{day(0), day(1)},
		[]string{"A", "B"},
		[][]float64{{0.01, 0.02}, {-0.01, 0.01}},
	)

	require.NoError(t, err)
	assert.Equal(t, 2, table.NumPeriods())
	assert.Equal(t, 2, table.NumAssets())
}

func TestNewReturnTable_Empty(t *testing.T) {
	_, err := NewReturnTable(nil, []string{"A"}, nil)
	assert.Error(t, err)

	_, err = NewReturnTable([]time.Time{day(0)}, nil, [][]float64{{0.01}})
	assert.Error(t, err)
}

func TestNewReturnTable_ShapeMismatch(t *testing.T) {
	_, err := NewReturnTable(
		[]time.Time{day(0)},
		[]string{"A", "B"},
		[][]float64{{0.01}},
	)
	assert.ErrorContains(t, err, "expected 2")
}

func TestNewReturnTable_NonIncreasingDates(t *testing.T) {
	_, err := NewReturnTable(
		[]time.Time{day(1), day(1)},
		[]string{"A"},
		[][]float64{{0.01}, {0.02}},
	)
	assert.ErrorContains(t, err, "not strictly increasing")
}

func TestNewReturnTable_NonFiniteReturn(t *testing.T) {
	_, err := NewReturnTable(
		[]time.Time{day(0)},
		[]string{"A"},
		[][]float64{{math.NaN()}},
	)
	assert.ErrorContains(t, err, "non-finite")
}

func TestNewReturnTable_TotalLossReturn(t *testing.T) {
	_, err := NewReturnTable(
		[]time.Time{day(0)},
		[]string{"A"},
		[][]float64{{-1.0}},
	)
	assert.ErrorContains(t, err, "-100%")
}

func TestWindow(t *testing.T) {
	table, err := NewReturnTable(
		[]time.Time{day(0), day(1), day(2), day(3)},
		[]string{"A"},
		[][]float64{{0.01}, {0.02}, {0.03}, {0.04}},
	)
	require.NoError(t, err)

	// Full window available
	w := table.Window(3, 2)
	require.Len(t, w, 2)
	assert.Equal(t, 0.02, w[0][0])
	assert.Equal(t, 0.03, w[1][0])

	// Truncated near the start
	w = table.Window(1, 5)
	require.Len(t, w, 1)
	assert.Equal(t, 0.01, w[0][0])

	// No history before the first row
	assert.Nil(t, table.Window(0, 5))
}

func TestIndexOfDate(t *testing.T) {
	table, err := NewReturnTable(
		[]time.Time{day(0), day(1)},
		[]string{"A"},
		[][]float64{{0.01}, {0.02}},
	)
	require.NoError(t, err)

	assert.Equal(t, 1, table.IndexOfDate(day(1)))
	assert.Equal(t, -1, table.IndexOfDate(day(9)))
}
