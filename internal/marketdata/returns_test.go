package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResampleWeekly_LastCloseStampedOnFriday(t *testing.T) {
	// Mon Jan 6 2025 through Wed Jan 15: two partial weeks.
	closes := []ClosePrice{
		{Date: day(2025, 1, 6), AdjClose: 100},
		{Date: day(2025, 1, 7), AdjClose: 101},
		{Date: day(2025, 1, 10), AdjClose: 103}, // Friday
		{Date: day(2025, 1, 13), AdjClose: 104},
		{Date: day(2025, 1, 15), AdjClose: 102},
	}

	weekly := ResampleWeekly(closes)
	require.Len(t, weekly, 2)

	assert.Equal(t, day(2025, 1, 10), weekly[0].Date)
	assert.Equal(t, 103.0, weekly[0].AdjClose)
	// Incomplete week still stamps its Friday.
	assert.Equal(t, day(2025, 1, 17), weekly[1].Date)
	assert.Equal(t, 102.0, weekly[1].AdjClose)
}

func TestResampleWeekly_HolidayShortWeek(t *testing.T) {
	// A single Thursday observation still produces that week's bar.
	closes := []ClosePrice{
		{Date: day(2025, 1, 9), AdjClose: 50},
	}

	weekly := ResampleWeekly(closes)
	require.Len(t, weekly, 1)
	assert.Equal(t, day(2025, 1, 10), weekly[0].Date)
	assert.Equal(t, 50.0, weekly[0].AdjClose)
}

func TestResampleWeekly_Empty(t *testing.T) {
	assert.Nil(t, ResampleWeekly(nil))
}

func TestBuildReturnTable_AlignsOnCommonDates(t *testing.T) {
	series := map[string][]ClosePrice{
		"XLK": {
			{Date: day(2025, 1, 3), AdjClose: 100},
			{Date: day(2025, 1, 10), AdjClose: 110},
			{Date: day(2025, 1, 17), AdjClose: 121},
		},
		"XLE": {
			{Date: day(2025, 1, 3), AdjClose: 50},
			{Date: day(2025, 1, 10), AdjClose: 49},
			// Jan 17 missing: that date is dropped for both symbols.
			{Date: day(2025, 1, 24), AdjClose: 51},
		},
	}

	table, err := BuildReturnTable([]string{"XLK", "XLE"}, series)
	require.NoError(t, err)

	// Two common dates leave one return period.
	require.Equal(t, 1, table.NumPeriods())
	assert.Equal(t, []string{"XLK", "XLE"}, table.Symbols)
	assert.Equal(t, day(2025, 1, 10), table.Dates[0])
	assert.InDelta(t, 0.10, table.Returns[0][0], 1e-12)
	assert.InDelta(t, -0.02, table.Returns[0][1], 1e-12)
}

func TestBuildReturnTable_MissingSeries(t *testing.T) {
	series := map[string][]ClosePrice{
		"XLK": {{Date: day(2025, 1, 3), AdjClose: 100}},
	}

	_, err := BuildReturnTable([]string{"XLK", "XLE"}, series)
	assert.ErrorContains(t, err, "no price series for XLE")
}

func TestBuildReturnTable_TooFewCommonDates(t *testing.T) {
	series := map[string][]ClosePrice{
		"XLK": {
			{Date: day(2025, 1, 3), AdjClose: 100},
			{Date: day(2025, 1, 10), AdjClose: 110},
		},
		"XLE": {
			{Date: day(2025, 1, 10), AdjClose: 50},
			{Date: day(2025, 1, 17), AdjClose: 51},
		},
	}

	_, err := BuildReturnTable([]string{"XLK", "XLE"}, series)
	assert.ErrorContains(t, err, "fewer than two dates")
}

func TestFrequencyPeriodsPerYear(t *testing.T) {
	assert.Equal(t, 252, Daily.PeriodsPerYear())
	assert.Equal(t, 52, Weekly.PeriodsPerYear())
}
