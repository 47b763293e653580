// Package domain holds the core data types shared by the estimator,
// allocation models and backtest engine.
package domain

import (
	"fmt"
	"math"
	"time"
)

// ReturnTable is a time-ordered table of periodic simple returns for a fixed
// asset universe. It is built once before a simulation and must not be
// mutated afterwards; every component treats it as read-only.
type ReturnTable struct {
	Dates   []time.Time
	Symbols []string
	Returns [][]float64 // T x n, row t holds period-t returns per symbol
}

// NewReturnTable validates and wraps the supplied data.
//
// Fatal conditions: empty table, shape mismatch between rows and symbols,
// non-increasing dates, non-finite returns, or returns at or below -100%
// (a -100% period return would wipe the position and break compounding).
func NewReturnTable(dates []time.Time, symbols []string, returns [][]float64) (*ReturnTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	if len(dates) == 0 || len(returns) == 0 {
		return nil, fmt.Errorf("empty return table")
	}
	if len(dates) != len(returns) {
		return nil, fmt.Errorf("date count %d doesn't match return row count %d", len(dates), len(returns))
	}

	for t, row := range returns {
		if len(row) != len(symbols) {
			return nil, fmt.Errorf("return row %d has %d values, expected %d", t, len(row), len(symbols))
		}
		for i, r := range row {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return nil, fmt.Errorf("non-finite return for %s at row %d", symbols[i], t)
			}
			if r <= -1.0 {
				return nil, fmt.Errorf("return %.4f for %s at row %d is at or below -100%%", r, symbols[i], t)
			}
		}
		if t > 0 && !dates[t].After(dates[t-1]) {
			return nil, fmt.Errorf("dates not strictly increasing at row %d (%s >= %s)",
				t, dates[t-1].Format("2006-01-02"), dates[t].Format("2006-01-02"))
		}
	}

	return &ReturnTable{Dates: dates, Symbols: symbols, Returns: returns}, nil
}

// NumPeriods returns the number of time steps T.
func (rt *ReturnTable) NumPeriods() int {
	return len(rt.Returns)
}

// NumAssets returns the universe size n.
func (rt *ReturnTable) NumAssets() int {
	return len(rt.Symbols)
}

// Window returns up to `size` trailing return rows ending just before index
// `end` (exclusive). Near the start of the table fewer rows are available.
func (rt *ReturnTable) Window(end, size int) [][]float64 {
	if end > len(rt.Returns) {
		end = len(rt.Returns)
	}
	if end <= 0 || size <= 0 {
		return nil
	}
	start := end - size
	if start < 0 {
		start = 0
	}
	return rt.Returns[start:end]
}

// IndexOfDate returns the row index of the given date, or -1 when the date
// is not a timestamp of the table.
func (rt *ReturnTable) IndexOfDate(date time.Time) int {
	for t, d := range rt.Dates {
		if d.Equal(date) {
			return t
		}
	}
	return -1
}
