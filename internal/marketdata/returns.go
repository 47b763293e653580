package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/pkg/formulas"
)

// Frequency selects the sampling of the return series.
type Frequency string

const (
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// PeriodsPerYear returns the annualization factor for a frequency.
func (f Frequency) PeriodsPerYear() int {
	if f == Weekly {
		return 52
	}
	return 252
}

// ResampleWeekly reduces a daily close series to one observation per week,
// the last trading day's close stamped on that week's Friday.
func ResampleWeekly(closes []ClosePrice) []ClosePrice {
	if len(closes) == 0 {
		return nil
	}

	var (
		weekly []ClosePrice
		last   ClosePrice
		lastWk time.Time
	)
	for i, c := range closes {
		wk := weekEnding(c.Date)
		if i > 0 && !wk.Equal(lastWk) {
			weekly = append(weekly, ClosePrice{Date: lastWk, AdjClose: last.AdjClose})
		}
		last = c
		lastWk = wk
	}
	weekly = append(weekly, ClosePrice{Date: lastWk, AdjClose: last.AdjClose})
	return weekly
}

// weekEnding maps a date to the Friday on or after it.
func weekEnding(date time.Time) time.Time {
	d := date.Truncate(24 * time.Hour)
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// BuildReturnTable aligns close series across symbols on their common dates
// and converts prices to simple returns. Symbols keep the given order; dates
// where any symbol is missing are dropped.
func BuildReturnTable(symbols []string, series map[string][]ClosePrice) (*domain.ReturnTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	// Count date occurrences across symbols; a date common to all survives.
	counts := make(map[time.Time]int)
	indexed := make(map[string]map[time.Time]float64, len(symbols))
	for _, symbol := range symbols {
		closes, ok := series[symbol]
		if !ok || len(closes) == 0 {
			return nil, fmt.Errorf("no price series for %s", symbol)
		}
		byDate := make(map[time.Time]float64, len(closes))
		for _, c := range closes {
			if _, seen := byDate[c.Date]; !seen {
				counts[c.Date]++
			}
			byDate[c.Date] = c.AdjClose
		}
		indexed[symbol] = byDate
	}

	var dates []time.Time
	for date, n := range counts {
		if n == len(symbols) {
			dates = append(dates, date)
		}
	}
	if len(dates) < 2 {
		return nil, fmt.Errorf("fewer than two dates common to all %d symbols", len(symbols))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	// Price columns to return columns; the first date is consumed by the
	// differencing.
	returnsBySymbol := make([][]float64, len(symbols))
	for j, symbol := range symbols {
		prices := make([]float64, len(dates))
		for i, date := range dates {
			prices[i] = indexed[symbol][date]
		}
		returnsBySymbol[j] = formulas.CalculateReturns(prices)
	}

	periods := len(dates) - 1
	rows := make([][]float64, periods)
	for i := 0; i < periods; i++ {
		rows[i] = make([]float64, len(symbols))
		for j := range symbols {
			rows[i][j] = returnsBySymbol[j][i]
		}
	}

	return domain.NewReturnTable(dates[1:], symbols, rows)
}
