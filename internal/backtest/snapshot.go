package backtest

import "time"

// PeriodSnapshot is the immutable per-period record appended to the run
// history. The completed history is the engine's sole output artifact.
type PeriodSnapshot struct {
	Date        time.Time `json:"date"`
	Weights     []float64 `json:"weights"` // post-trade weights, sum <= 1
	Cash        float64   `json:"cash"`    // uninvested residual, zero return
	Cost        float64   `json:"cost"`
	GrossReturn float64   `json:"gross_return"` // before costs
	Return      float64   `json:"return"`       // net of costs
	Equity      float64   `json:"equity"`
	Rebalanced  bool      `json:"rebalanced"`
	Fallback    string    `json:"fallback,omitempty"` // set when a recoverable failure triggered the fallback
}
