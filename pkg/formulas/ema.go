package formulas

import (
	"github.com/markcheno/go-talib"
)

// EMAMean calculates the exponentially weighted mean of a return series,
// used as an alternative to the plain arithmetic mean when estimating
// expected returns (recent observations count more).
//
// EMA Formula:
//
//	EMA_today = (Value_today x multiplier) + (EMA_yesterday x (1 - multiplier))
//	where multiplier = 2 / (span + 1)
//
// Falls back to the arithmetic mean when the series is shorter than the span.
func EMAMean(returns []float64, span int) float64 {
	if len(returns) == 0 {
		return 0
	}

	if span < 2 || len(returns) < span {
		return Mean(returns)
	}

	ema := talib.Ema(returns, span)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		return ema[len(ema)-1]
	}

	return Mean(returns)
}
