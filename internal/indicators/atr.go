package indicators

import (
	"fmt"
	"math"
)

// ATR computes Wilder's average true range. The first output value
// corresponds to close[period], so the result has length len(close)-period.
func ATR(high, low, close []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(high) != len(low) || len(high) != len(close) {
		return nil, fmt.Errorf("ATR input series lengths differ (high=%d low=%d close=%d)", len(high), len(low), len(close))
	}
	if len(close) <= period {
		return nil, fmt.Errorf("not enough data (%d) to calculate ATR for period %d", len(close), period)
	}

	tr := trueRanges(high, low, close)

	var atr float64
	for i := 0; i < period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)

	out := make([]float64, 0, len(tr)-period+1)
	out = append(out, atr)
	for i := period; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out = append(out, atr)
	}
	return out, nil
}

// trueRanges returns the true range series, one entry per bar after the first.
func trueRanges(high, low, close []float64) []float64 {
	tr := make([]float64, 0, len(close)-1)
	for i := 1; i < len(close); i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr = append(tr, math.Max(hl, math.Max(hc, lc)))
	}
	return tr
}
