package indicators

import "fmt"

// VolRegime buckets current volatility against its own trailing average.
type VolRegime string

const (
	RegimeLow     VolRegime = "LOW"
	RegimeNormal  VolRegime = "NORMAL"
	RegimeHigh    VolRegime = "HIGH"
	RegimeExtreme VolRegime = "EXTREME"
)

// Regime bucket boundaries, as multiples of the trailing average ATR%.
const (
	regimeLowBound     = 0.5
	regimeNormalBound  = 1.2
	regimeExtremeBound = 2.0
)

// VolatilityRegime classifies ATR as a percentage of price against its own
// trailing average over the lookback window:
//
//	< 0.5x avg  low
//	< 1.2x avg  normal
//	< 2.0x avg  high
//	otherwise   extreme
//
// atr and prices must be aligned tails (the i-th ATR corresponds to the
// i-th price) with at least lookback entries each.
func VolatilityRegime(atr, prices []float64, lookback int) (VolRegime, error) {
	if lookback <= 0 {
		return RegimeNormal, fmt.Errorf("volatility regime lookback must be positive, got %d", lookback)
	}
	if len(atr) < lookback || len(prices) < lookback {
		return RegimeNormal, fmt.Errorf("not enough data (atr=%d prices=%d) for volatility regime lookback %d", len(atr), len(prices), lookback)
	}

	a := atr[len(atr)-lookback:]
	p := prices[len(prices)-lookback:]

	pct := make([]float64, lookback)
	var sum float64
	for i := range a {
		if p[i] != 0 {
			pct[i] = 100 * a[i] / p[i]
		}
		sum += pct[i]
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return RegimeNormal, nil
	}

	current := pct[lookback-1]
	switch {
	case current < regimeLowBound*avg:
		return RegimeLow, nil
	case current < regimeNormalBound*avg:
		return RegimeNormal, nil
	case current < regimeExtremeBound*avg:
		return RegimeHigh, nil
	default:
		return RegimeExtreme, nil
	}
}
