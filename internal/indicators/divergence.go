package indicators

import (
	"fmt"
	"math"
)

// DivergenceType classifies a price/RSI divergence.
type DivergenceType string

const (
	DivergenceNone          DivergenceType = "NONE"
	DivergenceBullish       DivergenceType = "BULLISH"
	DivergenceBearish       DivergenceType = "BEARISH"
	DivergenceHiddenBullish DivergenceType = "HIDDEN_BULLISH"
	DivergenceHiddenBearish DivergenceType = "HIDDEN_BEARISH"
)

// Divergence is the outcome of a divergence scan. Strength in [0,1] scales
// with the magnitude of the price/RSI delta mismatch.
type Divergence struct {
	Type     DivergenceType
	Strength float64
}

// IsBullish reports whether the divergence favors longs.
func (d Divergence) IsBullish() bool {
	return d.Type == DivergenceBullish || d.Type == DivergenceHiddenBullish
}

// IsBearish reports whether the divergence favors shorts.
func (d Divergence) IsBearish() bool {
	return d.Type == DivergenceBearish || d.Type == DivergenceHiddenBearish
}

// RSIDivergence splits the trailing lookback window in half and compares
// the price and RSI extremes of the two halves:
//
//	bullish:        price makes a lower low while RSI makes a higher low
//	bearish:        price makes a higher high while RSI makes a lower high
//	hidden bullish: price makes a higher low while RSI makes a lower low
//	hidden bearish: price makes a lower high while RSI makes a higher high
//
// prices and rsi must be aligned tails of equal meaning; both need at least
// lookback entries.
func RSIDivergence(prices, rsi []float64, lookback int) (Divergence, error) {
	if lookback < 4 {
		return Divergence{Type: DivergenceNone}, fmt.Errorf("divergence lookback must be at least 4, got %d", lookback)
	}
	if len(prices) < lookback || len(rsi) < lookback {
		return Divergence{Type: DivergenceNone}, fmt.Errorf("not enough data (prices=%d rsi=%d) for divergence lookback %d", len(prices), len(rsi), lookback)
	}

	p := prices[len(prices)-lookback:]
	r := rsi[len(rsi)-lookback:]
	half := lookback / 2

	pLow1, pHigh1 := minMax(p[:half])
	pLow2, pHigh2 := minMax(p[half:])
	rLow1, rHigh1 := minMax(r[:half])
	rLow2, rHigh2 := minMax(r[half:])

	switch {
	case pLow2 < pLow1 && rLow2 > rLow1:
		return Divergence{Type: DivergenceBullish, Strength: divergenceStrength(pLow1, pLow2, rLow1, rLow2)}, nil
	case pHigh2 > pHigh1 && rHigh2 < rHigh1:
		return Divergence{Type: DivergenceBearish, Strength: divergenceStrength(pHigh1, pHigh2, rHigh1, rHigh2)}, nil
	case pLow2 > pLow1 && rLow2 < rLow1:
		return Divergence{Type: DivergenceHiddenBullish, Strength: divergenceStrength(pLow1, pLow2, rLow1, rLow2)}, nil
	case pHigh2 < pHigh1 && rHigh2 > rHigh1:
		return Divergence{Type: DivergenceHiddenBearish, Strength: divergenceStrength(pHigh1, pHigh2, rHigh1, rHigh2)}, nil
	}
	return Divergence{Type: DivergenceNone}, nil
}

// divergenceStrength combines the relative price move and the RSI move into
// a [0,1] score. The two deltas point in opposite directions for any
// divergence, so their magnitudes are summed.
func divergenceStrength(price1, price2, rsi1, rsi2 float64) float64 {
	var priceDelta float64
	if price1 != 0 {
		priceDelta = math.Abs(price2-price1) / math.Abs(price1)
	}
	rsiDelta := math.Abs(rsi2-rsi1) / 100
	return math.Min(1, 5*(priceDelta+rsiDelta))
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
