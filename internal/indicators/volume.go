package indicators

import (
	"fmt"
	"math"
)

// VWAP computes the cumulative volume-weighted average price using the
// typical price (H+L+C)/3. The accumulation resets only at series start;
// there is no session reset. The result has the length of the input.
func VWAP(high, low, close, volume []float64) ([]float64, error) {
	if len(high) != len(low) || len(high) != len(close) || len(high) != len(volume) {
		return nil, fmt.Errorf("VWAP input series lengths differ")
	}
	if len(close) == 0 {
		return nil, fmt.Errorf("VWAP requires at least one bar")
	}

	out := make([]float64, len(close))
	var cumPV, cumVol float64
	for i := range close {
		typical := (high[i] + low[i] + close[i]) / 3
		cumPV += typical * volume[i]
		cumVol += volume[i]
		if cumVol == 0 {
			out[i] = typical
			continue
		}
		out[i] = cumPV / cumVol
	}
	return out, nil
}

// OBV computes on-balance volume: a running sum that adds volume on
// up-closes, subtracts it on down-closes and is unchanged on flat closes.
// The result has the length of the input; the first entry is 0.
func OBV(close, volume []float64) ([]float64, error) {
	if len(close) != len(volume) {
		return nil, fmt.Errorf("OBV input series lengths differ (close=%d volume=%d)", len(close), len(volume))
	}
	if len(close) == 0 {
		return nil, fmt.Errorf("OBV requires at least one bar")
	}

	out := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out, nil
}

// Trend is a coarse direction classification.
type Trend string

const (
	TrendRising  Trend = "RISING"
	TrendFalling Trend = "FALLING"
	TrendNeutral Trend = "NEUTRAL"
)

// obvTrendDeadband suppresses trend flips on sub-1% wiggles of the OBV EMA.
const obvTrendDeadband = 0.01

// OBVTrend classifies the direction of on-balance volume from the sign of
// the change in a short EMA of the OBV series, with a 1% deadband.
func OBVTrend(obv []float64, emaPeriod int) (Trend, error) {
	ema, err := EMA(obv, emaPeriod)
	if err != nil {
		return TrendNeutral, err
	}
	if len(ema) < 2 {
		return TrendNeutral, fmt.Errorf("not enough data (%d OBV values) to classify OBV trend", len(obv))
	}

	prev, cur := ema[len(ema)-2], ema[len(ema)-1]
	change := cur - prev
	if math.Abs(change) <= obvTrendDeadband*math.Abs(prev) {
		return TrendNeutral, nil
	}
	if change > 0 {
		return TrendRising, nil
	}
	return TrendFalling, nil
}
