package indicators

import (
	"fmt"
	"math"
)

// ADX computes Wilder's average directional movement index, 0-100.
// Values above 25 denote a strong trend, below 20 a range-bound market.
// The result has length len(close)-2*period+1 (two warm-up windows: one
// for the smoothed directional movement, one for smoothing DX into ADX).
func ADX(high, low, close []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ADX period must be positive, got %d", period)
	}
	if len(high) != len(low) || len(high) != len(close) {
		return nil, fmt.Errorf("ADX input series lengths differ (high=%d low=%d close=%d)", len(high), len(low), len(close))
	}
	if len(close) < 2*period+1 {
		return nil, fmt.Errorf("not enough data (%d) to calculate ADX for period %d", len(close), period)
	}

	n := len(close)
	tr := trueRanges(high, low, close)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	// Wilder's smoothed running sums.
	var smTR, smPlus, smMinus float64
	for i := 0; i < period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, 0, len(tr)-period+1)
	dx = append(dx, dxValue(smPlus, smMinus, smTR))
	for i := period; i < len(tr); i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx = append(dx, dxValue(smPlus, smMinus, smTR))
	}

	// ADX is a Wilder moving average of DX.
	var adx float64
	for i := 0; i < period; i++ {
		adx += dx[i]
	}
	adx /= float64(period)

	out := make([]float64, 0, len(dx)-period+1)
	out = append(out, adx)
	for i := period; i < len(dx); i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		out = append(out, adx)
	}
	return out, nil
}

// DirectionalIndexes returns the latest +DI and -DI values for the series,
// used to decide whether ADX strength agrees with trend direction.
func DirectionalIndexes(high, low, close []float64, period int) (plusDI, minusDI float64, err error) {
	if len(high) != len(low) || len(high) != len(close) {
		return 0, 0, fmt.Errorf("DI input series lengths differ")
	}
	if len(close) < period+1 {
		return 0, 0, fmt.Errorf("not enough data (%d) to calculate DI for period %d", len(close), period)
	}

	n := len(close)
	tr := trueRanges(high, low, close)
	var smTR, smPlus, smMinus float64
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		var p, m float64
		if up > down && up > 0 {
			p = up
		}
		if down > up && down > 0 {
			m = down
		}
		if i <= period {
			smTR += tr[i-1]
			smPlus += p
			smMinus += m
			continue
		}
		smTR = smTR - smTR/float64(period) + tr[i-1]
		smPlus = smPlus - smPlus/float64(period) + p
		smMinus = smMinus - smMinus/float64(period) + m
	}
	if smTR == 0 {
		return 0, 0, nil
	}
	return 100 * smPlus / smTR, 100 * smMinus / smTR, nil
}

func dxValue(smPlus, smMinus, smTR float64) float64 {
	if smTR == 0 {
		return 0
	}
	plusDI := 100 * smPlus / smTR
	minusDI := 100 * smMinus / smTR
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}
