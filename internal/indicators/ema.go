package indicators

import "fmt"

// EMA computes the exponential moving average of values with the standard
// smoothing factor 2/(period+1). The result is seeded with the simple
// average of the first period values, so its length is
// len(values)-period+1 (the warm-up window is consumed).
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("EMA period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(values), period)
	}

	k := 2.0 / (float64(period) + 1.0)
	out := make([]float64, 0, len(values)-period+1)

	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out = append(out, seed)

	prev := seed
	for i := period; i < len(values); i++ {
		cur := (values[i]-prev)*k + prev
		out = append(out, cur)
		prev = cur
	}
	return out, nil
}

// SMA computes the simple moving average over a sliding window of the given
// period. Length of the result is len(values)-period+1.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("SMA period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(values), period)
	}

	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out, nil
}
