package indicators

import "fmt"

// StochRSI computes the stochastic oscillator of RSI values: %K is the
// smoothed position of RSI within its min/max range over stochPeriod bars,
// %D is a moving average of %K. Both series are aligned to each other and
// range 0-100. A flat RSI window yields the neutral value 50.
func StochRSI(values []float64, rsiPeriod, stochPeriod, kSmooth, dSmooth int) (k, d []float64, err error) {
	if stochPeriod <= 0 || kSmooth <= 0 || dSmooth <= 0 {
		return nil, nil, fmt.Errorf("StochRSI periods must be positive (stoch=%d k=%d d=%d)", stochPeriod, kSmooth, dSmooth)
	}

	rsi, err := RSI(values, rsiPeriod)
	if err != nil {
		return nil, nil, err
	}
	if len(rsi) < stochPeriod+kSmooth+dSmooth-2 {
		return nil, nil, fmt.Errorf("not enough data (%d values) to calculate StochRSI", len(values))
	}

	raw := make([]float64, 0, len(rsi)-stochPeriod+1)
	for i := stochPeriod - 1; i < len(rsi); i++ {
		lo, hi := rsi[i-stochPeriod+1], rsi[i-stochPeriod+1]
		for j := i - stochPeriod + 2; j <= i; j++ {
			if rsi[j] < lo {
				lo = rsi[j]
			}
			if rsi[j] > hi {
				hi = rsi[j]
			}
		}
		if hi == lo {
			raw = append(raw, 50) // Neutral when no variation
			continue
		}
		raw = append(raw, 100*(rsi[i]-lo)/(hi-lo))
	}

	k, err = SMA(raw, kSmooth)
	if err != nil {
		return nil, nil, err
	}
	d, err = SMA(k, dSmooth)
	if err != nil {
		return nil, nil, err
	}
	k = k[len(k)-len(d):]
	return k, d, nil
}
