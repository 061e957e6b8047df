package indicators

import "fmt"

// MACD computes the moving average convergence/divergence oscillator.
// The returned MACD line, signal line and histogram are aligned to each
// other (all have the length of the signal line) and end at the most
// recent value.
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, histogram []float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, nil, nil, fmt.Errorf("MACD periods must be positive (fast=%d slow=%d signal=%d)", fast, slow, signal)
	}
	if fast >= slow {
		return nil, nil, nil, fmt.Errorf("MACD fast period (%d) must be less than slow period (%d)", fast, slow)
	}
	if len(values) < slow+signal-1 {
		return nil, nil, nil, fmt.Errorf("not enough data (%d) to calculate MACD(%d,%d,%d)", len(values), fast, slow, signal)
	}

	emaFast, err := EMA(values, fast)
	if err != nil {
		return nil, nil, nil, err
	}
	emaSlow, err := EMA(values, slow)
	if err != nil {
		return nil, nil, nil, err
	}

	// emaFast starts slow-fast entries earlier than emaSlow; align tails.
	offset := len(emaFast) - len(emaSlow)
	line := make([]float64, len(emaSlow))
	for i := range emaSlow {
		line[i] = emaFast[i+offset] - emaSlow[i]
	}

	signalLine, err = EMA(line, signal)
	if err != nil {
		return nil, nil, nil, err
	}

	macd = line[len(line)-len(signalLine):]
	histogram = make([]float64, len(signalLine))
	for i := range signalLine {
		histogram[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, histogram, nil
}
