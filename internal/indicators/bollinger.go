package indicators

import (
	"fmt"
	"math"
)

// BollingerBands holds the three band series plus the derived bandwidth
// series. All slices are aligned and have length len(values)-period+1.
type BollingerBands struct {
	Upper     []float64
	Middle    []float64
	Lower     []float64
	Bandwidth []float64 // (upper-lower)/middle per bar
}

// Bollinger computes Bollinger Bands over a simple moving average with the
// given standard-deviation multiplier.
func Bollinger(values []float64, period int, stdDev float64) (*BollingerBands, error) {
	if period <= 0 {
		return nil, fmt.Errorf("Bollinger period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data (%d) to calculate Bollinger Bands for period %d", len(values), period)
	}

	middle, err := SMA(values, period)
	if err != nil {
		return nil, err
	}

	bands := &BollingerBands{
		Upper:     make([]float64, len(middle)),
		Middle:    middle,
		Lower:     make([]float64, len(middle)),
		Bandwidth: make([]float64, len(middle)),
	}
	for i := range middle {
		var variance float64
		for j := i; j < i+period; j++ {
			d := values[j] - middle[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		bands.Upper[i] = middle[i] + stdDev*sd
		bands.Lower[i] = middle[i] - stdDev*sd
		if middle[i] != 0 {
			bands.Bandwidth[i] = (bands.Upper[i] - bands.Lower[i]) / middle[i]
		}
	}
	return bands, nil
}

// PercentB locates price within the band: 0 at the lower band, 1 at the
// upper. When the bands have collapsed (zero width) the position is
// undefined and clamps to the midpoint 0.5.
func PercentB(price, upper, lower float64) float64 {
	width := upper - lower
	if width == 0 {
		return 0.5
	}
	return (price - lower) / width
}

// Squeeze reports whether the current bandwidth has contracted below
// squeezeRatio times its trailing average over the lookback window, along
// with the percentile rank (0-100) of the current bandwidth within that
// window. bandwidths must be oldest-to-newest and include the current bar.
func Squeeze(bandwidths []float64, lookback int, squeezeRatio float64) (isSqueeze bool, percentile float64, err error) {
	if lookback <= 1 {
		return false, 0, fmt.Errorf("squeeze lookback must exceed 1, got %d", lookback)
	}
	if len(bandwidths) < lookback {
		return false, 0, fmt.Errorf("not enough bandwidth data (%d) for squeeze lookback %d", len(bandwidths), lookback)
	}

	window := bandwidths[len(bandwidths)-lookback:]
	current := window[len(window)-1]

	var sum float64
	rank := 0
	for _, b := range window {
		sum += b
		if b <= current {
			rank++
		}
	}
	avg := sum / float64(lookback)
	percentile = 100 * float64(rank) / float64(lookback)
	return avg > 0 && current < squeezeRatio*avg, percentile, nil
}
