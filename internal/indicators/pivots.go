package indicators

// PivotLevels are classic floor-trader pivot levels computed from the prior
// completed bar.
type PivotLevels struct {
	Pivot float64
	R1    float64
	R2    float64
	S1    float64
	S2    float64
}

// PivotPoints computes pivot levels from the prior completed bar's high,
// low and close:
//
//	pivot = (H+L+C)/3
//	R1 = 2*pivot - L    S1 = 2*pivot - H
//	R2 = pivot + (H-L)  S2 = pivot - (H-L)
func PivotPoints(high, low, close float64) PivotLevels {
	pivot := (high + low + close) / 3
	return PivotLevels{
		Pivot: pivot,
		R1:    2*pivot - low,
		S1:    2*pivot - high,
		R2:    pivot + (high - low),
		S2:    pivot - (high - low),
	}
}
