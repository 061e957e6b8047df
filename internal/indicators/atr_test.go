package indicators

import "testing"

func TestATR(t *testing.T) {
	tests := []struct {
		name        string
		high        []float64
		low         []float64
		close       []float64
		period      int
		expected    []float64
		expectError bool
	}{
		{
			name:   "Wilder smoothing after the seeded mean",
			high:   []float64{10.5, 11.5, 12.5, 12.0, 13.5, 12.5},
			low:    []float64{9.5, 10.5, 11.5, 10.5, 12.0, 11.5},
			close:  []float64{10, 11, 12, 11, 13, 12},
			period: 3,
			// TRs are {1.5, 1.5, 1.5, 2.5, 1.5}: the seed is their first
			// three averaged, then (1.5*2+2.5)/3 and (1.8333*2+1.5)/3.
			expected: []float64{1.5, 1.833333, 1.722222},
		},
		{
			name:     "gap down dominates the high-low range",
			high:     []float64{101, 96, 97, 98},
			low:      []float64{99, 94, 95, 96},
			close:    []float64{100, 95, 96, 97},
			period:   2,
			expected: []float64{4, 3}, // TR {6, 2, 2}: |low-prevClose| wins the gap bar
		},
		{
			name:        "insufficient data",
			high:        []float64{10, 11, 12},
			low:         []float64{9, 10, 11},
			close:       []float64{9.5, 10.5, 11.5},
			period:      3,
			expectError: true,
		},
		{
			name:        "mismatched series lengths",
			high:        []float64{10, 11, 12, 13},
			low:         []float64{9, 10, 11},
			close:       []float64{9.5, 10.5, 11.5, 12.5},
			period:      2,
			expectError: true,
		},
		{
			name:        "non-positive period",
			high:        []float64{10, 11, 12},
			low:         []float64{9, 10, 11},
			close:       []float64{9.5, 10.5, 11.5},
			period:      0,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ATR(tt.high, tt.low, tt.close, tt.period)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != len(tt.close)-tt.period {
				t.Fatalf("Expected %d values, got %d", len(tt.close)-tt.period, len(got))
			}
			for i, want := range tt.expected {
				if !almostEqual(got[i], want) {
					t.Errorf("ATR[%d] = %f, want %f", i, got[i], want)
				}
			}
		})
	}
}
