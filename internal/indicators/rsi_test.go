package indicators

import "testing"

func TestRSI(t *testing.T) {
	tests := []struct {
		name         string
		values       []float64
		period       int
		expectedLast float64
		expectError  bool
	}{
		{
			name:         "Wilder smoothing over mixed changes",
			values:       []float64{100, 102, 101, 103, 102, 104},
			period:       3,
			expectedLast: 77.272727,
		},
		{
			name:         "all gains",
			values:       []float64{100, 102, 104, 106},
			period:       3,
			expectedLast: 100,
		},
		{
			name:         "all losses",
			values:       []float64{106, 104, 102, 100},
			period:       3,
			expectedLast: 0,
		},
		{
			name:         "flat series is neutral",
			values:       []float64{100, 100, 100, 100},
			period:       3,
			expectedLast: 50,
		},
		{
			name:        "insufficient data",
			values:      []float64{100, 101, 102},
			period:      7,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.values, tt.period)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != len(tt.values)-tt.period {
				t.Fatalf("Expected %d values, got %d", len(tt.values)-tt.period, len(got))
			}
			last := got[len(got)-1]
			if !almostEqual(last, tt.expectedLast) {
				t.Errorf("RSI last = %f, want %f", last, tt.expectedLast)
			}
		})
	}
}
