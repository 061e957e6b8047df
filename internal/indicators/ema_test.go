package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func TestEMA(t *testing.T) {
	tests := []struct {
		name        string
		values      []float64
		period      int
		expected    []float64
		expectError bool
	}{
		{
			name:     "seeded with SMA then smoothed",
			values:   []float64{1, 2, 3, 4, 5},
			period:   3,
			expected: []float64{2, 3, 4},
		},
		{
			name:     "constant series stays constant",
			values:   []float64{7, 7, 7, 7},
			period:   2,
			expected: []float64{7, 7, 7},
		},
		{
			name:        "insufficient data",
			values:      []float64{1, 2},
			period:      3,
			expectError: true,
		},
		{
			name:        "invalid period",
			values:      []float64{1, 2, 3},
			period:      0,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EMA(tt.values, tt.period)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d values, got %d", len(tt.expected), len(got))
			}
			for i := range got {
				if !almostEqual(got[i], tt.expected[i]) {
					t.Errorf("EMA[%d] = %f, want %f", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4}, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []float64{1.5, 2.5, 3.5}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(got))
	}
	for i := range got {
		if !almostEqual(got[i], expected[i]) {
			t.Errorf("SMA[%d] = %f, want %f", i, got[i], expected[i])
		}
	}

	if _, err := SMA([]float64{1}, 2); err == nil {
		t.Error("Expected error for insufficient data")
	}
}
