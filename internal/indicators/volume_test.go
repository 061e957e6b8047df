package indicators

import "testing"

func TestOBV(t *testing.T) {
	close := []float64{1, 2, 2, 1}
	volume := []float64{10, 5, 5, 5}

	got, err := OBV(close, volume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []float64{0, 5, 5, 0}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("OBV[%d] = %f, want %f", i, got[i], expected[i])
		}
	}
}

func TestOBVTrend(t *testing.T) {
	rising := []float64{0, 0, 0, 0, 100}
	trend, err := OBVTrend(rising, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if trend != TrendRising {
		t.Errorf("Expected RISING, got %s", trend)
	}

	falling := []float64{0, 0, 0, 0, -100}
	trend, err = OBVTrend(falling, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if trend != TrendFalling {
		t.Errorf("Expected FALLING, got %s", trend)
	}

	// Change within the 1% deadband stays neutral.
	flat := []float64{1000, 1000, 1000, 1000, 1001}
	trend, err = OBVTrend(flat, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if trend != TrendNeutral {
		t.Errorf("Expected NEUTRAL, got %s", trend)
	}
}

func TestVWAP(t *testing.T) {
	high := []float64{12, 22}
	low := []float64{8, 18}
	close := []float64{10, 20}
	volume := []float64{100, 100}

	got, err := VWAP(high, low, close, volume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Typical prices are 10 and 20 with equal volume.
	if !almostEqual(got[0], 10) {
		t.Errorf("VWAP[0] = %f, want 10", got[0])
	}
	if !almostEqual(got[1], 15) {
		t.Errorf("VWAP[1] = %f, want 15", got[1])
	}
}
