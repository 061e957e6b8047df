package indicators

import "testing"

func TestPivotPoints(t *testing.T) {
	levels := PivotPoints(100, 90, 95)

	if levels.Pivot != 95 {
		t.Errorf("Pivot = %f, want 95", levels.Pivot)
	}
	if levels.R1 != 100 {
		t.Errorf("R1 = %f, want 100", levels.R1)
	}
	if levels.S1 != 90 {
		t.Errorf("S1 = %f, want 90", levels.S1)
	}
	if levels.R2 != 105 {
		t.Errorf("R2 = %f, want 105", levels.R2)
	}
	if levels.S2 != 85 {
		t.Errorf("S2 = %f, want 85", levels.S2)
	}
}
