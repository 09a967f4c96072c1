package ranking

import "testing"

func TestKeyScoreDominates(t *testing.T) {
	// A single point of score must outweigh any clear-time advantage.
	slowButHigher := Key(5001, 999_999)
	fastButLower := Key(5000, 0.0)

	if slowButHigher <= fastButLower {
		t.Errorf("Key(5001, slow) = %v should exceed Key(5000, fast) = %v",
			slowButHigher, fastButLower)
	}
}

func TestKeyClearTimeBreaksTies(t *testing.T) {
	faster := Key(5000, 100.0)
	slower := Key(5000, 120.0)

	if faster <= slower {
		t.Errorf("faster clear should fold greater: %v vs %v", faster, slower)
	}
}

func TestKeyResolution(t *testing.T) {
	// Tenth-of-a-millisecond differences are distinguishable...
	a := Key(100, 10.0001)
	b := Key(100, 10.0002)
	if a <= b {
		t.Errorf("0.1ms difference should order keys: %v vs %v", a, b)
	}

	// ...but anything below that resolution folds to the same key.
	c := Key(100, 10.00001)
	d := Key(100, 10.00002)
	if c != d {
		t.Errorf("sub-resolution difference should collapse: %v vs %v", c, d)
	}
}

func TestKeyClamping(t *testing.T) {
	if got, want := Key(10, -5.0), Key(10, 0); got != want {
		t.Errorf("negative clear time should clamp to zero: %v vs %v", got, want)
	}

	// A clear time past the clamp still ranks below the next score.
	huge := Key(10, 1e12)
	if huge <= Key(9, 0) {
		t.Error("clamped clear time leaked into the score component")
	}
	if huge >= Key(10, 0) {
		t.Error("clamp should still be the worst clear time for the score")
	}
}

func TestScoreUnfold(t *testing.T) {
	for _, score := range []int64{0, 1, 5000, 8000, 900_000_000} {
		for _, ct := range []float64{0, 0.5, 90, 120, 999.9} {
			if got := Score(Key(score, ct)); got != score {
				t.Errorf("Score(Key(%d, %v)) = %d", score, ct, got)
			}
		}
	}
}

func TestClearTimeUnits(t *testing.T) {
	if got := ClearTimeUnits(120.0); got != 1_200_000 {
		t.Errorf("ClearTimeUnits(120) = %d, want 1200000", got)
	}
	if got := ClearTimeUnits(-1); got != 0 {
		t.Errorf("ClearTimeUnits(-1) = %d, want 0", got)
	}
	if got := ClearTimeUnits(1e12); got != maxClearTimeUnits {
		t.Errorf("ClearTimeUnits(huge) = %d, want clamp %d", got, maxClearTimeUnits)
	}
}

func TestScenarioOrdering(t *testing.T) {
	// u2 (8000, 90) > u3 (5000, 100) > u1 (5000, 120).
	u1 := Key(5000, 120.0)
	u2 := Key(8000, 90.0)
	u3 := Key(5000, 100.0)

	if !(u2 > u3 && u3 > u1) {
		t.Errorf("scenario order broken: u1=%v u2=%v u3=%v", u1, u2, u3)
	}
}
