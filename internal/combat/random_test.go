package combat

import "testing"

func TestSeededSourceIntInclusiveCoversBounds(t *testing.T) {
	rng := NewSeededSource(11)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		value := rng.IntInclusive(3, 6)
		if value < 3 || value > 6 {
			t.Fatalf("value %d outside [3, 6]", value)
		}
		seen[value] = true
	}
	//1.- Both endpoints must be reachable because damage ranges are inclusive.
	for v := 3; v <= 6; v++ {
		if !seen[v] {
			t.Fatalf("value %d never drawn", v)
		}
	}
	if rng.IntInclusive(9, 9) != 9 {
		t.Fatalf("collapsed range must return its only value")
	}
}

func TestSeededSourceBernoulliExtremes(t *testing.T) {
	rng := NewSeededSource(5)
	never := MustProbabilityRatio(0, 100)
	always := MustProbabilityRatio(100, 100)
	for i := 0; i < 500; i++ {
		if rng.Bernoulli(never) {
			t.Fatalf("probability zero returned true")
		}
		if !rng.Bernoulli(always) {
			t.Fatalf("probability one returned false")
		}
	}
}

func TestStreamSourcesDiverge(t *testing.T) {
	a := NewStreamSource(1, 0)
	b := NewStreamSource(1, 1)
	same := true
	for i := 0; i < 16; i++ {
		if a.IntInclusive(0, 1<<30) != b.IntInclusive(0, 1<<30) {
			same = false
		}
	}
	if same {
		t.Fatalf("independent streams produced identical sequences")
	}
}
