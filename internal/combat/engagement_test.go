package combat

import (
	"errors"
	"math"
	"testing"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

// scriptedSource replays fixed draws. Exhausted scripts fall back to certainty-only
// answers so a test never depends on hidden randomness.
type scriptedSource struct {
	bools []bool
	ints  []int
	draws []string
}

func (s *scriptedSource) Bernoulli(p Probability) bool {
	s.draws = append(s.draws, "bernoulli")
	if len(s.bools) == 0 {
		return p.Value() >= 1
	}
	next := s.bools[0]
	s.bools = s.bools[1:]
	return next
}

func (s *scriptedSource) IntInclusive(low, high int) int {
	s.draws = append(s.draws, "int")
	if len(s.ints) == 0 {
		return low
	}
	next := s.ints[0]
	s.ints = s.ints[1:]
	if next < low || next > high {
		return low
	}
	return next
}

func side(health float64, low, high, hitPercent, critNumerator, interval int) SideParameters {
	return SideParameters{
		StartHealth:  health,
		Damage:       DamageRange{Low: low, High: high},
		Hit:          MustProbabilityRatio(hitPercent, 100),
		Crit:         MustProbabilityRatio(critNumerator, 200),
		FireInterval: interval,
	}
}

func catalogParameters(t *testing.T) Parameters {
	t.Helper()
	interceptor, err := BuildUnit("interceptor", "avalanche", 0)
	if err != nil {
		t.Fatalf("BuildUnit: %v", err)
	}
	scout, err := BuildUnit("scout", "single-plasma", 0)
	if err != nil {
		t.Fatalf("BuildUnit: %v", err)
	}
	params, err := Derive(interceptor, scout, StanceAggressive)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	return params
}

func TestEngageIsDeterministicForSeed(t *testing.T) {
	params := catalogParameters(t)
	first, err := Engage(params, NewSeededSource(7), 1, 1)
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	second, err := Engage(params, NewSeededSource(7), 1, 1)
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical outcomes, got %+v and %+v", first, second)
	}
}

func TestEngageFractionsStayInBounds(t *testing.T) {
	params := catalogParameters(t)
	for seed := uint64(0); seed < 200; seed++ {
		rng := NewSeededSource(seed)
		a, b := 1.0, 1.0
		//1.- Chain a few engagements so carried-over damage is exercised too.
		for round := 0; round < 3; round++ {
			outcome, err := Engage(params, rng, a, b)
			if err != nil {
				t.Fatalf("seed %d round %d: %v", seed, round, err)
			}
			for _, fraction := range []float64{outcome.SideA, outcome.SideB} {
				if fraction < 0 || fraction > 1 {
					t.Fatalf("seed %d: fraction %v out of bounds", seed, fraction)
				}
			}
			a, b = outcome.SideA, outcome.SideB
		}
	}
}

func TestEngageWithoutHitsConservesHealth(t *testing.T) {
	params := Parameters{
		SideA: side(1000, 100, 150, 0, 10, 1000),
		SideB: side(800, 100, 150, 0, 10, 1500),
	}
	outcome, err := Engage(params, NewSeededSource(1), 0.37, 0.81)
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if outcome.SideA != 0.37 || outcome.SideB != 0.81 {
		t.Fatalf("expected starting fractions to be returned unchanged, got %+v", outcome)
	}
	if outcome.Reason != TerminationRoundCap {
		t.Fatalf("expected round cap termination, got %s", outcome.Reason)
	}
	//1.- Ten shots from A (1000..10000) and six from B (1500..9000).
	if outcome.Events != 16 || outcome.Elapsed != 10000 {
		t.Fatalf("expected 16 events ending at 10000, got %d at %d", outcome.Events, outcome.Elapsed)
	}
}

func TestEngageRespectsRoundCapPerSide(t *testing.T) {
	params := Parameters{
		SideA: side(1e9, 1, 2, 50, 10, 300),
		SideB: side(1e9, 1, 2, 50, 10, 700),
	}
	const roundCap = 5000
	counts := map[Side]int{}
	var times []int
	observer := ObserverFunc(func(event FireEvent) {
		counts[event.Shooter]++
		times = append(times, event.Time)
	})
	outcome, err := Engage(params, NewSeededSource(3), 1, 1, WithRoundCap(roundCap), WithObserver(observer))
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	//1.- A fires 300..4800 and B 700..4900 below the cap, then A's shot at 5100 closes the engagement.
	if counts[SideA] != 17 || counts[SideB] != 7 {
		t.Fatalf("unexpected per-side shot counts %+v", counts)
	}
	for i, at := range times[:len(times)-1] {
		if at >= roundCap {
			t.Fatalf("shot %d at %d fired after the clock reached the cap", i, at)
		}
	}
	if outcome.Events != counts[SideA]+counts[SideB] || outcome.Elapsed != 5100 {
		t.Fatalf("event count %d at %d disagrees with observer %+v", outcome.Events, outcome.Elapsed, counts)
	}
}

func TestEngageFiresFirstShotDueAfterCap(t *testing.T) {
	params := Parameters{
		SideA: side(1500, 100, 150, 0, 10, 1500),
		SideB: side(1150, 100, 150, 0, 10, 1150),
	}
	var last FireEvent
	observer := ObserverFunc(func(event FireEvent) { last = event })
	outcome, err := Engage(params, NewSeededSource(4), 1, 1, WithObserver(observer))
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	//1.- Six shots from A and eight from B land below 10000, then B's 10350 shot still fires.
	if outcome.Events != 15 || outcome.Elapsed != 10350 {
		t.Fatalf("expected 15 events ending at 10350, got %d at %d", outcome.Events, outcome.Elapsed)
	}
	if last.Shooter != SideB || last.Time != 10350 {
		t.Fatalf("expected side B to fire last at 10350, got %+v", last)
	}
}

func TestEngageTruncatesStartingHealth(t *testing.T) {
	params := Parameters{
		SideA: side(750, 10, 10, 100, 0, 100),
		SideB: side(750, 10, 10, 100, 0, 100),
	}
	//1.- 750 * 0.001 truncates to zero health, so side A is out before anyone fires.
	outcome, err := Engage(params, NewSeededSource(0), 0.001, 1)
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if outcome.Events != 0 || outcome.SideA != 0 || outcome.Reason != TerminationSideAEliminated {
		t.Fatalf("expected immediate elimination of side A, got %+v", outcome)
	}
	if outcome.SideB != 1 {
		t.Fatalf("expected side B untouched, got %+v", outcome)
	}

	//2.- 1000 * 0.0105 truncates to 10 health, which a single 10 damage hit removes.
	params.SideA = side(1000, 10, 10, 100, 0, 100)
	params.SideB = side(750, 10, 10, 100, 0, 50)
	var targets []int
	observer := ObserverFunc(func(event FireEvent) { targets = append(targets, event.TargetHealth) })
	outcome, err = Engage(params, &scriptedSource{}, 0.0105, 1, WithObserver(observer))
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if outcome.Events != 1 || outcome.Reason != TerminationSideAEliminated || len(targets) != 1 || targets[0] != 0 {
		t.Fatalf("expected one lethal shot on a truncated counter, got %+v targets %v", outcome, targets)
	}
}

func TestEngageEliminationTerminatesEarly(t *testing.T) {
	params := Parameters{
		SideA: side(1000, 5000, 6000, 100, 10, 100),
		SideB: side(1000, 1, 1, 0, 10, 100),
	}
	outcome, err := Engage(params, NewSeededSource(9), 1, 1)
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if outcome.SideB != 0 || outcome.Reason != TerminationSideBEliminated {
		t.Fatalf("expected defender eliminated, got %+v", outcome)
	}
	if outcome.Elapsed >= DefaultRoundCap || outcome.Events != 1 {
		t.Fatalf("expected a single opening shot, got %+v", outcome)
	}
	if outcome.SideA != 1 || !outcome.Eliminated(SideB) {
		t.Fatalf("attacker should be untouched, got %+v", outcome)
	}
}

func TestEngageSideAWinsTies(t *testing.T) {
	params := Parameters{
		SideA: side(1000, 10, 10, 50, 10, 500),
		SideB: side(1000, 10, 10, 50, 10, 500),
	}
	var shooters []Side
	observer := ObserverFunc(func(event FireEvent) { shooters = append(shooters, event.Shooter) })
	rng := &scriptedSource{}
	if _, err := Engage(params, rng, 1, 1, WithRoundCap(1000), WithObserver(observer)); err != nil {
		t.Fatalf("Engage: %v", err)
	}
	//1.- A's shot at 1000 moves the clock to the cap, so B's simultaneous shot never fires.
	want := []Side{SideA, SideB, SideA}
	if len(shooters) != len(want) {
		t.Fatalf("expected %d shots, got %v", len(want), shooters)
	}
	for i := range want {
		if shooters[i] != want[i] {
			t.Fatalf("shot %d: expected %s, got %s", i, want[i], shooters[i])
		}
	}
}

func TestEngageDrawOrderAndCritDoubling(t *testing.T) {
	params := Parameters{
		SideA: side(1000, 100, 150, 50, 10, 100),
		SideB: side(1000, 10, 10, 50, 10, 1000),
	}
	//1.- Hit, roll 120, crit: the opening shot deals 240.
	rng := &scriptedSource{bools: []bool{true, true}, ints: []int{120}}
	var events []FireEvent
	observer := ObserverFunc(func(event FireEvent) { events = append(events, event) })
	outcome, err := Engage(params, rng, 1, 1, WithRoundCap(100), WithObserver(observer))
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if len(events) != 1 || !events[0].Hit || !events[0].Critical || events[0].Damage != 240 {
		t.Fatalf("unexpected events %+v", events)
	}
	want := []string{"bernoulli", "int", "bernoulli"}
	if len(rng.draws) != len(want) {
		t.Fatalf("expected draws %v, got %v", want, rng.draws)
	}
	for i := range want {
		if rng.draws[i] != want[i] {
			t.Fatalf("draw %d: expected %s, got %s", i, want[i], rng.draws[i])
		}
	}
	if !approxEqual(outcome.SideB, 0.76) {
		t.Fatalf("expected side B at 0.76, got %v", outcome.SideB)
	}
}

func TestEngageMissDrawsOnlyHit(t *testing.T) {
	params := Parameters{
		SideA: side(1000, 100, 150, 50, 10, 100),
		SideB: side(1000, 10, 10, 50, 10, 1000),
	}
	rng := &scriptedSource{bools: []bool{false}}
	if _, err := Engage(params, rng, 1, 1, WithRoundCap(100)); err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if len(rng.draws) != 1 || rng.draws[0] != "bernoulli" {
		t.Fatalf("a miss must consume exactly one draw, got %v", rng.draws)
	}
}

func TestEngageChainsFromCarriedFractions(t *testing.T) {
	params := Parameters{
		SideA: side(1000, 100, 100, 100, 0, 1000),
		SideB: side(500, 50, 50, 100, 0, 999),
	}
	//1.- B's shot at 999 costs A 50, then A's shot at 1000 costs B 100 and reaches the cap.
	rng := &scriptedSource{bools: []bool{true, false, true, false}, ints: []int{50, 100}}
	first, err := Engage(params, rng, 1, 1, WithRoundCap(1000))
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if !approxEqual(first.SideA, 0.95) || !approxEqual(first.SideB, 0.8) {
		t.Fatalf("unexpected first outcome %+v", first)
	}
	second, err := Engage(params, &scriptedSource{bools: []bool{false, false}}, first.SideA, first.SideB, WithRoundCap(1000))
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if second.SideA != first.SideA || second.SideB != first.SideB {
		t.Fatalf("expected carried fractions to persist across misses, got %+v", second)
	}
}

func TestEngageSideANormalization(t *testing.T) {
	params := Parameters{
		SideA: side(2000, 1, 1, 0, 10, 100),
		SideB: side(500, 1, 1, 0, 10, 100),
	}
	outcome, err := Engage(params, NewSeededSource(0), 1, 1, WithRoundCap(100), WithSideANormalization())
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if outcome.SideA != 1 || outcome.SideB != 0.25 {
		t.Fatalf("expected side B reported against side A's maximum, got %+v", outcome)
	}
}

func TestEngageRejectsInvalidInput(t *testing.T) {
	params := catalogParameters(t)
	if _, err := Engage(params, NewSeededSource(0), 1.5, 1); !errors.Is(err, ErrInvalidFraction) {
		t.Fatalf("expected ErrInvalidFraction, got %v", err)
	}
	if _, err := Engage(params, NewSeededSource(0), 1, 1, WithRoundCap(0)); !errors.Is(err, ErrInvalidRoundCap) {
		t.Fatalf("expected ErrInvalidRoundCap, got %v", err)
	}
	broken := params
	broken.SideB.FireInterval = 0
	if _, err := Engage(broken, NewSeededSource(0), 1, 1); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
	if _, err := Engage(params, nil, 1, 1); err == nil {
		t.Fatalf("expected missing random source to fail")
	}
}

func TestEngageEliminatedStartEndsImmediately(t *testing.T) {
	params := catalogParameters(t)
	outcome, err := Engage(params, NewSeededSource(0), 0.5, 0)
	if err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if outcome.Events != 0 || outcome.Reason != TerminationSideBEliminated || outcome.SideA != 0.5 {
		t.Fatalf("expected no shots against an eliminated side, got %+v", outcome)
	}
}

func TestEngageConservesIntegerHealth(t *testing.T) {
	params := catalogParameters(t)
	for seed := uint64(0); seed < 50; seed++ {
		const startA, startB = 0.83, 0.61
		dealt := map[Side]int{}
		last := map[Side]int{
			SideA: int(params.SideA.StartHealth * startA),
			SideB: int(params.SideB.StartHealth * startB),
		}
		observer := ObserverFunc(func(event FireEvent) {
			target := event.Shooter.Opponent()
			dealt[target] += event.Damage
			last[target] = event.TargetHealth
		})
		if _, err := Engage(params, NewSeededSource(seed), startA, startB, WithObserver(observer)); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		//1.- Every point of damage is accounted for against the truncated starting counter.
		if want := int(params.SideA.StartHealth*startA) - dealt[SideA]; last[SideA] != want {
			t.Fatalf("seed %d: side A health %d, want %d", seed, last[SideA], want)
		}
		if want := int(params.SideB.StartHealth*startB) - dealt[SideB]; last[SideB] != want {
			t.Fatalf("seed %d: side B health %d, want %d", seed, last[SideB], want)
		}
	}
}
