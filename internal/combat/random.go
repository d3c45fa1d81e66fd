package combat

import "math/rand/v2"

// RandomSource supplies every random draw an engagement makes. The engine never reaches
// for ambient randomness so a scripted source can replay exact sequences in tests.
type RandomSource interface {
	// Bernoulli returns true with probability p.
	Bernoulli(p Probability) bool
	// IntInclusive returns a uniformly distributed integer in [low, high].
	IntInclusive(low, high int) int
}

// SeededSource is a deterministic RandomSource backed by a PCG generator.
type SeededSource struct {
	rng *rand.Rand
}

// NewSeededSource returns a source whose draws are fully determined by seed.
func NewSeededSource(seed uint64) *SeededSource {
	return NewStreamSource(seed, 0)
}

// NewStreamSource returns a source for one of many independent streams sharing a seed.
// Trial runners use the trial index as the stream so results do not depend on scheduling.
func NewStreamSource(seed, stream uint64) *SeededSource {
	return &SeededSource{rng: rand.New(rand.NewPCG(seed, stream))}
}

// Bernoulli implements RandomSource.
func (s *SeededSource) Bernoulli(p Probability) bool {
	switch v := p.Value(); {
	case v <= 0:
		return false
	case v >= 1:
		return true
	default:
		return s.rng.Float64() < v
	}
}

// IntInclusive implements RandomSource. A collapsed range returns low without drawing.
func (s *SeededSource) IntInclusive(low, high int) int {
	if high <= low {
		return low
	}
	return low + s.rng.IntN(high-low+1)
}
