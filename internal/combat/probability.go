package combat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidProbability reports a ratio outside [0,1]. Reaching it means a derivation
// step forgot to clamp and is treated as a configuration error.
var ErrInvalidProbability = errors.New("invalid probability ratio")

// Probability is a validated Bernoulli parameter in [0,1].
type Probability struct {
	value float64
}

// NewProbabilityRatio builds numerator/denominator, rejecting ratios outside [0,1].
func NewProbabilityRatio(numerator, denominator int) (Probability, error) {
	if denominator <= 0 {
		return Probability{}, fmt.Errorf("%w: denominator must be positive, got %d", ErrInvalidProbability, denominator)
	}
	if numerator < 0 || numerator > denominator {
		return Probability{}, fmt.Errorf("%w: %d/%d", ErrInvalidProbability, numerator, denominator)
	}
	return Probability{value: float64(numerator) / float64(denominator)}, nil
}

// MustProbabilityRatio is NewProbabilityRatio for constants known to be valid.
func MustProbabilityRatio(numerator, denominator int) Probability {
	p, err := NewProbabilityRatio(numerator, denominator)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the probability as a float in [0,1].
func (p Probability) Value() float64 { return p.value }

func (p Probability) String() string { return fmt.Sprintf("%.4f", p.value) }

// MarshalJSON encodes the probability as a bare number.
func (p Probability) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

// UnmarshalJSON decodes a bare number and rejects values outside [0,1].
func (p *Probability) UnmarshalJSON(data []byte) error {
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if !(value >= 0 && value <= 1) {
		return fmt.Errorf("%w: %v", ErrInvalidProbability, value)
	}
	p.value = value
	return nil
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// saturatingSub returns a-b floored at zero.
func saturatingSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}
