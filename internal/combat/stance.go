package combat

import (
	"fmt"
	"strings"
)

// Stance is the tactical posture shared by both craft for one engagement.
type Stance int

const (
	StanceDefensive Stance = iota
	StanceBalanced
	StanceAggressive
)

// stanceHitModifier is the hit percentage shift applied by each stance.
const stanceHitModifier = 15

func (s Stance) String() string {
	switch s {
	case StanceDefensive:
		return "defensive"
	case StanceBalanced:
		return "balanced"
	case StanceAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("stance(%d)", int(s))
	}
}

// Valid reports whether the stance is one of the known postures.
func (s Stance) Valid() bool {
	return s >= StanceDefensive && s <= StanceAggressive
}

// ParseStance converts a configuration string into a Stance.
func ParseStance(raw string) (Stance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "defensive", "def":
		return StanceDefensive, nil
	case "balanced", "bal", "":
		return StanceBalanced, nil
	case "aggressive", "agg":
		return StanceAggressive, nil
	default:
		return StanceBalanced, fmt.Errorf("unknown stance %q", raw)
	}
}

// MarshalText encodes the stance by name so JSON payloads stay readable.
func (s Stance) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stance %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stance name.
func (s *Stance) UnmarshalText(text []byte) error {
	parsed, err := ParseStance(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// adjustHitPercent applies the stance modifier, saturating at zero on the low end.
func (s Stance) adjustHitPercent(percent int) int {
	switch s {
	case StanceDefensive:
		if percent < stanceHitModifier {
			return 0
		}
		return percent - stanceHitModifier
	case StanceAggressive:
		return percent + stanceHitModifier
	default:
		return percent
	}
}
