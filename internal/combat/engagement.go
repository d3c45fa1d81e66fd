package combat

import (
	"errors"
	"fmt"
	"math"
)

// DefaultRoundCap is the simulated time after which an engagement breaks off.
const DefaultRoundCap = 10_000

var (
	// ErrInvalidFraction reports a starting health fraction outside [0,1].
	ErrInvalidFraction = errors.New("health fraction must be within [0,1]")
	// ErrInvalidRoundCap reports a non-positive round cap.
	ErrInvalidRoundCap = errors.New("round cap must be positive")
)

// Side identifies one of the two participants.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideB {
		return "B"
	}
	return "A"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideB {
		return SideA
	}
	return SideB
}

// Termination explains why an engagement stopped.
type Termination string

const (
	TerminationRoundCap        Termination = "round_cap"
	TerminationSideAEliminated Termination = "side_a_eliminated"
	TerminationSideBEliminated Termination = "side_b_eliminated"
)

// FireEvent describes one resolved shot.
type FireEvent struct {
	Time     int  `json:"time"`
	Shooter  Side `json:"shooter"`
	Hit      bool `json:"hit"`
	Critical bool `json:"critical"`
	Damage   int  `json:"damage"`
	// TargetHealth is the target's absolute health after the shot. It may be negative.
	TargetHealth int `json:"targetHealth"`
}

// Observer receives every fire event as it is resolved.
type Observer interface {
	ObserveFire(event FireEvent)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(event FireEvent)

// ObserveFire implements Observer.
func (f ObserverFunc) ObserveFire(event FireEvent) { f(event) }

// Outcome is the result of one engagement.
type Outcome struct {
	SideA   float64     `json:"sideA"`
	SideB   float64     `json:"sideB"`
	Events  int         `json:"events"`
	Elapsed int         `json:"elapsed"`
	Reason  Termination `json:"reason"`
}

// Eliminated reports whether the given side ended the engagement destroyed.
func (o Outcome) Eliminated(side Side) bool {
	if side == SideB {
		return o.SideB == 0
	}
	return o.SideA == 0
}

type engageConfig struct {
	roundCap     int
	observer     Observer
	normalizeToA bool
}

// EngageOption customises a single Engage call.
type EngageOption func(*engageConfig)

// WithRoundCap overrides DefaultRoundCap.
func WithRoundCap(roundCap int) EngageOption {
	return func(c *engageConfig) {
		c.roundCap = roundCap
	}
}

// WithObserver streams fire events to observer while the engagement runs.
func WithObserver(observer Observer) EngageOption {
	return func(c *engageConfig) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// WithSideANormalization reports both fractions relative to side A's maximum health, the
// way the first balance spreadsheets did. Side B's fraction is still clamped to [0,1].
func WithSideANormalization() EngageOption {
	return func(c *engageConfig) {
		c.normalizeToA = true
	}
}

// combatant is the mutable per-call state of one side. Health is an integer counter
// seeded by truncating the starting fraction of the side's maximum.
type combatant struct {
	params SideParameters
	start  float64
	health int
	taken  int
	next   int
}

func newCombatant(params SideParameters, start float64) *combatant {
	return &combatant{params: params, start: start, health: int(params.StartHealth * start), next: params.FireInterval}
}

// Engage runs one engagement from the given starting health fractions. Each side fires on
// a fixed cadence starting one interval after the engagement opens. When both timers are
// due at the same instant side A fires first. Every shot draws hit, then damage and crit
// on a hit, in that order. The engagement breaks off once the clock, which reads the time
// of the last shot, reaches the round cap, so the first shot due at or after the cap is
// still fired.
func Engage(params Parameters, rng RandomSource, startA, startB float64, opts ...EngageOption) (Outcome, error) {
	cfg := engageConfig{roundCap: DefaultRoundCap}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.roundCap <= 0 {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidRoundCap, cfg.roundCap)
	}
	if rng == nil {
		return Outcome{}, errors.New("random source is required")
	}
	if err := params.Validate(); err != nil {
		return Outcome{}, err
	}
	if err := validateFraction(startA); err != nil {
		return Outcome{}, fmt.Errorf("side A: %w", err)
	}
	if err := validateFraction(startB); err != nil {
		return Outcome{}, fmt.Errorf("side B: %w", err)
	}

	sides := [2]*combatant{newCombatant(params.SideA, startA), newCombatant(params.SideB, startB)}

	outcome := Outcome{Reason: TerminationRoundCap}
	for {
		//1.- Elimination ends the engagement; side A is checked first.
		if sides[SideA].health <= 0 {
			outcome.Reason = TerminationSideAEliminated
			break
		}
		if sides[SideB].health <= 0 {
			outcome.Reason = TerminationSideBEliminated
			break
		}
		//2.- Stop once the clock has reached the cap, then pick the earliest timer with side A winning ties.
		if outcome.Elapsed >= cfg.roundCap {
			break
		}
		shooter := SideA
		if sides[SideB].next < sides[SideA].next {
			shooter = SideB
		}
		firer, target := sides[shooter], sides[shooter.Opponent()]
		outcome.Elapsed = firer.next
		outcome.Events++

		//3.- Resolve the shot and schedule the firer's next one on its fixed cadence.
		event := FireEvent{Time: firer.next, Shooter: shooter}
		if rng.Bernoulli(firer.params.Hit) {
			event.Hit = true
			event.Damage = rng.IntInclusive(firer.params.Damage.Low, firer.params.Damage.High)
			if rng.Bernoulli(firer.params.Crit) {
				event.Critical = true
				event.Damage *= 2
			}
			target.health -= event.Damage
			target.taken += event.Damage
		}
		event.TargetHealth = target.health
		firer.next += firer.params.FireInterval
		if cfg.observer != nil {
			cfg.observer.ObserveFire(event)
		}
	}

	var reference float64
	if cfg.normalizeToA {
		reference = params.SideA.StartHealth
	}
	outcome.SideA = sides[SideA].fraction(reference)
	outcome.SideB = sides[SideB].fraction(reference)
	return outcome, nil
}

// fraction reports remaining health relative to reference, or to the side's own maximum
// when reference is zero. Untouched sides report their starting fraction exactly.
func (c *combatant) fraction(reference float64) float64 {
	if c.health <= 0 {
		return 0
	}
	if reference <= 0 {
		if c.taken == 0 {
			return c.start
		}
		return clampFraction(float64(c.health) / c.params.StartHealth)
	}
	return clampFraction(float64(c.health) / reference)
}

func validateFraction(fraction float64) error {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidFraction, fraction)
	}
	return nil
}

func clampFraction(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
