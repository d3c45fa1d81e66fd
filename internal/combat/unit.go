package combat

import (
	"errors"
	"fmt"
	"math"
)

// MaxHealth bounds hull health so the engagement's integer health counter cannot overflow.
const MaxHealth = math.MaxInt32

var (
	// ErrInvalidWeapon reports weapon stats that cannot drive an engagement.
	ErrInvalidWeapon = errors.New("invalid weapon")
	// ErrInvalidUnit reports craft stats that cannot take part in an engagement.
	ErrInvalidUnit = errors.New("invalid unit")
)

// Weapon describes the single weapon mounted on a craft.
type Weapon struct {
	// HitChance is the base percentage chance to hit, 0-100.
	HitChance int `json:"hitChance"`
	// FireInterval is the number of time units between shots. Lower fires faster.
	FireInterval int `json:"fireInterval"`
	// Damage is the base damage of one shot before mitigation.
	Damage int `json:"damage"`
	// Penetration is the weapon's armor penetration percentage, 0-100.
	Penetration int `json:"penetration"`
}

// NewWeapon constructs a weapon and rejects degenerate stats.
func NewWeapon(hitChance, fireInterval, damage, penetration int) (Weapon, error) {
	weapon := Weapon{HitChance: hitChance, FireInterval: fireInterval, Damage: damage, Penetration: penetration}
	if err := weapon.Validate(); err != nil {
		return Weapon{}, err
	}
	return weapon, nil
}

// Validate checks the weapon for values that would stall or corrupt an engagement.
func (w Weapon) Validate() error {
	switch {
	case w.HitChance < 0 || w.HitChance > 100:
		return fmt.Errorf("%w: hit chance %d outside 0-100", ErrInvalidWeapon, w.HitChance)
	case w.FireInterval <= 0:
		return fmt.Errorf("%w: fire interval must be positive, got %d", ErrInvalidWeapon, w.FireInterval)
	case w.Damage <= 0:
		return fmt.Errorf("%w: damage must be positive, got %d", ErrInvalidWeapon, w.Damage)
	case w.Penetration < 0 || w.Penetration > 100:
		return fmt.Errorf("%w: penetration %d outside 0-100", ErrInvalidWeapon, w.Penetration)
	}
	return nil
}

// Unit is one combat participant.
type Unit struct {
	Health      float64 `json:"health"`
	Armor       int     `json:"armor"`
	Penetration int     `json:"penetration"`
	Kills       int     `json:"kills"`
	Weapon      Weapon  `json:"weapon"`
}

// NewUnit constructs a unit and validates both the hull and its weapon.
func NewUnit(health float64, armor, penetration, kills int, weapon Weapon) (Unit, error) {
	unit := Unit{Health: health, Armor: armor, Penetration: penetration, Kills: kills, Weapon: weapon}
	if err := unit.Validate(); err != nil {
		return Unit{}, err
	}
	return unit, nil
}

// Validate checks hull stats and the mounted weapon.
func (u Unit) Validate() error {
	switch {
	case math.IsNaN(u.Health) || u.Health <= 0 || u.Health > MaxHealth:
		return fmt.Errorf("%w: health must be within (0, %d], got %v", ErrInvalidUnit, MaxHealth, u.Health)
	case u.Armor < 0:
		return fmt.Errorf("%w: armor must be non-negative, got %d", ErrInvalidUnit, u.Armor)
	case u.Penetration < 0:
		return fmt.Errorf("%w: penetration must be non-negative, got %d", ErrInvalidUnit, u.Penetration)
	case u.Kills < 0:
		return fmt.Errorf("%w: kills must be non-negative, got %d", ErrInvalidUnit, u.Kills)
	}
	if err := u.Weapon.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, err)
	}
	return nil
}

// EffectivePenetration is the hull penetration plus the weapon penetration.
func (u Unit) EffectivePenetration() int {
	return u.Penetration + u.Weapon.Penetration
}
