package combat

import (
	"errors"
	"fmt"
	"math"
)

const (
	// maxMitigationPercent caps how much incoming damage armor can absorb.
	maxMitigationPercent = 95
	// damageSpread is the ratio between the top and bottom of a damage range.
	damageSpread = 1.5
	// killHitBonus and maxKillHitBonus shape the experience bonus to hit chance.
	killHitBonus    = 3
	maxKillHitBonus = 30
	// critFloor and critCeiling bound the net penetration used for crit chance.
	critFloor       = 10
	critCeiling     = 50
	critDenominator = 200
)

// ErrInvalidParameters reports derived parameters that cannot drive an engagement.
var ErrInvalidParameters = errors.New("invalid engagement parameters")

// DamageRange is an inclusive integer damage interval.
type DamageRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// SideParameters are the effective combat numbers for one side of an engagement.
type SideParameters struct {
	StartHealth  float64     `json:"startHealth"`
	Damage       DamageRange `json:"damage"`
	Hit          Probability `json:"hit"`
	Crit         Probability `json:"crit"`
	FireInterval int         `json:"fireInterval"`
}

// Validate checks the invariants the engagement loop relies on.
func (p SideParameters) Validate() error {
	switch {
	case math.IsNaN(p.StartHealth) || p.StartHealth <= 0 || p.StartHealth > MaxHealth:
		return fmt.Errorf("%w: start health must be within (0, %d], got %v", ErrInvalidParameters, MaxHealth, p.StartHealth)
	case p.FireInterval <= 0:
		return fmt.Errorf("%w: fire interval must be positive, got %d", ErrInvalidParameters, p.FireInterval)
	case p.Damage.Low < 0 || p.Damage.Low > p.Damage.High:
		return fmt.Errorf("%w: damage range [%d, %d]", ErrInvalidParameters, p.Damage.Low, p.Damage.High)
	}
	return nil
}

// Parameters holds both sides' derived numbers. Side A is the attacker passed to Derive.
// Parameters are read-only once derived.
type Parameters struct {
	SideA SideParameters `json:"sideA"`
	SideB SideParameters `json:"sideB"`
}

// Validate checks both sides.
func (p Parameters) Validate() error {
	if err := p.SideA.Validate(); err != nil {
		return fmt.Errorf("side A: %w", err)
	}
	if err := p.SideB.Validate(); err != nil {
		return fmt.Errorf("side B: %w", err)
	}
	return nil
}

// Side returns the parameters for the requested side.
func (p Parameters) Side(side Side) SideParameters {
	if side == SideB {
		return p.SideB
	}
	return p.SideA
}

// Derive computes both sides' effective parameters for one engagement. The derivation is
// symmetric: the defender's numbers are produced by the same rules with roles swapped.
func Derive(attacker, defender Unit, stance Stance) (Parameters, error) {
	if !stance.Valid() {
		return Parameters{}, fmt.Errorf("%w: unknown stance %d", ErrInvalidParameters, int(stance))
	}
	if err := attacker.Validate(); err != nil {
		return Parameters{}, fmt.Errorf("attacker: %w", err)
	}
	if err := defender.Validate(); err != nil {
		return Parameters{}, fmt.Errorf("defender: %w", err)
	}
	//1.- Derive each side against the other so armor and penetration pair up correctly.
	sideA, err := DeriveSide(attacker, defender, stance)
	if err != nil {
		return Parameters{}, fmt.Errorf("attacker: %w", err)
	}
	sideB, err := DeriveSide(defender, attacker, stance)
	if err != nil {
		return Parameters{}, fmt.Errorf("defender: %w", err)
	}
	return Parameters{SideA: sideA, SideB: sideB}, nil
}

// DeriveSide computes the parameters for self firing at other.
func DeriveSide(self, other Unit, stance Stance) (SideParameters, error) {
	hit, err := HitChance(self, stance)
	if err != nil {
		return SideParameters{}, err
	}
	crit, err := CritChance(self, other)
	if err != nil {
		return SideParameters{}, err
	}
	return SideParameters{
		StartHealth:  self.Health,
		Damage:       EffectiveDamage(self, other),
		Hit:          hit,
		Crit:         crit,
		FireInterval: self.Weapon.FireInterval,
	}, nil
}

// Mitigation is the fraction of self's damage absorbed by other's armor.
func Mitigation(self, other Unit) float64 {
	net := saturatingSub(other.Armor, self.EffectivePenetration())
	return float64(clampInt(net, 0, maxMitigationPercent)) / 100
}

// EffectiveDamage returns the mitigation and experience adjusted damage range.
func EffectiveDamage(self, other Unit) DamageRange {
	//1.- Scale the floor by armor mitigation and the 1% per kill experience bonus.
	floor := float64(self.Weapon.Damage) * (1 - Mitigation(self, other)) * (1 + float64(self.Kills)/100)
	low := int(math.Round(floor))
	//2.- The ceiling is a fixed spread over the rounded floor so low <= high always holds.
	high := int(math.Round(float64(low) * damageSpread))
	return DamageRange{Low: low, High: high}
}

// HitChance returns the stance and experience adjusted probability that self hits.
func HitChance(self Unit, stance Stance) (Probability, error) {
	percent := stance.adjustHitPercent(self.Weapon.HitChance)
	percent += min(self.Kills*killHitBonus, maxKillHitBonus)
	//1.- Clamp before building the ratio; only a logic error can make the ratio fail now.
	return NewProbabilityRatio(clampInt(percent, 0, 100), 100)
}

// CritChance returns the probability that a hit from self against other is critical.
func CritChance(self, other Unit) (Probability, error) {
	net := saturatingSub(self.EffectivePenetration(), other.Armor)
	return NewProbabilityRatio(clampInt(net, critFloor, critCeiling), critDenominator)
}
