package combat

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	_ "embed"
)

// WeaponSpec is a named catalog weapon.
type WeaponSpec struct {
	Name string `json:"name"`
	Weapon
}

// HullSpec is a named catalog hull without its weapon.
type HullSpec struct {
	Name        string  `json:"name"`
	Health      float64 `json:"health"`
	Armor       int     `json:"armor"`
	Penetration int     `json:"penetration"`
}

// BalanceCatalog mirrors the structure of catalog.json.
type BalanceCatalog struct {
	Weapons map[string]WeaponSpec `json:"weapons"`
	Hulls   map[string]HullSpec   `json:"hulls"`
}

// Clone produces a copy so callers cannot mutate the cached catalog.
func (c BalanceCatalog) Clone() BalanceCatalog {
	clone := BalanceCatalog{
		Weapons: make(map[string]WeaponSpec, len(c.Weapons)),
		Hulls:   make(map[string]HullSpec, len(c.Hulls)),
	}
	for key, value := range c.Weapons {
		clone.Weapons[key] = value
	}
	for key, value := range c.Hulls {
		clone.Hulls[key] = value
	}
	return clone
}

// WeaponIDs lists the weapon identifiers in sorted order.
func (c BalanceCatalog) WeaponIDs() []string {
	ids := make([]string, 0, len(c.Weapons))
	for id := range c.Weapons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HullIDs lists the hull identifiers in sorted order.
func (c BalanceCatalog) HullIDs() []string {
	ids := make([]string, 0, len(c.Hulls))
	for id := range c.Hulls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var (
	catalogOnce sync.Once
	catalogData BalanceCatalog
	catalogErr  error
)

//go:embed catalog.json
var catalogPayload []byte

// Catalog exposes the parsed balance catalog.
func Catalog() BalanceCatalog {
	catalogOnce.Do(func() {
		//1.- Parse the embedded payload once and validate every weapon so lookups never fail later.
		catalogErr = json.Unmarshal(catalogPayload, &catalogData)
		if catalogErr != nil {
			return
		}
		for id, spec := range catalogData.Weapons {
			if err := spec.Weapon.Validate(); err != nil {
				catalogErr = fmt.Errorf("catalog weapon %q: %w", id, err)
				return
			}
		}
	})
	//2.- A broken embedded catalog is a build defect, not a runtime condition.
	if catalogErr != nil {
		panic(catalogErr)
	}
	return catalogData.Clone()
}

// LookupWeapon returns the catalog weapon with the given identifier.
func LookupWeapon(id string) (WeaponSpec, error) {
	spec, ok := Catalog().Weapons[id]
	if !ok {
		return WeaponSpec{}, fmt.Errorf("unknown weapon %q", id)
	}
	return spec, nil
}

// LookupHull returns the catalog hull with the given identifier.
func LookupHull(id string) (HullSpec, error) {
	spec, ok := Catalog().Hulls[id]
	if !ok {
		return HullSpec{}, fmt.Errorf("unknown hull %q", id)
	}
	return spec, nil
}

// BuildUnit assembles a validated unit from catalog identifiers.
func BuildUnit(hullID, weaponID string, kills int) (Unit, error) {
	hull, err := LookupHull(hullID)
	if err != nil {
		return Unit{}, err
	}
	weapon, err := LookupWeapon(weaponID)
	if err != nil {
		return Unit{}, err
	}
	return NewUnit(hull.Health, hull.Armor, hull.Penetration, kills, weapon.Weapon)
}
