// Package materials defines material kinds, quantity containers and the
// stoichiometric conversion rules that transform them.
package materials

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/lifesim/config"
)

var (
	// ErrUnknownKind is returned when a configuration references a material that was not defined.
	ErrUnknownKind = errors.New("unknown material kind")
	// ErrPlantCount is returned when the material set does not contain exactly one plant material.
	ErrPlantCount = errors.New("exactly one plant material is required")
	// ErrDuplicateKind is returned when two materials share a name.
	ErrDuplicateKind = errors.New("duplicate material kind")
	// ErrInvalidKind is returned for physically meaningless coefficients.
	ErrInvalidKind = errors.New("invalid material kind")
)

// Kind is an immutable material descriptor shared by pointer.
type Kind struct {
	Index               int
	Name                string
	Mass                float64 // mass per unit
	Density             float64
	StructureEfficiency float64
	EnergyEfficiency    float64
	IsWaste             bool
	IsPlant             bool
	Waste               *Kind // byproduct when consumed for energy
	Undigested          *Kind // form delivered to an eater
	DecompositionRate   float64
	IgnoreForChild      bool
}

// IsStructure reports whether the kind contributes to body structure.
func (k *Kind) IsStructure() bool { return k.StructureEfficiency > 0 }

// IsEnergySource reports whether the kind can be burned for energy.
func (k *Kind) IsEnergySource() bool { return k.EnergyEfficiency > 0 }

func (k *Kind) String() string { return k.Name }

// Registry is the fixed, process-wide set of material kinds.
type Registry struct {
	kinds     []*Kind
	byName    map[string]*Kind
	energy    []*Kind
	structure []*Kind
	waste     []*Kind
	plant     *Kind

	massMultiplier float64

	// Per-kind coefficient vectors aligned with Quantities.qty.
	massVec   []float64
	volumeVec []float64
	structVec []float64
	energyVec []float64
}

// NewRegistry builds a registry from configuration. Any inconsistency is an
// error; callers must not continue with a partial registry.
func NewRegistry(cfgs []config.MaterialConfig, massMultiplier float64) (*Registry, error) {
	if massMultiplier <= 0 {
		return nil, fmt.Errorf("%w: mass multiplier must be positive, got %v", ErrInvalidKind, massMultiplier)
	}

	r := &Registry{
		kinds:          make([]*Kind, 0, len(cfgs)),
		byName:         make(map[string]*Kind, len(cfgs)),
		massMultiplier: massMultiplier,
	}

	for i, c := range cfgs {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: material %d has no name", ErrInvalidKind, i)
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKind, c.Name)
		}
		if c.Mass <= 0 || c.Density <= 0 {
			return nil, fmt.Errorf("%w: %q needs positive mass and density", ErrInvalidKind, c.Name)
		}
		if c.StructureEfficiency < 0 || c.EnergyEfficiency < 0 {
			return nil, fmt.Errorf("%w: %q has negative efficiency", ErrInvalidKind, c.Name)
		}
		if c.DecompositionRate < 0 || c.DecompositionRate > 1 {
			return nil, fmt.Errorf("%w: %q decomposition rate %v outside [0,1]", ErrInvalidKind, c.Name, c.DecompositionRate)
		}
		k := &Kind{
			Index:               i,
			Name:                c.Name,
			Mass:                c.Mass,
			Density:             c.Density,
			StructureEfficiency: c.StructureEfficiency,
			EnergyEfficiency:    c.EnergyEfficiency,
			IsWaste:             c.IsWaste,
			IsPlant:             c.IsPlant,
			DecompositionRate:   c.DecompositionRate,
			IgnoreForChild:      c.IgnoreForChild,
		}
		r.kinds = append(r.kinds, k)
		r.byName[k.Name] = k
	}

	// Second pass resolves references so definition order does not matter.
	for i, c := range cfgs {
		k := r.kinds[i]
		if c.Waste != "" {
			w, ok := r.byName[c.Waste]
			if !ok {
				return nil, fmt.Errorf("%w: %q (waste of %q)", ErrUnknownKind, c.Waste, c.Name)
			}
			k.Waste = w
		}
		if c.Undigested != "" {
			u, ok := r.byName[c.Undigested]
			if !ok {
				return nil, fmt.Errorf("%w: %q (undigested form of %q)", ErrUnknownKind, c.Undigested, c.Name)
			}
			k.Undigested = u
		}
	}

	var plants int
	for _, k := range r.kinds {
		if k.IsPlant {
			plants++
			r.plant = k
		}
		if k.IsEnergySource() {
			r.energy = append(r.energy, k)
		}
		if k.IsStructure() {
			r.structure = append(r.structure, k)
		}
		if k.IsWaste {
			r.waste = append(r.waste, k)
		}
		r.massVec = append(r.massVec, k.Mass)
		r.volumeVec = append(r.volumeVec, k.Mass/k.Density)
		r.structVec = append(r.structVec, k.StructureEfficiency)
		r.energyVec = append(r.energyVec, k.EnergyEfficiency)
	}
	if plants != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrPlantCount, plants)
	}

	return r, nil
}

// Len returns the number of kinds.
func (r *Registry) Len() int { return len(r.kinds) }

// Kinds returns all kinds in index order. The slice must not be modified.
func (r *Registry) Kinds() []*Kind { return r.kinds }

// Lookup returns the kind with the given name.
func (r *Registry) Lookup(name string) (*Kind, bool) {
	k, ok := r.byName[name]
	return k, ok
}

// Energy returns the energy-source kinds.
func (r *Registry) Energy() []*Kind { return r.energy }

// Structure returns the structural kinds.
func (r *Registry) Structure() []*Kind { return r.structure }

// Waste returns the waste kinds.
func (r *Registry) Waste() []*Kind { return r.waste }

// Plant returns the single plant material.
func (r *Registry) Plant() *Kind { return r.plant }

// MassMultiplier converts summed unit mass into body mass and volume into area.
func (r *Registry) MassMultiplier() float64 { return r.massMultiplier }
