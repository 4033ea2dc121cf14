package materials

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Quantities maps each kind of a registry to an amount. Aggregates are cached
// and recomputed lazily after any write.
type Quantities struct {
	reg *Registry
	qty []float64

	dirty     bool
	mass      float64
	volume    float64
	structure float64
	energy    float64
}

// NewQuantities returns an empty container for the registry's kinds.
func NewQuantities(reg *Registry) *Quantities {
	return &Quantities{
		reg: reg,
		qty: make([]float64, reg.Len()),
	}
}

// Registry returns the registry the container is indexed by.
func (q *Quantities) Registry() *Registry { return q.reg }

// Get returns the quantity of k.
func (q *Quantities) Get(k *Kind) float64 {
	return q.qty[k.Index]
}

// Set overwrites the quantity of k.
func (q *Quantities) Set(k *Kind, v float64) {
	q.qty[k.Index] = v
	q.dirty = true
}

// Add adds v (possibly negative) to the quantity of k.
func (q *Quantities) Add(k *Kind, v float64) {
	if v == 0 {
		return
	}
	q.qty[k.Index] += v
	q.dirty = true
}

func (q *Quantities) refresh() {
	if !q.dirty {
		return
	}
	q.mass = floats.Dot(q.reg.massVec, q.qty)
	q.volume = floats.Dot(q.reg.volumeVec, q.qty)
	q.structure = floats.Dot(q.reg.structVec, q.qty)
	q.energy = floats.Dot(q.reg.energyVec, q.qty)
	q.dirty = false
}

// Mass returns Σ mass_per_unit·qty.
func (q *Quantities) Mass() float64 {
	q.refresh()
	return q.mass
}

// BodyMass returns the mass in physics units.
func (q *Quantities) BodyMass() float64 {
	return q.Mass() * q.reg.massMultiplier
}

// Radius returns the collision radius implied by the contents' volume.
func (q *Quantities) Radius() float64 {
	q.refresh()
	if q.volume <= 0 {
		return 0
	}
	return math.Sqrt(q.volume * q.reg.massMultiplier)
}

// StructureScore returns Σ structure_efficiency·qty.
func (q *Quantities) StructureScore() float64 {
	q.refresh()
	return q.structure
}

// EnergyScore returns Σ energy_efficiency·qty.
func (q *Quantities) EnergyScore() float64 {
	q.refresh()
	return q.energy
}

// Merge adds other·mult into q. Both containers must share a registry.
func (q *Quantities) Merge(other *Quantities, mult float64) {
	if other == nil || mult == 0 {
		return
	}
	floats.AddScaled(q.qty, mult, other.qty)
	q.dirty = true
}

// Clone returns an independent copy.
func (q *Quantities) Clone() *Quantities {
	c := &Quantities{reg: q.reg, qty: make([]float64, len(q.qty)), dirty: true}
	copy(c.qty, q.qty)
	return c
}

// Clamp zeroes negative and non-finite entries and returns how many were fixed.
func (q *Quantities) Clamp() int {
	var fixed int
	for i, v := range q.qty {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			q.qty[i] = 0
			fixed++
		}
	}
	if fixed > 0 {
		q.dirty = true
	}
	return fixed
}

// Total returns the sum of all quantities regardless of kind.
func (q *Quantities) Total() float64 {
	return floats.Sum(q.qty)
}

// IsEmpty reports whether every quantity is zero or less.
func (q *Quantities) IsEmpty() bool {
	return floats.Max(q.qty) <= 0
}

// Map returns a name-keyed copy for persistence.
func (q *Quantities) Map() map[string]float64 {
	m := make(map[string]float64, len(q.qty))
	for _, k := range q.reg.kinds {
		m[k.Name] = q.qty[k.Index]
	}
	return m
}

// FromMap builds a container from a name-keyed mapping. Missing kinds are
// zero; names not in the registry are returned so the caller can report them.
func FromMap(reg *Registry, m map[string]float64) (*Quantities, []string) {
	q := NewQuantities(reg)
	var unknown []string
	for name, v := range m {
		k, ok := reg.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		q.Set(k, v)
	}
	q.Clamp()
	sort.Strings(unknown)
	return q, unknown
}
