package traits

import (
	"math/rand/v2"
	"sort"

	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/materials"
)

// Index addresses a trait within a Set and a Genome.
type Index int

// Base trait indices; every Set starts with these.
const (
	Speed Index = iota
	EatingSpeed
	VisionDistance
	VisionAngle
	WalkPriority
	RunPriority
	FastRunPriority
	IdlePriority
	RotatePriority
)

// None marks a material or rule without a trait.
const None Index = -1

// Genome holds one value per trait in a Set.
type Genome []float64

// Get returns the value at i.
func (g Genome) Get(i Index) float64 { return g[i] }

// Clone returns an independent copy.
func (g Genome) Clone() Genome {
	c := make(Genome, len(g))
	copy(c, g)
	return c
}

// Set is the interned list of traits for one material configuration.
type Set struct {
	traits []Trait
	byName map[string]Index

	// Indexed by material kind index or rule index.
	childQty        []Index
	reproduceFactor []Index
	energyPriority  []Index
	ruleRate        []Index
	wasteKeep       []Index
}

// NewSet expands the base traits with the per-material and per-rule traits
// the registry and rules call for.
func NewSet(reg *materials.Registry, rules []*materials.Rule, cfg config.TraitsConfig) *Set {
	rate := cfg.MutationRate
	s := &Set{byName: make(map[string]Index)}

	unit := func(name string) Trait {
		return Trait{Name: name, Min: 0, Max: 1, MutationRate: rate}
	}
	priority := func(name string, maxValue float64) Trait {
		return Trait{Name: name, Min: 0, Max: maxValue, IntegerOnly: true, MutationRate: rate}
	}

	s.add(unit("speed"))
	s.add(unit("eating_speed"))
	s.add(unit("vision_distance"))
	s.add(unit("vision_angle"))
	s.add(priority("walk_priority", cfg.PriorityMax))
	s.add(priority("run_priority", cfg.PriorityMax))
	s.add(priority("fast_run_priority", cfg.PriorityMax))
	s.add(priority("idle_priority", cfg.PriorityMax))
	s.add(priority("rotate_priority", cfg.PriorityMax))

	n := reg.Len()
	s.childQty = fill(n)
	s.reproduceFactor = fill(n)
	s.energyPriority = fill(n)
	s.wasteKeep = fill(n)
	s.ruleRate = fill(len(rules))

	for _, k := range reg.Kinds() {
		if k.IgnoreForChild {
			continue
		}
		s.childQty[k.Index] = s.add(Trait{
			Name:                 k.Name + "_child_qty",
			Min:                  cfg.ChildQtyMin,
			Max:                  cfg.ChildQtyMax,
			IntegerOnly:          true,
			MutationRate:         rate,
			ProportionalMutation: true,
			ExponentialRandom:    true,
		})
		s.reproduceFactor[k.Index] = s.add(Trait{
			Name:                 k.Name + "_reproduce_factor",
			Min:                  cfg.ReproduceFactorMin,
			Max:                  cfg.ReproduceFactorMax,
			MutationRate:         rate,
			ProportionalMutation: true,
		})
	}

	// A single energy source needs no split.
	if len(reg.Energy()) > 1 {
		for _, k := range reg.Energy() {
			s.energyPriority[k.Index] = s.add(priority(k.Name+"_energy_priority", cfg.EnergyPriorityMax))
		}
	}

	for _, r := range rules {
		s.ruleRate[r.Index] = s.add(priority(r.Name+"_rate", cfg.RuleRateMax))
	}

	for _, k := range reg.Waste() {
		s.wasteKeep[k.Index] = s.add(Trait{
			Name:         k.Name + "_waste_keep",
			Min:          0,
			Max:          cfg.WasteKeepMax,
			MutationRate: rate,
		})
	}

	return s
}

func fill(n int) []Index {
	out := make([]Index, n)
	for i := range out {
		out[i] = None
	}
	return out
}

func (s *Set) add(t Trait) Index {
	i := Index(len(s.traits))
	s.traits = append(s.traits, t)
	s.byName[t.Name] = i
	return i
}

// Len returns the number of traits.
func (s *Set) Len() int { return len(s.traits) }

// Trait returns the definition at i.
func (s *Set) Trait(i Index) Trait { return s.traits[i] }

// Traits returns all definitions in index order. The slice must not be modified.
func (s *Set) Traits() []Trait { return s.traits }

// Lookup resolves a trait name.
func (s *Set) Lookup(name string) (Index, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// ChildQty returns the offspring endowment trait for k, or None.
func (s *Set) ChildQty(k *materials.Kind) Index { return s.childQty[k.Index] }

// ReproduceFactor returns the reproduction threshold multiplier trait for k, or None.
func (s *Set) ReproduceFactor(k *materials.Kind) Index { return s.reproduceFactor[k.Index] }

// EnergyPriority returns the consumption priority trait for k, or None.
func (s *Set) EnergyPriority(k *materials.Kind) Index { return s.energyPriority[k.Index] }

// RuleRate returns the conversion rate trait for r.
func (s *Set) RuleRate(r *materials.Rule) Index { return s.ruleRate[r.Index] }

// WasteKeep returns the fraction of body mass of waste k tolerated before excretion, or None.
func (s *Set) WasteKeep(k *materials.Kind) Index { return s.wasteKeep[k.Index] }

// Random returns a genome with every trait drawn fresh.
func (s *Set) Random(rng *rand.Rand) Genome {
	g := make(Genome, len(s.traits))
	for i, t := range s.traits {
		g[i] = t.Random(rng)
	}
	return g
}

// Mutate returns a mutated copy of parent; parent is not modified.
func (s *Set) Mutate(rng *rand.Rand, parent Genome) Genome {
	g := make(Genome, len(s.traits))
	for i, t := range s.traits {
		g[i] = t.Mutate(rng, parent[i])
	}
	return g
}

// Map returns a name-keyed copy of g for persistence.
func (s *Set) Map(g Genome) map[string]float64 {
	m := make(map[string]float64, len(s.traits))
	for i, t := range s.traits {
		m[t.Name] = g[i]
	}
	return m
}

// FromMap rebuilds a genome from a name-keyed mapping. Missing traits take
// their domain minimum; both missing and unrecognized names are returned.
func (s *Set) FromMap(m map[string]float64) (g Genome, missing, unknown []string) {
	g = make(Genome, len(s.traits))
	for i, t := range s.traits {
		v, ok := m[t.Name]
		if !ok {
			missing = append(missing, t.Name)
			v = t.Min
		}
		g[i] = t.Clamp(v)
	}
	for name := range m {
		if _, ok := s.byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return g, missing, unknown
}
