// Package traits defines heritable numeric traits, their mutation policy and
// similarity metric.
package traits

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultMutationRate is used when a trait does not specify one.
const DefaultMutationRate = 0.1

// exponentialScale divides an Exp(1) draw's share of the range, so most
// exponential traits land near their minimum.
const exponentialScale = 1000

// Trait is an immutable trait definition.
type Trait struct {
	Name                 string
	Min, Max             float64
	IntegerOnly          bool
	MutationRate         float64
	ProportionalMutation bool // mutation step scales with the current value
	ExponentialRandom    bool // random values biased toward Min
}

// Range returns Max - Min.
func (t Trait) Range() float64 { return t.Max - t.Min }

// Clamp rounds integer traits and forces v into [Min, Max].
func (t Trait) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		v = t.Min
	}
	if t.IntegerOnly {
		v = math.Round(v)
	}
	return math.Max(t.Min, math.Min(t.Max, v))
}

// Random draws a fresh value from the trait's domain.
func (t Trait) Random(rng *rand.Rand) float64 {
	diff := t.Range()
	var v float64
	switch {
	case t.ExponentialRandom:
		e := distuv.Exponential{Rate: 1, Src: rng}.Rand()
		v = t.Min + math.Min(e*diff/exponentialScale, diff)
	case t.IntegerOnly:
		v = t.Min + float64(rng.IntN(int(diff)+1))
	default:
		v = t.Min + rng.Float64()*diff
	}
	return t.Clamp(v)
}

// Mutate returns a perturbed copy of v.
func (t Trait) Mutate(rng *rand.Rand, v float64) float64 {
	base := t.Range()
	if t.ProportionalMutation {
		base = v
	}
	rate := t.MutationRate
	if rate == 0 {
		rate = DefaultMutationRate
	}
	v += 2 * (0.5 - rng.Float64()) * base * rate
	return t.Clamp(v)
}

// Similarity returns a score in [0, 1]; identical values score 1.
func (t Trait) Similarity(a, b float64) float64 {
	if a == b {
		return 1
	}
	if t.ProportionalMutation {
		lo, hi := math.Min(a, b), math.Max(a, b)
		if hi <= 0 {
			return 0
		}
		return math.Max(lo/hi, 0)
	}
	r := t.Range()
	if r == 0 {
		return 1
	}
	return math.Max(1-math.Abs(a-b)/r, 0)
}
