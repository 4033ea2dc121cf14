package materials

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pthm-cable/lifesim/config"
)

// BaseSpeedMultiplier scales every rule's reaction rate.
const BaseSpeedMultiplier = 1e-4

// Amount is a kind with a stoichiometric quantity.
type Amount struct {
	Kind *Kind
	Qty  float64
}

// Catalyst is a kind whose presence speeds up a rule.
type Catalyst struct {
	Kind   *Kind
	Effect float64
}

// CombineFunc reduces the enabled rate factors into one.
type CombineFunc func(factors []float64) float64

// CombineMin never reacts faster than the slowest constraint.
func CombineMin(factors []float64) float64 {
	m := math.Inf(1)
	for _, f := range factors {
		m = math.Min(m, f)
	}
	return m
}

// CombineMax reacts as fast as the loosest constraint allows.
func CombineMax(factors []float64) float64 {
	m := math.Inf(-1)
	for _, f := range factors {
		m = math.Max(m, f)
	}
	return m
}

// CombineMean averages the factors.
func CombineMean(factors []float64) float64 {
	var sum float64
	for _, f := range factors {
		sum += f
	}
	return sum / float64(len(factors))
}

// CombineProduct multiplies the factors.
func CombineProduct(factors []float64) float64 {
	p := 1.0
	for _, f := range factors {
		p *= f
	}
	return p
}

var combineFuncs = map[string]CombineFunc{
	"min":     CombineMin,
	"max":     CombineMax,
	"mean":    CombineMean,
	"product": CombineProduct,
}

// Rule is an immutable stoichiometric conversion.
type Rule struct {
	Index                int
	Name                 string
	Inputs               []Amount
	Outputs              []Amount
	Catalysts            []Catalyst
	StructureMultiplier  float64 // 0 disables the structure factor
	IngredientMultiplier float64 // 0 disables the ingredient factor
	Speed                float64

	combine CombineFunc
}

// NewRules resolves rule configuration against a registry.
func NewRules(reg *Registry, cfgs []config.RuleConfig) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))

	for i, c := range cfgs {
		if c.Name == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate rule %q", c.Name)
		}
		seen[c.Name] = true

		if len(c.Inputs) == 0 {
			return nil, fmt.Errorf("rule %q has no inputs", c.Name)
		}
		inputs, err := resolveAmounts(reg, c.Name, c.Inputs)
		if err != nil {
			return nil, err
		}
		outputs, err := resolveAmounts(reg, c.Name, c.Outputs)
		if err != nil {
			return nil, err
		}

		catalysts := make([]Catalyst, 0, len(c.Catalysts))
		for _, cc := range c.Catalysts {
			k, ok := reg.Lookup(cc.Material)
			if !ok {
				return nil, fmt.Errorf("rule %q catalyst: %w: %q", c.Name, ErrUnknownKind, cc.Material)
			}
			catalysts = append(catalysts, Catalyst{Kind: k, Effect: cc.Effect})
		}

		combine, ok := combineFuncs[c.Combine]
		if !ok {
			return nil, fmt.Errorf("rule %q: unknown combine function %q", c.Name, c.Combine)
		}

		structMult, ingredientMult := 1.0, 1.0
		if c.StructureMultiplier != nil {
			structMult = *c.StructureMultiplier
		}
		if c.IngredientMultiplier != nil {
			ingredientMult = *c.IngredientMultiplier
		}

		rules = append(rules, &Rule{
			Index:                i,
			Name:                 c.Name,
			Inputs:               inputs,
			Outputs:              outputs,
			Catalysts:            catalysts,
			StructureMultiplier:  structMult,
			IngredientMultiplier: ingredientMult,
			Speed:                c.Speed,
			combine:              combine,
		})
	}

	return rules, nil
}

func resolveAmounts(reg *Registry, rule string, cfgs []config.AmountConfig) ([]Amount, error) {
	out := make([]Amount, 0, len(cfgs))
	for _, a := range cfgs {
		k, ok := reg.Lookup(a.Material)
		if !ok {
			return nil, fmt.Errorf("rule %q: %w: %q", rule, ErrUnknownKind, a.Material)
		}
		if a.Qty <= 0 {
			return nil, fmt.Errorf("rule %q: %q needs a positive quantity", rule, a.Material)
		}
		out = append(out, Amount{Kind: k, Qty: a.Qty})
	}
	return out, nil
}

// MaxReactions returns how many whole reactions the scarcest input allows.
func (r *Rule) MaxReactions(q *Quantities) float64 {
	maxReactions := math.Inf(1)
	for _, in := range r.Inputs {
		n := math.Floor(q.Get(in.Kind) / in.Qty)
		maxReactions = math.Min(maxReactions, n)
	}
	if maxReactions < 0 || math.IsInf(maxReactions, 1) {
		return 0
	}
	return maxReactions
}

// Reactions returns the whole number of reactions Convert would apply.
func (r *Rule) Reactions(structure float64, q *Quantities, rate float64) int {
	maxReactions := r.MaxReactions(q)
	if maxReactions <= 0 {
		return 0
	}

	var buf [3]float64
	factors := buf[:0]
	if len(r.Catalysts) > 0 {
		var catalyst float64
		for _, c := range r.Catalysts {
			catalyst += q.Get(c.Kind) * c.Effect
		}
		factors = append(factors, catalyst)
	}
	if r.StructureMultiplier != 0 {
		factors = append(factors, structure*r.StructureMultiplier)
	}
	if r.IngredientMultiplier != 0 {
		factors = append(factors, maxReactions*r.IngredientMultiplier)
	}

	reactions := math.Ceil(rate * r.Speed * BaseSpeedMultiplier * r.combine(factors))
	if math.IsNaN(reactions) || reactions <= 0 {
		return 0
	}
	return int(math.Min(reactions, maxReactions))
}

// Convert applies the rule to q in place and returns the number of reactions.
// It does not touch q when no reaction is possible.
func (r *Rule) Convert(structure float64, q *Quantities, rate float64) int {
	n := r.Reactions(structure, q, rate)
	if n <= 0 {
		return 0
	}
	reactions := float64(n)
	for _, in := range r.Inputs {
		q.Add(in.Kind, -reactions*in.Qty)
	}
	for _, out := range r.Outputs {
		q.Add(out.Kind, reactions*out.Qty)
	}
	return n
}

func (r *Rule) String() string {
	format := func(amounts []Amount) string {
		parts := make([]string, len(amounts))
		for i, a := range amounts {
			parts[i] = fmt.Sprintf("%g*%s", a.Qty, a.Kind.Name)
		}
		return strings.Join(parts, " + ")
	}
	return fmt.Sprintf("%s: %s -> %s", r.Name, format(r.Inputs), format(r.Outputs))
}

// ErrUnknownRule is returned by RuleByName on an unknown name.
var ErrUnknownRule = errors.New("unknown rule")

// RuleByName finds a rule by name.
func RuleByName(rules []*Rule, name string) (*Rule, error) {
	for _, r := range rules {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
}
