package main

import (
	"github.com/pthm-cable/lifesim/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64

	field func(cfg *config.Config) *float64
}

// ParamVector holds the set of tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector builds the tunable set for cfg: the metabolism multipliers,
// plant growth and the speed of every conversion rule. Defaults come from
// cfg, widened so the bounds always contain them.
func NewParamVector(cfg *config.Config) *ParamVector {
	pv := &ParamVector{}
	add := func(name string, lo, hi float64, field func(*config.Config) *float64) {
		def := *field(cfg)
		lo, hi = min(lo, def), max(hi, def)
		pv.Specs = append(pv.Specs, ParamSpec{Name: name, Min: lo, Max: hi, Default: def, field: field})
	}

	add("mass_multiplier", 0.00002, 0.0005, func(c *config.Config) *float64 { return &c.Creature.MassMultiplier })
	add("energy_consume_multiplier", 0.2, 3.0, func(c *config.Config) *float64 { return &c.Creature.EnergyConsumeMultiplier })
	add("eating_multiplier", 0.2, 5.0, func(c *config.Config) *float64 { return &c.Creature.EatingMultiplier })
	add("eat_reach", 1.0, 2.0, func(c *config.Config) *float64 { return &c.Creature.EatReach })
	add("mutation_rate", 0.01, 0.3, func(c *config.Config) *float64 { return &c.Traits.MutationRate })
	add("plant_convert_fraction", 0.02, 0.5, func(c *config.Config) *float64 { return &c.Resources.ConvertFraction })

	for _, r := range cfg.Rules {
		name := r.Name
		add("rule_speed."+name, 0.1, 5.0, func(c *config.Config) *float64 {
			return &c.Rules[c.Derived.RuleIndex[name]].Speed
		})
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize maps raw values onto [0,1].
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return out
}

// Denormalize maps [0,1] values back to raw values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return out
}

// Clamp bounds every value to its parameter range.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return out
}

// ApplyToConfig writes clamped values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		*pv.Specs[i].field(cfg) = v
	}
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = *spec.field(cfg)
	}
	return out
}
