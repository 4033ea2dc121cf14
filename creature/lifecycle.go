package creature

import (
	"math"

	"github.com/pthm-cable/lifesim/materials"
	"github.com/pthm-cable/lifesim/species"
	"github.com/pthm-cable/lifesim/traits"
)

// eatRate scales how much mass a bite removes relative to body mass.
const eatRate = 50

// Birth describes an offspring produced during a tick. The caller assigns an
// id and a body.
type Birth struct {
	Genome     traits.Genome
	Species    *species.Species
	Materials  *materials.Quantities
	Generation int
	X, Y       float64
	Angle      float64
}

// Outcome reports what a tick did that the world has to act on.
type Outcome struct {
	Died      bool
	Remains   *materials.Quantities // materials left behind on death
	Birth     *Birth
	Excreted  float64 // waste mass dropped into the environment
	ExcreteX  float64
	ExcreteY  float64
	Reactions int
	Clamped   int // quantities that had to be reset to zero
}

// Act runs one tick: conversion rules, upkeep, reproduction, the eating
// countdown, steering, waste excretion and the shape update, in that order.
// A creature that cannot pay its upkeep dies and does nothing else.
func (c *Creature) Act() Outcome {
	var out Outcome
	c.Age++

	for _, r := range c.ctx.Rules {
		out.Reactions += r.Convert(c.structure, c.Materials, c.Genome.Get(c.ctx.Traits.RuleRate(r)))
	}
	c.refreshScores()

	cost := c.upkeep() + c.spent
	c.spent = 0
	if !c.consumeEnergy(float64(cost)) {
		out.Died = true
		out.Remains = c.Materials
		return out
	}

	if c.canReproduce() {
		out.Birth = c.reproduce()
	}

	if c.eating > 0 {
		c.eating--
	}

	c.steer()

	out.Excreted = c.excrete()
	if out.Excreted > 0 {
		out.ExcreteX, out.ExcreteY = c.tailPosition()
	}

	out.Clamped = c.Materials.Clamp()
	c.refreshScores()
	c.pushShape(false)
	return out
}

func (c *Creature) refreshScores() {
	c.structure = c.Materials.StructureScore()
	c.energy = c.Materials.EnergyScore()
}

// upkeep is the base energy cost of one tick: vision, speed and eating speed
// weighted by body mass.
func (c *Creature) upkeep() int {
	g := c.Genome
	vision := (0.1 + g.Get(traits.VisionDistance)) * (1 + g.Get(traits.VisionAngle))
	load := vision + g.Get(traits.Speed) + 0.2*g.Get(traits.EatingSpeed)
	base := math.Floor(c.Materials.BodyMass() * load / 100)
	return int(40*base*c.ctx.Config.EnergyConsumeMultiplier) + 1
}

// consumeEnergy burns cost energy from the energy-source materials, splitting
// it by the energy priority traits and redistributing shortfalls for a bounded
// number of passes. It mutates nothing and returns false when the creature
// does not hold enough energy in total.
func (c *Creature) consumeEnergy(cost float64) bool {
	if cost <= 0 {
		return true
	}
	if c.Materials.EnergyScore() < cost {
		return false
	}

	kinds := c.ctx.Registry.Energy()
	remaining := cost
	for pass := 0; pass < c.ctx.Config.EnergyPasses && remaining > 0; pass++ {
		shares := c.energyShares(kinds)
		if shares == nil {
			break
		}
		var paid float64
		for i, k := range kinds {
			if shares[i] == 0 {
				continue
			}
			units := math.Min(remaining*shares[i]/k.EnergyEfficiency, c.Materials.Get(k))
			c.burn(k, units)
			paid += units * k.EnergyEfficiency
		}
		remaining -= paid
	}

	// Whatever the split left unpaid is taken in registry order.
	for _, k := range kinds {
		if remaining <= 0 {
			break
		}
		units := math.Min(remaining/k.EnergyEfficiency, c.Materials.Get(k))
		c.burn(k, units)
		remaining -= units * k.EnergyEfficiency
	}
	c.energy = c.Materials.EnergyScore()
	return true
}

// energyShares returns each kind's fraction of a payment. Kinds that are
// used up get no share; nil means nothing is left to burn.
func (c *Creature) energyShares(kinds []*materials.Kind) []float64 {
	shares := make([]float64, len(kinds))
	var total float64
	var holders int
	for i, k := range kinds {
		if c.Materials.Get(k) <= 0 {
			continue
		}
		holders++
		w := 1.0
		if idx := c.ctx.Traits.EnergyPriority(k); idx != traits.None {
			w = c.Genome.Get(idx)
		}
		shares[i] = w
		total += w
	}
	if holders == 0 {
		return nil
	}
	if total == 0 {
		// Every holder has priority zero: split evenly.
		for i, k := range kinds {
			if c.Materials.Get(k) > 0 {
				shares[i] = 1
			}
		}
		total = float64(holders)
	}
	for i := range shares {
		shares[i] /= total
	}
	return shares
}

// burn removes units of k and adds the equivalent mass of its waste byproduct.
func (c *Creature) burn(k *materials.Kind, units float64) {
	if units <= 0 {
		return
	}
	c.Materials.Add(k, -units)
	if w := k.Waste; w != nil {
		c.Materials.Add(w, units*k.Mass/w.Mass)
	}
}

// canReproduce reports whether every material passed to offspring holds at
// least its child quantity times the reproduce factor.
func (c *Creature) canReproduce() bool {
	set := c.ctx.Traits
	found := false
	for _, k := range c.ctx.Registry.Kinds() {
		qi := set.ChildQty(k)
		if qi == traits.None {
			continue
		}
		found = true
		need := c.Genome.Get(qi) * c.Genome.Get(set.ReproduceFactor(k))
		if c.Materials.Get(k) < need {
			return false
		}
	}
	return found
}

// reproduce splits off the child's endowment and derives its genome and
// species. The child spawns behind the parent.
func (c *Creature) reproduce() *Birth {
	set := c.ctx.Traits
	q := materials.NewQuantities(c.ctx.Registry)
	for _, k := range c.ctx.Registry.Kinds() {
		qi := set.ChildQty(k)
		if qi == traits.None {
			continue
		}
		take := math.Min(c.Genome.Get(qi), c.Materials.Get(k))
		c.Materials.Add(k, -take)
		q.Set(k, take)
	}

	g := set.Mutate(c.ctx.Rand, c.Genome)
	c.Children++

	x, y := c.body.Position()
	a := c.body.Angle()
	d := c.ctx.Config.SpawnOffset * c.radius
	return &Birth{
		Genome:     g,
		Species:    c.ctx.Lineage.ChildSpecies(c.Species, g),
		Materials:  q,
		Generation: c.Generation + 1,
		X:          x - d*math.Cos(a),
		Y:          y - d*math.Sin(a),
		Angle:      a,
	}
}

// excrete drops waste held above the tolerated fraction of body mass and
// returns the mass removed.
func (c *Creature) excrete() float64 {
	total := c.Materials.Mass()
	cfg := c.ctx.Config
	var dropped float64
	for _, k := range c.ctx.Registry.Waste() {
		qty := c.Materials.Get(k)
		if qty < cfg.WasteMinQty {
			continue
		}
		keep := 0.0
		if idx := c.ctx.Traits.WasteKeep(k); idx != traits.None {
			keep = c.Genome.Get(idx)
		}
		mass := qty * k.Mass
		if mass <= (keep+cfg.WasteSlack)*total {
			continue
		}
		units := math.Floor((mass - keep*total) / k.Mass)
		if units > qty {
			units = qty
		}
		c.Materials.Add(k, -units)
		dropped += units * k.Mass
	}
	return dropped
}

func (c *Creature) tailPosition() (float64, float64) {
	x, y := c.body.Position()
	a := c.body.Angle()
	return x - c.radius*math.Cos(a), y - c.radius*math.Sin(a)
}

// Eat takes a bite out of f. The bite size grows with body mass and the
// eating speed trait; digesting it costs energy paid with the next upkeep.
// Returns the mass gained.
func (c *Creature) Eat(f Food) float64 {
	base := (0.3 + c.Genome.Get(traits.EatingSpeed)) / 3
	amount := c.Materials.BodyMass() * eatRate * c.ctx.Config.EatingMultiplier * base
	got := f.Consume(amount)
	if got == nil {
		return 0
	}
	gained := got.Mass()
	if gained <= 0 {
		return 0
	}
	c.Materials.Merge(got, 1)
	c.spent += int(base / 2 * gained)
	c.eating = c.ctx.Config.EatingTicks
	c.pushShape(false)
	return gained
}
