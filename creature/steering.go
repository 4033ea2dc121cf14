package creature

import (
	"math"

	"github.com/pthm-cable/lifesim/traits"
)

// steer follows the current action, asking the behavior stack for a new one
// when there is none, and turns the steering factors into paid-for motion.
func (c *Creature) steer() {
	if c.action == nil {
		c.action = c.Behaviors.Next(c, c.ctx.Rand, c.ctx.Config.MaxActionPicks)
		c.Behaviors.Changed()
		if c.action == nil {
			return
		}
	}

	s, ok := c.action.Step(c)
	if !ok {
		c.action = nil
		return
	}
	speed := clampFactor(s.Speed)
	turn := clampFactor(s.Turn)

	c.body.ApplySteering(c.speedDelta(speed), c.turnDelta(turn))
}

// structFactor is structure per unit of body mass.
func (c *Creature) structFactor() float64 {
	bm := c.Materials.BodyMass()
	if bm <= 0 {
		return 0
	}
	return c.ctx.Registry.MassMultiplier() * c.structure / bm
}

// speedDelta returns the velocity change for factor f in [-1, 1] and pays for
// it. Reversing is a quarter as strong. An unaffordable push is dropped.
func (c *Creature) speedDelta(f float64) float64 {
	if f == 0 {
		return 0
	}
	st := c.Genome.Get(traits.Speed)
	v := 50 * f * f * (st*c.structFactor() + 0.01)
	if f < 0 {
		v = -v
	}
	mass := c.Materials.BodyMass()
	cost := math.Floor(math.Abs(v*mass*f*(1+2*math.Abs(f-0.5))*math.Sqrt(st+0.01)) / 100)
	if !c.consumeEnergy(cost) {
		return 0
	}
	if f < 0 {
		v /= 4
	}
	return v
}

// turnDelta returns the angular velocity change for factor f in [-1, 1] and
// pays for it. Turning is stronger while moving fast.
func (c *Creature) turnDelta(f float64) float64 {
	if f == 0 {
		return 0
	}
	stf := math.Max(c.Genome.Get(traits.Speed)*c.structFactor()/100, 0)
	vx, vy := c.body.Velocity()
	w := f * f * (math.Hypot(vx, vy) + 40*math.Sqrt(stf) + 40) / 100
	if f < 0 {
		w = -w
	}
	mass := c.Materials.BodyMass()
	cost := math.Floor(math.Abs(math.Floor(w*mass*f*math.Sqrt(stf+0.2))) / 50)
	if !c.consumeEnergy(cost) {
		return 0
	}
	return w
}

// clampFactor limits a steering factor to [-1, 1] and zeroes NaN.
func clampFactor(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
