// Package creature implements the per-tick lifecycle of a single creature:
// conversion rules, energy upkeep, reproduction, steering, waste excretion
// and growth. Physics and the environment are reached through the Body and
// Food interfaces.
package creature

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/lifesim/behavior"
	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/materials"
	"github.com/pthm-cable/lifesim/species"
	"github.com/pthm-cable/lifesim/traits"
)

// Body is the physics side of a creature.
type Body interface {
	Position() (x, y float64)
	Angle() float64
	Velocity() (vx, vy float64)
	AngularVelocity() float64
	// ApplySteering adds dv along the heading and dw to the angular velocity.
	ApplySteering(dv, dw float64)
	SetShape(radius, mass float64)
	SetVision(distance, halfAngle float64)
}

// Food is a resource a creature can bite.
type Food interface {
	behavior.Resource
	// Consume removes up to amount of mass and returns what the eater receives.
	Consume(amount float64) *materials.Quantities
}

// Context holds the shared, read-mostly state every creature needs.
type Context struct {
	Registry *materials.Registry
	Rules    []*materials.Rule
	Traits   *traits.Set
	Lineage  *species.Lineage
	Config   config.CreatureConfig
	Rand     *rand.Rand
}

// Creature is one organism. It is not safe for concurrent use.
type Creature struct {
	ID         uint32
	ParentID   uint32
	Generation int
	Age        int
	Children   int

	Genome    traits.Genome
	Species   *species.Species
	Materials *materials.Quantities
	Behaviors *behavior.Stack

	action    behavior.Action
	structure float64
	energy    float64
	eating    int
	spent     int // energy owed from eating and steering, paid with the next upkeep
	radius    float64

	body Body
	ctx  *Context
}

// New creates a creature owning q. Attach a body before calling Act.
func New(ctx *Context, id uint32, genome traits.Genome, sp *species.Species, q *materials.Quantities) *Creature {
	c := &Creature{
		ID:        id,
		Genome:    genome,
		Species:   sp,
		Materials: q,
		ctx:       ctx,
	}
	c.Behaviors = behavior.NewStack(behavior.NewBasic(c.priorities()))
	c.structure = q.StructureScore()
	c.energy = q.EnergyScore()
	c.radius = q.Radius()
	return c
}

// Random creates a creature with a fresh genome founding its own species.
func Random(ctx *Context, id uint32, q *materials.Quantities) *Creature {
	g := ctx.Traits.Random(ctx.Rand)
	return New(ctx, id, g, ctx.Lineage.Found(g, nil), q)
}

func (c *Creature) priorities() behavior.Priorities {
	g := c.Genome
	return behavior.Priorities{
		Walk:    int(g.Get(traits.WalkPriority)),
		Run:     int(g.Get(traits.RunPriority)),
		FastRun: int(g.Get(traits.FastRunPriority)),
		Idle:    int(g.Get(traits.IdlePriority)),
		Rotate:  int(g.Get(traits.RotatePriority)),
	}
}

// Attach binds the creature to its physics body and pushes its shape.
func (c *Creature) Attach(b Body) {
	c.body = b
	c.radius = c.Materials.Radius()
	c.pushShape(true)
}

// Body returns the attached physics body.
func (c *Creature) Body() Body { return c.body }

// Trait returns the genome value at i.
func (c *Creature) Trait(i traits.Index) float64 { return c.Genome.Get(i) }

// Structure returns the structure score cached at the last tick.
func (c *Creature) Structure() float64 { return c.structure }

// Energy returns the energy score cached at the last tick.
func (c *Creature) Energy() float64 { return c.energy }

// Action returns the current action, or nil.
func (c *Creature) Action() behavior.Action { return c.action }

// StopAction drops the current action, for example after hitting a wall.
func (c *Creature) StopAction() { c.action = nil }

// Position implements behavior.Self.
func (c *Creature) Position() (float64, float64) { return c.body.Position() }

// HeadPosition returns the point one radius ahead along the heading.
func (c *Creature) HeadPosition() (float64, float64) {
	x, y := c.body.Position()
	a := c.body.Angle()
	return x + c.radius*math.Cos(a), y + c.radius*math.Sin(a)
}

// Angle implements behavior.Self.
func (c *Creature) Angle() float64 { return c.body.Angle() }

// Velocity implements behavior.Self.
func (c *Creature) Velocity() (float64, float64) { return c.body.Velocity() }

// AngularVelocity implements behavior.Self.
func (c *Creature) AngularVelocity() float64 { return c.body.AngularVelocity() }

// Radius implements behavior.Self.
func (c *Creature) Radius() float64 { return c.radius }

// SpeedTrait implements behavior.Self.
func (c *Creature) SpeedTrait() float64 { return c.Genome.Get(traits.Speed) }

// Eating reports whether the creature is still digesting its last bite.
func (c *Creature) Eating() bool { return c.eating > 0 }

// VisionAlert tells the active behavior another creature came into view.
func (c *Creature) VisionAlert(other behavior.Self) {
	c.handleAlert(c.Behaviors.VisionAlert(c, other))
}

// VisionResourceAlert tells the active behavior a resource came into view.
func (c *Creature) VisionResourceAlert(r behavior.Resource) {
	c.handleAlert(c.Behaviors.VisionResourceAlert(c, r))
}

// SoundAlert tells the active behavior a noise was heard at (x, y).
func (c *Creature) SoundAlert(x, y float64) {
	c.handleAlert(c.Behaviors.SoundAlert(c, x, y))
}

func (c *Creature) handleAlert(a behavior.Action) {
	if c.Behaviors.Changed() {
		c.action = nil
	}
	if a != nil {
		c.action = a
	}
}

// pushShape sends the body its mass every time and its radius and vision
// cone when the radius moved past the shape tolerance or force is set.
func (c *Creature) pushShape(force bool) {
	if c.body == nil {
		return
	}
	radius := c.Materials.Radius()
	tol := c.ctx.Config.ShapeTolerance
	if force || !withinTolerance(radius, c.radius, tol) {
		c.radius = radius
		d, half := VisionCone(radius, c.Genome.Get(traits.VisionDistance), c.Genome.Get(traits.VisionAngle))
		c.body.SetVision(d, half)
	}
	c.body.SetShape(c.radius, c.Materials.BodyMass())
}

// withinTolerance reports whether a and b differ by at most tol relative to
// the larger of the two.
func withinTolerance(a, b, tol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol*math.Max(math.Abs(a), math.Abs(b))
}

// Vision cone geometry in terms of the vision traits.
const (
	visionDistanceRadii = 10  // reach in body radii at vision_distance = 1
	visionAngleBase     = 10  // degrees of full cone at vision_angle = 0
	visionAngleSpan     = 210 // extra degrees at vision_angle = 1
)

// VisionCone returns the reach beyond the body and the half-angle of the view
// cone for a creature of the given radius and vision traits.
func VisionCone(radius, distanceTrait, angleTrait float64) (distance, halfAngle float64) {
	distance = visionDistanceRadii * radius * distanceTrait
	halfAngle = math.Pi * (visionAngleBase + visionAngleSpan*angleTrait) / 360
	return distance, halfAngle
}
