package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/lifesim/components"
	"github.com/pthm-cable/lifesim/config"
)

// Bounds represents the simulation bounds.
type Bounds struct {
	Width, Height float64
}

// Space owns the ECS world holding every body: creatures, plants and meat.
// It integrates motion, keeps the spatial grid current and answers the
// position and velocity queries the creature core needs.
type Space struct {
	world  *ecs.World
	bounds Bounds
	cfg    config.PhysicsConfig

	creatureMapper *ecs.Map6[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Vision,
		components.Handle,
	]
	plantMapper *ecs.Map4[components.Position, components.Body, components.Handle, components.Plant]
	meatMapper  *ecs.Map4[components.Position, components.Body, components.Handle, components.Meat]

	moving *ecs.Filter4[components.Position, components.Velocity, components.Rotation, components.Body]
	bodies *ecs.Filter2[components.Position, components.Body]

	posMap    *ecs.Map1[components.Position]
	velMap    *ecs.Map1[components.Velocity]
	rotMap    *ecs.Map1[components.Rotation]
	bodyMap   *ecs.Map1[components.Body]
	visionMap *ecs.Map1[components.Vision]
	handleMap *ecs.Map1[components.Handle]
	plantMap  *ecs.Map1[components.Plant]
	meatMap   *ecs.Map1[components.Meat]

	grid      *SpatialGrid
	gridDirty bool
	maxRadius float64
	hits      []ecs.Entity
}

// NewSpace creates an empty space of the given size.
func NewSpace(bounds Bounds, cfg config.PhysicsConfig) *Space {
	world := ecs.NewWorld()
	return &Space{
		world:  world,
		bounds: bounds,
		cfg:    cfg,

		creatureMapper: ecs.NewMap6[
			components.Position,
			components.Velocity,
			components.Rotation,
			components.Body,
			components.Vision,
			components.Handle,
		](world),
		plantMapper: ecs.NewMap4[components.Position, components.Body, components.Handle, components.Plant](world),
		meatMapper:  ecs.NewMap4[components.Position, components.Body, components.Handle, components.Meat](world),

		moving: ecs.NewFilter4[components.Position, components.Velocity, components.Rotation, components.Body](world),
		bodies: ecs.NewFilter2[components.Position, components.Body](world),

		posMap:    ecs.NewMap1[components.Position](world),
		velMap:    ecs.NewMap1[components.Velocity](world),
		rotMap:    ecs.NewMap1[components.Rotation](world),
		bodyMap:   ecs.NewMap1[components.Body](world),
		visionMap: ecs.NewMap1[components.Vision](world),
		handleMap: ecs.NewMap1[components.Handle](world),
		plantMap:  ecs.NewMap1[components.Plant](world),
		meatMap:   ecs.NewMap1[components.Meat](world),

		grid: NewSpatialGrid(bounds.Width, bounds.Height, cfg.GridCellSize),
	}
}

// Bounds returns the size of the space.
func (s *Space) Bounds() Bounds { return s.bounds }

// AddCreature spawns a creature body. Its shape is set by the caller through
// SetShape once the creature knows its radius.
func (s *Space) AddCreature(id uint32, x, y, angle float64) ecs.Entity {
	x, y = s.clampInside(x, y, 0)
	pos := components.Position{X: x, Y: y}
	vel := components.Velocity{}
	rot := components.Rotation{Angle: angle}
	body := components.Body{}
	vision := components.Vision{}
	handle := components.Handle{ID: id, Kind: components.KindCreature}
	s.gridDirty = true
	return s.creatureMapper.NewEntity(&pos, &vel, &rot, &body, &vision, &handle)
}

// Remove destroys an entity of any kind. Removing a dead entity is a no-op.
func (s *Space) Remove(e ecs.Entity) {
	if !s.world.Alive(e) {
		return
	}
	s.world.RemoveEntity(e)
	s.gridDirty = true
}

// Alive reports whether e still exists.
func (s *Space) Alive(e ecs.Entity) bool {
	return s.world.Alive(e)
}

// Handle returns the kind and id stored on e.
func (s *Space) Handle(e ecs.Entity) components.Handle {
	return *s.handleMap.Get(e)
}

// Position returns the center of e.
func (s *Space) Position(e ecs.Entity) (float64, float64) {
	p := s.posMap.Get(e)
	return p.X, p.Y
}

// SetPosition moves e, keeping it inside the bounds.
func (s *Space) SetPosition(e ecs.Entity, x, y float64) {
	p := s.posMap.Get(e)
	p.X, p.Y = s.clampInside(x, y, s.bodyMap.Get(e).Radius)
	s.gridDirty = true
}

// Radius returns the collision radius of e.
func (s *Space) Radius(e ecs.Entity) float64 {
	return s.bodyMap.Get(e).Radius
}

// Angle returns the heading of a creature.
func (s *Space) Angle(e ecs.Entity) float64 {
	return s.rotMap.Get(e).Angle
}

// Velocity returns the linear velocity of a creature.
func (s *Space) Velocity(e ecs.Entity) (float64, float64) {
	v := s.velMap.Get(e)
	return v.X, v.Y
}

// AngularVelocity returns the angular velocity of a creature.
func (s *Space) AngularVelocity(e ecs.Entity) float64 {
	return s.rotMap.Get(e).AngVel
}

// SetMotion overwrites the heading and both velocities of a creature.
func (s *Space) SetMotion(e ecs.Entity, angle, vx, vy, angVel float64) {
	rot := s.rotMap.Get(e)
	rot.Angle, rot.AngVel = angle, angVel
	v := s.velMap.Get(e)
	v.X, v.Y = vx, vy
}

// Push adds a velocity delta along the creature's heading and an angular
// velocity delta, scaled by the configured gains.
func (s *Space) Push(e ecs.Entity, dv, dw float64) {
	rot := s.rotMap.Get(e)
	v := s.velMap.Get(e)
	dv *= s.cfg.SteeringGain
	v.X += dv * math.Cos(rot.Angle)
	v.Y += dv * math.Sin(rot.Angle)
	rot.AngVel += dw * s.cfg.TurnGain
}

// SetShape updates a body's radius and mass.
func (s *Space) SetShape(e ecs.Entity, radius, mass float64) {
	b := s.bodyMap.Get(e)
	b.Radius, b.Mass = radius, mass
}

// SetVision updates a creature's view cone.
func (s *Space) SetVision(e ecs.Entity, distance, halfAngle float64) {
	v := s.visionMap.Get(e)
	v.Distance, v.HalfAngle = distance, halfAngle
}

// Step integrates creature motion over one tick and returns the creatures
// that touched a wall. The returned slice is reused by the next call.
func (s *Space) Step() []ecs.Entity {
	dt := s.cfg.DT
	damping := math.Pow(s.cfg.Damping, dt)
	angDamping := math.Pow(s.cfg.AngularDamping, dt)
	s.hits = s.hits[:0]
	s.gridDirty = true

	query := s.moving.Query()
	for query.Next() {
		pos, vel, rot, body := query.Get()

		vel.X = finite(vel.X)
		vel.Y = finite(vel.Y)
		rot.AngVel = finite(rot.AngVel)

		if speed := math.Hypot(vel.X, vel.Y); s.cfg.MaxSpeed > 0 && speed > s.cfg.MaxSpeed {
			scale := s.cfg.MaxSpeed / speed
			vel.X *= scale
			vel.Y *= scale
		}
		if s.cfg.MaxAngularSpeed > 0 {
			rot.AngVel = clampFloat(rot.AngVel, -s.cfg.MaxAngularSpeed, s.cfg.MaxAngularSpeed)
		}

		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
		rot.Angle = normalizeAngle(rot.Angle + rot.AngVel*dt)

		vel.X *= damping
		vel.Y *= damping
		rot.AngVel *= angDamping

		if s.bounce(pos, vel, body.Radius) {
			s.hits = append(s.hits, query.Entity())
		}
	}
	return s.hits
}

// bounce reflects a body off the walls and reports whether it touched one.
func (s *Space) bounce(pos *components.Position, vel *components.Velocity, radius float64) bool {
	e := s.cfg.WallElasticity
	hit := false
	if pos.X < radius {
		pos.X = radius
		vel.X = math.Abs(vel.X) * e
		hit = true
	} else if pos.X > s.bounds.Width-radius {
		pos.X = s.bounds.Width - radius
		vel.X = -math.Abs(vel.X) * e
		hit = true
	}
	if pos.Y < radius {
		pos.Y = radius
		vel.Y = math.Abs(vel.Y) * e
		hit = true
	} else if pos.Y > s.bounds.Height-radius {
		pos.Y = s.bounds.Height - radius
		vel.Y = -math.Abs(vel.Y) * e
		hit = true
	}
	return hit
}

func (s *Space) clampInside(x, y, radius float64) (float64, float64) {
	r := math.Min(radius, math.Min(s.bounds.Width, s.bounds.Height)/2)
	return clampFloat(x, r, s.bounds.Width-r), clampFloat(y, r, s.bounds.Height-r)
}

// RebuildGrid reinserts every body into the spatial grid.
func (s *Space) RebuildGrid() {
	s.gridDirty = false
	s.maxRadius = 0
	s.grid.Clear()
	query := s.bodies.Query()
	for query.Next() {
		pos, body := query.Get()
		s.grid.Insert(query.Entity(), pos.X, pos.Y)
		s.maxRadius = math.Max(s.maxRadius, body.Radius)
	}
}

// MaxRadius returns the largest body radius as of the last grid rebuild.
func (s *Space) MaxRadius() float64 {
	if s.gridDirty {
		s.RebuildGrid()
	}
	return s.maxRadius
}

// Near appends the bodies whose centers lie within radius of (x, y). The grid
// is rebuilt first if anything moved, spawned or died since the last query.
func (s *Space) Near(dst []Neighbor, x, y, radius float64, exclude ecs.Entity) []Neighbor {
	if s.gridDirty {
		s.RebuildGrid()
	}
	return s.grid.QueryRadiusInto(dst, x, y, radius, exclude, s.posMap)
}

// finite maps NaN and infinities to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
