package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/lifesim/components"
	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/materials"
)

// minMeatMass is the mass below which a carcass counts as gone.
const minMeatMass = 1

// Resources manages plants and meat: spawning, the internal-to-external plant
// conversion, carcass decomposition and the bites creatures take out of them.
type Resources struct {
	space *Space
	reg   *materials.Registry
	cfg   config.ResourcesConfig

	plants *ecs.Filter4[components.Position, components.Body, components.Handle, components.Plant]
	meats  *ecs.Filter4[components.Position, components.Body, components.Handle, components.Meat]

	nextID uint32

	// Scratch buffers reused across ticks.
	doomed   []ecs.Entity
	sprouts  []sprout
	neighbor []Neighbor

	PlantCount int
	MeatCount  int
}

type sprout struct {
	x, y     float64
	internal float64
}

// NewResources creates the resource manager on top of space.
func NewResources(space *Space, reg *materials.Registry, cfg config.ResourcesConfig) *Resources {
	return &Resources{
		space:  space,
		reg:    reg,
		cfg:    cfg,
		plants: ecs.NewFilter4[components.Position, components.Body, components.Handle, components.Plant](space.world),
		meats:  ecs.NewFilter4[components.Position, components.Body, components.Handle, components.Meat](space.world),
	}
}

// PlantRadius returns the radius of a plant holding total plant matter.
func (r *Resources) PlantRadius(total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Sqrt(total / r.cfg.RadiusDivisor)
}

// SpawnPlant adds a plant with the given external and internal stocks.
func (r *Resources) SpawnPlant(x, y, external, internal float64) ecs.Entity {
	r.nextID++
	plant := components.Plant{External: external, Internal: internal, Countdown: r.cfg.ConvertInterval}
	body := components.Body{Radius: r.PlantRadius(plant.Total()), Mass: plant.Total() * r.reg.Plant().Mass * r.reg.MassMultiplier()}
	x, y = r.space.clampInside(x, y, 0)
	pos := components.Position{X: x, Y: y}
	handle := components.Handle{ID: r.nextID, Kind: components.KindPlant}
	r.PlantCount++
	r.space.gridDirty = true
	return r.space.plantMapper.NewEntity(&pos, &body, &handle, &plant)
}

// SpawnMeat adds a carcass holding q. The container is owned by the carcass
// afterwards.
func (r *Resources) SpawnMeat(x, y float64, q *materials.Quantities) ecs.Entity {
	r.nextID++
	meat := components.Meat{Materials: q}
	body := components.Body{Radius: q.Radius(), Mass: q.BodyMass()}
	x, y = r.space.clampInside(x, y, 0)
	pos := components.Position{X: x, Y: y}
	handle := components.Handle{ID: r.nextID, Kind: components.KindMeat}
	r.MeatCount++
	r.space.gridDirty = true
	return r.space.meatMapper.NewEntity(&pos, &body, &handle, &meat)
}

// Plant returns the plant component of e, or nil if e is not a live plant.
func (r *Resources) Plant(e ecs.Entity) *components.Plant {
	if !r.space.Alive(e) || r.space.Handle(e).Kind != components.KindPlant {
		return nil
	}
	return r.space.plantMap.Get(e)
}

// Meat returns the meat component of e, or nil if e is not a live carcass.
func (r *Resources) Meat(e ecs.Entity) *components.Meat {
	if !r.space.Alive(e) || r.space.Handle(e).Kind != components.KindMeat {
		return nil
	}
	return r.space.meatMap.Get(e)
}

// Consume removes up to amount of mass from e and returns it as the materials
// an eater receives. Plants only give from their external stock. Meat gives a
// proportional share, with each kind delivered in its undigested form when it
// has one. Returns nil when e is gone or empty.
func (r *Resources) Consume(e ecs.Entity, amount float64) *materials.Quantities {
	if amount <= 0 {
		return nil
	}
	if p := r.Plant(e); p != nil {
		return r.consumePlant(e, p, amount)
	}
	if m := r.Meat(e); m != nil {
		return r.consumeMeat(e, m, amount)
	}
	return nil
}

func (r *Resources) consumePlant(e ecs.Entity, p *components.Plant, amount float64) *materials.Quantities {
	kind := r.reg.Plant()
	units := math.Floor(math.Min(amount/kind.Mass, p.External))
	if units <= 0 {
		return nil
	}
	p.External -= units
	r.refreshPlant(e, p)

	out := materials.NewQuantities(r.reg)
	out.Add(kind, units)
	return out
}

func (r *Resources) consumeMeat(e ecs.Entity, m *components.Meat, amount float64) *materials.Quantities {
	mass := m.Materials.Mass()
	if mass <= 0 {
		return nil
	}
	share := math.Min(1, amount/mass)

	out := materials.NewQuantities(r.reg)
	for _, k := range r.reg.Kinds() {
		take := m.Materials.Get(k) * share
		if take <= 0 {
			continue
		}
		m.Materials.Add(k, -take)
		if u := k.Undigested; u != nil {
			out.Add(u, take*k.Mass/u.Mass)
		} else {
			out.Add(k, take)
		}
	}
	m.Materials.Clamp()
	r.refreshMeat(e, m)
	return out
}

func (r *Resources) refreshPlant(e ecs.Entity, p *components.Plant) {
	b := r.space.bodyMap.Get(e)
	total := p.Total()
	b.Radius = r.PlantRadius(total)
	b.Mass = total * r.reg.Plant().Mass * r.reg.MassMultiplier()
}

func (r *Resources) refreshMeat(e ecs.Entity, m *components.Meat) {
	b := r.space.bodyMap.Get(e)
	b.Radius = m.Materials.Radius()
	b.Mass = m.Materials.BodyMass()
}

// Step advances plant growth and carcass decomposition by one tick, then
// removes resources that have run out. Decomposed carcass mass sprouts as
// new internal plant stock where the carcass lay.
func (r *Resources) Step(tick int) {
	r.doomed = r.doomed[:0]
	r.sprouts = r.sprouts[:0]
	plantKind := r.reg.Plant()

	pq := r.plants.Query()
	for pq.Next() {
		_, body, _, plant := pq.Get()
		plant.Countdown--
		if plant.Countdown <= 0 {
			plant.Countdown = r.cfg.ConvertInterval
			moved := math.Min(plant.Internal, r.cfg.ConvertFraction*math.Max(plant.External, plant.Internal))
			plant.Internal -= moved
			plant.External += moved
		}
		total := plant.Total()
		if total <= 0 {
			r.doomed = append(r.doomed, pq.Entity())
			continue
		}
		body.Radius = r.PlantRadius(total)
		body.Mass = total * plantKind.Mass * r.reg.MassMultiplier()
	}

	mq := r.meats.Query()
	for mq.Next() {
		pos, body, _, meat := mq.Get()
		var decomposed float64
		for _, k := range r.reg.Kinds() {
			if k.DecompositionRate <= 0 {
				continue
			}
			lost := meat.Materials.Get(k) * k.DecompositionRate
			if lost <= 0 {
				continue
			}
			meat.Materials.Add(k, -lost)
			decomposed += lost * k.Mass
		}
		if decomposed > 0 {
			r.addSprout(pos.X, pos.Y, decomposed/plantKind.Mass)
		}
		if meat.Materials.Mass() < minMeatMass {
			r.doomed = append(r.doomed, mq.Entity())
			continue
		}
		body.Radius = meat.Materials.Radius()
		body.Mass = meat.Materials.BodyMass()
	}

	r.removeDoomed()

	for _, s := range r.sprouts {
		r.Deposit(s.x, s.y, s.internal)
	}

	if r.cfg.MergePlants && r.cfg.ConvertInterval > 0 && tick%r.cfg.ConvertInterval == 0 {
		r.mergePlants()
	}
}

// addSprout queues decomposed mass for deposit once the queries are closed.
func (r *Resources) addSprout(x, y, internal float64) {
	r.sprouts = append(r.sprouts, sprout{x: x, y: y, internal: internal})
}

// Deposit returns plant matter to the world at (x, y): it joins the internal
// stock of a plant overlapping that point, or sprouts a new plant.
func (r *Resources) Deposit(x, y, internal float64) {
	if internal <= 0 {
		return
	}
	r.neighbor = r.space.Near(r.neighbor[:0], x, y, r.space.MaxRadius(), ecs.Entity{})
	for _, n := range r.neighbor {
		p := r.Plant(n.E)
		if p == nil {
			continue
		}
		if rad := r.space.Radius(n.E); n.DistSq <= rad*rad {
			p.Internal += internal
			r.refreshPlant(n.E, p)
			return
		}
	}
	r.SpawnPlant(x, y, 0, internal)
}

// mergePlants folds each plant into an overlapping larger one.
func (r *Resources) mergePlants() {
	r.doomed = r.doomed[:0]
	merged := make(map[ecs.Entity]bool)

	type plantRef struct {
		e      ecs.Entity
		id     uint32
		x, y   float64
		radius float64
	}
	var all []plantRef
	q := r.plants.Query()
	for q.Next() {
		pos, body, handle, _ := q.Get()
		all = append(all, plantRef{e: q.Entity(), id: handle.ID, x: pos.X, y: pos.Y, radius: body.Radius})
	}

	for _, small := range all {
		if merged[small.e] {
			continue
		}
		r.neighbor = r.space.Near(r.neighbor[:0], small.x, small.y, small.radius+r.space.MaxRadius(), small.e)
		for _, n := range r.neighbor {
			if merged[n.E] {
				continue
			}
			big := r.Plant(n.E)
			if big == nil {
				continue
			}
			bigRadius := r.space.Radius(n.E)
			touch := small.radius + bigRadius
			if n.DistSq >= touch*touch || bigRadius < small.radius {
				continue
			}
			if bigRadius == small.radius && r.space.Handle(n.E).ID < small.id {
				continue
			}
			p := r.space.plantMap.Get(small.e)
			big.External += p.External
			big.Internal += p.Internal
			r.refreshPlant(n.E, big)
			merged[small.e] = true
			r.doomed = append(r.doomed, small.e)
			break
		}
	}
	r.removeDoomed()
}

func (r *Resources) removeDoomed() {
	for _, e := range r.doomed {
		if !r.space.Alive(e) {
			continue
		}
		switch r.space.Handle(e).Kind {
		case components.KindPlant:
			r.PlantCount--
		case components.KindMeat:
			r.MeatCount--
		}
		r.space.Remove(e)
	}
	r.doomed = r.doomed[:0]
}

// Ref returns a handle to resource e usable by creature behaviors.
func (r *Resources) Ref(e ecs.Entity) *ResourceRef {
	return &ResourceRef{res: r, E: e}
}

// ResourceRef is a food source seen or touched by a creature.
type ResourceRef struct {
	res *Resources
	E   ecs.Entity
}

// Position returns the resource center.
func (f *ResourceRef) Position() (float64, float64) {
	if !f.res.space.Alive(f.E) {
		return 0, 0
	}
	return f.res.space.Position(f.E)
}

// Radius returns the current radius, zero once the resource is gone.
func (f *ResourceRef) Radius() float64 {
	if !f.res.space.Alive(f.E) {
		return 0
	}
	return f.res.space.Radius(f.E)
}

// Alive reports whether the resource still exists.
func (f *ResourceRef) Alive() bool {
	return f.res.space.Alive(f.E)
}

// Consume removes up to amount of mass and returns what the eater receives.
func (f *ResourceRef) Consume(amount float64) *materials.Quantities {
	return f.res.Consume(f.E, amount)
}

// Kind returns whether the resource is a plant or meat.
func (f *ResourceRef) Kind() components.Kind {
	return f.res.space.Handle(f.E).Kind
}

// EachPlant calls fn for every plant. fn must not add or remove entities.
func (r *Resources) EachPlant(fn func(x, y float64, p *components.Plant)) {
	q := r.plants.Query()
	for q.Next() {
		pos, _, _, plant := q.Get()
		fn(pos.X, pos.Y, plant)
	}
}

// EachMeat calls fn for every carcass. fn must not add or remove entities.
func (r *Resources) EachMeat(fn func(x, y float64, m *components.Meat)) {
	q := r.meats.Query()
	for q.Next() {
		pos, _, _, meat := q.Get()
		fn(pos.X, pos.Y, meat)
	}
}

// Totals returns the plant matter units held by all plants and the mass
// held by all carcasses.
func (r *Resources) Totals() (plantMatter, meatMass float64) {
	r.EachPlant(func(_, _ float64, p *components.Plant) { plantMatter += p.Total() })
	r.EachMeat(func(_, _ float64, m *components.Meat) { meatMass += m.Materials.Mass() })
	return plantMatter, meatMass
}
