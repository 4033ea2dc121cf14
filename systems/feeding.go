package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/lifesim/components"
)

// Contact pairs a creature with a resource under its mouth.
type Contact struct {
	Creature ecs.Entity
	Resource ecs.Entity
}

// Feeding finds creatures whose head touches a plant or a carcass.
type Feeding struct {
	space *Space
	reach float64 // head must be within reach * resource radius

	creatures *ecs.Filter4[components.Position, components.Rotation, components.Body, components.Vision]
	neighbor  []Neighbor
	contacts  []Contact
}

// NewFeeding creates the contact detector. reach scales the resource radius.
func NewFeeding(space *Space, reach float64) *Feeding {
	return &Feeding{
		space:     space,
		reach:     reach,
		creatures: ecs.NewFilter4[components.Position, components.Rotation, components.Body, components.Vision](space.world),
	}
}

// Contacts returns at most one contact per creature: the closest resource its
// head is touching. The returned slice is reused by the next call.
func (f *Feeding) Contacts() []Contact {
	f.contacts = f.contacts[:0]
	search := f.reach * f.space.MaxRadius()

	query := f.creatures.Query()
	for query.Next() {
		pos, rot, body, _ := query.Get()
		if body.Radius <= 0 {
			continue
		}
		hx, hy := headPosition(pos.X, pos.Y, rot.Angle, body.Radius)
		self := query.Entity()

		f.neighbor = f.space.Near(f.neighbor[:0], hx, hy, search, self)
		best := ecs.Entity{}
		bestDist := -1.0
		for _, n := range f.neighbor {
			if !f.space.Handle(n.E).IsResource() {
				continue
			}
			limit := f.reach * f.space.Radius(n.E)
			if n.DistSq >= limit*limit {
				continue
			}
			if bestDist < 0 || n.DistSq < bestDist {
				best, bestDist = n.E, n.DistSq
			}
		}
		if bestDist >= 0 {
			f.contacts = append(f.contacts, Contact{Creature: self, Resource: best})
		}
	}
	return f.contacts
}
