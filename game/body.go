package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/lifesim/systems"
)

// creatureBody binds a creature to its entity in the physics space.
type creatureBody struct {
	space *systems.Space
	e     ecs.Entity
}

func (b *creatureBody) Position() (float64, float64) { return b.space.Position(b.e) }

func (b *creatureBody) Angle() float64 { return b.space.Angle(b.e) }

func (b *creatureBody) Velocity() (float64, float64) { return b.space.Velocity(b.e) }

func (b *creatureBody) AngularVelocity() float64 { return b.space.AngularVelocity(b.e) }

func (b *creatureBody) ApplySteering(dv, dw float64) { b.space.Push(b.e, dv, dw) }

func (b *creatureBody) SetShape(radius, mass float64) { b.space.SetShape(b.e, radius, mass) }

func (b *creatureBody) SetVision(distance, halfAngle float64) {
	b.space.SetVision(b.e, distance, halfAngle)
}
