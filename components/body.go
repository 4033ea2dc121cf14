package components

import "github.com/pthm-cable/lifesim/materials"

// Body holds the collision shape of an entity.
type Body struct {
	Radius float64
	Mass   float64
}

// Plant is an environmental food source. Only the external stock can be
// eaten; the internal stock trickles outward over time.
type Plant struct {
	External  float64
	Internal  float64
	Countdown int // ticks until the next internal -> external conversion
}

// Total returns both stocks combined.
func (p *Plant) Total() float64 { return p.External + p.Internal }

// Meat holds the materials left by a dead creature.
type Meat struct {
	Materials *materials.Quantities
}
