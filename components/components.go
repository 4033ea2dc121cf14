// Package components defines ECS components for the simulation.
package components

// Kind distinguishes the families of bodies stored in the ECS world.
type Kind uint8

const (
	KindCreature Kind = iota
	KindPlant
	KindMeat
)

func (k Kind) String() string {
	switch k {
	case KindCreature:
		return "creature"
	case KindPlant:
		return "plant"
	case KindMeat:
		return "meat"
	}
	return "unknown"
}

// Handle links an entity back to the simulation object that owns it.
type Handle struct {
	ID   uint32
	Kind Kind
}

// IsResource reports whether the entity can be eaten.
func (h Handle) IsResource() bool {
	return h.Kind == KindPlant || h.Kind == KindMeat
}
