package creature

import (
	"log/slog"

	"github.com/pthm-cable/lifesim/materials"
)

// Snapshot is the persisted metabolic and genetic state of a creature.
type Snapshot struct {
	ID         uint32             `json:"id"`
	ParentID   uint32             `json:"parent_id,omitempty"`
	Generation int                `json:"generation"`
	Age        int                `json:"age"`
	Children   int                `json:"children"`
	Species    string             `json:"species,omitempty"`
	Traits     map[string]float64 `json:"traits"`
	Materials  map[string]float64 `json:"materials"`
	Eating     int                `json:"eating,omitempty"`
	Spent      int                `json:"spent,omitempty"`
}

// Snapshot captures the creature's persistent state.
func (c *Creature) Snapshot() Snapshot {
	s := Snapshot{
		ID:         c.ID,
		ParentID:   c.ParentID,
		Generation: c.Generation,
		Age:        c.Age,
		Children:   c.Children,
		Traits:     c.ctx.Traits.Map(c.Genome),
		Materials:  c.Materials.Map(),
		Eating:     c.eating,
		Spent:      c.spent,
	}
	if c.Species != nil {
		s.Species = c.Species.Name
	}
	return s
}

// Restore rebuilds a creature from s. Species must already be restored into
// the lineage; an unknown species name leaves the creature without one.
// Missing traits take their domain minimum and missing materials are zero.
// Unrecognized names are logged and dropped.
func Restore(ctx *Context, s Snapshot) *Creature {
	g, missing, unknownTraits := ctx.Traits.FromMap(s.Traits)
	q, unknownMaterials := materials.FromMap(ctx.Registry, s.Materials)

	if len(missing) > 0 {
		slog.Debug("snapshot_traits_defaulted", "creature", s.ID, "traits", missing)
	}
	if len(unknownTraits) > 0 {
		slog.Warn("snapshot_unknown_traits", "creature", s.ID, "traits", unknownTraits)
	}
	if len(unknownMaterials) > 0 {
		slog.Warn("snapshot_unknown_materials", "creature", s.ID, "materials", unknownMaterials)
	}

	sp := ctx.Lineage.Lookup(s.Species)
	if sp == nil && s.Species != "" {
		slog.Warn("snapshot_unknown_species", "creature", s.ID, "species", s.Species)
	}

	c := New(ctx, s.ID, g, sp, q)
	c.ParentID = s.ParentID
	c.Generation = s.Generation
	c.Age = s.Age
	c.Children = s.Children
	c.eating = max(s.Eating, 0)
	c.spent = max(s.Spent, 0)
	return c
}
