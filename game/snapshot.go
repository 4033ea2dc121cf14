package game

import (
	"log/slog"

	"github.com/pthm-cable/lifesim/components"
	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/creature"
	"github.com/pthm-cable/lifesim/materials"
	"github.com/pthm-cable/lifesim/persist"
)

// Snapshot captures everything needed to resume the run.
func (w *World) Snapshot() *persist.WorldSnapshot {
	b := w.space.Bounds()
	snap := &persist.WorldSnapshot{
		RunID:     w.runID,
		Seed:      w.seed,
		Tick:      w.tick,
		Width:     b.Width,
		Height:    b.Height,
		NextID:    w.nextID,
		Species:   make([]persist.SpeciesState, 0, w.lineage.Len()),
		Creatures: make([]persist.CreatureState, 0, len(w.creatures)),
	}

	for _, sp := range w.lineage.All() {
		snap.Species = append(snap.Species, persist.SpeciesState{
			Name:     sp.Name,
			Ancestor: sp.AncestorName(),
			Founding: w.traitSet.Map(sp.Founding),
			BornTick: sp.BornTick,
		})
	}

	for _, c := range w.creatures {
		body := c.Body()
		x, y := body.Position()
		vx, vy := body.Velocity()
		snap.Creatures = append(snap.Creatures, persist.CreatureState{
			Snapshot: c.Snapshot(),
			Body: persist.BodyState{
				X:       x,
				Y:       y,
				Angle:   body.Angle(),
				VX:      vx,
				VY:      vy,
				Angular: body.AngularVelocity(),
			},
		})
	}

	w.resources.EachPlant(func(x, y float64, p *components.Plant) {
		snap.Plants = append(snap.Plants, persist.PlantState{X: x, Y: y, External: p.External, Internal: p.Internal})
	})
	w.resources.EachMeat(func(x, y float64, m *components.Meat) {
		snap.Meats = append(snap.Meats, persist.MeatState{X: x, Y: y, Materials: m.Materials.Map()})
	})
	return snap
}

// Restore builds a world from a snapshot. Species are rebuilt before the
// creatures that reference them. An empty opts.RunID continues the
// snapshot's run and a zero opts.Seed reuses its seed.
func Restore(cfg *config.Config, opts Options, snap *persist.WorldSnapshot) (*World, error) {
	if opts.RunID == "" {
		opts.RunID = snap.RunID
	}
	if opts.Seed == 0 {
		opts.Seed = snap.Seed
	}
	w, err := newWorld(cfg, opts)
	if err != nil {
		return nil, err
	}
	if b := w.space.Bounds(); b.Width != snap.Width || b.Height != snap.Height {
		slog.Warn("snapshot_bounds_mismatch",
			"snapshot_width", snap.Width, "snapshot_height", snap.Height,
			"width", b.Width, "height", b.Height,
		)
	}

	w.tick = snap.Tick
	w.nextID = snap.NextID

	for _, s := range snap.Species {
		g, _, unknown := w.traitSet.FromMap(s.Founding)
		if len(unknown) > 0 {
			slog.Warn("snapshot_unknown_traits", "species", s.Name, "traits", unknown)
		}
		w.lineage.SetTick(s.BornTick)
		w.lineage.Restore(s.Name, g, s.Ancestor)
	}
	w.lineage.SetTick(w.tick)

	for _, cs := range snap.Creatures {
		c := creature.Restore(w.ctx, cs.Snapshot)
		e := w.spawnCreature(c, cs.Body.X, cs.Body.Y, cs.Body.Angle)
		w.space.SetMotion(e, cs.Body.Angle, cs.Body.VX, cs.Body.VY, cs.Body.Angular)
		w.nextID = max(w.nextID, c.ID)
	}

	for _, p := range snap.Plants {
		w.resources.SpawnPlant(p.X, p.Y, p.External, p.Internal)
	}
	for _, m := range snap.Meats {
		q, unknown := materials.FromMap(w.registry, m.Materials)
		if len(unknown) > 0 {
			slog.Warn("snapshot_unknown_materials", "meat", true, "materials", unknown)
		}
		w.resources.SpawnMeat(m.X, m.Y, q)
	}

	slog.Info("world_restored",
		"run_id", w.runID,
		"tick", w.tick,
		"species", w.lineage.Len(),
		"creatures", len(w.creatures),
		"plants", w.resources.PlantCount,
		"meats", w.resources.MeatCount,
	)
	return w, nil
}
