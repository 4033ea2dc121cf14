package game

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pthm-cable/lifesim/persist"
	"github.com/pthm-cable/lifesim/telemetry"
)

// flushTelemetry closes the stats window when it is due: stats and perf go
// to the log and CSV output, the gauges are refreshed and bookmarks are
// checked.
func (w *World) flushTelemetry(tickTime time.Duration) {
	if !w.collector.ShouldFlush(w.tick) {
		return
	}

	pop, members := w.samplePopulation()
	stats := w.collector.Flush(w.tick, pop)
	perfStats := w.perf.Stats()
	w.metrics.Observe(w.tick, pop, tickTime)

	if w.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}
	if w.onStats != nil {
		w.onStats(stats)
	}

	if err := w.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := w.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
	if err := w.output.WriteSpecies(w.speciesRows(members)); err != nil {
		slog.Error("failed to write species", "error", err)
	}

	for _, bm := range w.bookmarks.Check(stats) {
		if w.logStats {
			bm.LogBookmark()
		}
		if err := w.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		w.saveBookmark(bm)
	}
}

// samplePopulation collects the per-creature samples for a stats window and
// the member count of every active species.
func (w *World) samplePopulation() (telemetry.Population, map[string]int) {
	n := len(w.creatures)
	pop := telemetry.Population{
		Creatures:    n,
		Plants:       w.resources.PlantCount,
		Meats:        w.resources.MeatCount,
		SpeciesTotal: w.lineage.Len(),
		Masses:       make([]float64, 0, n),
		Energies:     make([]float64, 0, n),
		Structures:   make([]float64, 0, n),
		Generations:  make([]float64, 0, n),
		Ages:         make([]float64, 0, n),
	}
	for _, c := range w.creatures {
		mass := c.Materials.Mass()
		pop.Masses = append(pop.Masses, mass)
		pop.Energies = append(pop.Energies, c.Energy())
		pop.Structures = append(pop.Structures, c.Structure())
		pop.Generations = append(pop.Generations, float64(c.Generation))
		pop.Ages = append(pop.Ages, float64(c.Age))
		w.lifetimes.UpdateMass(c.ID, mass)
	}

	members := w.lifetimes.ActiveSpecies()
	delete(members, "")
	pop.SpeciesActive = len(members)
	pop.PlantMatter, pop.MeatMass = w.resources.Totals()
	return pop, members
}

// speciesRows lists active species in creation order.
func (w *World) speciesRows(members map[string]int) []telemetry.SpeciesRow {
	var rows []telemetry.SpeciesRow
	for _, sp := range w.lineage.All() {
		count := members[sp.Name]
		if count == 0 {
			continue
		}
		rows = append(rows, telemetry.SpeciesRow{
			WindowEnd: w.tick,
			Species:   sp.Name,
			Ancestor:  sp.AncestorName(),
			Members:   count,
			BornTick:  sp.BornTick,
		})
	}
	return rows
}

// saveBookmark stores a snapshot of the moment a bookmark fired next to the
// CSV output.
func (w *World) saveBookmark(bm telemetry.Bookmark) {
	if w.output == nil {
		return
	}
	snap := w.Snapshot()
	snap.Bookmark = &bm
	path, err := persist.SaveDir(snap, filepath.Join(w.output.Dir(), "snapshots"))
	if err != nil {
		slog.Error("failed to save bookmark snapshot", "error", err)
		return
	}
	slog.Info("snapshot_saved", "tick", w.tick, "path", path, "bookmark", string(bm.Type))
}
