package game

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pthm-cable/lifesim/components"
	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/creature"
	"github.com/pthm-cable/lifesim/materials"
	"github.com/pthm-cable/lifesim/persist"
	"github.com/pthm-cable/lifesim/telemetry"
	"github.com/pthm-cable/lifesim/traits"
)

// testConfig returns the defaults shrunk to an empty 400x400 world.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Derived.WorldW, cfg.Derived.WorldH = 400, 400
	cfg.Population.Initial = 0
	cfg.Population.Min = 0
	cfg.Resources.InitialPlants = 0
	cfg.Resources.MinPlants = 0
	cfg.Telemetry.StatsWindow = 10
	cfg.Persistence.Interval = 0
	return cfg
}

func newTestWorld(t *testing.T, cfg *config.Config, opts Options) *World {
	t.Helper()
	w, err := NewWorld(cfg, opts)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func addCreature(t *testing.T, w *World, m map[string]float64, x, y, angle float64) *creature.Creature {
	t.Helper()
	q, unknown := materials.FromMap(w.registry, m)
	if len(unknown) > 0 {
		t.Fatalf("unknown materials %v", unknown)
	}
	c := creature.Random(w.ctx, w.newID(), q)
	w.spawnCreature(c, x, y, angle)
	return c
}

func plantExternal(w *World) []float64 {
	var out []float64
	w.resources.EachPlant(func(_, _ float64, p *components.Plant) { out = append(out, p.External) })
	return out
}

func TestNewWorldPopulates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Population.Initial = 7
	cfg.Resources.InitialPlants = 5
	w := newTestWorld(t, cfg, Options{Seed: 1})

	if got := len(w.Creatures()); got != 7 {
		t.Errorf("creatures = %d, want 7", got)
	}
	if got := w.Resources().PlantCount; got != 5 {
		t.Errorf("plants = %d, want 5", got)
	}
	// Every seeded creature founds its own species.
	if got := w.Lineage().Len(); got != 7 {
		t.Errorf("species = %d, want 7", got)
	}
	if w.RunID() == "" {
		t.Error("RunID() is empty")
	}
	for i, c := range w.Creatures() {
		if want := uint32(i + 1); c.ID != want {
			t.Errorf("creature %d ID = %d, want %d", i, c.ID, want)
		}
	}
}

func TestNewWorldRejectsUnknownStartMaterial(t *testing.T) {
	cfg := testConfig(t)
	cfg.Population.StartMaterials = map[string]float64{"unobtainium": 5}
	if _, err := NewWorld(cfg, Options{}); err == nil {
		t.Fatal("NewWorld() error = nil, want unknown material error")
	}
}

func TestNewWorldRejectsBadRules(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rules = append(cfg.Rules, config.RuleConfig{
		Name:    "broken",
		Inputs:  []config.AmountConfig{{Material: "missing", Qty: 1}},
		Outputs: []config.AmountConfig{{Material: "energy", Qty: 1}},
	})
	if _, err := NewWorld(cfg, Options{}); err == nil {
		t.Fatal("NewWorld() error = nil, want rule error")
	}
}

func TestNewWorldRejectsInvalidTraitDomain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Traits.RuleRateMax = -1
	w, err := NewWorld(cfg, Options{})
	if err == nil {
		_ = w.Close()
		t.Fatal("NewWorld() error = nil, want trait domain error")
	}
	if !strings.Contains(err.Error(), "traits.rule_rate") {
		t.Errorf("NewWorld() error = %v, want it to name traits.rule_rate", err)
	}
}

func TestBirthFoundsDescendantSpecies(t *testing.T) {
	cfg := testConfig(t)
	// Any mutation at all moves the child out of its parent's species.
	cfg.Species.SimilarityThreshold = 0.9999999
	w := newTestWorld(t, cfg, Options{Seed: 5})

	set := w.traitSet
	g := make(traits.Genome, set.Len())
	for i, tr := range set.Traits() {
		g[i] = tr.Min
	}
	for _, k := range w.registry.Kinds() {
		if i := set.ChildQty(k); i != traits.None {
			g[i] = 10000
			// Off the domain edge so mutation cannot clamp it back.
			g[set.ReproduceFactor(k)] = 2.5
		}
	}
	parentSpecies := w.lineage.Found(g, nil)
	q, unknown := materials.FromMap(w.registry, map[string]float64{"energy": 1e6, "structure": 30000, "storage": 30000})
	if len(unknown) > 0 {
		t.Fatalf("unknown materials %v", unknown)
	}
	parent := creature.New(w.ctx, w.newID(), g, parentSpecies, q)
	w.spawnCreature(parent, 200, 200, 0)

	w.Step()

	if got := len(w.Creatures()); got != 2 {
		t.Fatalf("creatures = %d, want parent and child", got)
	}
	child := w.Creatures()[1]
	if child.ParentID != parent.ID {
		t.Fatalf("ParentID = %d, want %d", child.ParentID, parent.ID)
	}
	if child.Species == parentSpecies {
		t.Fatal("mutated child stayed in its parent's species")
	}
	if child.Species.Ancestor != parentSpecies {
		t.Errorf("child species ancestor = %v, want %s", child.Species.Ancestor, parentSpecies.Name)
	}
	if kids := w.lineage.Children(parentSpecies); len(kids) != 1 || kids[0] != child.Species {
		t.Errorf("Children(%s) = %v, want [%s]", parentSpecies.Name, kids, child.Species.Name)
	}
	if child.Species.BornTick != w.Tick() {
		t.Errorf("BornTick = %d, want %d", child.Species.BornTick, w.Tick())
	}
}

func TestStarvedCreatureLeavesOneMeat(t *testing.T) {
	w := newTestWorld(t, testConfig(t), Options{Seed: 2})
	// Waste alone cannot be converted into energy, so upkeep fails at once.
	addCreature(t, w, map[string]float64{"waste": 50000}, 200, 200, 0)

	w.Step()

	if got := len(w.Creatures()); got != 0 {
		t.Fatalf("creatures = %d, want 0", got)
	}
	if got := w.Resources().MeatCount; got != 1 {
		t.Errorf("meats = %d, want 1", got)
	}
	if got := len(w.byEntity); got != 0 {
		t.Errorf("entity index holds %d creatures, want 0", got)
	}
	var meatMass float64
	w.resources.EachMeat(func(_, _ float64, m *components.Meat) { meatMass += m.Materials.Mass() })
	if meatMass <= 0 || meatMass > 50000 {
		t.Errorf("meat mass = %v, want in (0, 50000]", meatMass)
	}
}

func TestFeedingTakesOneBitePerCountdown(t *testing.T) {
	w := newTestWorld(t, testConfig(t), Options{Seed: 3})
	w.resources.SpawnPlant(200, 200, 2e7, 0)
	c := addCreature(t, w, w.cfg.Population.StartMaterials, 185, 200, 0)

	w.Step()

	stats := w.lifetimes.Get(c.ID)
	if stats == nil {
		t.Fatal("creature not tracked")
	}
	if stats.Bites != 1 {
		t.Fatalf("bites after first tick = %d, want 1", stats.Bites)
	}
	if ext := plantExternal(w); len(ext) != 1 || ext[0] >= 2e7 {
		t.Errorf("plant external = %v, want below 2e7", ext)
	}
	if !c.Eating() {
		t.Error("Eating() = false after a bite")
	}

	w.Step()
	if stats.Bites != 1 {
		t.Errorf("bites while digesting = %d, want 1", stats.Bites)
	}
}

func TestReseedRestoresMinimums(t *testing.T) {
	cfg := testConfig(t)
	cfg.Population.Min = 5
	cfg.Population.ReseedCount = 3
	cfg.Resources.MinPlants = 3
	w := newTestWorld(t, cfg, Options{Seed: 4})

	w.Step()

	if got := len(w.Creatures()); got != 5 {
		t.Errorf("creatures = %d, want 5", got)
	}
	if got := w.Resources().PlantCount; got != 3 {
		t.Errorf("plants = %d, want 3", got)
	}
}

func TestReseedDrawsFromHallOfFame(t *testing.T) {
	cfg := testConfig(t)
	cfg.Population.Min = 4
	cfg.Population.ReseedCount = 4
	w := newTestWorld(t, cfg, Options{Seed: 5})

	g := w.traitSet.Random(w.rng)
	ok := w.HallOfFame().Consider(telemetry.HallEntry{
		CreatureID: 99,
		Species:    "ZZ",
		Generation: 4,
		Children:   3,
		Traits:     w.traitSet.Map(g),
	})
	if !ok {
		t.Fatal("Consider() = false")
	}

	w.Step()

	if got := len(w.Creatures()); got != 4 {
		t.Fatalf("creatures = %d, want 4", got)
	}
	for _, c := range w.Creatures() {
		if c.Generation != 5 {
			t.Errorf("creature %d generation = %d, want 5", c.ID, c.Generation)
		}
		if c.Species == nil {
			t.Errorf("creature %d has no species", c.ID)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	cfg.Population.Initial = 6
	cfg.Resources.InitialPlants = 4
	w := newTestWorld(t, cfg, Options{Seed: 6})
	// A starving creature guarantees a carcass in the snapshot.
	addCreature(t, w, map[string]float64{"waste": 50000}, 100, 100, 0)
	for range 20 {
		w.Step()
	}

	snap := w.Snapshot()
	if len(snap.Meats) == 0 {
		t.Fatal("snapshot has no meat")
	}
	if len(snap.Species) < 7 {
		t.Fatalf("snapshot species = %d, want at least 7", len(snap.Species))
	}

	restored, err := Restore(cfg, Options{Seed: 6}, snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	t.Cleanup(func() { _ = restored.Close() })

	if restored.RunID() != w.RunID() {
		t.Errorf("RunID() = %q, want %q", restored.RunID(), w.RunID())
	}
	if restored.Tick() != 20 {
		t.Errorf("Tick() = %d, want 20", restored.Tick())
	}
	if got := restored.Snapshot(); !reflect.DeepEqual(got, snap) {
		t.Errorf("restored snapshot differs:\n got %+v\nwant %+v", got, snap)
	}

	// The restored world keeps running and hands out fresh ids.
	restored.Step()
	if id := restored.newID(); id <= snap.NextID {
		t.Errorf("newID() = %d, want above %d", id, snap.NextID)
	}
}

func TestRestoreKeepsSpeciesAncestry(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWorld(t, cfg, Options{Seed: 7})
	g := w.traitSet.Random(w.rng)
	root := w.lineage.Found(g, nil)
	child := w.lineage.Found(w.traitSet.Random(w.rng), root)

	restored, err := Restore(cfg, Options{}, w.Snapshot())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	t.Cleanup(func() { _ = restored.Close() })

	got := restored.Lineage().Lookup(child.Name)
	if got == nil {
		t.Fatalf("species %s not restored", child.Name)
	}
	if got.AncestorName() != root.Name {
		t.Errorf("ancestor = %q, want %q", got.AncestorName(), root.Name)
	}
}

type recordingSink struct {
	ticks []int
}

func (s *recordingSink) Save(_ context.Context, snap *persist.WorldSnapshot) error {
	s.ticks = append(s.ticks, snap.Tick)
	return nil
}

func TestRunAutosaves(t *testing.T) {
	cfg := testConfig(t)
	cfg.Persistence.Interval = 5
	sink := &recordingSink{}
	w := newTestWorld(t, cfg, Options{Seed: 8, Sinks: []persist.Sink{sink}})

	if err := w.Run(context.Background(), 10); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int{5, 10, 10}
	if !reflect.DeepEqual(sink.ticks, want) {
		t.Errorf("saved ticks = %v, want %v", sink.ticks, want)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w := newTestWorld(t, testConfig(t), Options{Seed: 9})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if w.Tick() != 0 {
		t.Errorf("Tick() = %d, want 0", w.Tick())
	}
}

func TestTelemetryFlushWritesOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Population.Initial = 4
	cfg.Resources.InitialPlants = 2
	dir := t.TempDir()
	metrics := telemetry.NewMetrics("run-test")
	w := newTestWorld(t, cfg, Options{Seed: 10, OutputDir: dir, Metrics: metrics})

	for range cfg.Telemetry.StatsWindow {
		w.Step()
	}
	pop, members := w.samplePopulation()
	if pop.Creatures != len(w.Creatures()) {
		t.Errorf("sampled creatures = %d, want %d", pop.Creatures, len(w.Creatures()))
	}
	if pop.SpeciesActive != len(members) {
		t.Errorf("SpeciesActive = %d, want %d", pop.SpeciesActive, len(members))
	}
	rows := w.speciesRows(members)
	total := 0
	for _, r := range rows {
		total += r.Members
	}
	if total != len(w.Creatures()) {
		t.Errorf("species rows cover %d creatures, want %d", total, len(w.Creatures()))
	}
	for _, name := range []string{"config.yaml", "telemetry.csv", "perf.csv", "species.csv"} {
		if info, err := os.Stat(filepath.Join(dir, name)); err != nil || info.Size() == 0 {
			t.Errorf("%s missing or empty (err %v)", name, err)
		}
	}
}
