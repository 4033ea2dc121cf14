// Package game owns a running simulation: the creature population, the
// environment it lives in and the per-tick orchestration that ties both to
// telemetry and persistence.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/creature"
	"github.com/pthm-cable/lifesim/materials"
	"github.com/pthm-cable/lifesim/persist"
	"github.com/pthm-cable/lifesim/species"
	"github.com/pthm-cable/lifesim/systems"
	"github.com/pthm-cable/lifesim/telemetry"
	"github.com/pthm-cable/lifesim/traits"
)

// Options configures a World beyond the loaded config.
type Options struct {
	Seed      uint64
	RunID     string // empty = a fresh uuid
	OutputDir string // CSV and bookmark output, empty = disabled
	LogStats  bool
	Metrics   *telemetry.Metrics
	Sinks     []persist.Sink

	// StatsCallback, if set, receives every closed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// World is one simulation run. It is not safe for concurrent use.
type World struct {
	cfg      *config.Config
	rng      *rand.Rand
	seed     uint64
	runID    string
	tick     int
	nextID   uint32
	logStats bool
	onStats  func(telemetry.WindowStats)

	registry *materials.Registry
	traitSet *traits.Set
	lineage  *species.Lineage
	ctx      *creature.Context
	start    *materials.Quantities // endowment of freshly seeded creatures

	space     *systems.Space
	resources *systems.Resources
	fertility *systems.Fertility
	sensors   *systems.Sensors
	feeding   *systems.Feeding

	// Creatures act in insertion order.
	creatures []*creature.Creature
	byEntity  map[ecs.Entity]*creature.Creature

	collector  *telemetry.Collector
	lifetimes  *telemetry.LifetimeTracker
	hallOfFame *telemetry.HallOfFame
	bookmarks  *telemetry.BookmarkDetector
	perf       *telemetry.PerfCollector
	metrics    *telemetry.Metrics
	output     *telemetry.OutputManager
	sinks      []persist.Sink

	outcomes []pending
}

// pending is a lifecycle outcome the world applies once every creature acted.
type pending struct {
	c   *creature.Creature
	out creature.Outcome
}

// NewWorld builds a world from cfg and seeds its initial plants and creatures.
// Invalid material or rule configuration is returned as an error.
func NewWorld(cfg *config.Config, opts Options) (*World, error) {
	w, err := newWorld(cfg, opts)
	if err != nil {
		return nil, err
	}
	w.populate()
	slog.Info("world_created",
		"run_id", w.runID,
		"seed", w.seed,
		"creatures", len(w.creatures),
		"plants", w.resources.PlantCount,
		"materials", w.registry.Len(),
		"traits", w.traitSet.Len(),
	)
	return w, nil
}

// newWorld builds an empty world.
func newWorld(cfg *config.Config, opts Options) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	reg, err := materials.NewRegistry(cfg.Materials, cfg.Creature.MassMultiplier)
	if err != nil {
		return nil, fmt.Errorf("building material registry: %w", err)
	}
	rules, err := materials.NewRules(reg, cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("building conversion rules: %w", err)
	}
	start, unknown := materials.FromMap(reg, cfg.Population.StartMaterials)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("population.start_materials: unknown materials %v", unknown)
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		_ = output.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	set := traits.NewSet(reg, rules, cfg.Traits)
	lineage := species.NewLineage(set, cfg.Species.SimilarityThreshold)

	space := systems.NewSpace(systems.Bounds{Width: cfg.Derived.WorldW, Height: cfg.Derived.WorldH}, cfg.Physics)

	w := &World{
		cfg:      cfg,
		rng:      rng,
		seed:     opts.Seed,
		runID:    runID,
		logStats: opts.LogStats || cfg.Telemetry.LogStats,
		onStats:  opts.StatsCallback,

		registry: reg,
		traitSet: set,
		lineage:  lineage,
		start:    start,
		ctx: &creature.Context{
			Registry: reg,
			Rules:    rules,
			Traits:   set,
			Lineage:  lineage,
			Config:   cfg.Creature,
			Rand:     rng,
		},

		space:     space,
		resources: systems.NewResources(space, reg, cfg.Resources),
		fertility: systems.NewFertility(opts.Seed, cfg.Resources.FertilityScale),
		sensors:   systems.NewSensors(space, cfg.Sensors),
		feeding:   systems.NewFeeding(space, cfg.Creature.EatReach),

		byEntity: make(map[ecs.Entity]*creature.Creature),

		collector: telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Physics.DT),
		lifetimes: telemetry.NewLifetimeTracker(),
		bookmarks: telemetry.NewBookmarkDetector(10),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		metrics:   opts.Metrics,
		output:    output,
		sinks:     opts.Sinks,
	}
	if cfg.HallOfFame.Enabled {
		w.hallOfFame = telemetry.NewHallOfFame(cfg.HallOfFame, rng)
	}
	return w, nil
}

// populate spawns the initial plants and creatures.
func (w *World) populate() {
	for range w.cfg.Resources.InitialPlants {
		w.spawnPlant()
	}
	for range w.cfg.Population.Initial {
		w.spawnRandom()
	}
}

// Tick returns the number of ticks simulated so far.
func (w *World) Tick() int { return w.tick }

// RunID returns the id stamped on telemetry and snapshots of this run.
func (w *World) RunID() string { return w.runID }

// Creatures returns the live creatures in acting order. The slice must not be
// modified.
func (w *World) Creatures() []*creature.Creature { return w.creatures }

// Lineage returns every species created in this world.
func (w *World) Lineage() *species.Lineage { return w.lineage }

// Resources returns the plant and meat manager.
func (w *World) Resources() *systems.Resources { return w.resources }

// HallOfFame returns the hall of fame, or nil when disabled.
func (w *World) HallOfFame() *telemetry.HallOfFame { return w.hallOfFame }

// Step advances the simulation by one tick.
func (w *World) Step() {
	tickStart := time.Now()
	w.tick++
	w.lineage.SetTick(w.tick)
	w.perf.StartTick()

	w.perf.StartPhase(telemetry.PhaseLifecycle)
	w.updateLifecycle()

	w.perf.StartPhase(telemetry.PhaseSpawn)
	w.applyOutcomes()

	w.perf.StartPhase(telemetry.PhasePhysics)
	for _, e := range w.space.Step() {
		if c := w.byEntity[e]; c != nil {
			c.StopAction()
		}
	}

	w.perf.StartPhase(telemetry.PhaseSensors)
	w.sensors.Update(w)

	w.perf.StartPhase(telemetry.PhaseFeeding)
	w.updateFeeding()

	w.perf.StartPhase(telemetry.PhaseResources)
	w.resources.Step(w.tick)

	w.perf.StartPhase(telemetry.PhaseReseed)
	w.reseed()

	w.perf.StartPhase(telemetry.PhaseTelemetry)
	w.flushTelemetry(time.Since(tickStart))

	w.perf.EndTick()
}

// Run steps the world until ctx is cancelled or maxTicks ticks have run
// (0 = unlimited). Snapshots go to every sink each persistence interval and
// once more when the run ends.
func (w *World) Run(ctx context.Context, maxTicks int) error {
	interval := w.cfg.Persistence.Interval
	for ran := 0; maxTicks <= 0 || ran < maxTicks; ran++ {
		if ctx.Err() != nil {
			slog.Info("run_interrupted", "tick", w.tick)
			break
		}
		w.Step()
		if interval > 0 && w.tick%interval == 0 {
			if err := w.Save(ctx); err != nil {
				slog.Error("autosave_failed", "tick", w.tick, "error", err)
			}
		}
	}
	slog.Info("run_finished", "tick", w.tick, "creatures", len(w.creatures), "species", w.lineage.Len())
	return w.Save(context.WithoutCancel(ctx))
}

// Save writes a snapshot to every configured sink.
func (w *World) Save(ctx context.Context) error {
	if len(w.sinks) == 0 {
		return nil
	}
	snap := w.Snapshot()
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Save(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("saving snapshot at tick %d: %w", w.tick, err)
	}
	slog.Info("snapshot_saved", "tick", w.tick, "sinks", len(w.sinks))
	return nil
}

// Close writes the hall of fame and closes the output files.
func (w *World) Close() error {
	return errors.Join(w.output.WriteHallOfFame(w.hallOfFame), w.output.Close())
}

// updateLifecycle runs every creature's tick and queues what the world must
// act on. Nothing is spawned or removed here.
func (w *World) updateLifecycle() {
	w.outcomes = w.outcomes[:0]
	for _, c := range w.creatures {
		out := c.Act()
		w.collector.AddReactions(out.Reactions, out.Clamped)
		w.metrics.AddReactions(out.Reactions)
		if out.Died || out.Birth != nil || out.Excreted > 0 {
			w.outcomes = append(w.outcomes, pending{c: c, out: out})
		}
	}
}

// applyOutcomes deposits waste, spawns offspring and turns the dead into meat.
func (w *World) applyOutcomes() {
	if len(w.outcomes) == 0 {
		return
	}
	plantMass := w.registry.Plant().Mass
	died := 0
	for _, p := range w.outcomes {
		c, out := p.c, p.out
		if out.Excreted > 0 {
			w.resources.Deposit(out.ExcreteX, out.ExcreteY, out.Excreted/plantMass)
			w.lifetimes.RecordExcretion(c.ID, out.Excreted)
			w.record(telemetry.NewExcreteEvent(w.tick, c.ID, out.Excreted))
		}
		if out.Birth != nil {
			w.spawnChild(c, out.Birth)
		}
		if out.Died {
			w.kill(c, out.Remains)
			died++
		}
	}
	if died > 0 {
		live := w.creatures[:0]
		for _, c := range w.creatures {
			if _, ok := w.byEntity[entityOf(c)]; ok {
				live = append(live, c)
			}
		}
		clear(w.creatures[len(live):])
		w.creatures = live
	}
}

// spawnCreature gives c a body at (x, y) and adds it to the population.
func (w *World) spawnCreature(c *creature.Creature, x, y, angle float64) ecs.Entity {
	e := w.space.AddCreature(c.ID, x, y, angle)
	c.Attach(&creatureBody{space: w.space, e: e})
	w.creatures = append(w.creatures, c)
	w.byEntity[e] = c
	w.lifetimes.Register(c.ID, w.tick-c.Age, speciesName(c.Species), c.Generation)
	return e
}

func (w *World) spawnChild(parent *creature.Creature, b *creature.Birth) {
	c := creature.New(w.ctx, w.newID(), b.Genome, b.Species, b.Materials)
	c.ParentID = parent.ID
	c.Generation = b.Generation
	w.spawnCreature(c, b.X, b.Y, b.Angle)

	w.lifetimes.RecordChild(parent.ID)
	w.record(telemetry.NewBirthEvent(w.tick, c.ID, parent.ID, speciesName(b.Species)))
	if b.Species != parent.Species {
		w.record(telemetry.NewSpeciesEvent(w.tick, c.ID, speciesName(b.Species)))
	}
}

// spawnRandom seeds a creature with a fresh genome and its own species.
func (w *World) spawnRandom() *creature.Creature {
	c := creature.Random(w.ctx, w.newID(), w.start.Clone())
	x, y, angle := w.randomPlacement()
	w.spawnCreature(c, x, y, angle)
	w.record(telemetry.NewSpeciesEvent(w.tick, c.ID, speciesName(c.Species)))
	return c
}

// spawnFromHall seeds a mutated copy of a hall of fame genome. Returns false
// when there is no hall or it is empty.
func (w *World) spawnFromHall() bool {
	if w.hallOfFame == nil {
		return false
	}
	entry := w.hallOfFame.Sample()
	if entry == nil {
		return false
	}
	g, _, unknown := w.traitSet.FromMap(entry.Traits)
	if len(unknown) > 0 {
		slog.Warn("hall_of_fame_unknown_traits", "creature", entry.CreatureID, "traits", unknown)
	}
	g = w.traitSet.Mutate(w.rng, g)
	sp := w.lineage.ChildSpecies(w.lineage.Lookup(entry.Species), g)

	c := creature.New(w.ctx, w.newID(), g, sp, w.start.Clone())
	c.Generation = entry.Generation + 1
	x, y, angle := w.randomPlacement()
	w.spawnCreature(c, x, y, angle)
	if sp.Name != entry.Species {
		w.record(telemetry.NewSpeciesEvent(w.tick, c.ID, sp.Name))
	}
	return true
}

func (w *World) spawnPlant() {
	x, y := w.fertility.Place(w.rng, w.space.Bounds())
	w.resources.SpawnPlant(x, y, w.cfg.Resources.InitialQuantity, 0)
}

// kill removes c and leaves its materials behind as meat.
func (w *World) kill(c *creature.Creature, remains *materials.Quantities) {
	e := entityOf(c)
	x, y := c.Position()
	w.space.Remove(e)
	delete(w.byEntity, e)
	w.resources.SpawnMeat(x, y, remains)

	stats := w.lifetimes.Remove(c.ID)
	w.record(telemetry.NewDeathEvent(w.tick, c.ID, speciesName(c.Species), remains.Mass()))

	if w.hallOfFame != nil {
		entry := telemetry.HallEntry{
			CreatureID: c.ID,
			Species:    speciesName(c.Species),
			Generation: c.Generation,
			Children:   c.Children,
			Age:        c.Age,
			Traits:     w.traitSet.Map(c.Genome),
		}
		if stats != nil {
			entry.EatenMass = stats.EatenMass
		}
		w.hallOfFame.Consider(entry)
	}
}

// updateFeeding lets every creature touching food take a bite, unless it is
// still digesting the last one.
func (w *World) updateFeeding() {
	for _, ct := range w.feeding.Contacts() {
		c := w.byEntity[ct.Creature]
		if c == nil || c.Eating() {
			continue
		}
		gained := c.Eat(w.resources.Ref(ct.Resource))
		if gained <= 0 {
			continue
		}
		w.lifetimes.RecordBite(c.ID, gained)
		w.record(telemetry.NewBiteEvent(w.tick, c.ID, gained))
	}
}

// reseed keeps the plant count and the population above their minimums.
// Creatures come from the hall of fame when it has entries.
func (w *World) reseed() {
	for w.resources.PlantCount < w.cfg.Resources.MinPlants {
		w.spawnPlant()
	}

	pc := w.cfg.Population
	if len(w.creatures) >= pc.Min {
		return
	}
	before := len(w.creatures)
	count := max(pc.ReseedCount, pc.Min-before)
	fromHall := 0
	for range count {
		if w.spawnFromHall() {
			fromHall++
			continue
		}
		w.spawnRandom()
	}
	w.record(telemetry.NewReseedEvent(w.tick, count))
	slog.Info("population_reseed",
		"tick", w.tick,
		"population_before", before,
		"reseeded_count", count,
		"from_hall", fromHall,
	)
}

// record counts an event in the stats window and the metrics.
func (w *World) record(ev telemetry.Event) {
	w.collector.Record(ev)
	w.metrics.Record(ev)
	if ev.Type == telemetry.EventSpeciesFounded {
		slog.Debug(ev.Type.String(), "event", ev)
	}
}

func (w *World) newID() uint32 {
	w.nextID++
	return w.nextID
}

func (w *World) randomPlacement() (x, y, angle float64) {
	b := w.space.Bounds()
	return w.rng.Float64() * b.Width, w.rng.Float64() * b.Height, (w.rng.Float64()*2 - 1) * math.Pi
}

// VisionAlert implements systems.Listener.
func (w *World) VisionAlert(observer, other ecs.Entity) {
	c, o := w.byEntity[observer], w.byEntity[other]
	if c == nil || o == nil {
		return
	}
	c.VisionAlert(o)
}

// VisionResourceAlert implements systems.Listener.
func (w *World) VisionResourceAlert(observer, resource ecs.Entity) {
	if c := w.byEntity[observer]; c != nil {
		c.VisionResourceAlert(w.resources.Ref(resource))
	}
}

// SoundAlert implements systems.Listener.
func (w *World) SoundAlert(listener ecs.Entity, x, y float64) {
	if c := w.byEntity[listener]; c != nil {
		c.SoundAlert(x, y)
	}
}

func entityOf(c *creature.Creature) ecs.Entity {
	return c.Body().(*creatureBody).e
}

func speciesName(sp *species.Species) string {
	if sp == nil {
		return ""
	}
	return sp.Name
}
