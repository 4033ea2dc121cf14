package telemetry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Population is the state sampled when a window is flushed.
type Population struct {
	Creatures     int
	Plants        int
	Meats         int
	SpeciesTotal  int
	SpeciesActive int

	// Per-creature samples
	Masses      []float64
	Energies    []float64
	Structures  []float64
	Generations []float64
	Ages        []float64

	PlantMatter float64
	MeatMass    float64
}

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowTicks int
	dt          float64

	// Current window tracking
	windowStartTick int

	// Event counters for current window
	births         int
	deaths         int
	bites          int
	eatenMass      float64
	excretions     int
	excretedMass   float64
	speciesFounded int
	reactions      int
	clamped        int
	reseeded       int
}

// NewCollector creates a new stats collector.
// windowTicks: how many ticks each stats window lasts
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowTicks int, dt float64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: windowTicks,
		dt:          dt,
	}
}

// Record counts an event in the current window.
func (c *Collector) Record(ev Event) {
	switch ev.Type {
	case EventBirth:
		c.births++
	case EventDeath:
		c.deaths++
	case EventBite:
		c.bites++
		c.eatenMass += ev.Amount
	case EventExcrete:
		c.excretions++
		c.excretedMass += ev.Amount
	case EventSpeciesFounded:
		c.speciesFounded++
	case EventReseed:
		c.reseeded += int(ev.Amount)
	}
}

// AddReactions counts conversion rule reactions and clamped quantities from
// one creature tick.
func (c *Collector) AddReactions(reactions, clamped int) {
	c.reactions += reactions
	c.clamped += clamped
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int, pop Population) WindowStats {
	mass := Summarize(pop.Masses)

	genMax := 0.0
	if len(pop.Generations) > 0 {
		genMax = floats.Max(pop.Generations)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Creatures:     pop.Creatures,
		Plants:        pop.Plants,
		Meats:         pop.Meats,
		SpeciesTotal:  pop.SpeciesTotal,
		SpeciesActive: pop.SpeciesActive,

		Births:         c.births,
		Deaths:         c.deaths,
		Bites:          c.bites,
		EatenMass:      c.eatenMass,
		Excretions:     c.excretions,
		ExcretedMass:   c.excretedMass,
		SpeciesFounded: c.speciesFounded,
		Reactions:      c.reactions,
		Clamped:        c.clamped,
		Reseeded:       c.reseeded,

		MassMean: mass.Mean,
		MassStd:  mass.Std,
		MassP10:  mass.P10,
		MassP50:  mass.P50,
		MassP90:  mass.P90,

		EnergyMean:     Mean(pop.Energies),
		StructureMean:  Mean(pop.Structures),
		GenerationMean: Mean(pop.Generations),
		GenerationMax:  int(genMax),
		AgeMean:        Mean(pop.Ages),

		PlantMatter: pop.PlantMatter,
		MeatMass:    pop.MeatMass,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.births = 0
	c.deaths = 0
	c.bites = 0
	c.eatenMass = 0
	c.excretions = 0
	c.excretedMass = 0
	c.speciesFounded = 0
	c.reactions = 0
	c.clamped = 0
	c.reseeded = 0

	return stats
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() int {
	return c.windowTicks
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
