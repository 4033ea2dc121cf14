package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase identifies one stage of the simulation step.
type Phase uint8

// Step phases in execution order.
const (
	PhaseLifecycle Phase = iota
	PhaseSpawn
	PhasePhysics
	PhaseSensors
	PhaseFeeding
	PhaseResources
	PhaseReseed
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{
	"lifecycle", "spawn", "physics", "sensors",
	"feeding", "resources", "reseed", "telemetry",
}

func (p Phase) String() string {
	if p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// phaseTimes is the time spent in every phase during one tick.
type phaseTimes [numPhases]time.Duration

// PerfCollector keeps tick and phase timings for the last window ticks.
type PerfCollector struct {
	window int
	ticks  []time.Duration
	phases []phaseTimes
	next   int
	filled int

	current    phaseTimes
	active     Phase
	tickStart  time.Time
	phaseStart time.Time
}

// NewPerfCollector creates a collector over a rolling window of ticks.
// Non-positive sizes fall back to 60.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		window: window,
		ticks:  make([]time.Duration, window),
		phases: make([]phaseTimes, window),
		active: numPhases,
	}
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.current = phaseTimes{}
	p.active = numPhases
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.active = phase
	p.phaseStart = now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.active < numPhases {
		p.current[p.active] += now.Sub(p.phaseStart)
	}
}

// EndTick closes the running phase and records the tick.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.active = numPhases

	p.ticks[p.next] = now.Sub(p.tickStart)
	p.phases[p.next] = p.current
	p.next = (p.next + 1) % p.window
	p.filled = min(p.filled+1, p.window)
}

// PerfStats summarizes the timings of the current window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	P95TickDuration time.Duration
	TicksPerSecond  float64

	// Share of the average tick spent in each phase, in percent.
	PhasePct [numPhases]float64
}

// Stats aggregates the recorded window.
func (p *PerfCollector) Stats() PerfStats {
	if p.filled == 0 {
		return PerfStats{}
	}

	ticks := make([]float64, p.filled)
	var phaseSum [numPhases]float64
	for i := range p.filled {
		ticks[i] = float64(p.ticks[i])
		for ph, d := range p.phases[i] {
			phaseSum[ph] += float64(d)
		}
	}

	mean := stat.Mean(ticks, nil)
	s := PerfStats{
		AvgTickDuration: time.Duration(mean),
		MinTickDuration: time.Duration(floats.Min(ticks)),
		MaxTickDuration: time.Duration(floats.Max(ticks)),
	}
	slices.Sort(ticks)
	s.P95TickDuration = time.Duration(stat.Quantile(0.95, stat.Empirical, ticks, nil))

	if mean > 0 {
		s.TicksPerSecond = float64(time.Second) / mean
		for ph := range numPhases {
			s.PhasePct[ph] = phaseSum[ph] / float64(p.filled) / mean * 100
		}
	}
	return s
}

// LogValue implements slog.LogValuer. Phases under 0.1% of the tick are
// left out.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("p95_tick_us", s.P95TickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for ph := range numPhases {
		if pct := s.PhasePct[ph]; pct > 0.1 {
			attrs = append(attrs, slog.Float64(ph.String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the window timings.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd    int     `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	P95TickUS    int64   `csv:"p95_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	LifecyclePct float64 `csv:"lifecycle_pct"`
	SpawnPct     float64 `csv:"spawn_pct"`
	PhysicsPct   float64 `csv:"physics_pct"`
	SensorsPct   float64 `csv:"sensors_pct"`
	FeedingPct   float64 `csv:"feeding_pct"`
	ResourcesPct float64 `csv:"resources_pct"`
	ReseedPct    float64 `csv:"reseed_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	pct := s.PhasePct
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		MinTickUS:    s.MinTickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		P95TickUS:    s.P95TickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		LifecyclePct: pct[PhaseLifecycle],
		SpawnPct:     pct[PhaseSpawn],
		PhysicsPct:   pct[PhasePhysics],
		SensorsPct:   pct[PhaseSensors],
		FeedingPct:   pct[PhaseFeeding],
		ResourcesPct: pct[PhaseResources],
		ReseedPct:    pct[PhaseReseed],
		TelemetryPct: pct[PhaseTelemetry],
	}
}
