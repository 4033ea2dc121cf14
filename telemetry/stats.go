package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int     `csv:"-"`
	WindowEndTick   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Counts at window end
	Creatures     int `csv:"creatures"`
	Plants        int `csv:"plants"`
	Meats         int `csv:"meats"`
	SpeciesTotal  int `csv:"species_total"`
	SpeciesActive int `csv:"species_active"`

	// Events during window
	Births         int     `csv:"births"`
	Deaths         int     `csv:"deaths"`
	Bites          int     `csv:"bites"`
	EatenMass      float64 `csv:"eaten_mass"`
	Excretions     int     `csv:"excretions"`
	ExcretedMass   float64 `csv:"excreted_mass"`
	SpeciesFounded int     `csv:"species_founded"`
	Reactions      int     `csv:"reactions"`
	Clamped        int     `csv:"clamped"`
	Reseeded       int     `csv:"reseeded"`

	// Body mass distribution (sampled at window end)
	MassMean float64 `csv:"mass_mean"`
	MassStd  float64 `csv:"mass_std"`
	MassP10  float64 `csv:"mass_p10"`
	MassP50  float64 `csv:"mass_p50"`
	MassP90  float64 `csv:"mass_p90"`

	EnergyMean     float64 `csv:"energy_mean"`
	StructureMean  float64 `csv:"structure_mean"`
	GenerationMean float64 `csv:"generation_mean"`
	GenerationMax  int     `csv:"generation_max"`
	AgeMean        float64 `csv:"age_mean"`

	// Environment
	PlantMatter float64 `csv:"plant_matter"` // external + internal stock of every plant
	MeatMass    float64 `csv:"meat_mass"`
}

// Summary describes a sample distribution.
type Summary struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summarize calculates mean, population standard deviation and percentiles.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, variance := stat.PopMeanVariance(values, nil)

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return Summary{
		Mean: mean,
		Std:  sqrt(variance),
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
	}
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("creatures", s.Creatures),
		slog.Int("plants", s.Plants),
		slog.Int("meats", s.Meats),
		slog.Int("species_total", s.SpeciesTotal),
		slog.Int("species_active", s.SpeciesActive),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("bites", s.Bites),
		slog.Float64("eaten_mass", s.EatenMass),
		slog.Int("excretions", s.Excretions),
		slog.Float64("excreted_mass", s.ExcretedMass),
		slog.Int("species_founded", s.SpeciesFounded),
		slog.Int("reactions", s.Reactions),
		slog.Int("clamped", s.Clamped),
		slog.Int("reseeded", s.Reseeded),
		slog.Float64("mass_mean", s.MassMean),
		slog.Float64("mass_std", s.MassStd),
		slog.Float64("mass_p10", s.MassP10),
		slog.Float64("mass_p50", s.MassP50),
		slog.Float64("mass_p90", s.MassP90),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("structure_mean", s.StructureMean),
		slog.Float64("generation_mean", s.GenerationMean),
		slog.Int("generation_max", s.GenerationMax),
		slog.Float64("age_mean", s.AgeMean),
		slog.Float64("plant_matter", s.PlantMatter),
		slog.Float64("meat_mass", s.MeatMass),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
