package main

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/game"
	"github.com/pthm-cable/lifesim/telemetry"
)

// FitnessEvaluator runs headless worlds and scores how well a parameter
// vector keeps the population alive.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int
	seeds      []uint64
	baseConfig *config.Config

	mu             sync.Mutex
	evals          int
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	last           Score
}

// Score is the aggregate result of one evaluation.
type Score struct {
	Fitness  float64
	Survival float64 // mean ticks survived across seeds
	Quality  float64
}

// NewFitnessEvaluator creates an evaluator over the given seeds.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []uint64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame of the best evaluation so far.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// Last returns the score of the most recent evaluation.
func (fe *FitnessEvaluator) Last() Score {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

type runResult struct {
	survivalTicks int
	windows       []telemetry.WindowStats
	hallOfFame    *telemetry.HallOfFame
}

// Evaluate scores a raw parameter vector (lower = better). Every seed runs
// in its own goroutine.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	fe.mu.Lock()
	fe.evals++
	eval := fe.evals
	fe.mu.Unlock()

	results := make([]*runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := fe.runSimulation(x, seed, fmt.Sprintf("tune-%d-%d", eval, seed))
			if err != nil {
				slog.Error("tune_run_failed", "eval", eval, "seed", seed, "error", err)
				r = &runResult{}
			}
			results[i] = r
		}()
	}
	wg.Wait()

	var score Score
	bestSeed := math.Inf(1)
	var bestHall *telemetry.HallOfFame
	for _, r := range results {
		q := computeQuality(r.windows)
		f := computeFitness(r.survivalTicks, q)
		score.Fitness += f
		score.Survival += float64(r.survivalTicks)
		score.Quality += q
		if f < bestSeed {
			bestSeed = f
			bestHall = r.hallOfFame
		}
	}
	n := float64(len(results))
	score.Fitness /= n
	score.Survival /= n
	score.Quality /= n

	fe.mu.Lock()
	if score.Fitness < fe.bestFitness {
		fe.bestFitness = score.Fitness
		fe.bestHallOfFame = bestHall
	}
	fe.last = score
	fe.mu.Unlock()

	return score.Fitness
}

// runSimulation runs one world until the population dies out or maxTicks.
// Creature reseeding is disabled so extinction is observable; plants still
// regrow.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed uint64, runID string) (*runResult, error) {
	cfg, err := fe.baseConfig.Clone()
	if err != nil {
		return nil, err
	}
	fe.params.ApplyToConfig(cfg, x)
	cfg.Population.Min = 0
	cfg.Persistence.Interval = 0

	result := &runResult{}
	w, err := game.NewWorld(cfg, game.Options{
		Seed:  seed,
		RunID: runID,
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windows = append(result.windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = w.Close() }()

	for w.Tick() < fe.maxTicks {
		w.Step()
		if len(w.Creatures()) == 0 {
			break
		}
	}
	result.survivalTicks = w.Tick()
	result.hallOfFame = w.HallOfFame()
	return result, nil
}

// computeFitness combines survival and quality: -(survival * (1 + 0.2*quality)).
// Survival dominates; quality separates runs that survive equally long.
func computeFitness(survivalTicks int, quality float64) float64 {
	return -(float64(survivalTicks) * (1.0 + 0.2*quality))
}

const (
	qualityWeightGeneration = 0.4
	qualityWeightStability  = 0.3
	qualityWeightTurnover   = 0.3

	qualityWarmupWindows = 2
	generationScale      = 10.0
)

// computeQuality scores population health in [0, 1] from window stats:
// generations reached, population stability and births keeping pace with
// deaths.
func computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	counts := make([]float64, 0, len(valid))
	var births, deaths, genMax int
	for _, w := range valid {
		counts = append(counts, float64(w.Creatures))
		births += w.Births
		deaths += w.Deaths
		genMax = max(genMax, w.GenerationMax)
	}

	generationScore := 1 - math.Exp(-float64(genMax)/generationScale)

	stabilityScore := 0.0
	if len(counts) >= 2 {
		c := cv(counts)
		stabilityScore = math.Exp(-c * c)
	}

	turnoverScore := 0.0
	if births+deaths > 0 {
		turnoverScore = float64(births) / float64(births+deaths) * 2
	}

	q := qualityWeightGeneration*generationScore +
		qualityWeightStability*stabilityScore +
		qualityWeightTurnover*min(turnoverScore, 1)
	return min(max(q, 0), 1)
}

// cv is the coefficient of variation (std/mean) of values.
func cv(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq/n) / mean
}
