// Command tune searches metabolism parameters with CMA-ES for settings that
// keep a population alive and evolving without reseeding.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/lifesim/config"
)

type tuneOptions struct {
	configPath string
	maxTicks   int
	seeds      int
	maxEvals   int
	population int
	outputDir  string
	logLevel   string
}

// evalRecord is one row of tune_log.csv.
type evalRecord struct {
	Eval     int     `csv:"eval"`
	Fitness  float64 `csv:"fitness"`
	Survival float64 `csv:"survival_ticks"`
	Quality  float64 `csv:"quality"`
	Params   string  `csv:"params"`
}

func main() {
	if err := tuneCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func tuneCmd() *cobra.Command {
	var opts tuneOptions
	cmd := &cobra.Command{
		Use:          "tune",
		Short:        "CMA-ES search over metabolism parameters",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(opts.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", opts.logLevel, err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})))
			return tune(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	f.IntVar(&opts.maxTicks, "max-ticks", 20000, "Maximum ticks per run")
	f.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	f.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	f.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	f.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	f.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func tune(out io.Writer, opts tuneOptions) error {
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	baseCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	params := NewParamVector(baseCfg)
	seeds := make([]uint64, opts.seeds)
	for i := range seeds {
		seeds[i] = uint64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, opts.maxTicks, seeds, baseCfg)

	logFile, err := os.Create(filepath.Join(opts.outputDir, "tune_log.csv"))
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer logFile.Close()

	dim := params.Dim()
	popSize := opts.population
	if popSize == 0 {
		popSize = 4 + 3*dim/2
	}

	evalCount := 0
	bestFitness := 1e18
	var bestParams []float64
	start := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(raw)
			score := evaluator.Last()
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = raw
			}

			rec := []evalRecord{{
				Eval:     evalCount,
				Fitness:  fitness,
				Survival: score.Survival,
				Quality:  score.Quality,
				Params:   formatParams(params, raw),
			}}
			var werr error
			if evalCount == 1 {
				werr = gocsv.Marshal(rec, logFile)
			} else {
				werr = gocsv.MarshalWithoutHeaders(rec, logFile)
			}
			if werr != nil {
				slog.Error("failed to write tune log", "error", werr)
			}

			elapsed := time.Since(start)
			remaining := time.Duration(opts.maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			fmt.Fprintf(out, "Eval %d/%d: survived=%.0f ticks quality=%.2f (best=%.0f) | elapsed: %s, ETA: %s\n",
				evalCount, opts.maxEvals, score.Survival, score.Quality, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))
			return fitness
		},
	}

	// Seeds already run in parallel inside one evaluation.
	settings := &optimize.Settings{FuncEvaluations: opts.maxEvals, Concurrent: 1}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize}

	fmt.Fprintf(out, "Starting CMA-ES with %d parameters, population=%d, max_evals=%d\n", dim, popSize, opts.maxEvals)
	fmt.Fprintf(out, "Seeds per evaluation: %d, ticks per run: %d\n", opts.seeds, opts.maxTicks)

	result, err := optimize.Minimize(problem, params.Normalize(params.DefaultVector()), settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		return fmt.Errorf("no evaluation completed")
	}

	fmt.Fprintf(out, "\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(start)))
	fmt.Fprintf(out, "Best fitness: %.0f\n\nBest parameters:\n", bestFitness)
	for i, spec := range params.Specs {
		fmt.Fprintf(out, "  %s: %.6g\n", spec.Name, bestParams[i])
	}

	bestCfg, err := baseCfg.Clone()
	if err != nil {
		return err
	}
	params.ApplyToConfig(bestCfg, bestParams)
	cfgPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(cfgPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nBest config saved to: %s\n", cfgPath)

	if hof := evaluator.BestHallOfFame(); hof != nil {
		data, err := json.MarshalIndent(hof, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal hall of fame: %w", err)
		}
		hofPath := filepath.Join(opts.outputDir, "hall_of_fame.json")
		if err := os.WriteFile(hofPath, data, 0644); err != nil {
			return fmt.Errorf("write hall of fame: %w", err)
		}
		fmt.Fprintf(out, "Hall of fame saved to: %s\n", hofPath)
	}
	return nil
}

func formatParams(pv *ParamVector, values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%s=%.6g", pv.Specs[i].Name, v)
	}
	return strings.Join(parts, ";")
}

// formatDuration formats a duration as 1h02m03s or 2m03s.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
