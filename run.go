package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/game"
	"github.com/pthm-cable/lifesim/persist"
	"github.com/pthm-cable/lifesim/telemetry"
)

type runOptions struct {
	configPath  string
	seed        uint64
	maxTicks    int
	outputDir   string
	logStats    bool
	snapshot    string
	resume      string
	sqlitePath  string
	metricsAddr string
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulation(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	f.Uint64Var(&opts.seed, "seed", 0, "RNG seed (0 = the resumed run's seed, or time-based)")
	f.IntVar(&opts.maxTicks, "max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	f.StringVar(&opts.outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	f.BoolVar(&opts.logStats, "log-stats", false, "Output window stats via slog")
	f.StringVar(&opts.snapshot, "snapshot", "", "JSON file overwritten with every autosave")
	f.StringVar(&opts.resume, "resume", "", "Resume from a JSON snapshot file")
	f.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite snapshot history database (overrides persistence.sqlite_path)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	return cmd
}

func runSimulation(ctx context.Context, opts runOptions) error {
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := config.Cfg()

	seed := opts.seed
	var snap *persist.WorldSnapshot
	runID := uuid.NewString()
	if opts.resume != "" {
		var err error
		if snap, err = persist.LoadFile(opts.resume); err != nil {
			return fmt.Errorf("load resume snapshot: %w", err)
		}
		runID = snap.RunID
		if seed == 0 {
			seed = snap.Seed
		}
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	sinks, closeSinks, err := openSinks(ctx, cfg.Persistence, opts)
	if err != nil {
		return err
	}
	defer closeSinks()

	metricsAddr := cfg.Metrics.Addr
	if opts.metricsAddr != "" {
		metricsAddr = opts.metricsAddr
	}
	var metrics *telemetry.Metrics
	if metricsAddr != "" {
		metrics = telemetry.NewMetrics(runID)
		go func() {
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	worldOpts := game.Options{
		Seed:      seed,
		RunID:     runID,
		OutputDir: opts.outputDir,
		LogStats:  opts.logStats,
		Metrics:   metrics,
		Sinks:     sinks,
	}
	var world *game.World
	if snap != nil {
		world, err = game.Restore(cfg, worldOpts, snap)
	} else {
		world, err = game.NewWorld(cfg, worldOpts)
	}
	if err != nil {
		return fmt.Errorf("create world: %w", err)
	}

	slog.Info("starting simulation",
		"run_id", runID,
		"seed", seed,
		"max_ticks", opts.maxTicks,
		"sinks", len(sinks),
	)
	runErr := world.Run(ctx, opts.maxTicks)
	return errors.Join(runErr, world.Close())
}

// openSinks opens every snapshot destination named by the flags and config.
// The returned func closes the ones that hold resources.
func openSinks(ctx context.Context, pc config.PersistenceConfig, opts runOptions) ([]persist.Sink, func(), error) {
	var sinks []persist.Sink
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Error("failed to close snapshot store", "error", err)
			}
		}
	}

	file := pc.File
	if opts.snapshot != "" {
		file = opts.snapshot
	}
	if file != "" {
		sinks = append(sinks, persist.FileSink{Path: file})
	}

	sqlitePath := pc.SQLitePath
	if opts.sqlitePath != "" {
		sqlitePath = opts.sqlitePath
	}
	if sqlitePath != "" {
		store, err := persist.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, func() {}, err
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	}

	if pc.S3.Bucket != "" {
		archive, err := persist.NewS3Archive(ctx, pc.S3)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open s3 archive: %w", err)
		}
		sinks = append(sinks, archive)
	}
	return sinks, closeAll, nil
}
