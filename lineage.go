package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/lifesim/config"
	"github.com/pthm-cable/lifesim/game"
	"github.com/pthm-cable/lifesim/persist"
)

func lineageCmd() *cobra.Command {
	var (
		configPath string
		snapshot   string
		sqlitePath string
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Print the species forest of a saved world",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := loadSnapshot(cmd.Context(), snapshot, sqlitePath, runID)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return printLineage(cmd.OutOrStdout(), cfg, snap)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Config the snapshot was written with (empty = defaults)")
	f.StringVar(&snapshot, "snapshot", "", "JSON snapshot file")
	f.StringVar(&sqlitePath, "sqlite", "", "Read the latest snapshot from this SQLite history instead")
	f.StringVar(&runID, "run", "", "Run id to read from the SQLite history (empty = most recent run)")
	return cmd
}

// loadSnapshot reads a snapshot from a JSON file or the newest entry of a
// SQLite history.
func loadSnapshot(ctx context.Context, path, sqlitePath, runID string) (*persist.WorldSnapshot, error) {
	switch {
	case path != "":
		return persist.LoadFile(path)
	case sqlitePath != "":
		store, err := persist.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		return store.Latest(ctx, runID)
	}
	return nil, errors.New("one of --snapshot or --sqlite is required")
}

func printLineage(w io.Writer, cfg *config.Config, snap *persist.WorldSnapshot) error {
	world, err := game.Restore(cfg, game.Options{}, snap)
	if err != nil {
		return fmt.Errorf("restore world: %w", err)
	}
	defer func() { _ = world.Close() }()

	members := make(map[string]int)
	for _, c := range world.Creatures() {
		if c.Species != nil {
			members[c.Species.Name]++
		}
	}
	fmt.Fprintf(w, "run %s tick %d: %d species, %d creatures\n",
		world.RunID(), world.Tick(), world.Lineage().Len(), len(world.Creatures()))
	return world.Lineage().Fprint(w, members)
}

func historyCmd() *cobra.Command {
	var (
		sqlitePath string
		runID      string
		keep       int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the snapshots stored in a SQLite history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := persist.OpenSQLite(sqlitePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if keep > 0 {
				if runID == "" {
					return errors.New("--keep requires --run")
				}
				removed, err := store.Prune(ctx, runID, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d snapshots\n", removed)
			}

			entries, err := store.List(ctx, runID)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", e.RunID, e.Tick, e.SavedAt.UTC().Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sqlitePath, "sqlite", "lifesim.db", "SQLite snapshot history database")
	f.StringVar(&runID, "run", "", "Only list this run")
	f.IntVar(&keep, "keep", 0, "Delete all but the newest N snapshots of --run first")
	return cmd
}
