package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/pkg/store"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage state snapshots",
		Long: `Save, inspect, and list snapshots on the configured backend.

Subcommands:
  save   Capture the persisted signals and save a new snapshot version
  load   Print the newest snapshot without applying it
  list   List the stored snapshot versions

All subcommands read the snapshot backend from weft.yaml. A running
gateway is not required; save seeds the signals from the newest stored
snapshot first, so values carry forward and newly declared signals
join at their initial values.

Examples:
  weft snapshot save
  weft snapshot load --values
  weft snapshot list --config=/etc/weft/weft.yaml`,
	}

	cmd.AddCommand(
		snapshotSaveCmd(),
		snapshotLoadCmd(),
		snapshotListCmd(),
	)

	return cmd
}

// openStore loads the configuration and opens the configured snapshot
// backend. Shared by all snapshot subcommands.
func openStore(configPath string) (*config.Config, store.Store, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	st, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, fmt.Errorf("no snapshot backend configured in %s", configPath)
	}
	return cfg, st, nil
}

// =============================================================================
// weft snapshot save
// =============================================================================

func snapshotSaveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a new snapshot version",
		Long: `Capture the persisted signals and save them as a new snapshot.

The persisted signals are built from weft.yaml, seeded from the newest
stored snapshot when one exists, then captured as version N+1. Signals
declared since the last save are included at their initial values, so
this doubles as a migration step after editing weft.yaml.

After saving, versions beyond the configured keep count are pruned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to the configuration file")

	return cmd
}

func runSnapshotSave(ctx context.Context, configPath string) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	_, persisted, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if persisted.Len() == 0 {
		return fmt.Errorf("no signals marked persist: true in %s", configPath)
	}

	var version uint64
	prev, err := st.Load(ctx)
	switch {
	case err == nil:
		applied, err := store.Restore(persisted, prev)
		if err != nil {
			return fmt.Errorf("seed from snapshot %d: %w", prev.Version, err)
		}
		version = prev.Version
		info("Seeded from version %d (%d of %d signals)", prev.Version, applied, persisted.Len())
	case errors.Is(err, store.ErrNoSnapshot):
		info("No existing snapshot; capturing initial values")
	default:
		return err
	}

	snap, err := store.Capture(persisted, version+1)
	if err != nil {
		return err
	}
	if err := st.Save(ctx, snap); err != nil {
		return err
	}
	if cfg.Snapshot.Keep > 0 {
		if err := st.Prune(ctx, cfg.Snapshot.Keep); err != nil {
			warn("Prune failed: %v", err)
		}
	}

	success("Saved snapshot version %d (%d signals, %s backend)", snap.Version, len(snap.Values), cfg.Snapshot.Backend)
	return nil
}

// =============================================================================
// weft snapshot load
// =============================================================================

func snapshotLoadCmd() *cobra.Command {
	var (
		configPath string
		showValues bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Print the newest snapshot",
		Long: `Load the newest snapshot from the backend and print it.

Nothing is written; this inspects what a gateway restart would restore.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotLoad(cmd.Context(), configPath, showValues)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to the configuration file")
	cmd.Flags().BoolVar(&showValues, "values", false, "Print each signal's JSON value")

	return cmd
}

func runSnapshotLoad(ctx context.Context, configPath string, showValues bool) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Load(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		warn("No snapshot stored on the %s backend", cfg.Snapshot.Backend)
		return nil
	}
	if err != nil {
		return err
	}

	info("Version:  %d", snap.Version)
	info("Taken:    %s", snap.TakenAt.Format(time.RFC3339))
	info("Signals:  %d", len(snap.Values))

	if showValues {
		names := make([]string, 0, len(snap.Values))
		for name := range snap.Values {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println()
		for _, name := range names {
			fmt.Printf("  %-24s %s\n", name, snap.Values[name])
		}
	}

	return nil
}

// =============================================================================
// weft snapshot list
// =============================================================================

func snapshotListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshot versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to the configuration file")

	return cmd
}

func runSnapshotList(ctx context.Context, configPath string) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	lister, ok := st.(store.Lister)
	if !ok {
		return fmt.Errorf("%s backend cannot list snapshots", cfg.Snapshot.Backend)
	}

	versions, err := lister.List(ctx)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		warn("No snapshots stored on the %s backend", cfg.Snapshot.Backend)
		return nil
	}

	for i, v := range versions {
		if i == len(versions)-1 {
			fmt.Printf("  %d  (newest)\n", v)
		} else {
			fmt.Printf("  %d\n", v)
		}
	}
	info("%d snapshots on the %s backend", len(versions), cfg.Snapshot.Backend)

	return nil
}
