package store

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/weft-dev/weft/pkg/weft"
)

// Snapshotter captures a registry into a store on an interval. It owns the
// snapshot version counter: RestoreLatest seeds it from the loaded snapshot
// so numbering continues across restarts.
type Snapshotter struct {
	reg      *weft.Registry
	store    Store
	interval time.Duration
	keep     int
	logger   *slog.Logger
	version  atomic.Uint64
}

// NewSnapshotter creates a snapshotter. keep bounds how many versioned
// snapshots Prune leaves behind after each save; zero disables pruning.
func NewSnapshotter(reg *weft.Registry, st Store, interval time.Duration, keep int, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		reg:      reg,
		store:    st,
		interval: interval,
		keep:     keep,
		logger:   logger,
	}
}

// Version returns the version of the most recent capture or restore.
func (s *Snapshotter) Version() uint64 {
	return s.version.Load()
}

// RestoreLatest loads the newest snapshot and writes it into the registry.
// A backend with no snapshot is not an error; it restores zero signals.
func (s *Snapshotter) RestoreLatest(ctx context.Context) (int, error) {
	snap, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		s.logger.Info("no snapshot to restore")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	applied, err := Restore(s.reg, snap)
	if err != nil {
		return applied, err
	}
	s.version.Store(snap.Version)
	s.logger.Info("snapshot restored",
		"version", snap.Version,
		"signals", applied,
		"taken_at", snap.TakenAt)
	return applied, nil
}

// SnapshotNow captures the registry and saves it under the next version.
func (s *Snapshotter) SnapshotNow(ctx context.Context) (*Snapshot, error) {
	snap, err := Capture(s.reg, s.version.Add(1))
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, snap); err != nil {
		return nil, err
	}
	if s.keep > 0 {
		if err := s.store.Prune(ctx, s.keep); err != nil {
			s.logger.Warn("snapshot prune failed", "error", err)
		}
	}
	return snap, nil
}

// Run captures on the configured interval until ctx is canceled, then takes
// one final snapshot so a clean shutdown never loses state.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap, err := s.SnapshotNow(ctx)
			if err != nil {
				s.logger.Error("snapshot failed", "error", err)
				continue
			}
			s.logger.Debug("snapshot saved",
				"version", snap.Version,
				"signals", len(snap.Values))
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if snap, err := s.SnapshotNow(finalCtx); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			} else {
				s.logger.Info("final snapshot saved", "version", snap.Version)
			}
			return ctx.Err()
		}
	}
}
