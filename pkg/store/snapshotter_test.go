package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/pkg/store"
)

func TestSnapshotterSnapshotNow(t *testing.T) {
	reg, counter, _ := newTestRegistry(t)
	s := store.NewDiskStore(t.TempDir())
	snapper := store.NewSnapshotter(reg, s, time.Hour, 0, nil)

	ctx := context.Background()
	counter.Set(10)

	snap, err := snapper.SnapshotNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)

	counter.Set(20)
	snap, err = snapper.SnapshotNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Version)
}

func TestSnapshotterRestoreLatest(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	regA, counterA, labelA := newTestRegistry(t)
	counterA.Set(77)
	labelA.Set("persisted")
	snapperA := store.NewSnapshotter(regA, store.NewDiskStore(dir), time.Hour, 0, nil)
	_, err := snapperA.SnapshotNow(ctx)
	require.NoError(t, err)

	// A fresh process restores into a fresh registry and resumes version
	// numbering where the old one stopped.
	regB, counterB, labelB := newTestRegistry(t)
	snapperB := store.NewSnapshotter(regB, store.NewDiskStore(dir), time.Hour, 0, nil)

	applied, err := snapperB.RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 77, counterB.Get())
	assert.Equal(t, "persisted", labelB.Get())
	assert.Equal(t, uint64(1), snapperB.Version())

	snap, err := snapperB.SnapshotNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)
}

func TestSnapshotterRestoreLatestEmpty(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	snapper := store.NewSnapshotter(reg, store.NewDiskStore(t.TempDir()), time.Hour, 0, nil)

	applied, err := snapper.RestoreLatest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Zero(t, snapper.Version())
}

func TestSnapshotterRunPeriodicAndFinal(t *testing.T) {
	reg, counter, _ := newTestRegistry(t)
	counter.Set(5)
	s := store.NewDiskStore(t.TempDir())
	snapper := store.NewSnapshotter(reg, s, 10*time.Millisecond, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- snapper.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return snapper.Version() >= 1
	}, 2*time.Second, 5*time.Millisecond, "periodic snapshot should fire")

	versionBeforeCancel := snapper.Version()
	cancel()

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Shutdown takes one final snapshot.
	assert.Greater(t, snapper.Version(), versionBeforeCancel)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapper.Version(), loaded.Version)
}
