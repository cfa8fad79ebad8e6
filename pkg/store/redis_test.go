package store_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/pkg/store"
)

func newMiniredisStore(t *testing.T) (*store.RedisStore, *backend.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return store.NewRedisStoreFromClient(client), client
}

func TestRedisStoreContract(t *testing.T) {
	s, _ := newMiniredisStore(t)
	runStoreContract(t, s)
}

func TestRedisStorePruneTrimsArchive(t *testing.T) {
	s, client := newMiniredisStore(t)
	saveVersions(t, s, 1, 2, 3, 4)

	ctx := context.Background()
	err := s.Prune(ctx, 2)
	require.NoError(t, err)

	length, err := client.LLen(ctx, "weft:snapshot:archive").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), loaded.Version)
}

func TestRedisStorePruneZeroDropsArchive(t *testing.T) {
	s, client := newMiniredisStore(t)
	saveVersions(t, s, 1, 2)

	ctx := context.Background()
	err := s.Prune(ctx, 0)
	require.NoError(t, err)

	length, err := client.LLen(ctx, "weft:snapshot:archive").Result()
	require.NoError(t, err)
	assert.Zero(t, length)

	// The latest key survives pruning.
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Version)
}

func TestRedisStoreCustomPrefix(t *testing.T) {
	s, client := newMiniredisStore(t)
	s.WithPrefix("custom:")
	saveVersions(t, s, 1)

	ctx := context.Background()
	exists, err := client.Exists(ctx, "custom:latest").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}
