package store

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore persists snapshots in Redis. The newest snapshot lives at
// <prefix>latest; every save also pushes onto the <prefix>archive list,
// which Prune trims to the configured depth.
type RedisStore struct {
	client *backend.Client
	prefix string
}

// NewRedisStore creates a Redis snapshot store with its own client.
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client)
}

// NewRedisStoreFromClient creates a Redis snapshot store from an existing
// client. Close closes the client either way.
func NewRedisStoreFromClient(client *backend.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "weft:snapshot:",
	}
}

// WithPrefix sets the key prefix for snapshot keys.
func (r *RedisStore) WithPrefix(prefix string) *RedisStore {
	r.prefix = prefix
	return r
}

func (r *RedisStore) latestKey() string {
	return r.prefix + "latest"
}

func (r *RedisStore) archiveKey() string {
	return r.prefix + "archive"
}

// Save writes snap to the latest key and pushes it onto the archive list.
func (r *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.latestKey(), data, 0)
	pipe.LPush(ctx, r.archiveKey(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: redis save failed: %w", err)
	}
	return nil
}

// Load reads the latest key.
func (r *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	val, err := r.client.Get(ctx, r.latestKey()).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("store: redis load failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Prune trims the archive list to the newest keep entries. The latest key
// is never removed.
func (r *RedisStore) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		if err := r.client.Del(ctx, r.archiveKey()).Err(); err != nil {
			return fmt.Errorf("store: redis prune failed: %w", err)
		}
		return nil
	}
	if err := r.client.LTrim(ctx, r.archiveKey(), 0, int64(keep-1)).Err(); err != nil {
		return fmt.Errorf("store: redis prune failed: %w", err)
	}
	return nil
}

// List returns the versions of the archived snapshots, ascending. The
// archive holds full snapshot blobs, so listing reads them all; fine for
// operational use with a bounded keep depth.
func (r *RedisStore) List(ctx context.Context) ([]uint64, error) {
	blobs, err := r.client.LRange(ctx, r.archiveKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis list failed: %w", err)
	}

	// LPush puts the newest first; walk backwards for ascending order.
	versions := make([]uint64, 0, len(blobs))
	for i := len(blobs) - 1; i >= 0; i-- {
		var snap Snapshot
		if err := json.Unmarshal([]byte(blobs[i]), &snap); err != nil {
			return nil, fmt.Errorf("store: decode archived snapshot: %w", err)
		}
		versions = append(versions, snap.Version)
	}
	return versions, nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Lister = (*RedisStore)(nil)
)
