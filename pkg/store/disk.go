package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const latestFile = "latest.json"

// DiskStore persists snapshots as JSON files in a directory. Each save
// writes a versioned file plus latest.json, both through a temp file and
// rename so a crash mid-write never corrupts an existing snapshot.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a disk store rooted at dir. The directory is created
// on first save.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Dir returns the snapshot directory.
func (d *DiskStore) Dir() string {
	return d.dir
}

// Save writes snap to snapshot-<version>.json and latest.json.
func (d *DiskStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("store: create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	if err := d.writeAtomic(versionFile(snap.Version), data); err != nil {
		return err
	}
	return d.writeAtomic(latestFile, data)
}

// Load reads latest.json.
func (d *DiskStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(d.dir, latestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Prune removes all but the newest keep versioned files. latest.json is
// never removed.
func (d *DiskStore) Prune(ctx context.Context, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: list snapshots: %w", err)
	}

	var versioned []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		versioned = append(versioned, name)
	}

	if keep < 0 {
		keep = 0
	}
	if len(versioned) <= keep {
		return nil
	}

	// Zero-padded version numbers make lexicographic order match numeric
	// order.
	sort.Strings(versioned)
	for _, name := range versioned[:len(versioned)-keep] {
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
			return fmt.Errorf("store: prune %s: %w", name, err)
		}
	}
	return nil
}

// List returns the versions of all stored snapshots, ascending.
func (d *DiskStore) List(ctx context.Context) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}

	var versions []uint64
	for _, entry := range entries {
		v, ok := parseVersionFile(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// Close is a no-op for disk stores.
func (d *DiskStore) Close() error {
	return nil
}

func (d *DiskStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(d.dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(d.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", name, err)
	}
	return nil
}

func versionFile(version uint64) string {
	return fmt.Sprintf("snapshot-%016d.json", version)
}

// parseVersionFile extracts the version from a snapshot file name.
func parseVersionFile(name string) (uint64, bool) {
	if !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "snapshot-"), ".json")
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var (
	_ Store  = (*DiskStore)(nil)
	_ Lister = (*DiskStore)(nil)
)
