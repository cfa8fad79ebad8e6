// Package store persists registry state as versioned snapshots.
//
// A Snapshot is a point-in-time copy of every named signal in a
// weft.Registry, encoded as JSON. Backends implement the Store interface:
// DiskStore for local files, S3Store for object storage, RedisStore for a
// shared cache. The Snapshotter runs the periodic capture loop.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/weft-dev/weft/pkg/weft"
)

var (
	// ErrNoSnapshot is returned by Load when the backend holds no snapshot.
	ErrNoSnapshot = errors.New("store: no snapshot available")
)

// Snapshot is a point-in-time copy of a registry's values.
type Snapshot struct {
	// Version increases by one per capture. Restores resume numbering from
	// the loaded version.
	Version uint64 `json:"version"`

	// TakenAt is the capture time in UTC.
	TakenAt time.Time `json:"taken_at"`

	// Values maps signal names to their JSON-encoded values.
	Values map[string]json.RawMessage `json:"values"`
}

// Store persists snapshots. Implementations must be safe for concurrent
// use.
type Store interface {
	// Save persists snap as the newest snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Load returns the newest snapshot. Returns ErrNoSnapshot when the
	// backend holds none.
	Load(ctx context.Context) (*Snapshot, error)

	// Prune removes all but the newest keep snapshots.
	Prune(ctx context.Context, keep int) error

	// Close releases backend resources.
	Close() error
}

// Lister is implemented by stores that can enumerate their versioned
// snapshots. All the stores in this package implement it.
type Lister interface {
	// List returns the stored snapshot versions in ascending order.
	List(ctx context.Context) ([]uint64, error)
}

// Capture copies every named signal in reg into a new snapshot. Reads are
// untracked, so capturing inside an effect does not subscribe the effect to
// the captured signals.
func Capture(reg *weft.Registry, version uint64) (*Snapshot, error) {
	values := make(map[string]json.RawMessage, reg.Len())

	var captureErr error
	weft.Untracked(func() {
		for _, name := range reg.Names() {
			sig, ok := reg.Lookup(name)
			if !ok {
				continue
			}
			data, err := sig.GetJSON()
			if err != nil {
				captureErr = fmt.Errorf("store: capture %q: %w", name, err)
				return
			}
			values[name] = data
		}
	})
	if captureErr != nil {
		return nil, captureErr
	}

	return &Snapshot{
		Version: version,
		TakenAt: time.Now().UTC(),
		Values:  values,
	}, nil
}

// Restore writes snap's values into reg, notifying subscribers of each
// changed signal. Names missing from the registry are skipped, so a
// snapshot taken under an older signal declaration still restores cleanly.
// Returns the number of signals written.
func Restore(reg *weft.Registry, snap *Snapshot) (int, error) {
	if snap == nil {
		return 0, nil
	}

	names := make([]string, 0, len(snap.Values))
	for name := range snap.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		sig, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		if err := sig.SetJSON(snap.Values[name]); err != nil {
			return applied, fmt.Errorf("store: restore %q: %w", name, err)
		}
		applied++
	}
	return applied, nil
}
