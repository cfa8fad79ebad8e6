// Package source feeds signals from files on disk. A FileSource watches one
// file with fsnotify and writes its decoded contents into a registry signal
// whenever the file changes, so config files, feature flags, and secrets
// propagate through the reactive graph like any other write.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weft-dev/weft/pkg/weft"
)

// DefaultDebounce is how long a burst of write events is coalesced before
// the file is re-read.
const DefaultDebounce = 100 * time.Millisecond

// ErrAlreadyStarted is returned by Start when the source is running.
var ErrAlreadyStarted = errors.New("source: already started")

// FileSource watches a single file and pushes its decoded contents into a
// signal. Malformed contents are counted and skipped; the signal keeps its
// last good value.
type FileSource struct {
	path     string
	target   weft.AnySignal
	decode   DecodeFunc
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	applied atomic.Uint64
	errors  atomic.Uint64
}

// Option configures a FileSource.
type Option func(*FileSource)

// WithDecoder sets how file contents are turned into a signal value.
// Defaults to DecodeJSON.
func WithDecoder(fn DecodeFunc) Option {
	return func(f *FileSource) {
		f.decode = fn
	}
}

// WithDebounce sets the debounce duration for change processing. Changes
// arriving within this duration are coalesced into a single update.
func WithDebounce(d time.Duration) Option {
	return func(f *FileSource) {
		f.debounce = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FileSource) {
		f.logger = logger
	}
}

// NewFileSource creates a file source feeding target from path.
func NewFileSource(path string, target weft.AnySignal, opts ...Option) *FileSource {
	f := &FileSource{
		path:     path,
		target:   target,
		decode:   DecodeJSON,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the watched file path.
func (f *FileSource) Path() string {
	return f.path
}

// Applied returns how many file versions have been written to the signal.
func (f *FileSource) Applied() uint64 {
	return f.applied.Load()
}

// Errors returns how many reads or decodes have failed since Start.
func (f *FileSource) Errors() uint64 {
	return f.errors.Load()
}

// Start loads the file once, then watches for changes until ctx is canceled
// or Stop is called. The watch is on the parent directory so editors that
// replace the file by rename keep feeding the signal. A missing file at
// start is not an error; the signal updates when the file appears.
func (f *FileSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return ErrAlreadyStarted
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("source: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("source: watch %s: %w", f.path, err)
	}

	if err := f.load(); err != nil {
		f.logger.Warn("initial load skipped", "path", f.path, "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	f.started = true

	go f.watchLoop(ctx, watcher)
	return nil
}

// Stop ends the watch and waits for the loop to exit. Safe to call twice.
func (f *FileSource) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.started = false
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	cancel()
	<-done
}

func (f *FileSource) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(f.done)
	defer watcher.Close()
	defer weft.ReleaseTracking()

	name := filepath.Base(f.path)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if f.debounce <= 0 {
				f.reload()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timerC:
					default:
					}
				}
				timer.Reset(f.debounce)
			}

		case <-timerC:
			f.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.errors.Add(1)
			f.logger.Warn("watch error", "path", f.path, "error", err)
		}
	}
}

func (f *FileSource) reload() {
	if err := f.load(); err != nil {
		f.logger.Warn("reload skipped", "path", f.path, "error", err)
	}
}

// load reads, decodes, and applies the file. The previous value stays in
// place on any failure.
func (f *FileSource) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.errors.Add(1)
		return fmt.Errorf("source: read %s: %w", f.path, err)
	}

	payload, err := f.decode(data)
	if err != nil {
		f.errors.Add(1)
		return fmt.Errorf("source: decode %s: %w", f.path, err)
	}

	if err := f.target.SetJSON(payload); err != nil {
		f.errors.Add(1)
		return fmt.Errorf("source: apply %s: %w", f.path, err)
	}

	f.applied.Add(1)
	f.logger.Debug("file applied", "path", f.path, "bytes", len(data))
	return nil
}
