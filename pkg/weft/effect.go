package weft

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect that re-runs when its dependencies change.
//
// An effect runs once when created. Every signal or memo read during the run
// subscribes the effect; any later write to one of them re-runs the effect
// synchronously, inside the write. Before each re-run the effect first runs
// the Cleanup returned by the previous run (if any), then drops all of its
// subscriptions, so a run's dependency set always reflects exactly the
// signals that run actually read. Branches not taken hold no subscriptions.
type Effect struct {
	id uint64

	// fn is the effect body.
	fn func() Cleanup

	// cleanup is the cleanup function returned by the last run, if any.
	cleanup Cleanup

	// sources are the signals/memos this effect currently depends on.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// owner is the Owner that disposes this effect, if any.
	owner *Owner

	// disposed makes Dispose idempotent. It does not block runs: an effect
	// still present in an in-flight notification snapshot runs in that pass
	// even if it was disposed earlier in the same pass.
	disposed atomic.Bool

	// name is an optional label for logs and diagnostics.
	name string
}

// MarkDirty re-runs the effect. Implements the Listener interface.
// Propagation is synchronous: the Set call that notified this effect does
// not return until the run completes.
func (e *Effect) MarkDirty() {
	e.run()
}

// ID returns the unique identifier for this effect.
// Implements the Listener interface.
func (e *Effect) ID() uint64 {
	return e.id
}

// Name returns the label set with EffectName, or "".
func (e *Effect) Name() string {
	return e.name
}

// run executes the effect body: previous cleanup first, then
// unsubscribe-all, then the body under tracking.
func (e *Effect) run() {
	statEffectRuns.Add(1)

	if e.cleanup != nil {
		c := e.cleanup
		e.cleanup = nil
		c()
	}

	// Unsubscribe from old sources so this run re-tracks from scratch.
	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	// Track new sources during execution. The deferred restore keeps the
	// tracker intact when the body panics; the panic itself propagates to
	// whichever write (or creation call) triggered this run.
	old := setCurrentListener(e)
	defer setCurrentListener(old)

	e.cleanup = e.fn()
}

// addSource records a dependency. Called by signals read during a run.
func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

// Dispose tears the effect down: it runs the pending cleanup and removes the
// effect from every signal it subscribes to. Nothing calls Dispose
// automatically unless the effect was created under an Owner; an effect that
// is simply forgotten stays subscribed and keeps running on every write.
// Dispose is idempotent.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		c := e.cleanup
		e.cleanup = nil
		c()
	}

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// IsDisposed reports whether Dispose has been called.
func (e *Effect) IsDisposed() bool {
	return e.disposed.Load()
}

// EffectOption configures an Effect at creation.
type EffectOption interface {
	isEffectOption()
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) isEffectOption()       {}
func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// EffectName labels the effect for logs and diagnostics.
func EffectName(name string) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.name = name
	})
}

// OwnedBy attaches the effect to a specific owner instead of the goroutine's
// current owner. Useful when effects are created from connection or worker
// goroutines that manage an explicit scope.
func OwnedBy(owner *Owner) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.owner = owner
	})
}

// CreateEffect creates an effect and runs it once immediately.
// The effect re-runs whenever a signal or memo it read during its most
// recent run changes. A non-nil Cleanup returned by the body runs before the
// next re-run and on Dispose.
//
// Example:
//
//	weft.CreateEffect(func() weft.Cleanup {
//	    id := session.Get()
//	    stream := connect(id)
//	    return stream.Close
//	})
func CreateEffect(fn func() Cleanup, opts ...EffectOption) *Effect {
	statEffectsCreated.Add(1)

	e := &Effect{
		id:    nextID(),
		fn:    fn,
		owner: getCurrentOwner(),
	}

	for _, opt := range opts {
		opt.applyEffect(e)
	}

	if e.owner != nil {
		e.owner.registerEffect(e)
	}

	e.run()

	return e
}

// OnCleanup registers fn with the current owner, to run when that owner is
// disposed. No-op when no owner is installed on this goroutine.
func OnCleanup(fn func()) {
	if owner := getCurrentOwner(); owner != nil {
		owner.OnCleanup(fn)
	}
}
