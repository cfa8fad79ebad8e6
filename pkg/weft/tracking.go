package weft

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive state for one goroutine. Dependency
// tracking is goroutine-scoped: the listener installed while a body runs is
// only visible to reads on the same goroutine, so unrelated goroutines can
// use the engine independently without observing each other's tracking.
type trackingContext struct {
	// currentListener is what is currently tracking dependencies.
	// When a signal is read, it subscribes this listener.
	// nil means no tracking (reads don't create subscriptions).
	currentListener Listener

	// currentOwner is the Owner that adopts newly created effects.
	currentOwner *Owner

	// notifyDepth counts nested notification passes on this goroutine,
	// checked against the optional depth limit.
	notifyDepth int
}

// trackingContexts stores per-goroutine tracking contexts.
// Using sync.Map for concurrent access from multiple goroutines.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine,
// parsed from the runtime stack header. Implementation detail; never exposed.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> ".
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating one on first use.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// getCurrentListener returns the listener currently tracking dependencies,
// or nil when no tracking is active.
func getCurrentListener() Listener {
	return getTrackingContext().currentListener
}

// setCurrentListener installs a listener for dependency tracking and returns
// the previous one so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	return old
}

// getCurrentOwner returns the current owner for the goroutine, or nil.
func getCurrentOwner() *Owner {
	return getTrackingContext().currentOwner
}

// setCurrentOwner installs the owner that adopts newly created effects and
// returns the previous one.
func setCurrentOwner(o *Owner) *Owner {
	ctx := getTrackingContext()
	old := ctx.currentOwner
	ctx.currentOwner = o
	return old
}

// WithListener runs fn with l installed as the tracking listener, restoring
// the previous listener on every exit path including panics.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}

// WithOwner runs fn with owner as the current owner. Effects created inside
// fn register with it and are disposed when it is disposed.
//
// Example:
//
//	scope := weft.NewOwner(nil)
//	weft.WithOwner(scope, func() {
//	    weft.CreateEffect(func() weft.Cleanup { ... })
//	})
//	scope.Dispose() // tears the effect down
func WithOwner(owner *Owner, fn func()) {
	old := setCurrentOwner(owner)
	defer setCurrentOwner(old)
	fn()
}

// CurrentOwner returns the owner in effect on this goroutine, or nil.
func CurrentOwner() *Owner {
	return getCurrentOwner()
}

// Untracked runs fn with dependency tracking suspended: signals read inside
// fn do not subscribe the surrounding listener.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}

// UntrackedGet reads a value with dependency tracking suspended.
//
// Example:
//
//	weft.CreateEffect(func() weft.Cleanup {
//	    mode := modeSignal.Get() // tracked
//	    limit := weft.UntrackedGet(limitSignal.Get) // not tracked
//	    ...
//	})
func UntrackedGet[T any](fn func() T) T {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	return fn()
}

// ReleaseTracking discards the calling goroutine's tracking state. Long-lived
// programs that run reactive work on many short-lived goroutines should call
// it (usually deferred) before such a goroutine exits, so the per-goroutine
// map does not accumulate dead entries. Safe to call on a goroutine that
// never touched the engine.
func ReleaseTracking() {
	trackingContexts.Delete(getGoroutineID())
}
