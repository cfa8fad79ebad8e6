// Package weft provides a fine-grained reactive engine.
//
// Dependencies are tracked automatically at runtime. Reading a signal while
// an effect or memo is running subscribes that listener to the signal's
// changes; the next write re-runs exactly the listeners that read it.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := NewSignal(0)
//	value := count.Get()  // Read (subscribes current listener)
//	count.Set(5)          // Write (notifies subscribers)
//	count.Update(func(n int) int { return n + 1 })
//
// Memo[T] is a cached derived computation, recomputed eagerly whenever a
// dependency changes and pushed downstream only when the cached value
// actually changed:
//
//	doubled := NewMemo(func() int { return count.Get() * 2 })
//	value := doubled.Get()
//
// Effect runs side effects when dependencies change. The function may return
// a Cleanup that runs before the next re-run and on Dispose:
//
//	CreateEffect(func() Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return func() { /* release */ }
//	})
//
// # Propagation
//
// Propagation is synchronous. Set returns after every subscribed listener
// has re-run; there is no scheduler and no update queue. Each notification
// pass snapshots the subscriber list first, so listeners attached or removed
// during the pass do not change which listeners the pass runs. Cyclic writes
// therefore recurse; SetDepthLimit installs an optional guard that panics
// with ErrDepthExceeded instead of overflowing the stack.
//
// # Thread Safety
//
// All reactive primitives are safe for concurrent use. The tracking context
// is per-goroutine, so a goroutine spawned inside an effect does not inherit
// the effect as its listener; reads there are untracked unless the goroutine
// installs its own context. Short-lived goroutines that touched the engine
// should call ReleaseTracking before exiting.
package weft
