// Package weft provides the public API for the weft reactive engine.
//
// This is the recommended import for most applications:
//
//	import "github.com/weft-dev/weft"
//
// Usage:
//
//	count, setCount := weft.CreateSignal(0)
//	doubled := weft.CreateComputed(func() int { return count() * 2 })
//	weft.CreateEffect(func() weft.Cleanup {
//	    fmt.Println("doubled:", doubled())
//	    return nil
//	})
//	setCount(3) // prints "doubled: 6" before returning
package weft

import (
	coreweft "github.com/weft-dev/weft/pkg/weft"
)

// =============================================================================
// Reactive primitives (re-export from pkg/weft)
// =============================================================================

// NewSignal creates a new reactive signal with the given initial value.
//
// Example:
//
//	count := weft.NewSignal(0)
//	count.Set(1)
//	value := count.Get() // 1
func NewSignal[T any](initial T) *Signal[T] {
	return coreweft.NewSignal(initial)
}

// CreateSignal creates a signal and returns it as a getter/setter pair.
//
// Example:
//
//	count, setCount := weft.CreateSignal(0)
//	setCount(count() + 1)
func CreateSignal[T any](initial T) (get func() T, set func(T)) {
	return coreweft.CreateSignal(initial)
}

// NewMemo creates a derived value that automatically tracks dependencies and
// recomputes eagerly when they change.
//
// Example:
//
//	doubled := weft.NewMemo(func() int {
//	    return count.Get() * 2
//	})
func NewMemo[T any](compute func() T) *Memo[T] {
	return coreweft.NewMemo(compute)
}

// CreateComputed creates a memo and returns only its getter.
func CreateComputed[T any](compute func() T) func() T {
	return coreweft.CreateComputed(compute)
}

// CreateEffect registers a side effect that runs immediately and re-runs,
// synchronously, when a dependency changes.
//
// Example:
//
//	weft.CreateEffect(func() weft.Cleanup {
//	    fmt.Println("count changed to:", count.Get())
//	    return nil
//	})
var CreateEffect = coreweft.CreateEffect

// NewIntSignal creates an integer signal with counter helpers.
var NewIntSignal = coreweft.NewIntSignal

// NewBoolSignal creates a boolean signal with toggle helpers.
var NewBoolSignal = coreweft.NewBoolSignal

// Untracked runs a function with dependency tracking suspended.
var Untracked = coreweft.Untracked

// UntrackedGet reads a value with dependency tracking suspended.
func UntrackedGet[T any](fn func() T) T {
	return coreweft.UntrackedGet(fn)
}

// WithListener runs fn with a listener installed for dependency tracking.
var WithListener = coreweft.WithListener

// ReleaseTracking discards the calling goroutine's tracking state.
var ReleaseTracking = coreweft.ReleaseTracking

// Signal type aliases
type Signal[T any] = coreweft.Signal[T]
type Memo[T any] = coreweft.Memo[T]
type Effect = coreweft.Effect
type Cleanup = coreweft.Cleanup
type Listener = coreweft.Listener
type IntSignal = coreweft.IntSignal
type BoolSignal = coreweft.BoolSignal

// Effect options
type EffectOption = coreweft.EffectOption

var EffectName = coreweft.EffectName
var OwnedBy = coreweft.OwnedBy

// =============================================================================
// Ownership and disposal scopes (re-export from pkg/weft)
// =============================================================================

// Owner is a disposal scope: effects created under it are torn down together.
type Owner = coreweft.Owner

// NewOwner creates an owner, optionally parented to another.
var NewOwner = coreweft.NewOwner

// WithOwner runs fn with an owner installed; effects created inside register
// with it.
var WithOwner = coreweft.WithOwner

// CurrentOwner returns the owner in effect on this goroutine, or nil.
var CurrentOwner = coreweft.CurrentOwner

// OnCleanup registers fn with the current owner, to run on disposal.
var OnCleanup = coreweft.OnCleanup

// =============================================================================
// Bindings (re-export from pkg/weft)
// =============================================================================

// Binding is a value source decided at the call site: static, getter, or
// signal.
type Binding[T any] = coreweft.Binding[T]

// BindValue binds a fixed value.
func BindValue[T any](v T) Binding[T] {
	return coreweft.BindValue(v)
}

// BindGetter binds a reactive getter.
func BindGetter[T any](fn func() T) Binding[T] {
	return coreweft.BindGetter(fn)
}

// BindSignal binds a signal.
func BindSignal[T any](s *Signal[T]) Binding[T] {
	return coreweft.BindSignal(s)
}

// Watch runs fn with the binding's value and re-runs it on change.
func Watch[T any](b Binding[T], fn func(T)) *Effect {
	return coreweft.Watch(b, fn)
}

// =============================================================================
// Resources (re-export from pkg/weft)
// =============================================================================

// Resource bridges asynchronous data into the reactive graph.
type Resource[T any] = coreweft.Resource[T]

// ResourceState is the lifecycle state of a Resource.
type ResourceState = coreweft.ResourceState

// ResourceState constants
const (
	ResourcePending = coreweft.ResourcePending
	ResourceLoading = coreweft.ResourceLoading
	ResourceReady   = coreweft.ResourceReady
	ResourceFailed  = coreweft.ResourceFailed
)

// NewResource creates a resource and starts its first fetch immediately.
func NewResource[T any](fetcher func() (T, error)) *Resource[T] {
	return coreweft.NewResource(fetcher)
}

// NewKeyedResource creates a resource that refetches when its key changes.
func NewKeyedResource[K any, T any](key Binding[K], fetcher func(K) (T, error)) *Resource[T] {
	return coreweft.NewKeyedResource(key, fetcher)
}

// =============================================================================
// Registry and type-erased signals (re-export from pkg/weft)
// =============================================================================

// AnySignal is the type-erased view of a Signal[T].
type AnySignal = coreweft.AnySignal

// Registry is a name-to-signal binding used by stores and transports.
type Registry = coreweft.Registry

// NewRegistry creates an empty registry.
var NewRegistry = coreweft.NewRegistry

// =============================================================================
// Engine guards and diagnostics (re-export from pkg/weft)
// =============================================================================

// SetDepthLimit installs a process-wide limit on nested notification depth.
var SetDepthLimit = coreweft.SetDepthLimit

// DepthLimit returns the current notification depth limit (0 means off).
var DepthLimit = coreweft.DepthLimit

// Stats is a point-in-time snapshot of the engine counters.
type Stats = coreweft.Stats

// ReadStats returns a snapshot of the engine counters.
var ReadStats = coreweft.ReadStats

// =============================================================================
// Errors (re-export from pkg/weft)
// =============================================================================

var ErrDepthExceeded = coreweft.ErrDepthExceeded
var ErrTypeMismatch = coreweft.ErrTypeMismatch
var ErrAlreadyRegistered = coreweft.ErrAlreadyRegistered
var ErrNotRegistered = coreweft.ErrNotRegistered
