package weft

type bindingKind uint8

const (
	bindStatic bindingKind = iota
	bindGetter
	bindSignal
)

// Binding is a value source decided once at the call site: a fixed value, a
// reactive getter, or a signal. APIs that can consume either a constant or a
// live value take a Binding instead of inspecting an any-typed argument at
// runtime.
type Binding[T any] struct {
	kind   bindingKind
	value  T
	getter func() T
	sig    *Signal[T]
}

// BindValue binds a fixed value. Reads never track.
func BindValue[T any](v T) Binding[T] {
	return Binding[T]{kind: bindStatic, value: v}
}

// BindGetter binds a reactive getter, typically a memo getter or a closure
// over signal reads. Reads track whatever the getter reads.
func BindGetter[T any](fn func() T) Binding[T] {
	return Binding[T]{kind: bindGetter, getter: fn}
}

// BindSignal binds a signal. Reads track the signal.
func BindSignal[T any](s *Signal[T]) Binding[T] {
	return Binding[T]{kind: bindSignal, sig: s}
}

// Value reads the bound source. Inside an effect or memo run this tracks
// reactive bindings; static bindings never subscribe anything.
func (b Binding[T]) Value() T {
	switch b.kind {
	case bindGetter:
		return b.getter()
	case bindSignal:
		return b.sig.Get()
	default:
		return b.value
	}
}

// Peek reads the bound source without tracking.
func (b Binding[T]) Peek() T {
	switch b.kind {
	case bindGetter:
		return UntrackedGet(b.getter)
	case bindSignal:
		return b.sig.Peek()
	default:
		return b.value
	}
}

// IsReactive reports whether reads of this binding can change over time.
func (b Binding[T]) IsReactive() bool {
	return b.kind != bindStatic
}

// Watch runs fn with the binding's current value and re-runs it whenever the
// bound source changes. Static bindings run fn exactly once. The returned
// effect stops the watch when disposed.
//
//	eff := weft.Watch(weft.BindSignal(addr), dialer.Redial)
//	defer eff.Dispose()
func Watch[T any](b Binding[T], fn func(T)) *Effect {
	return CreateEffect(func() Cleanup {
		fn(b.Value())
		return nil
	})
}
