package weft

import (
	"fmt"
	"reflect"
	"sync"
)

// signalBase provides type-erased subscriber management.
// It is embedded in Signal[T] and Memo[T] to share subscription logic.
type signalBase struct {
	id uint64

	// subs are the listeners subscribed to this signal, in subscription order.
	subs []Listener

	// subMu protects the subs slice.
	subMu sync.RWMutex
}

// subscribe adds a listener to this signal's subscribers.
// Deduplicates by listener ID so repeated reads in one run subscribe once.
func (s *signalBase) subscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}

	s.subs = append(s.subs, l)
}

// unsubscribe removes a listener from this signal's subscribers.
// Removal preserves subscription order; no-op if the listener is absent.
func (s *signalBase) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// notifySubscribers runs every listener subscribed at the moment of the call.
// The subscriber slice is snapshotted first: listeners added during the pass
// do not run in it, and listeners removed during the pass still do. Each
// snapshot member runs exactly once per call, synchronously, in subscription
// order. The write that triggered the notification returns only after every
// subscriber has finished.
func (s *signalBase) notifySubscribers() {
	s.subMu.RLock()
	subs := make([]Listener, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	if len(subs) == 0 {
		return
	}
	statNotifications.Add(uint64(len(subs)))

	if limit := DepthLimit(); limit > 0 {
		tc := getTrackingContext()
		tc.notifyDepth++
		defer func() { tc.notifyDepth-- }()
		if tc.notifyDepth > limit {
			panic(fmt.Errorf("%w: depth %d with limit %d", ErrDepthExceeded, tc.notifyDepth, limit))
		}
	}

	for _, sub := range subs {
		sub.MarkDirty()
	}
}

// getID returns the unique identifier for this signal.
func (s *signalBase) getID() uint64 {
	return s.id
}

// Signal is a reactive value container.
// Reading a Signal's value while a listener is installed (an effect body or
// memo computation on the same goroutine) subscribes that listener to the
// signal; writing a different value re-runs every subscriber synchronously
// before Set returns.
type Signal[T any] struct {
	base signalBase

	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal decides whether a write changed the value.
	// If nil, uses default equality checking.
	equal func(T, T) bool
}

// NewSignal creates a new signal with the given initial value.
func NewSignal[T any](initial T) *Signal[T] {
	statSignalsCreated.Add(1)
	return &Signal[T]{
		base: signalBase{
			id: nextID(),
		},
		value: initial,
	}
}

// CreateSignal creates a signal and returns it as a getter/setter pair.
// The getter tracks like Get; the setter notifies like Set.
//
//	count, setCount := weft.CreateSignal(0)
//	weft.CreateEffect(func() weft.Cleanup {
//	    fmt.Println(count())
//	    return nil
//	})
//	setCount(1)
func CreateSignal[T any](initial T) (get func() T, set func(T)) {
	s := NewSignal(initial)
	return s.Get, s.Set
}

// Get returns the current value and subscribes the current listener.
// A plain read (no listener installed) has no side effect.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track the dependency after releasing the value lock.
	if listener := getCurrentListener(); listener != nil {
		s.base.subscribe(listener)
		if st, ok := listener.(sourceTracker); ok {
			st.addSource(&s.base)
		}
	}

	return value
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set stores a new value and synchronously runs every subscriber.
// A write that compares equal to the stored value is a complete no-op:
// nothing is stored and no subscriber runs.
func (s *Signal[T]) Set(value T) {
	statSets.Add(1)

	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.base.notifySubscribers()
	}
}

// Update applies fn to the current value and stores the result via the same
// no-op-if-equal rule as Set.
func (s *Signal[T]) Update(fn func(T) T) {
	statSets.Add(1)

	s.mu.Lock()
	oldValue := s.value
	newValue := fn(oldValue)
	changed := !s.equals(oldValue, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.base.notifySubscribers()
	}
}

// WithEquals configures a custom equality function and returns the signal.
// Useful when the default comparison is wrong for the element type, e.g. to
// compare slices by content or structs by a key field.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

// equals checks two values with the configured equality function.
func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals reports whether a write left the value unchanged.
// Primitives compare with ==. Other comparable values (pointers, channels,
// comparable structs) also compare with ==, which gives reference semantics
// for pointer-shaped types. Non-comparable values (slices, maps, functions)
// never compare equal: a freshly built slice is a new value even when its
// contents match, so subscribers must run.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		ra := reflect.ValueOf(a)
		rb := reflect.ValueOf(b)
		if !ra.IsValid() || !rb.IsValid() {
			// Untyped nils inside an interface-typed signal.
			return ra.IsValid() == rb.IsValid()
		}
		if ra.Comparable() && rb.Comparable() {
			return ra.Equal(rb)
		}
		return false
	}
}
