package weft

import (
	"sync"
	"sync/atomic"
)

// Memo is a derived read-only value computed from other signals and memos.
//
// The computation runs once at creation and eagerly after that: whenever a
// dependency changes, the memo recomputes immediately and pushes the new
// value to its own subscribers, inside the write that changed the
// dependency. The getter looks lazy but almost never recomputes; a read
// only triggers computation when a previous run panicked before settling.
//
// A push uses the same no-op-if-equal rule as Signal.Set: when recomputation
// produces an equal value, downstream subscribers do not run.
//
// Memos are subscribable exactly like signals, so chains of derived values
// compose.
type Memo[T any] struct {
	base signalBase

	// compute is the source body.
	compute func() T

	// value is the current settled value.
	value T

	// valueMu protects value access.
	valueMu sync.RWMutex

	// valid is false only before the first successful computation (including
	// after a panic during it); a read while invalid recomputes first.
	valid atomic.Bool

	// sources are the signals/memos this memo depends on.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// equal decides whether a recomputation changed the value.
	equal func(T, T) bool

	// computing is the re-entrancy guard: a read of this memo issued from
	// inside its own push settles on the value being pushed instead of
	// re-entering the computation.
	computing atomic.Bool
}

// NewMemo creates a memo and computes it once immediately.
func NewMemo[T any](compute func() T) *Memo[T] {
	statMemosCreated.Add(1)

	m := &Memo[T]{
		base: signalBase{
			id: nextID(),
		},
		compute: compute,
	}
	m.recompute()
	return m
}

// CreateComputed creates a memo and returns only its getter.
//
//	count, setCount := weft.CreateSignal(1)
//	doubled := weft.CreateComputed(func() int { return count() * 2 })
//	setCount(3)
//	doubled() // 6
func CreateComputed[T any](compute func() T) func() T {
	return NewMemo(compute).Get
}

// Get returns the memo's value and subscribes the current listener to it.
// If a previous computation never settled, it recomputes first.
func (m *Memo[T]) Get() T {
	if !m.valid.Load() {
		m.recompute()
	}

	// Subscribe after settling so a recomputation triggered by this read
	// does not re-run the caller as part of its push.
	if listener := getCurrentListener(); listener != nil {
		m.base.subscribe(listener)
		if st, ok := listener.(sourceTracker); ok {
			st.addSource(&m.base)
		}
	}

	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// Peek returns the memo's value without subscribing.
// Still recomputes first if the value never settled.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// MarkDirty recomputes the memo and pushes the result downstream.
// Implements the Listener interface; called by upstream signals on change.
func (m *Memo[T]) MarkDirty() {
	m.recompute()
}

// ID returns the unique identifier for this memo.
// Implements the Listener interface.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// addSource records a dependency. Implements sourceTracker.
func (m *Memo[T]) addSource(source *signalBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// WithEquals configures a custom equality function and returns the memo.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

// recompute runs the source body under tracking and pushes the result.
func (m *Memo[T]) recompute() {
	// Re-entrancy guard. Pushing the new value runs subscribers while this
	// call is still on the stack; if one of them reads back into this memo,
	// the nested recompute returns immediately and the read settles on the
	// value stored below.
	if m.computing.Swap(true) {
		return
	}
	defer m.computing.Store(false)

	statMemoRecomputes.Add(1)

	// Unsubscribe from old sources so this run re-tracks from scratch.
	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	// Compute under tracking. The deferred restore keeps the tracker intact
	// when the body panics; valid stays false in that case so the next read
	// retries, and the panic propagates to whoever triggered this run.
	var newValue T
	func() {
		old := setCurrentListener(m)
		defer setCurrentListener(old)
		newValue = m.compute()
	}()

	m.valueMu.Lock()
	changed := !m.equals(m.value, newValue)
	m.value = newValue
	m.valueMu.Unlock()

	// Push before marking settled, mirroring a plain signal write.
	if changed {
		m.base.notifySubscribers()
	}
	m.valid.Store(true)
}

// equals checks two values with the configured equality function.
func (m *Memo[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

var (
	_ Listener      = (*Memo[int])(nil)
	_ sourceTracker = (*Memo[int])(nil)
)
