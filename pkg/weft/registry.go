package weft

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// AnySignal is the type-erased view of a Signal[T], letting registries,
// stores, and transports handle signals of mixed element types uniformly.
// GetAny and GetJSON track like Get; SetAny and SetJSON notify like Set.
type AnySignal interface {
	// ID returns the signal's unique identifier.
	ID() uint64

	// GetAny returns the current value, tracking the current listener.
	GetAny() any

	// SetAny stores a value of the signal's element type.
	// Returns ErrTypeMismatch for any other dynamic type.
	SetAny(v any) error

	// GetJSON returns the current value encoded as JSON, tracking the
	// current listener.
	GetJSON() ([]byte, error)

	// SetJSON decodes data into the signal's element type and stores it.
	SetJSON(data []byte) error
}

// GetAny returns the current value as an any. Tracks like Get.
func (s *Signal[T]) GetAny() any {
	return s.Get()
}

// SetAny stores v if its dynamic type is the signal's element type.
func (s *Signal[T]) SetAny(v any) error {
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: have %T", ErrTypeMismatch, v)
	}
	s.Set(tv)
	return nil
}

// GetJSON returns the current value encoded as JSON. Tracks like Get.
func (s *Signal[T]) GetJSON() ([]byte, error) {
	return json.Marshal(s.Get())
}

// SetJSON decodes data into the signal's element type and stores it.
func (s *Signal[T]) SetJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	s.Set(v)
	return nil
}

// Registry is a name-to-signal binding. It is how signals cross process
// boundaries: the snapshot store persists a registry's values by name, and
// the live gateway serves them by name. The registry itself is passive and
// never subscribes to anything.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]AnySignal
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]AnySignal),
	}
}

// Register binds name to s. Returns ErrAlreadyRegistered if the name is
// taken.
func (r *Registry) Register(name string, s AnySignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	r.entries[name] = s
	return nil
}

// Lookup returns the signal bound to name.
func (r *Registry) Lookup(name string) (AnySignal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.entries[name]
	return s, ok
}

// Names returns all bound names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var _ AnySignal = (*Signal[int])(nil)
