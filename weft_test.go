package weft

import (
	"fmt"
	"reflect"
	"testing"

	coreweft "github.com/weft-dev/weft/pkg/weft"
)

// =============================================================================
// Type Identity Tests
// =============================================================================

func TestSignalIsCoreSignal(t *testing.T) {
	// Verify that weft.Signal is the same type as the core signal
	var facade *Signal[int]
	var core *coreweft.Signal[int]

	// They should be assignable
	facade = coreweft.NewSignal(1)
	core = facade
	_ = core
}

func TestEffectIsCoreEffect(t *testing.T) {
	var facade *Effect
	var core *coreweft.Effect

	facade = CreateEffect(func() Cleanup { return nil })
	core = facade
	core.Dispose()
}

// =============================================================================
// Reactive Primitive Tests
// =============================================================================

func TestNewSignal(t *testing.T) {
	s := NewSignal(42)
	if s.Get() != 42 {
		t.Errorf("expected 42, got %d", s.Get())
	}

	s.Set(100)
	if s.Get() != 100 {
		t.Errorf("expected 100, got %d", s.Get())
	}
}

func TestCreateSignal(t *testing.T) {
	count, setCount := CreateSignal(7)
	if count() != 7 {
		t.Errorf("expected 7, got %d", count())
	}

	setCount(9)
	if count() != 9 {
		t.Errorf("expected 9, got %d", count())
	}
}

func TestNewMemo(t *testing.T) {
	count := NewSignal(5)
	doubled := NewMemo(func() int {
		return count.Get() * 2
	})

	if doubled.Get() != 10 {
		t.Errorf("expected 10, got %d", doubled.Get())
	}
}

func TestCreateComputed(t *testing.T) {
	count, setCount := CreateSignal(3)
	tripled := CreateComputed(func() int {
		return count() * 3
	})

	if tripled() != 9 {
		t.Errorf("expected 9, got %d", tripled())
	}

	setCount(4)
	if tripled() != 12 {
		t.Errorf("expected 12, got %d", tripled())
	}
}

func TestUntracked(t *testing.T) {
	count := NewSignal(42)
	var value int
	Untracked(func() {
		value = count.Get()
	})
	if value != 42 {
		t.Errorf("expected 42, got %d", value)
	}
}

func TestUntrackedGet(t *testing.T) {
	count := NewSignal(42)
	value := UntrackedGet(count.Get)
	if value != 42 {
		t.Errorf("expected 42, got %d", value)
	}
}

// =============================================================================
// End-to-End Propagation Tests
// =============================================================================

func TestSignalComputedEffectChain(t *testing.T) {
	count, setCount := CreateSignal(0)
	doubled := CreateComputed(func() int {
		return count() * 2
	})

	var seen []int
	CreateEffect(func() Cleanup {
		seen = append(seen, doubled())
		return nil
	})

	setCount(1)
	setCount(1) // equal write, no notification

	want := []int{0, 2}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("seen = %v, want %v", seen, want)
	}
}

func TestEffectCleanupSequence(t *testing.T) {
	count, setCount := CreateSignal(0)

	var log []string
	CreateEffect(func() Cleanup {
		c := count()
		log = append(log, fmt.Sprintf("run:%d", c))
		return func() {
			log = append(log, fmt.Sprintf("cleanup:%d", c))
		}
	})

	setCount(1)

	want := []string{"run:0", "cleanup:0", "run:1"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

// =============================================================================
// Ownership Tests
// =============================================================================

func TestOwnerScopeDisposal(t *testing.T) {
	count := NewSignal(0)
	owner := NewOwner(nil)

	runs := 0
	WithOwner(owner, func() {
		CreateEffect(func() Cleanup {
			count.Get()
			runs++
			return nil
		})
	})

	count.Set(1)
	owner.Dispose()
	count.Set(2)

	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

// =============================================================================
// Binding Tests
// =============================================================================

func TestBindingConstructors(t *testing.T) {
	static := BindValue(10)
	if static.Value() != 10 {
		t.Errorf("expected 10, got %d", static.Value())
	}
	if static.IsReactive() {
		t.Error("static binding should not be reactive")
	}

	sig := NewSignal(20)
	bound := BindSignal(sig)
	if bound.Value() != 20 {
		t.Errorf("expected 20, got %d", bound.Value())
	}
	if !bound.IsReactive() {
		t.Error("signal binding should be reactive")
	}

	derived := BindGetter(func() int { return sig.Get() + 1 })
	if derived.Value() != 21 {
		t.Errorf("expected 21, got %d", derived.Value())
	}
}

func TestWatchThroughFacade(t *testing.T) {
	sig := NewSignal("a")
	var seen []string
	handle := Watch(BindSignal(sig), func(v string) {
		seen = append(seen, v)
	})
	defer handle.Dispose()

	sig.Set("b")

	want := []string{"a", "b"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("seen = %v, want %v", seen, want)
	}
}

// =============================================================================
// Resource Tests
// =============================================================================

func TestResourceStateConstants(t *testing.T) {
	if ResourcePending != 0 {
		t.Errorf("expected ResourcePending to be 0")
	}
	if ResourceLoading != 1 {
		t.Errorf("expected ResourceLoading to be 1")
	}
	if ResourceReady != 2 {
		t.Errorf("expected ResourceReady to be 2")
	}
	if ResourceFailed != 3 {
		t.Errorf("expected ResourceFailed to be 3")
	}
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegistryThroughFacade(t *testing.T) {
	reg := NewRegistry()
	sig := NewSignal(1)

	if err := reg.Register("counter", sig); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	entry, ok := reg.Lookup("counter")
	if !ok {
		t.Fatal("expected counter to be registered")
	}
	if entry.ID() != sig.ID() {
		t.Errorf("lookup returned a different signal")
	}
}

// =============================================================================
// Error Re-export Tests
// =============================================================================

func TestErrorsAreExported(t *testing.T) {
	if ErrDepthExceeded == nil {
		t.Error("ErrDepthExceeded should not be nil")
	}
	if ErrTypeMismatch == nil {
		t.Error("ErrTypeMismatch should not be nil")
	}
	if ErrAlreadyRegistered == nil {
		t.Error("ErrAlreadyRegistered should not be nil")
	}
	if ErrNotRegistered == nil {
		t.Error("ErrNotRegistered should not be nil")
	}
}

// =============================================================================
// Diagnostics Tests
// =============================================================================

func TestReadStatsThroughFacade(t *testing.T) {
	before := ReadStats()
	NewSignal(0)
	after := ReadStats()

	if after.SignalsCreated <= before.SignalsCreated {
		t.Errorf("expected SignalsCreated to increase")
	}
}
