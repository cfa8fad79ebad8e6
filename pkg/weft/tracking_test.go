package weft

import (
	"sync"
	"testing"
)

// testListener is a simple Listener implementation for testing.
type testListener struct {
	id         uint64
	dirtyCount int
	mu         sync.Mutex
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() {
	l.mu.Lock()
	l.dirtyCount++
	l.mu.Unlock()
}

func (l *testListener) ID() uint64 {
	return l.id
}

func (l *testListener) getDirtyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirtyCount
}

func TestGetTrackingContext(t *testing.T) {
	// Getting context should return the same context for same goroutine
	ctx1 := getTrackingContext()
	ctx2 := getTrackingContext()

	if ctx1 != ctx2 {
		t.Error("getTrackingContext should return same context for same goroutine")
	}
}

func TestTrackingContextIsolation(t *testing.T) {
	listener := newTestListener()
	done := make(chan struct{})

	WithListener(listener, func() {
		if getCurrentListener() != listener {
			t.Error("expected listener installed on this goroutine")
		}

		go func() {
			defer close(done)
			defer ReleaseTracking()
			// A spawned goroutine has its own context with no listener.
			if getCurrentListener() != nil {
				t.Error("spawned goroutine should not inherit the listener")
			}
		}()
		<-done
	})
}

func TestWithListenerNesting(t *testing.T) {
	outer := newTestListener()
	inner := newTestListener()

	WithListener(outer, func() {
		if getCurrentListener() != outer {
			t.Error("expected outer listener installed")
		}

		WithListener(inner, func() {
			if getCurrentListener() != inner {
				t.Error("expected inner listener installed")
			}
		})

		// Restored after the nested scope exits.
		if getCurrentListener() != outer {
			t.Error("expected outer listener restored after nested scope")
		}
	})

	if getCurrentListener() != nil {
		t.Error("expected no listener after outermost scope")
	}
}

func TestWithListenerRestoresOnPanic(t *testing.T) {
	listener := newTestListener()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		WithListener(listener, func() {
			panic("boom")
		})
	}()

	if getCurrentListener() != nil {
		t.Error("listener should be restored even when the body panics")
	}
}

func TestUntracked(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		Untracked(func() {
			_ = count.Get()
		})

		// The listener must be re-installed after the untracked scope.
		if getCurrentListener() != listener {
			t.Error("expected listener restored after Untracked")
		}
	})

	count.Set(1)
	if listener.getDirtyCount() != 0 {
		t.Errorf("untracked read should not subscribe, got %d notifications", listener.getDirtyCount())
	}
}

func TestUntrackedGet(t *testing.T) {
	count := NewSignal(7)
	listener := newTestListener()

	var value int
	WithListener(listener, func() {
		value = UntrackedGet(count.Get)
	})

	if value != 7 {
		t.Errorf("expected 7, got %d", value)
	}

	count.Set(8)
	if listener.getDirtyCount() != 0 {
		t.Errorf("UntrackedGet should not subscribe, got %d notifications", listener.getDirtyCount())
	}
}

func TestWithOwner(t *testing.T) {
	outer := NewOwner(nil)
	inner := NewOwner(nil)

	WithOwner(outer, func() {
		if CurrentOwner() != outer {
			t.Error("expected outer owner installed")
		}

		WithOwner(inner, func() {
			if CurrentOwner() != inner {
				t.Error("expected inner owner installed")
			}
		})

		if CurrentOwner() != outer {
			t.Error("expected outer owner restored after nested scope")
		}
	})

	if CurrentOwner() != nil {
		t.Error("expected no owner after outermost scope")
	}
}

func TestReleaseTracking(t *testing.T) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		listener := newTestListener()
		setCurrentListener(listener)
		ReleaseTracking()

		// A fresh context is created on the next access, with no listener.
		if getCurrentListener() != nil {
			t.Error("expected clean context after ReleaseTracking")
		}
		ReleaseTracking()
	}()
	<-done
}

func TestTrackingConcurrentGoroutines(t *testing.T) {
	count := NewSignal(0)
	var wg sync.WaitGroup
	const numGoroutines = 50

	listeners := make([]*testListener, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		listeners[i] = newTestListener()
	}

	// Each goroutine installs its own listener; contexts must not bleed.
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			defer ReleaseTracking()
			WithListener(listeners[idx], func() {
				_ = count.Get()
				if getCurrentListener() != listeners[idx] {
					t.Errorf("goroutine %d observed a foreign listener", idx)
				}
			})
		}(i)
	}
	wg.Wait()

	count.Set(1)
	for i, listener := range listeners {
		if listener.getDirtyCount() != 1 {
			t.Errorf("listener %d expected 1 notification, got %d", i, listener.getDirtyCount())
		}
	}
}
