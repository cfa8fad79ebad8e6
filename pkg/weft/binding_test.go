package weft

import (
	"testing"
)

func TestBindValue(t *testing.T) {
	b := BindValue(42)

	if b.Value() != 42 {
		t.Errorf("expected 42, got %d", b.Value())
	}
	if b.Peek() != 42 {
		t.Errorf("expected 42, got %d", b.Peek())
	}
	if b.IsReactive() {
		t.Error("static binding should not be reactive")
	}

	// Reading a static binding inside a tracked scope subscribes nothing.
	listener := newTestListener()
	WithListener(listener, func() {
		_ = b.Value()
	})
	if listener.getDirtyCount() != 0 {
		t.Errorf("static binding should not track, got %d notifications", listener.getDirtyCount())
	}
}

func TestBindSignal(t *testing.T) {
	s := NewSignal("initial")
	b := BindSignal(s)

	if b.Value() != "initial" {
		t.Errorf("expected %q, got %q", "initial", b.Value())
	}
	if !b.IsReactive() {
		t.Error("signal binding should be reactive")
	}

	s.Set("changed")
	if b.Value() != "changed" {
		t.Errorf("expected %q, got %q", "changed", b.Value())
	}

	// Value tracks, Peek does not.
	tracked := newTestListener()
	WithListener(tracked, func() {
		_ = b.Value()
	})
	peeked := newTestListener()
	WithListener(peeked, func() {
		_ = b.Peek()
	})

	s.Set("again")
	if tracked.getDirtyCount() != 1 {
		t.Errorf("Value should track, got %d notifications", tracked.getDirtyCount())
	}
	if peeked.getDirtyCount() != 0 {
		t.Errorf("Peek should not track, got %d notifications", peeked.getDirtyCount())
	}
}

func TestBindGetter(t *testing.T) {
	count := NewSignal(3)
	b := BindGetter(func() int { return count.Get() * 2 })

	if b.Value() != 6 {
		t.Errorf("expected 6, got %d", b.Value())
	}
	if !b.IsReactive() {
		t.Error("getter binding should be reactive")
	}

	// The getter tracks whatever it reads.
	listener := newTestListener()
	WithListener(listener, func() {
		_ = b.Value()
	})
	count.Set(4)
	if listener.getDirtyCount() != 1 {
		t.Errorf("getter binding should track its reads, got %d", listener.getDirtyCount())
	}

	// Peek suspends tracking even through the getter.
	listener2 := newTestListener()
	WithListener(listener2, func() {
		_ = b.Peek()
	})
	count.Set(5)
	if listener2.getDirtyCount() != 0 {
		t.Errorf("Peek through getter should not track, got %d", listener2.getDirtyCount())
	}
}

func TestWatchSignalBinding(t *testing.T) {
	s := NewSignal(1)
	var seen []int

	eff := Watch(BindSignal(s), func(v int) {
		seen = append(seen, v)
	})

	s.Set(2)
	s.Set(3)

	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Errorf("expected seen [1 2 3], got %v", seen)
	}

	eff.Dispose()
	s.Set(4)
	if len(seen) != 3 {
		t.Errorf("disposed watch should not fire, got %v", seen)
	}
}

func TestWatchStaticBindingRunsOnce(t *testing.T) {
	runs := 0
	Watch(BindValue("fixed"), func(string) {
		runs++
	})

	if runs != 1 {
		t.Errorf("expected exactly one run for a static binding, got %d", runs)
	}
}
