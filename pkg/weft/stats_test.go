package weft

import (
	"testing"
)

func TestReadStatsCounters(t *testing.T) {
	// Counters are process-wide, so assert deltas.
	before := ReadStats()

	s := NewSignal(0)
	m := NewMemo(func() int { return s.Get() + 1 })
	CreateEffect(func() Cleanup {
		_ = m.Get()
		return nil
	})
	s.Set(1)
	s.Set(1) // no-op write still counts as a set

	after := ReadStats()

	if got := after.SignalsCreated - before.SignalsCreated; got != 1 {
		t.Errorf("expected 1 signal created, got %d", got)
	}
	if got := after.MemosCreated - before.MemosCreated; got != 1 {
		t.Errorf("expected 1 memo created, got %d", got)
	}
	if got := after.EffectsCreated - before.EffectsCreated; got != 1 {
		t.Errorf("expected 1 effect created, got %d", got)
	}
	// Initial run plus the run pushed by the first write.
	if got := after.EffectRuns - before.EffectRuns; got != 2 {
		t.Errorf("expected 2 effect runs, got %d", got)
	}
	// Initial computation plus the eager recompute.
	if got := after.MemoRecomputes - before.MemoRecomputes; got != 2 {
		t.Errorf("expected 2 memo recomputes, got %d", got)
	}
	if got := after.Sets - before.Sets; got != 2 {
		t.Errorf("expected 2 sets, got %d", got)
	}
	// The write notified the memo, whose push notified the effect.
	if got := after.Notifications - before.Notifications; got != 2 {
		t.Errorf("expected 2 notifications, got %d", got)
	}
}
