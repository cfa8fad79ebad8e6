package weft

import "sync/atomic"

// Engine counters. Cheap enough to keep always on; the live gateway exports
// them through a Prometheus collector.
var (
	statSignalsCreated atomic.Uint64
	statMemosCreated   atomic.Uint64
	statEffectsCreated atomic.Uint64
	statEffectRuns     atomic.Uint64
	statMemoRecomputes atomic.Uint64
	statSets           atomic.Uint64
	statNotifications  atomic.Uint64
)

// Stats is a point-in-time snapshot of the engine counters. All counters are
// process-wide, monotonic, and survive for the life of the process.
type Stats struct {
	// SignalsCreated counts NewSignal calls.
	SignalsCreated uint64

	// MemosCreated counts NewMemo calls.
	MemosCreated uint64

	// EffectsCreated counts CreateEffect calls.
	EffectsCreated uint64

	// EffectRuns counts effect body executions, initial runs included.
	EffectRuns uint64

	// MemoRecomputes counts memo body executions, initial runs included.
	MemoRecomputes uint64

	// Sets counts Set and Update calls, no-op writes included.
	Sets uint64

	// Notifications counts subscribers dispatched by change propagation.
	Notifications uint64
}

// ReadStats returns a snapshot of the engine counters.
func ReadStats() Stats {
	return Stats{
		SignalsCreated: statSignalsCreated.Load(),
		MemosCreated:   statMemosCreated.Load(),
		EffectsCreated: statEffectsCreated.Load(),
		EffectRuns:     statEffectRuns.Load(),
		MemoRecomputes: statMemoRecomputes.Load(),
		Sets:           statSets.Load(),
		Notifications:  statNotifications.Load(),
	}
}
