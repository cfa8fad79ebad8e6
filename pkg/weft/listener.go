package weft

// Listener is anything that can be notified when a dependency changes.
// It is implemented by effects and memos. Notification is synchronous:
// MarkDirty runs the listener's reaction before returning.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	// For effects, this re-runs the effect body immediately.
	// For memos, this recomputes the value and pushes it downstream.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Subscription edges deduplicate and remove by ID.
	ID() uint64
}

// Cleanup is a function returned by an effect body to release resources.
// It runs before the effect re-runs and when the effect is disposed.
// A nil Cleanup means the run has nothing to release.
type Cleanup func()

// sourceTracker is implemented by listeners that record which signals they
// read, so a re-run can drop stale subscriptions first.
type sourceTracker interface {
	addSource(source *signalBase)
}
