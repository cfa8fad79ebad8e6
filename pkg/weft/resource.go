package weft

import (
	"sync"
	"time"
)

// ResourceState is the lifecycle state of a Resource.
type ResourceState int

const (
	ResourcePending ResourceState = iota // before the first fetch settles
	ResourceLoading                      // fetch in flight
	ResourceReady                        // data loaded
	ResourceFailed                       // fetch failed
)

// String returns a human-readable state name.
func (s ResourceState) String() string {
	switch s {
	case ResourcePending:
		return "pending"
	case ResourceLoading:
		return "loading"
	case ResourceReady:
		return "ready"
	case ResourceFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resource bridges asynchronous data into the reactive graph. The fetcher
// runs on its own goroutine; its outcome lands in signals, so effects and
// memos can track a resource's state, data, and error like any other value.
//
//	users := weft.NewResource(fetchUsers)
//	weft.CreateEffect(func() weft.Cleanup {
//	    if users.State() == weft.ResourceReady {
//	        render(users.Data())
//	    }
//	    return nil
//	})
type Resource[T any] struct {
	fetcher func() (T, error)

	state *Signal[ResourceState]
	data  *Signal[T]
	err   *Signal[error]

	staleTime  time.Duration
	retryCount int
	retryDelay time.Duration
	onSuccess  func(T)
	onError    func(error)

	keyEffect *Effect

	lastFetch time.Time
	fetchID   uint64 // in-flight fetches with a stale ID discard their result
	mu        sync.Mutex
}

// NewResource creates a resource and starts its first fetch immediately.
func NewResource[T any](fetcher func() (T, error)) *Resource[T] {
	r := newResource(fetcher)
	r.Refetch()
	return r
}

// NewKeyedResource creates a resource whose fetcher derives from a key, and
// refetches whenever the key changes. The key is a Binding decided at the
// call site: a static key fetches once, a signal or getter key re-fetches on
// change.
//
//	user := weft.NewKeyedResource(weft.BindSignal(userID), fetchUser)
func NewKeyedResource[K any, T any](key Binding[K], fetcher func(K) (T, error)) *Resource[T] {
	r := newResource[T](nil)

	// The effect tracks the key; its first run performs the initial fetch.
	r.keyEffect = CreateEffect(func() Cleanup {
		k := key.Value()
		r.mu.Lock()
		r.fetcher = func() (T, error) { return fetcher(k) }
		r.mu.Unlock()
		r.Refetch()
		return nil
	}, EffectName("resource.key"))

	return r
}

func newResource[T any](fetcher func() (T, error)) *Resource[T] {
	var zero T
	return &Resource[T]{
		fetcher: fetcher,
		state:   NewSignal(ResourcePending),
		data:    NewSignal(zero),
		err:     NewSignal[error](nil),
	}
}

// StaleTime configures how long a Ready result satisfies Fetch without a
// refetch. Returns the resource.
func (r *Resource[T]) StaleTime(d time.Duration) *Resource[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staleTime = d
	return r
}

// RetryOnError configures automatic retries for failed fetches.
// Returns the resource.
func (r *Resource[T]) RetryOnError(count int, delay time.Duration) *Resource[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCount = count
	r.retryDelay = delay
	return r
}

// OnSuccess registers a callback for successful fetches. Returns the
// resource.
func (r *Resource[T]) OnSuccess(fn func(T)) *Resource[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSuccess = fn
	return r
}

// OnError registers a callback for failed fetches. Returns the resource.
func (r *Resource[T]) OnError(fn func(error)) *Resource[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
	return r
}

// State returns the resource state, tracking the current listener.
func (r *Resource[T]) State() ResourceState {
	return r.state.Get()
}

// IsLoading reports whether no data has settled yet.
func (r *Resource[T]) IsLoading() bool {
	s := r.state.Get()
	return s == ResourceLoading || s == ResourcePending
}

// IsReady reports whether data is loaded.
func (r *Resource[T]) IsReady() bool {
	return r.state.Get() == ResourceReady
}

// IsFailed reports whether the last fetch failed.
func (r *Resource[T]) IsFailed() bool {
	return r.state.Get() == ResourceFailed
}

// Data returns the last loaded value, tracking the current listener.
func (r *Resource[T]) Data() T {
	return r.data.Get()
}

// DataOr returns the loaded value, or fallback until the resource is ready.
func (r *Resource[T]) DataOr(fallback T) T {
	if r.IsReady() {
		return r.data.Get()
	}
	return fallback
}

// Err returns the last fetch error, tracking the current listener.
func (r *Resource[T]) Err() error {
	return r.err.Get()
}

// Fetch triggers a fetch unless a Ready result is newer than StaleTime.
func (r *Resource[T]) Fetch() {
	r.mu.Lock()
	fresh := r.state.Peek() == ResourceReady && time.Since(r.lastFetch) < r.staleTime
	r.mu.Unlock()

	if fresh {
		return
	}
	r.Refetch()
}

// Refetch always fetches, bypassing StaleTime. A fetch already in flight is
// superseded: its result is discarded when it lands.
func (r *Resource[T]) Refetch() {
	r.mu.Lock()
	r.fetchID++
	currentID := r.fetchID
	fetch := r.fetcher
	retryCount := r.retryCount
	retryDelay := r.retryDelay
	r.mu.Unlock()

	if fetch == nil {
		return
	}

	r.state.Set(ResourceLoading)
	r.err.Set(nil)

	go func() {
		var result T
		var err error

		maxAttempts := 1 + retryCount
		for i := 0; i < maxAttempts; i++ {
			if i > 0 {
				time.Sleep(retryDelay)
			}

			if r.superseded(currentID) {
				return
			}

			result, err = fetch()
			if err == nil {
				break
			}
		}

		r.mu.Lock()
		if r.fetchID != currentID {
			r.mu.Unlock()
			return
		}
		r.lastFetch = time.Now()
		onSuccess := r.onSuccess
		onError := r.onError
		r.mu.Unlock()

		if err != nil {
			r.err.Set(err)
			r.state.Set(ResourceFailed)
			if onError != nil {
				onError(err)
			}
			return
		}
		r.data.Set(result)
		r.state.Set(ResourceReady)
		if onSuccess != nil {
			onSuccess(result)
		}
	}()
}

func (r *Resource[T]) superseded(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchID != id
}

// Invalidate marks the current data stale so the next Fetch refetches.
func (r *Resource[T]) Invalidate() {
	r.mu.Lock()
	r.lastFetch = time.Time{}
	r.mu.Unlock()
}

// Mutate applies an optimistic local update to the loaded data without
// fetching.
func (r *Resource[T]) Mutate(fn func(T) T) {
	r.data.Set(fn(r.data.Peek()))
}

// Dispose stops key tracking and discards any in-flight fetch result.
// The state/data/err signals keep their last values.
func (r *Resource[T]) Dispose() {
	r.mu.Lock()
	r.fetchID++
	r.mu.Unlock()

	if r.keyEffect != nil {
		r.keyEffect.Dispose()
	}
}
