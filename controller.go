package loadable

import (
	"context"
	"sync"
)

// FetchFunc produces the controller's value. The context is cancelled when
// the attempt is superseded; cancellation is advisory, the operation may
// keep running and its result is discarded at the commit boundary. The
// function must be safe to invoke multiple times.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer receives state snapshots after controller transitions.
// Observers must not call back into the controller to mutate it.
type Observer[T any] func(Snapshot[T])

type observerEntry[T any] struct {
	sub *Subscription
	fn  Observer[T]
}

// Subscription identifies a registered observer.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel unregisters the observer. Idempotent. A notification already
// queued at the time of cancellation may still be delivered.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Controller owns the lifecycle of one asynchronously produced value:
// loading, success, error, staleness and re-fetch. It is safe for
// concurrent use. The zero value is not usable; construct with New.
type Controller[T any] struct {
	mu         sync.Mutex
	fetch      FetchFunc[T]
	hasData    func(T) bool
	value      T
	hasValue   bool
	err        error
	loading    bool
	version    int
	token      *fetchToken
	attempt    *Attempt
	started    bool
	closed     bool
	observers  []observerEntry[T]
	refreshers []Refresher
	notify     notifier
}

// New creates a controller around a fetch operation. No fetch is issued
// until the first observer registers or LoadIfNeeded is called.
func New[T any](fetch FetchFunc[T], opts ...Option[T]) *Controller[T] {
	c := &Controller[T]{
		fetch:   fetch,
		hasData: func(T) bool { return true },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns a point-in-time snapshot. Pure and side-effect free.
func (c *Controller[T]) Read() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Value:    c.value,
		HasValue: c.hasValue,
		Err:      c.err,
		Loading:  c.loading,
		Version:  c.version,
		Phase:    c.phaseLocked(),
	}
}

func (c *Controller[T]) phaseLocked() Phase {
	switch {
	case c.hasValue && c.hasData(c.value):
		return PhaseHasData
	case c.err != nil && !c.loading:
		return PhaseFailed
	case c.version == 0:
		return PhaseNoDataYet
	default:
		return PhaseNoData
	}
}

// Observe registers an observer. Registering the first observer activates
// the controller: every attached refresher is activated in attachment
// order, then the initial fetch is issued via LoadIfNeeded. The callback is
// never invoked synchronously from within Observe; notifications arrive in
// registration order on the controller's notification queue.
func (c *Controller[T]) Observe(fn Observer[T]) *Subscription {
	sub := &Subscription{}
	sub.cancel = func() { c.unobserve(sub) }

	c.mu.Lock()
	c.observers = append(c.observers, observerEntry[T]{sub: sub, fn: fn})
	first := len(c.observers) == 1
	var toActivate []Refresher
	if first {
		toActivate = append(toActivate, c.refreshers...)
	}
	c.mu.Unlock()

	if first {
		for _, r := range toActivate {
			r.Activate()
		}
		c.LoadIfNeeded()
	}
	return sub
}

// unobserve removes an observer. Removing the last one deactivates every
// attached refresher but keeps controller state, and an in-flight fetch may
// still complete and commit while unobserved.
func (c *Controller[T]) unobserve(sub *Subscription) {
	c.mu.Lock()
	removed := false
	for i, e := range c.observers {
		if e.sub == sub {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			removed = true
			break
		}
	}
	last := removed && len(c.observers) == 0
	var toDeactivate []Refresher
	if last {
		toDeactivate = append(toDeactivate, c.refreshers...)
	}
	c.mu.Unlock()

	for _, r := range toDeactivate {
		r.Deactivate()
	}
}

// AttachRefresher attaches a refresher for the controller's lifetime. If
// the controller is currently observed the refresher is activated
// immediately.
func (c *Controller[T]) AttachRefresher(r Refresher) {
	c.mu.Lock()
	c.refreshers = append(c.refreshers, r)
	active := len(c.observers) > 0
	c.mu.Unlock()

	r.Attach(c)
	if active {
		r.Activate()
	}
}

// LoadIfNeeded issues the initial fetch if none has ever been issued and
// returns a handle to the in-flight or most recent attempt. Fetch failures
// are absorbed into controller state and never surface through the handle.
func (c *Controller[T]) LoadIfNeeded() *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		att := newAttempt()
		att.finish()
		return att
	}
	if c.started {
		return c.attempt
	}
	return c.startLocked(c.fetch)
}

// RequestRefresh applies a refresh policy. Policies that proceed cancel any
// in-flight fetch and start a new one, even if one is already running.
// Fire-and-forget: the outcome is observed only through subsequent
// notifications.
func (c *Controller[T]) RequestRefresh(policy RefreshPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch policy {
	case RefreshIfErrored:
		if c.err == nil {
			return
		}
	case RefreshIfIdle:
		if c.loading {
			return
		}
	case RefreshReset:
		c.resetLocked()
		return
	}
	c.startLocked(c.fetch)
}

func (c *Controller[T]) resetLocked() {
	if c.token != nil {
		c.token.cancel()
		c.token = nil
	}
	var zero T
	c.value = zero
	c.hasValue = false
	c.err = nil
	c.loading = false
	c.version = 0
	c.started = false
	c.attempt = nil
	if len(c.observers) > 0 {
		c.startLocked(c.fetch)
		return
	}
	c.enqueueNotifyLocked()
}

// BumpVersion signals that the held value changed in place without a new
// fetch, for wrappers that mutate the value they handed out. Calling it on
// a controller that has never completed a fetch is a programming error.
func (c *Controller[T]) BumpVersion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == 0 {
		invariant("BumpVersion", "controller has never completed a fetch")
	}
	c.version++
	c.enqueueNotifyLocked()
}

// Close releases the controller: any in-flight fetch is marked cancelled
// and no further fetches start. State is left in place for final reads.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.token != nil {
		c.token.cancel()
		c.token = nil
	}
}

// startLocked begins a new single-flight attempt. The previous token is
// cancelled before the new one is installed, so at most one attempt's
// result is ever committed.
func (c *Controller[T]) startLocked(op FetchFunc[T]) *Attempt {
	if c.token != nil {
		c.token.cancel()
	}
	tok := newFetchToken()
	c.token = tok
	att := newAttempt()
	c.attempt = att
	c.started = true
	if !c.loading || c.err != nil {
		c.loading = true
		c.err = nil
		// Deferred to the notification queue so that a fetch started during
		// observer registration never notifies on the registering stack.
		c.enqueueNotifyLocked()
	}
	go c.run(tok, att, op)
	return att
}

func (c *Controller[T]) run(tok *fetchToken, att *Attempt, op FetchFunc[T]) {
	defer att.finish()
	val, err := op(tok.ctx)

	c.mu.Lock()
	if tok.isCancelled() {
		// Superseded: discard the result without touching state.
		c.mu.Unlock()
		return
	}
	if err != nil {
		// Stale-while-error: the prior value stays visible.
		c.err = err
	} else {
		c.value = val
		c.hasValue = true
		c.version++
		c.err = nil
	}
	c.loading = false
	c.token = nil
	c.enqueueNotifyLocked()
	c.mu.Unlock()
}

func (c *Controller[T]) enqueueNotifyLocked() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	entries := make([]observerEntry[T], len(c.observers))
	copy(entries, c.observers)
	c.notify.enqueue(func() {
		for _, e := range entries {
			e.fn(snap)
		}
	})
}
