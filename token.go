package loadable

import (
	"context"
	"sync"
	"sync/atomic"
)

// fetchToken marks one fetch attempt. Exactly one token is current per
// controller at any instant; starting a new attempt cancels the previous
// token before installing the new one, so a superseded attempt may run to
// completion but its result is discarded at the commit boundary.
type fetchToken struct {
	ctx        context.Context
	stop       context.CancelFunc
	superseded atomic.Bool
}

func newFetchToken() *fetchToken {
	ctx, cancel := context.WithCancel(context.Background())
	return &fetchToken{ctx: ctx, stop: cancel}
}

// cancel marks the token superseded and signals the fetch operation through
// its context. Advisory only: the operation is not forcibly aborted.
func (t *fetchToken) cancel() {
	t.superseded.Store(true)
	t.stop()
}

func (t *fetchToken) isCancelled() bool {
	return t.superseded.Load()
}

// Attempt is a handle to one fetch attempt. It completes when the attempt's
// operation resolves, whether its result was committed or discarded; the
// fetch outcome itself lives in controller state, never here.
type Attempt struct {
	done chan struct{}
	once sync.Once
}

func newAttempt() *Attempt {
	return &Attempt{done: make(chan struct{})}
}

func (a *Attempt) finish() {
	a.once.Do(func() { close(a.done) })
}

// Done returns a channel closed once the attempt has resolved.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt resolves or ctx is done. The only possible
// error is ctx's; fetch failures are absorbed into controller state.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
