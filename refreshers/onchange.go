package refreshers

import (
	"context"
	"sync"

	"github.com/chainguard-dev/clog"

	"github.com/loadable-go/loadable"
)

// OnChange requests a refresh whenever the signal channel receives. It is
// the dependency-change trigger: wire any external mutation source to the
// channel. Closing the channel ends the trigger for good.
//
// The channel is drained only while the refresher is active; senders should
// use a buffered channel or non-blocking sends to avoid stalling while the
// controller is unobserved.
type OnChange struct {
	ctx    context.Context
	signal <-chan struct{}
	policy loadable.RefreshPolicy

	mu     sync.Mutex
	target loadable.Refreshable
	stop   chan struct{}
}

// NewOnChange creates a change-signal refresher. The context scopes logging
// only.
func NewOnChange(ctx context.Context, signal <-chan struct{}, policy loadable.RefreshPolicy) *OnChange {
	return &OnChange{
		ctx:    ctx,
		signal: signal,
		policy: policy,
	}
}

func (o *OnChange) Attach(target loadable.Refreshable) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.target != nil {
		panic("refreshers: OnChange attached twice")
	}
	o.target = target
}

func (o *OnChange) Activate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.target == nil || o.stop != nil {
		return
	}
	stop := make(chan struct{})
	o.stop = stop
	go o.loop(stop)
}

func (o *OnChange) Deactivate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stop == nil {
		return
	}
	close(o.stop)
	o.stop = nil
}

func (o *OnChange) loop(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case _, ok := <-o.signal:
			if !ok {
				return
			}
			clog.DebugContext(o.ctx, "dependency changed", "policy", o.policy.String())
			o.mu.Lock()
			target := o.target
			o.mu.Unlock()
			target.RequestRefresh(o.policy)
		}
	}
}
