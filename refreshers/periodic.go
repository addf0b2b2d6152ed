// Package refreshers provides concrete trigger implementations of the
// loadable.Refresher protocol: periodic timers, channel-driven change
// signals, file watches and OS signals. Each refresher runs only between
// Activate and Deactivate, mirroring its controller's observation
// lifecycle.
package refreshers

import (
	"context"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/loadable-go/loadable"
)

// Periodic requests a refresh at a fixed interval while active.
type Periodic struct {
	ctx      context.Context
	interval time.Duration
	policy   loadable.RefreshPolicy
	clock    Clock

	mu     sync.Mutex
	target loadable.Refreshable
	stop   chan struct{}
}

// PeriodicOption configures a Periodic refresher.
type PeriodicOption func(*Periodic)

// WithClock sets a custom clock. Useful for testing interval behavior.
func WithClock(clk Clock) PeriodicOption {
	return func(p *Periodic) {
		p.clock = clk
	}
}

// NewPeriodic creates a periodic refresher. The context scopes logging
// only; the refresher starts and stops with Activate and Deactivate.
func NewPeriodic(ctx context.Context, interval time.Duration, policy loadable.RefreshPolicy, opts ...PeriodicOption) *Periodic {
	p := &Periodic{
		ctx:      ctx,
		interval: interval,
		policy:   policy,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Periodic) Attach(target loadable.Refreshable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.target != nil {
		panic("refreshers: Periodic attached twice")
	}
	p.target = target
}

func (p *Periodic) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.target == nil || p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	go p.loop(stop)
}

func (p *Periodic) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
}

func (p *Periodic) loop(stop chan struct{}) {
	tk := p.clock.NewTicker(p.interval)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C():
			clog.DebugContext(p.ctx, "periodic refresh", "interval", p.interval, "policy", p.policy.String())
			p.mu.Lock()
			target := p.target
			p.mu.Unlock()
			target.RequestRefresh(p.policy)
		}
	}
}
