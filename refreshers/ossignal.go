package refreshers

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/chainguard-dev/clog"

	"github.com/loadable-go/loadable"
)

// OnOSSignal requests a refresh when the process receives one of the given
// signals. SIGHUP is the conventional choice for "re-read your inputs".
type OnOSSignal struct {
	ctx     context.Context
	signals []os.Signal
	policy  loadable.RefreshPolicy

	mu     sync.Mutex
	target loadable.Refreshable
	ch     chan os.Signal
	stop   chan struct{}
}

// NewOnOSSignal creates an OS-signal refresher. The context scopes logging
// only.
func NewOnOSSignal(ctx context.Context, policy loadable.RefreshPolicy, signals ...os.Signal) *OnOSSignal {
	return &OnOSSignal{
		ctx:     ctx,
		signals: signals,
		policy:  policy,
	}
}

func (s *OnOSSignal) Attach(target loadable.Refreshable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target != nil {
		panic("refreshers: OnOSSignal attached twice")
	}
	s.target = target
}

func (s *OnOSSignal) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil || s.ch != nil {
		return
	}
	s.ch = make(chan os.Signal, 1)
	s.stop = make(chan struct{})
	signal.Notify(s.ch, s.signals...)
	go s.loop(s.ch, s.stop)
}

func (s *OnOSSignal) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return
	}
	signal.Stop(s.ch)
	close(s.stop)
	s.ch = nil
	s.stop = nil
}

func (s *OnOSSignal) loop(ch chan os.Signal, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case sig := <-ch:
			clog.InfoContext(s.ctx, "refresh on signal", "signal", sig.String(), "policy", s.policy.String())
			s.mu.Lock()
			target := s.target
			s.mu.Unlock()
			target.RequestRefresh(s.policy)
		}
	}
}
