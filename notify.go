package loadable

import "sync"

// notifier is a FIFO queue of notification callbacks drained by a single
// worker goroutine. State transitions enqueue delivery closures; observers
// are never invoked on the stack that triggered the transition, and
// delivery order matches enqueue order.
type notifier struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func (n *notifier) enqueue(fn func()) {
	n.mu.Lock()
	n.queue = append(n.queue, fn)
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()
	go n.drain()
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.running = false
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()
		fn()
	}
}
