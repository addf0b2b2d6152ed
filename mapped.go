package loadable

import (
	"context"
	"sync"
)

// basePromise is one shared resolution of the base fetch. Attempts await
// it; invalidation drops the cache entry, never the in-flight operation.
type basePromise[B any] struct {
	done chan struct{}
	val  B
	err  error
}

// Mapped layers a cheap transform over an independently cached expensive
// base fetch. The base cache outlives individual attempts:
// SetNeedsTransform reuses it, Refresh drops it first, and a failed
// transform invalidates only the cache entry so the next attempt re-hits
// the base source.
type Mapped[B, T any] struct {
	*Controller[T]

	baseMu    sync.Mutex
	base      FetchFunc[B]
	transform func(context.Context, B) (T, error)
	cached    *basePromise[B]
}

// NewMapped creates a derived controller from a base fetch and a transform.
// The transform must be pure given the base result.
func NewMapped[B, T any](base FetchFunc[B], transform func(context.Context, B) (T, error), opts ...Option[T]) *Mapped[B, T] {
	m := &Mapped[B, T]{
		base:      base,
		transform: transform,
	}
	m.Controller = New(m.fetchOp, opts...)
	return m
}

// NewFiltering is NewMapped for sequence results: an empty successful
// result classifies as PhaseNoData rather than PhaseHasData.
func NewFiltering[B, E any](base FetchFunc[B], transform func(context.Context, B) ([]E, error), opts ...Option[[]E]) *Mapped[B, []E] {
	opts = append([]Option[[]E]{
		WithHasData(func(items []E) bool { return len(items) > 0 }),
	}, opts...)
	return NewMapped(base, transform, opts...)
}

func (m *Mapped[B, T]) fetchOp(ctx context.Context) (T, error) {
	var zero T

	m.baseMu.Lock()
	p := m.cached
	if p == nil {
		p = &basePromise[B]{done: make(chan struct{})}
		m.cached = p
		// The base resolution is shared across attempts, so it is not tied
		// to any single attempt's cancellation.
		go func() {
			p.val, p.err = m.base(context.Background())
			close(p.done)
		}()
	}
	m.baseMu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if p.err != nil {
		m.invalidate(p)
		return zero, p.err
	}
	out, err := m.transform(ctx, p.val)
	if err != nil {
		// The transform would fail again against the same base result.
		m.invalidate(p)
		return zero, err
	}
	return out, nil
}

func (m *Mapped[B, T]) invalidate(p *basePromise[B]) {
	m.baseMu.Lock()
	if m.cached == p {
		m.cached = nil
	}
	m.baseMu.Unlock()
}

// Refresh performs a user-initiated refresh: the base cache is dropped
// unconditionally so the base source is re-hit, then a fresh attempt
// starts.
func (m *Mapped[B, T]) Refresh() {
	m.baseMu.Lock()
	m.cached = nil
	m.baseMu.Unlock()
	m.RequestRefresh(RefreshAlways)
}

// SetNeedsTransform re-runs the transform over the still-cached base result
// without re-fetching the base. Use when only transform-affecting
// parameters, such as a search or sort key, changed.
func (m *Mapped[B, T]) SetNeedsTransform() {
	m.RequestRefresh(RefreshAlways)
}
