package loadable

import "context"

// Page is one fetched page. TotalCount is authoritative for the whole
// collection and may grow or shrink the remaining-pages estimate.
type Page[E any] struct {
	Items      []E
	TotalCount int
}

// PageFunc fetches up to pageSize items starting at startIndex.
type PageFunc[E any] func(ctx context.Context, startIndex, pageSize int) (Page[E], error)

// List is the accumulated page sequence held by a Paged controller.
type List[E any] struct {
	Items      []E
	TotalCount int
}

// HasAll reports whether the full remote collection is loaded locally.
func (l List[E]) HasAll() bool {
	return len(l.Items) >= l.TotalCount
}

// Paged fetches a collection incrementally. The initial fetch and any full
// refresh replace the accumulated sequence with page 0; LoadNextPage
// appends. A failed page fetch sets the controller's error without
// discarding already-accumulated items; retry with LoadNextPage or Refresh.
type Paged[E any] struct {
	*Controller[List[E]]

	fetchPage PageFunc[E]
	pageSize  int
	threshold int
}

// PagedOption configures a Paged controller.
type PagedOption[E any] func(*Paged[E])

// WithPrefetchThreshold sets how close to the end of the loaded sequence an
// access must land before MarkAccess requests the next page. The default of
// zero triggers only when the last loaded item is accessed.
func WithPrefetchThreshold[E any](n int) PagedOption[E] {
	return func(p *Paged[E]) {
		if n >= 0 {
			p.threshold = n
		}
	}
}

// NewPaged creates a paged controller. pageSize must be positive.
func NewPaged[E any](fetchPage PageFunc[E], pageSize int, opts ...PagedOption[E]) *Paged[E] {
	if pageSize <= 0 {
		invariant("NewPaged", "pageSize must be positive")
	}
	p := &Paged[E]{
		fetchPage: fetchPage,
		pageSize:  pageSize,
	}
	p.Controller = New(p.firstPage, WithHasData(func(l List[E]) bool {
		return len(l.Items) > 0
	}))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Paged[E]) firstPage(ctx context.Context) (List[E], error) {
	page, err := p.fetchPage(ctx, 0, p.pageSize)
	if err != nil {
		return List[E]{}, err
	}
	return List[E]{Items: page.Items, TotalCount: page.TotalCount}, nil
}

// LoadNextPage fetches the page starting at the end of the accumulated
// sequence and appends its items. No-op when the full collection is loaded
// or a fetch is already in flight.
func (p *Paged[E]) LoadNextPage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.loading {
		return
	}
	if !p.started {
		p.startLocked(p.firstPage)
		return
	}
	cur := p.value
	if p.hasValue && cur.HasAll() {
		return
	}
	// Capped slice so the append below cannot alias the committed value.
	prev := cur.Items[:len(cur.Items):len(cur.Items)]
	start := len(prev)
	p.startLocked(func(ctx context.Context) (List[E], error) {
		page, err := p.fetchPage(ctx, start, p.pageSize)
		if err != nil {
			return List[E]{}, err
		}
		return List[E]{
			Items:      append(prev, page.Items...),
			TotalCount: page.TotalCount,
		}, nil
	})
}

// MarkAccess hints that the item at index was observed by a consumer, for
// example scrolled into view. An access within the trailing prefetch
// threshold of the loaded sequence requests the next page.
func (p *Paged[E]) MarkAccess(index int) {
	snap := p.Read()
	if !snap.HasValue || snap.Value.HasAll() {
		return
	}
	if index >= len(snap.Value.Items)-1-p.threshold {
		p.LoadNextPage()
	}
}

// Refresh discards the accumulated sequence and total count and re-fetches
// from page 0.
func (p *Paged[E]) Refresh() {
	p.RequestRefresh(RefreshAlways)
}
