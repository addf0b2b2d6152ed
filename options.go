package loadable

// Option configures a Controller.
type Option[T any] func(*Controller[T])

// WithHasData overrides the predicate deciding whether a held value counts
// as data for phase classification. The default treats any held value as
// data.
func WithHasData[T any](pred func(T) bool) Option[T] {
	return func(c *Controller[T]) {
		c.hasData = pred
	}
}

// WithRefresher attaches a refresher at construction time, before any
// observer can register.
func WithRefresher[T any](r Refresher) Option[T] {
	return func(c *Controller[T]) {
		c.refreshers = append(c.refreshers, r)
		r.Attach(c)
	}
}
