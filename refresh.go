package loadable

// RefreshPolicy controls whether RequestRefresh starts a new fetch.
type RefreshPolicy int

const (
	// RefreshAlways cancels any in-flight fetch and starts a fresh attempt.
	RefreshAlways RefreshPolicy = iota
	// RefreshIfErrored refreshes only when an error is held; otherwise the
	// request is a no-op.
	RefreshIfErrored
	// RefreshIfIdle refreshes only when no fetch is in flight; otherwise the
	// request is a no-op.
	RefreshIfIdle
	// RefreshReset clears value, error and version back to empty, then
	// immediately re-fetches if the controller is observed.
	RefreshReset
)

func (p RefreshPolicy) String() string {
	switch p {
	case RefreshAlways:
		return "always"
	case RefreshIfErrored:
		return "if-errored"
	case RefreshIfIdle:
		return "if-idle"
	case RefreshReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Refreshable is the surface a Refresher acts on. Controllers only ever
// receive refresh requests through it; refreshers never mutate controller
// state directly.
type Refreshable interface {
	RequestRefresh(RefreshPolicy)
}

// Refresher requests refreshes on a controller when some external trigger
// fires. Attach is called exactly once, when the refresher is attached to a
// controller; Activate and Deactivate then mirror the controller's own
// observation lifecycle. A Refresher must not request a refresh before it
// has been attached and activated.
type Refresher interface {
	Attach(Refreshable)
	Activate()
	Deactivate()
}
