package loadable

// Phase classifies a controller's state for presentation decisions.
//
// Evaluation priority is PhaseHasData, then PhaseFailed, then
// PhaseNoDataYet, then PhaseNoData: a usable value held from a prior
// success wins over a later failure.
type Phase int

const (
	// PhaseNoDataYet means no fetch has ever completed and no value is held.
	PhaseNoDataYet Phase = iota
	// PhaseHasData means a usable value is held, even if a later fetch failed.
	PhaseHasData
	// PhaseNoData means at least one fetch completed but the value is absent
	// or empty.
	PhaseNoData
	// PhaseFailed means an error is held, no fetch is in flight, and no
	// usable value remains.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNoDataYet:
		return "no-data-yet"
	case PhaseHasData:
		return "has-data"
	case PhaseNoData:
		return "no-data"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a controller's state. Value and Err
// are not mutually exclusive: a stale value may be retained alongside a
// fresh error.
type Snapshot[T any] struct {
	Value    T
	HasValue bool
	Err      error
	Loading  bool
	Version  int
	Phase    Phase
}
