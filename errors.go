package loadable

import (
	"fmt"
	"runtime/debug"
)

// InvariantError reports a programming error, such as bumping the version
// of a controller that has never completed a fetch. It is raised via panic
// and is not meant to be recovered from.
type InvariantError struct {
	Op         string
	Reason     string
	StackTrace []byte
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Reason)
}

func invariant(op, reason string) {
	panic(&InvariantError{
		Op:         op,
		Reason:     reason,
		StackTrace: debug.Stack(),
	})
}
