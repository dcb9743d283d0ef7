package fsm

import (
	"errors"
	"fmt"
)

// ErrDuplicateTransition reports a transition table declaring the same
// (from, event) pair twice.
var ErrDuplicateTransition = errors.New("fsm: duplicate transition")

// TransitionError reports a Fire call that could not change state.
type TransitionError struct {
	State    State
	Event    Event
	Rejected bool // true when a guard vetoed an otherwise-defined transition
}

func (e *TransitionError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("fsm: transition from %q on %q rejected by guard", e.State, e.Event)
	}
	return fmt.Sprintf("fsm: no transition from %q on %q", e.State, e.Event)
}

// IsTransitionError reports whether err is a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
