package engine

import "nmeshed/internal/errors"

// State is one node of the sync engine's lifecycle state machine
// (spec.md §4.9).
type State int

const (
	StateIdle State = iota
	StateBooting
	StateActive
	StateStopping
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBooting:
		return "booting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// allowedTransitions enumerates every transition the state machine
// permits other than the unconditional destroy edge, which is handled
// separately since it is reachable from any non-destroyed state and is
// idempotent rather than guarded (spec.md §4.9, §5).
var allowedTransitions = map[State]map[State]bool{
	StateIdle:     {StateBooting: true},
	StateBooting:  {StateActive: true},
	StateActive:   {StateStopping: true},
	StateStopping: {StateStopped: true},
	StateStopped:  {StateBooting: true},
}

// checkTransition reports whether from -> to is a legal edge, returning
// an InvalidStateTransition error tagged with op otherwise.
func checkTransition(op string, from, to State) error {
	if from == StateDestroyed {
		return errors.New(errors.InvalidStateTransition, op, "engine is destroyed")
	}
	if allowedTransitions[from][to] {
		return nil
	}
	return errors.New(errors.InvalidStateTransition, op, from.String()+" -> "+to.String()+" is not a legal transition")
}
