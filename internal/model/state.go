package model

// Wrapper lifecycle states.
const (
	StateInit      = "init"
	StateRunning   = "running"
	StateDone      = "done"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// validTransitions maps each state to the set of states it may transition to.
// Done, failed and cancelled are terminal.
var validTransitions = map[string]map[string]bool{
	StateInit: {
		StateRunning: true,
	},
	StateRunning: {
		StateDone:      true,
		StateFailed:    true,
		StateCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one state to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether the given state admits no further transitions.
func Terminal(state string) bool {
	switch state {
	case StateDone, StateFailed, StateCancelled:
		return true
	}
	return false
}

// stateRank orders states along the lifecycle so observed sequences can be
// checked for monotonicity. All terminal states share the highest rank.
var stateRank = map[string]int{
	StateInit:      0,
	StateRunning:   1,
	StateDone:      2,
	StateFailed:    2,
	StateCancelled: 2,
}

// StateRank returns the lifecycle rank of a state, or -1 for unknown states.
func StateRank(state string) int {
	r, ok := stateRank[state]
	if !ok {
		return -1
	}
	return r
}
