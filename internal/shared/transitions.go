package shared

import "errors"

// ErrInvalidTransition indicates a status change not listed in a transition table.
var ErrInvalidTransition = errors.New("status transition invalid")

// TransitionTable lists the allowed target states per source state.
type TransitionTable[S comparable] map[S][]S

// Allows reports whether current -> target is listed.
func (t TransitionTable[S]) Allows(current, target S) bool {
	for _, next := range t[current] {
		if next == target {
			return true
		}
	}
	return false
}

// Validate returns ErrInvalidTransition unless current -> target is listed.
func (t TransitionTable[S]) Validate(current, target S) error {
	if t.Allows(current, target) {
		return nil
	}
	return ErrInvalidTransition
}

// Terminal reports whether no transition leaves state.
func (t TransitionTable[S]) Terminal(state S) bool {
	return len(t[state]) == 0
}
