// Package lifecycle is the authoritative status model for submissions. Every
// component that moves a submission between states goes through the transition
// table here; the repository enforces it with a conditional update so racing
// workers cannot both win the same edge.
package lifecycle

import (
	"errors"
	"fmt"
)

// Submission statuses.
const (
	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusAnalyzed  = "analyzed"
	StatusGraded    = "graded"
)

// ErrInvalidTransition indicates a requested state change is not legal from
// the current state. Callers should treat it as a no-op and re-check state.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions maps each status to the set of statuses reachable from it.
// analyzing -> pending is the failure/retry edge and the only backward edge;
// graded is terminal except for the explicit administrative reopen, which is
// modelled separately because it must archive grades first.
var transitions = map[string]map[string]bool{
	StatusPending: {
		StatusAnalyzing: true,
	},
	StatusAnalyzing: {
		StatusAnalyzed: true,
		StatusPending:  true,
	},
	StatusAnalyzed: {
		StatusGraded: true,
	},
	StatusGraded: {},
}

// Valid reports whether the value is one of the four defined statuses.
func Valid(status string) bool {
	_, ok := transitions[status]
	return ok
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to string) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Check returns ErrInvalidTransition (wrapped with both endpoints) when the
// edge from -> to is not in the table.
func Check(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Terminal reports whether no automatic transition leaves the status.
func Terminal(status string) bool {
	targets, ok := transitions[status]
	return ok && len(targets) == 0
}
