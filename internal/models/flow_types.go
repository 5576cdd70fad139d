// Package models defines flow type definitions to avoid circular imports.
package models

// StateType represents a processing phase of the dialogue state machine.
type StateType string

// Phase constants for turn processing. A turn walks IDLE through RESPONDING
// and back to IDLE; FAILED is terminal and reached only when a backend stays
// unreachable after the retry budget.
const (
	StateIdle        StateType = "IDLE"
	StateClassifying StateType = "CLASSIFYING"
	StateMerging     StateType = "MERGING"
	StateRetrieving  StateType = "RETRIEVING"
	StateGenerating  StateType = "GENERATING"
	StateValidating  StateType = "VALIDATING"
	StateResponding  StateType = "RESPONDING"
	StateFailed      StateType = "FAILED"
)

// IsValidStateType checks if the given phase is a known one.
func IsValidStateType(s StateType) bool {
	switch s {
	case StateIdle, StateClassifying, StateMerging, StateRetrieving,
		StateGenerating, StateValidating, StateResponding, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the phase accepts no further transitions.
func (s StateType) IsTerminal() bool {
	return s == StateFailed
}
