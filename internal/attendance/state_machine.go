// Package attendance holds the pure decision logic for call attendance:
// the state machine governing attendance transitions and the transcript
// classifier separating shows from ghosted calls.
package attendance

import "github.com/The-Ops-King/closerMetrix-sub003/internal/calls"

// Terminal reports whether a state can never be overwritten.
func Terminal(s calls.AttendanceState) bool {
	switch s.Normalize() {
	case calls.StateShow, calls.StateGhosted, calls.StateCanceled,
		calls.StateRescheduled, calls.StateNoRecording, calls.StateOverbooked:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits from → to.
// Cancellation and reschedule are accepted from either non-terminal state
// so a late-arriving provider signal still preempts timeout processing.
// Outcome states require the call to be waiting for its outcome.
func CanTransition(from, to calls.AttendanceState) bool {
	from = from.Normalize()
	if Terminal(from) {
		return false
	}
	switch to {
	case calls.StateWaiting:
		return from == calls.StateUnset
	case calls.StateCanceled, calls.StateRescheduled:
		return from == calls.StateUnset || from == calls.StateWaiting
	case calls.StateShow, calls.StateGhosted, calls.StateNoRecording, calls.StateOverbooked:
		return from == calls.StateWaiting
	}
	return false
}
