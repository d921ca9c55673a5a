// Package calltype decides whether a newly scheduled call is a first call
// or a follow-up. The decision is made once, from the prospect's show count
// as of scheduling time, and is never recomputed afterward.
package calltype

import "github.com/The-Ops-King/closerMetrix-sub003/internal/calls"

// Classify maps the prospect's prior show count and the reschedule flag to
// a call type. A prospect who has never shown gets a first call, no matter
// how many calls they have booked and ghosted before.
func Classify(priorShows int, isReschedule bool) calls.CallType {
	if priorShows > 0 {
		if isReschedule {
			return calls.TypeRescheduledFollowUp
		}
		return calls.TypeFollowUp
	}
	if isReschedule {
		return calls.TypeRescheduledFirst
	}
	return calls.TypeFirstCall
}
