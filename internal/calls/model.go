package calls

import (
	"time"

	"github.com/google/uuid"
)

// CallType classifies a scheduled call against the prospect's history.
type CallType string

const (
	TypeFirstCall           CallType = "first_call"
	TypeFollowUp            CallType = "follow_up"
	TypeRescheduledFirst    CallType = "rescheduled_first"
	TypeRescheduledFollowUp CallType = "rescheduled_follow_up"
)

// Valid reports whether t is a known call type.
func (t CallType) Valid() bool {
	switch t {
	case TypeFirstCall, TypeFollowUp, TypeRescheduledFirst, TypeRescheduledFollowUp:
		return true
	}
	return false
}

// RescheduledVariant returns the type a successor call inherits when this
// call is rescheduled. Lineage is sticky: a rescheduled first call stays in
// the first-call family no matter how many times it moves.
func (t CallType) RescheduledVariant() CallType {
	switch t {
	case TypeFirstCall, TypeRescheduledFirst:
		return TypeRescheduledFirst
	default:
		return TypeRescheduledFollowUp
	}
}

// AttendanceState is the call's position in the attendance lifecycle.
// The empty value means newly scheduled with no outcome processing yet.
type AttendanceState string

const (
	StateUnset       AttendanceState = ""
	StateScheduled   AttendanceState = "scheduled" // legacy rows only, read as unset
	StateWaiting     AttendanceState = "waiting_for_outcome"
	StateShow        AttendanceState = "show"
	StateGhosted     AttendanceState = "ghosted"
	StateCanceled    AttendanceState = "canceled"
	StateRescheduled AttendanceState = "rescheduled"
	StateNoRecording AttendanceState = "no_recording"
	StateOverbooked  AttendanceState = "overbooked"
)

// Valid reports whether s is a recognized attendance state. Unrecognized
// values are rejected at the storage boundary.
func (s AttendanceState) Valid() bool {
	switch s {
	case StateUnset, StateScheduled, StateWaiting, StateShow, StateGhosted,
		StateCanceled, StateRescheduled, StateNoRecording, StateOverbooked:
		return true
	}
	return false
}

// Normalize maps the legacy "scheduled" value onto the unset state.
func (s AttendanceState) Normalize() AttendanceState {
	if s == StateScheduled {
		return StateUnset
	}
	return s
}

// Call is one scheduled sales call for a prospect.
type Call struct {
	ID              uuid.UUID
	OrgID           string
	ProspectID      uuid.UUID
	ProspectEmail   string
	ScheduledStart  time.Time
	ScheduledEnd    time.Time
	CallType        CallType
	AttendanceState AttendanceState
	CalendarEventID string
	CalendarEtag    string
	RescheduledFrom *uuid.UUID
	RescheduledTo   *uuid.UUID
	TranscriptRef   string
	Closer          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
