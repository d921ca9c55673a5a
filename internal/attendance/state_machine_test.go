package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
)

var terminalStates = []calls.AttendanceState{
	calls.StateShow, calls.StateGhosted, calls.StateCanceled,
	calls.StateRescheduled, calls.StateNoRecording, calls.StateOverbooked,
}

func TestTerminal(t *testing.T) {
	for _, s := range terminalStates {
		assert.True(t, Terminal(s), "expected %q terminal", s)
	}
	assert.False(t, Terminal(calls.StateUnset))
	assert.False(t, Terminal(calls.StateScheduled))
	assert.False(t, Terminal(calls.StateWaiting))
}

func TestCanTransitionFromUnset(t *testing.T) {
	assert.True(t, CanTransition(calls.StateUnset, calls.StateWaiting))
	assert.True(t, CanTransition(calls.StateUnset, calls.StateCanceled))
	assert.True(t, CanTransition(calls.StateUnset, calls.StateRescheduled))

	// Outcome states require the waiting state first.
	assert.False(t, CanTransition(calls.StateUnset, calls.StateShow))
	assert.False(t, CanTransition(calls.StateUnset, calls.StateGhosted))
	assert.False(t, CanTransition(calls.StateUnset, calls.StateNoRecording))
	assert.False(t, CanTransition(calls.StateUnset, calls.StateOverbooked))
}

func TestCanTransitionFromWaiting(t *testing.T) {
	for _, to := range terminalStates {
		assert.True(t, CanTransition(calls.StateWaiting, to), "waiting -> %q", to)
	}
	assert.False(t, CanTransition(calls.StateWaiting, calls.StateWaiting))
	assert.False(t, CanTransition(calls.StateWaiting, calls.StateUnset))
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	for _, from := range terminalStates {
		for _, to := range append(terminalStates, calls.StateWaiting) {
			assert.False(t, CanTransition(from, to), "%q -> %q must be rejected", from, to)
		}
	}
}

func TestLegacyScheduledTreatedAsUnset(t *testing.T) {
	assert.True(t, CanTransition(calls.StateScheduled, calls.StateWaiting))
	assert.True(t, CanTransition(calls.StateScheduled, calls.StateCanceled))
	assert.False(t, CanTransition(calls.StateScheduled, calls.StateShow))
}

func TestClassifyTranscript(t *testing.T) {
	th := Thresholds{MinTranscriptChars: 500, MinSpeakers: 2}

	assert.Equal(t, calls.StateShow, ClassifyTranscript(2, 4000, th))
	assert.Equal(t, calls.StateShow, ClassifyTranscript(3, 500, th))

	// One participant talking to themselves is a ghost.
	assert.Equal(t, calls.StateGhosted, ClassifyTranscript(1, 9000, th))
	// Effectively blank transcript is a ghost even with two speakers.
	assert.Equal(t, calls.StateGhosted, ClassifyTranscript(2, 120, th))
	assert.Equal(t, calls.StateGhosted, ClassifyTranscript(0, 0, th))
}

func TestClassifyTranscriptDefaultsSpeakerFloor(t *testing.T) {
	got := ClassifyTranscript(1, 10000, Thresholds{MinTranscriptChars: 100})
	assert.Equal(t, calls.StateGhosted, got)
}

func TestClassifyTranscriptDefaultsLengthFloor(t *testing.T) {
	// A zero-valued threshold struct must not disable the length floor.
	assert.Equal(t, calls.StateGhosted, ClassifyTranscript(2, 120, Thresholds{}))
	assert.Equal(t, calls.StateShow, ClassifyTranscript(2, 4000, Thresholds{}))
}
