package calltype

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		priorShows   int
		isReschedule bool
		want         calls.CallType
	}{
		{"no shows, fresh booking", 0, false, calls.TypeFirstCall},
		{"no shows, rescheduled", 0, true, calls.TypeRescheduledFirst},
		{"one show, fresh booking", 1, false, calls.TypeFollowUp},
		{"one show, rescheduled", 1, true, calls.TypeRescheduledFollowUp},
		{"many shows", 7, false, calls.TypeFollowUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.priorShows, tt.isReschedule))
		})
	}
}

// A prospect who booked repeatedly but never showed keeps getting first
// calls; ghosted bookings do not graduate them to follow-ups.
func TestGhostedHistoryStaysFirstCall(t *testing.T) {
	assert.Equal(t, calls.TypeFirstCall, Classify(0, false))
	assert.Equal(t, calls.TypeRescheduledFirst, Classify(0, true))
}
