package calls

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	_, store := newMockStore(t)
	err := store.Create(context.Background(), &Call{CallType: "intro_chat"})
	assert.ErrorContains(t, err, "unknown call type")
}

func TestCreateRejectsUnknownState(t *testing.T) {
	_, store := newMockStore(t)
	err := store.Create(context.Background(), &Call{CallType: TypeFirstCall, AttendanceState: "pending"})
	assert.ErrorContains(t, err, "unknown attendance state")
}

func TestCreateInsertsRow(t *testing.T) {
	mock, store := newMockStore(t)

	c := &Call{
		OrgID:           "org-1",
		ProspectID:      uuid.New(),
		ProspectEmail:   "lead@example.com",
		ScheduledStart:  time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC),
		ScheduledEnd:    time.Date(2025, 1, 10, 10, 30, 0, 0, time.UTC),
		CallType:        TypeFirstCall,
		CalendarEventID: "evt-1",
		CalendarEtag:    `"rev-1"`,
		Closer:          "alex",
	}

	mock.ExpectExec("INSERT INTO calls").
		WithArgs(pgxmock.AnyArg(), c.OrgID, c.ProspectID, c.ProspectEmail, c.ScheduledStart, c.ScheduledEnd,
			string(TypeFirstCall), (*string)(nil), c.CalendarEventID, c.CalendarEtag,
			(*uuid.UUID)(nil), (*uuid.UUID)(nil), (*string)(nil), c.Closer, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), c))
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStateFromWaiting(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE calls SET attendance_state").
		WithArgs(string(StateGhosted), pgxmock.AnyArg(), id, string(StateWaiting)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := store.TransitionState(context.Background(), id, StateWaiting, StateGhosted)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransitionStateLostRace(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()

	// Another writer already moved the call out of waiting_for_outcome.
	mock.ExpectExec("UPDATE calls SET attendance_state").
		WithArgs(string(StateGhosted), pgxmock.AnyArg(), id, string(StateWaiting)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := store.TransitionState(context.Background(), id, StateWaiting, StateGhosted)
	require.NoError(t, err)
	assert.False(t, ok, "lost CAS must report false, not error")
}

func TestTransitionStateFromUnsetMatchesNullAndLegacy(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE calls SET attendance_state .*attendance_state IS NULL OR attendance_state = 'scheduled'`).
		WithArgs(string(StateWaiting), pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := store.TransitionState(context.Background(), id, StateUnset, StateWaiting)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransitionStateRejectsInvalidTarget(t *testing.T) {
	_, store := newMockStore(t)
	_, err := store.TransitionState(context.Background(), uuid.New(), StateWaiting, "vanished")
	assert.ErrorContains(t, err, "invalid target state")

	_, err = store.TransitionState(context.Background(), uuid.New(), StateWaiting, StateUnset)
	assert.ErrorContains(t, err, "invalid target state")
}

func TestLinkReschedule(t *testing.T) {
	mock, store := newMockStore(t)
	orig := uuid.New()
	succ := uuid.New()

	mock.ExpectExec("UPDATE calls SET rescheduled_to").
		WithArgs(succ, pgxmock.AnyArg(), orig).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE calls SET rescheduled_from").
		WithArgs(orig, pgxmock.AnyArg(), succ).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.LinkReschedule(context.Background(), orig, succ))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEventIDScansRow(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()
	prospectID := uuid.New()
	now := time.Now().UTC()
	state := string(StateWaiting)

	rows := pgxmock.NewRows([]string{
		"id", "org_id", "prospect_id", "prospect_email", "scheduled_start", "scheduled_end",
		"call_type", "attendance_state", "calendar_event_id", "calendar_etag",
		"rescheduled_from", "rescheduled_to", "transcript_ref", "closer", "created_at", "updated_at",
	}).AddRow(
		id, "org-1", prospectID, "lead@example.com", now, now.Add(30*time.Minute),
		string(TypeFollowUp), &state, "evt-9", `"rev-3"`,
		(*uuid.UUID)(nil), (*uuid.UUID)(nil), (*string)(nil), "alex", now, now,
	)
	mock.ExpectQuery("SELECT .* FROM calls WHERE org_id = \\$1 AND calendar_event_id").
		WithArgs("org-1", "evt-9").
		WillReturnRows(rows)

	c, err := store.GetByEventID(context.Background(), "org-1", "evt-9")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, StateWaiting, c.AttendanceState)
	assert.Equal(t, TypeFollowUp, c.CallType)
}

func TestGetByEventIDMissing(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM calls WHERE org_id = \\$1 AND calendar_event_id").
		WithArgs("org-1", "evt-miss").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	c, err := store.GetByEventID(context.Background(), "org-1", "evt-miss")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestScanRejectsUnknownState(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC()
	bogus := "tentative"

	rows := pgxmock.NewRows([]string{
		"id", "org_id", "prospect_id", "prospect_email", "scheduled_start", "scheduled_end",
		"call_type", "attendance_state", "calendar_event_id", "calendar_etag",
		"rescheduled_from", "rescheduled_to", "transcript_ref", "closer", "created_at", "updated_at",
	}).AddRow(
		id, "org-1", uuid.New(), "lead@example.com", now, now,
		string(TypeFirstCall), &bogus, "evt-1", "",
		(*uuid.UUID)(nil), (*uuid.UUID)(nil), (*string)(nil), "", now, now,
	)
	mock.ExpectQuery("SELECT .* FROM calls WHERE org_id = \\$1 AND id").
		WithArgs("org-1", id).
		WillReturnRows(rows)

	_, err := store.GetByID(context.Background(), "org-1", id)
	assert.ErrorContains(t, err, "unknown attendance state")
}

func TestCallTypeLineage(t *testing.T) {
	assert.Equal(t, TypeRescheduledFirst, TypeFirstCall.RescheduledVariant())
	assert.Equal(t, TypeRescheduledFirst, TypeRescheduledFirst.RescheduledVariant())
	assert.Equal(t, TypeRescheduledFollowUp, TypeFollowUp.RescheduledVariant())
	assert.Equal(t, TypeRescheduledFollowUp, TypeRescheduledFollowUp.RescheduledVariant())
}
