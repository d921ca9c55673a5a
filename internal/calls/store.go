package calls

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for call records.
type Store struct {
	db DB
}

// NewStore creates a call store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const callColumns = `id, org_id, prospect_id, prospect_email, scheduled_start, scheduled_end,
		call_type, attendance_state, calendar_event_id, calendar_etag,
		rescheduled_from, rescheduled_to, transcript_ref, closer, created_at, updated_at`

// Create inserts a new call record.
func (s *Store) Create(ctx context.Context, c *Call) error {
	if !c.CallType.Valid() {
		return fmt.Errorf("calls: create: unknown call type %q", c.CallType)
	}
	if !c.AttendanceState.Valid() {
		return fmt.Errorf("calls: create: unknown attendance state %q", c.AttendanceState)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO calls (id, org_id, prospect_id, prospect_email, scheduled_start, scheduled_end,
			call_type, attendance_state, calendar_event_id, calendar_etag,
			rescheduled_from, rescheduled_to, transcript_ref, closer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.OrgID, c.ProspectID, c.ProspectEmail, c.ScheduledStart, c.ScheduledEnd,
		string(c.CallType), stateParam(c.AttendanceState), c.CalendarEventID, c.CalendarEtag,
		c.RescheduledFrom, c.RescheduledTo, nullIfEmpty(c.TranscriptRef), c.Closer, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("calls: create: %w", err)
	}
	return nil
}

// GetByID returns a call scoped to an org, or nil when absent.
func (s *Store) GetByID(ctx context.Context, orgID string, id uuid.UUID) (*Call, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+callColumns+`
		FROM calls WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("calls: get by id: %w", err)
	}
	defer rows.Close()
	return firstCall(rows)
}

// GetByEventID resolves the call tracking a calendar event, or nil.
func (s *Store) GetByEventID(ctx context.Context, orgID, eventID string) (*Call, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+callColumns+`
		FROM calls WHERE org_id = $1 AND calendar_event_id = $2
		ORDER BY created_at DESC LIMIT 1`, orgID, eventID)
	if err != nil {
		return nil, fmt.Errorf("calls: get by event id: %w", err)
	}
	defer rows.Close()
	return firstCall(rows)
}

// TransitionState performs the compare-and-set state write. It returns false
// when the stored state no longer matches the expected pre-transition state,
// which callers treat as a lost race, never an error.
func (s *Store) TransitionState(ctx context.Context, id uuid.UUID, from, to AttendanceState) (bool, error) {
	if !to.Valid() || to == StateUnset || to == StateScheduled {
		return false, fmt.Errorf("calls: transition: invalid target state %q", to)
	}
	now := time.Now().UTC()

	var tag pgconn.CommandTag
	var err error
	if from.Normalize() == StateUnset {
		tag, err = s.db.Exec(ctx, `
			UPDATE calls SET attendance_state = $1, updated_at = $2
			WHERE id = $3 AND (attendance_state IS NULL OR attendance_state = 'scheduled')`,
			string(to), now, id)
	} else {
		tag, err = s.db.Exec(ctx, `
			UPDATE calls SET attendance_state = $1, updated_at = $2
			WHERE id = $3 AND attendance_state = $4`,
			string(to), now, id, string(from))
	}
	if err != nil {
		return false, fmt.Errorf("calls: transition state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetTranscript records the transcript reference on a call.
func (s *Store) SetTranscript(ctx context.Context, id uuid.UUID, ref string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE calls SET transcript_ref = $1, updated_at = $2 WHERE id = $3`,
		ref, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("calls: set transcript: %w", err)
	}
	return nil
}

// SetEtag stores the last observed calendar revision for a call.
func (s *Store) SetEtag(ctx context.Context, id uuid.UUID, etag string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE calls SET calendar_etag = $1, updated_at = $2 WHERE id = $3`,
		etag, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("calls: set etag: %w", err)
	}
	return nil
}

// LinkReschedule wires the bidirectional link between an original call and
// its successor.
func (s *Store) LinkReschedule(ctx context.Context, originalID, successorID uuid.UUID) error {
	now := time.Now().UTC()
	if _, err := s.db.Exec(ctx, `
		UPDATE calls SET rescheduled_to = $1, updated_at = $2 WHERE id = $3`,
		successorID, now, originalID); err != nil {
		return fmt.Errorf("calls: link reschedule original: %w", err)
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE calls SET rescheduled_from = $1, updated_at = $2 WHERE id = $3`,
		originalID, now, successorID); err != nil {
		return fmt.Errorf("calls: link reschedule successor: %w", err)
	}
	return nil
}

// ListWaiting returns waiting_for_outcome calls whose scheduled end passed
// on or before the given cutoff. Per-tenant grace periods are applied by the
// caller since they live in the tenant settings store.
func (s *Store) ListWaiting(ctx context.Context, endedBefore time.Time) ([]Call, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE attendance_state = 'waiting_for_outcome' AND scheduled_end <= $1
		ORDER BY scheduled_end ASC`, endedBefore)
	if err != nil {
		return nil, fmt.Errorf("calls: list waiting: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

// ListUnsetEnded returns calls with no attendance processing whose scheduled
// end has passed, candidates for promotion to waiting_for_outcome.
func (s *Store) ListUnsetEnded(ctx context.Context, asOf time.Time) ([]Call, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE (attendance_state IS NULL OR attendance_state = 'scheduled') AND scheduled_end <= $1
		ORDER BY scheduled_end ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("calls: list unset ended: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

// ListByOrg returns recent calls for an org.
func (s *Store) ListByOrg(ctx context.Context, orgID string, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+callColumns+`
		FROM calls WHERE org_id = $1
		ORDER BY scheduled_start DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: list by org: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

func firstCall(rows pgx.Rows) (*Call, error) {
	out, err := scanCalls(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func scanCalls(rows pgx.Rows) ([]Call, error) {
	var result []Call
	for rows.Next() {
		var c Call
		var callType string
		var state, transcriptRef *string
		err := rows.Scan(
			&c.ID, &c.OrgID, &c.ProspectID, &c.ProspectEmail, &c.ScheduledStart, &c.ScheduledEnd,
			&callType, &state, &c.CalendarEventID, &c.CalendarEtag,
			&c.RescheduledFrom, &c.RescheduledTo, &transcriptRef, &c.Closer, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("calls: scan: %w", err)
		}
		c.CallType = CallType(callType)
		if state != nil {
			c.AttendanceState = AttendanceState(*state)
		}
		if transcriptRef != nil {
			c.TranscriptRef = *transcriptRef
		}
		if !c.CallType.Valid() {
			return nil, fmt.Errorf("calls: scan: unknown call type %q", callType)
		}
		if !c.AttendanceState.Valid() {
			return nil, fmt.Errorf("calls: scan: unknown attendance state %q", c.AttendanceState)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calls: rows: %w", err)
	}
	return result, nil
}

func stateParam(s AttendanceState) *string {
	if s.Normalize() == StateUnset {
		return nil
	}
	v := string(s)
	return &v
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
