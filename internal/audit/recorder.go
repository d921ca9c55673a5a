// Package audit provides the append-only audit trail. Entries record every
// observed field transition and are never updated or deleted.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Source identifies what triggered an audit entry.
type Source string

const (
	SourceCalendarWebhook   Source = "calendar_webhook"
	SourceTranscriptArrival Source = "transcript_arrival"
	SourceTimeoutSweeper    Source = "timeout_sweeper"
	SourceAdminAction       Source = "admin_action"
)

// Entry is an immutable audit record.
type Entry struct {
	ID           string          `json:"id"`
	OrgID        string          `json:"org_id"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	Action       string          `json:"action"`
	Field        string          `json:"field,omitempty"`
	OldValue     string          `json:"old_value,omitempty"`
	NewValue     string          `json:"new_value,omitempty"`
	Source       Source          `json:"source"`
	SourceDetail string          `json:"source_detail,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Recorder writes and queries audit entries.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates an audit recorder.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one audit entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO call_audit_log (
			id, org_id, entity_type, entity_id, action, field,
			old_value, new_value, source, source_detail, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrgID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		nullString(entry.Field),
		nullString(entry.OldValue),
		nullString(entry.NewValue),
		string(entry.Source),
		nullString(entry.SourceDetail),
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record entry: %w", err)
	}
	return nil
}

// RecordFieldChange appends one entry for a single field transition.
func (r *Recorder) RecordFieldChange(ctx context.Context, orgID, entityType, entityID, field, oldValue, newValue string, source Source, detail string) error {
	return r.Record(ctx, Entry{
		OrgID:        orgID,
		EntityType:   entityType,
		EntityID:     entityID,
		Action:       "field_changed",
		Field:        field,
		OldValue:     oldValue,
		NewValue:     newValue,
		Source:       source,
		SourceDetail: detail,
	})
}

// Filter specifies criteria for querying audit entries.
type Filter struct {
	OrgID      string
	EntityType string
	EntityID   string
	Actions    []string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit entries matching the filter, newest first.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, org_id, entity_type, entity_id, action, field,
			   old_value, new_value, source, source_detail, metadata, created_at
		FROM call_audit_log
		WHERE org_id = $1
	`
	args := []interface{}{filter.OrgID}
	argIdx := 2

	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", argIdx)
		args = append(args, filter.EntityType)
		argIdx++
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}
	if len(filter.Actions) > 0 {
		query += fmt.Sprintf(" AND action = ANY($%d)", argIdx)
		args = append(args, pq.Array(filter.Actions))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var field, oldVal, newVal, detail sql.NullString
		var source string
		err := rows.Scan(
			&e.ID, &e.OrgID, &e.EntityType, &e.EntityID, &e.Action, &field,
			&oldVal, &newVal, &source, &detail, &e.Metadata, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.Field = field.String
		e.OldValue = oldVal.String
		e.NewValue = newVal.String
		e.Source = Source(source)
		e.SourceDetail = detail.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
