// Package costs records per-call AI processing spend. Rows are append-only
// and written as a side effect of transcript analysis.
package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Record is one external AI-processing call.
type Record struct {
	ID           uuid.UUID
	OrgID        string
	CallID       uuid.UUID
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Duration     time.Duration
	CreatedAt    time.Time
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store appends cost records.
type Store struct {
	db DB
}

// NewStore creates a cost store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Insert appends one cost record.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO cost_records (id, org_id, call_id, model, input_tokens, output_tokens,
			cost_usd, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.OrgID, rec.CallID, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.CostUSD, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("costs: insert: %w", err)
	}
	return nil
}
