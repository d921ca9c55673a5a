package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records event revisions that were already handled, keyed
// by (org, calendar event, etag). A delivery whose revision is already
// recorded is a duplicate and must not be reprocessed.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("coordinator: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("coordinator: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if this event revision has been handled.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, orgID, eventID, etag string) (bool, error) {
	query := `SELECT 1 FROM processed_notifications WHERE org_id = $1 AND event_id = $2 AND etag = $3`
	var exists int
	if err := s.pool.QueryRow(ctx, query, orgID, eventID, etag).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("coordinator: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event revision, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, orgID, eventID, etag string) (bool, error) {
	query := `
		INSERT INTO processed_notifications (org_id, event_id, etag)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, orgID, eventID, etag)
	if err != nil {
		return false, fmt.Errorf("coordinator: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
