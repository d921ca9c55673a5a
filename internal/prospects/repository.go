package prospects

import (
	"context"
	"fmt"
	"strings"
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

// Repository is the prospect ledger: the durable record of a prospect's
// call history per org and the source of truth for call-type classification.
type Repository struct {
	db DB
}

// NewRepository creates a prospect repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const prospectColumns = `id, org_id, email, display_name, first_call_date, last_call_date,
		total_calls, total_shows, status, deal_status, revenue_cents, cash_collected_cents,
		last_payment_date, payment_count, closer, created_at, updated_at`

// GetByEmail returns the prospect for (org, email), or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, orgID, email string) (*Prospect, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+prospectColumns+`
		FROM prospects WHERE org_id = $1 AND email = $2`, orgID, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("prospects: get by email: %w", err)
	}
	defer rows.Close()
	out, err := scanProspects(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// EnsureForCall returns the prospect for (org, email), creating it on the
// first call ever scheduled for that pair.
func (r *Repository) EnsureForCall(ctx context.Context, orgID, email, displayName, closer string) (*Prospect, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO prospects (id, org_id, email, display_name, status, closer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (org_id, email) DO NOTHING`,
		uuid.New(), orgID, email, displayName, string(StatusActive), closer, now)
	if err != nil {
		return nil, fmt.Errorf("prospects: ensure: %w", err)
	}
	p, err := r.GetByEmail(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("prospects: ensure: prospect missing after upsert for %s", email)
	}
	return p, nil
}

// RecordCallScheduled bumps the call counter and stretches the first/last
// call dates. Counters use single-statement increments so concurrent call
// completions for the same prospect cannot lose updates.
func (r *Repository) RecordCallScheduled(ctx context.Context, id uuid.UUID, scheduledStart time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE prospects SET
			total_calls = total_calls + 1,
			first_call_date = LEAST(COALESCE(first_call_date, $1), $1),
			last_call_date = GREATEST(COALESCE(last_call_date, $1), $1),
			updated_at = $2
		WHERE id = $3`,
		scheduledStart, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("prospects: record call scheduled: %w", err)
	}
	return nil
}

// RecordShow bumps the show counter.
func (r *Repository) RecordShow(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE prospects SET total_shows = total_shows + 1, updated_at = $1
		WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("prospects: record show: %w", err)
	}
	return nil
}

// RecordPayment accumulates revenue and cash-collected counters.
func (r *Repository) RecordPayment(ctx context.Context, id uuid.UUID, revenueCents, cashCents int64, paidAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE prospects SET
			revenue_cents = revenue_cents + $1,
			cash_collected_cents = cash_collected_cents + $2,
			payment_count = payment_count + 1,
			last_payment_date = GREATEST(COALESCE(last_payment_date, $3), $3),
			updated_at = $4
		WHERE id = $5`,
		revenueCents, cashCents, paidAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("prospects: record payment: %w", err)
	}
	return nil
}

// SetDealStatus updates the deal pipeline status.
func (r *Repository) SetDealStatus(ctx context.Context, id uuid.UUID, dealStatus string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE prospects SET deal_status = $1, updated_at = $2 WHERE id = $3`,
		dealStatus, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("prospects: set deal status: %w", err)
	}
	return nil
}

// Deactivate soft-disables a prospect. There is no hard delete.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE prospects SET status = 'inactive', updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("prospects: deactivate: %w", err)
	}
	return nil
}

// ListByOrg returns prospects for an org ordered by recency.
func (r *Repository) ListByOrg(ctx context.Context, orgID string, limit int) ([]Prospect, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+prospectColumns+`
		FROM prospects WHERE org_id = $1
		ORDER BY updated_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("prospects: list by org: %w", err)
	}
	defer rows.Close()
	return scanProspects(rows)
}

func scanProspects(rows pgx.Rows) ([]Prospect, error) {
	var result []Prospect
	for rows.Next() {
		var p Prospect
		var status string
		err := rows.Scan(
			&p.ID, &p.OrgID, &p.Email, &p.DisplayName, &p.FirstCallDate, &p.LastCallDate,
			&p.TotalCalls, &p.TotalShows, &status, &p.DealStatus, &p.RevenueCents, &p.CashCollectedCents,
			&p.LastPaymentDate, &p.PaymentCount, &p.Closer, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("prospects: scan: %w", err)
		}
		p.Status = Status(status)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prospects: rows: %w", err)
	}
	return result, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
