// Package sweeper promotes stalled calls through the attendance lifecycle:
// calls past their scheduled end move to waiting_for_outcome, and waiting
// calls past the grace period with no transcript are marked ghosted.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/audit"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/observability/metrics"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/tenants"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// CallStore is the slice of the call store the sweeper needs.
type CallStore interface {
	ListUnsetEnded(ctx context.Context, asOf time.Time) ([]calls.Call, error)
	ListWaiting(ctx context.Context, endedBefore time.Time) ([]calls.Call, error)
	TransitionState(ctx context.Context, id uuid.UUID, from, to calls.AttendanceState) (bool, error)
}

// AuditSink appends audit entries.
type AuditSink interface {
	RecordFieldChange(ctx context.Context, orgID, entityType, entityID, field, oldValue, newValue string, source audit.Source, detail string) error
}

// SettingsProvider resolves the per-tenant grace period.
type SettingsProvider interface {
	Settings(ctx context.Context, orgID string) (*tenants.Settings, error)
}

// Sweeper drives timeout-based attendance transitions.
type Sweeper struct {
	calls        CallStore
	auditor      AuditSink
	settings     SettingsProvider
	interval     time.Duration
	defaultGrace time.Duration
	metrics      *metrics.PipelineMetrics
	logger       *logging.Logger
}

// Option tunes optional sweeper behavior.
type Option func(*Sweeper)

// WithMetrics records sweep transition counts.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// New creates a sweeper.
func New(callStore CallStore, auditor AuditSink, settings SettingsProvider, interval, defaultGrace time.Duration, logger *logging.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if defaultGrace <= 0 {
		defaultGrace = 2 * time.Hour
	}
	s := &Sweeper{
		calls:        callStore,
		auditor:      auditor,
		settings:     settings,
		interval:     interval,
		defaultGrace: defaultGrace,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval.String(), "default_grace", s.defaultGrace.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			if n, err := s.ProcessDue(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Info("sweep complete", "transitions", n)
			}
		}
	}
}

// ProcessDue performs one sweep pass. Returns the number of transitions
// applied. A lost compare-and-set race is not an error; the other writer's
// outcome stands.
func (s *Sweeper) ProcessDue(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	transitions := 0

	promoted, err := s.promoteEnded(ctx, now)
	if err != nil {
		return transitions, err
	}
	transitions += promoted

	ghosted, err := s.ghostTimedOut(ctx, now)
	if err != nil {
		s.metrics.ObserveSweepTransitions(transitions)
		return transitions, err
	}
	transitions += ghosted

	s.metrics.ObserveSweepTransitions(transitions)
	return transitions, nil
}

// promoteEnded moves unset calls whose scheduled end has passed into
// waiting_for_outcome.
func (s *Sweeper) promoteEnded(ctx context.Context, now time.Time) (int, error) {
	ended, err := s.calls.ListUnsetEnded(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweeper: list ended calls: %w", err)
	}

	promoted := 0
	for i := range ended {
		call := &ended[i]
		ok, err := s.calls.TransitionState(ctx, call.ID, calls.StateUnset, calls.StateWaiting)
		if err != nil {
			s.logger.Error("promote to waiting failed", "error", err, "call_id", call.ID)
			continue
		}
		if !ok {
			continue
		}
		promoted++
		s.recordChange(ctx, call, calls.StateUnset, calls.StateWaiting, "scheduled end passed")
	}
	return promoted, nil
}

// ghostTimedOut marks waiting calls past their tenant's grace period as
// ghosted.
func (s *Sweeper) ghostTimedOut(ctx context.Context, now time.Time) (int, error) {
	// List with the shortest plausible grace (zero) and filter per tenant;
	// grace periods differ per org.
	waiting, err := s.calls.ListWaiting(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweeper: list waiting calls: %w", err)
	}

	ghosted := 0
	graceByOrg := map[string]time.Duration{}
	for i := range waiting {
		call := &waiting[i]

		grace, ok := graceByOrg[call.OrgID]
		if !ok {
			grace = s.graceFor(ctx, call.OrgID)
			graceByOrg[call.OrgID] = grace
		}
		if now.Before(call.ScheduledEnd.Add(grace)) {
			continue
		}

		ok, err := s.calls.TransitionState(ctx, call.ID, calls.StateWaiting, calls.StateGhosted)
		if err != nil {
			s.logger.Error("ghost transition failed", "error", err, "call_id", call.ID)
			continue
		}
		if !ok {
			// A transcript or cancellation won the race.
			continue
		}
		ghosted++
		s.recordChange(ctx, call, calls.StateWaiting, calls.StateGhosted,
			fmt.Sprintf("no transcript %s past scheduled end", grace))
	}
	return ghosted, nil
}

func (s *Sweeper) graceFor(ctx context.Context, orgID string) time.Duration {
	if s.settings == nil {
		return s.defaultGrace
	}
	settings, err := s.settings.Settings(ctx, orgID)
	if err != nil {
		s.logger.Warn("failed to load tenant settings, using default grace", "error", err, "org_id", orgID)
		return s.defaultGrace
	}
	if settings.OutcomeGracePeriod <= 0 {
		return s.defaultGrace
	}
	return settings.OutcomeGracePeriod
}

func (s *Sweeper) recordChange(ctx context.Context, call *calls.Call, from, to calls.AttendanceState, detail string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.RecordFieldChange(ctx, call.OrgID, "call", call.ID.String(),
		"attendance_state", string(from), string(to), audit.SourceTimeoutSweeper, detail); err != nil {
		s.logger.Error("audit write failed", "error", err, "call_id", call.ID)
	}
}
