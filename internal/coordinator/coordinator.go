// Package coordinator drives the call classification pipeline: it turns
// calendar change notifications and transcript arrivals into attendance
// state transitions, audit entries, and prospect ledger updates.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/alerts"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/attendance"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/audit"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calendar"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calltype"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/costs"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/observability/metrics"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/prospects"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/queue"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/tenants"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/transcripts"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// CallStore is the slice of the call store the coordinator needs.
type CallStore interface {
	Create(ctx context.Context, c *calls.Call) error
	GetByID(ctx context.Context, orgID string, id uuid.UUID) (*calls.Call, error)
	GetByEventID(ctx context.Context, orgID, eventID string) (*calls.Call, error)
	TransitionState(ctx context.Context, id uuid.UUID, from, to calls.AttendanceState) (bool, error)
	SetTranscript(ctx context.Context, id uuid.UUID, ref string) error
	SetEtag(ctx context.Context, id uuid.UUID, etag string) error
	LinkReschedule(ctx context.Context, originalID, successorID uuid.UUID) error
}

// ProspectLedger is the slice of the prospect repository the coordinator needs.
type ProspectLedger interface {
	GetByEmail(ctx context.Context, orgID, email string) (*prospects.Prospect, error)
	EnsureForCall(ctx context.Context, orgID, email, displayName, closer string) (*prospects.Prospect, error)
	RecordCallScheduled(ctx context.Context, id uuid.UUID, scheduledStart time.Time) error
	RecordShow(ctx context.Context, id uuid.UUID) error
}

// AuditSink appends audit entries.
type AuditSink interface {
	Record(ctx context.Context, entry audit.Entry) error
	RecordFieldChange(ctx context.Context, orgID, entityType, entityID, field, oldValue, newValue string, source audit.Source, detail string) error
}

// DedupeStore rejects already-processed event revisions.
type DedupeStore interface {
	AlreadyProcessed(ctx context.Context, orgID, eventID, etag string) (bool, error)
	MarkProcessed(ctx context.Context, orgID, eventID, etag string) (bool, error)
}

// CostSink appends AI usage cost records.
type CostSink interface {
	Insert(ctx context.Context, rec *costs.Record) error
}

// Alerter surfaces operational problems. Fire-and-forget.
type Alerter interface {
	Fire(ctx context.Context, alert alerts.Alert)
}

// SettingsProvider resolves per-tenant pipeline settings.
type SettingsProvider interface {
	Settings(ctx context.Context, orgID string) (*tenants.Settings, error)
}

// Config holds the coordinator's tuning knobs.
type Config struct {
	// LookbackWindow bounds the changed-events query when a notification
	// does not name a specific event.
	LookbackWindow time.Duration
	// RetryAttempts bounds calendar fetch retries.
	RetryAttempts int
	// RetryBaseDelay is the first retry delay; it doubles per attempt.
	RetryBaseDelay time.Duration
	// ModelInputCostPer1K / ModelOutputCostPer1K price analyzer token usage.
	ModelInputCostPer1K  float64
	ModelOutputCostPer1K float64
	// Metrics receives pipeline observations; may be nil.
	Metrics *metrics.PipelineMetrics
}

func (c *Config) applyDefaults() {
	if c.LookbackWindow <= 0 {
		c.LookbackWindow = 30 * 24 * time.Hour
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
}

// Summary is the outcome of processing one notification batch.
type Summary struct {
	Processed int
	Skipped   int
	Errors    int
}

func (s Summary) String() string {
	return fmt.Sprintf("processed=%d skipped=%d errors=%d", s.Processed, s.Skipped, s.Errors)
}

// Coordinator owns all call attendance-state transitions triggered by
// calendar notifications, transcript arrivals, and explicit admin signals.
type Coordinator struct {
	calls    CallStore
	ledger   ProspectLedger
	auditor  AuditSink
	dedupe   DedupeStore
	events   calendar.EventSource
	provider transcripts.Provider
	analyzer transcripts.Analyzer
	costs    CostSink
	settings SettingsProvider
	alerter  Alerter
	metrics  *metrics.PipelineMetrics
	cfg      Config
	logger   *logging.Logger
}

// New creates a coordinator. analyzer, costs, and alerter may be nil; the
// rest are required.
func New(callStore CallStore, ledger ProspectLedger, auditor AuditSink, dedupe DedupeStore, events calendar.EventSource, provider transcripts.Provider, analyzer transcripts.Analyzer, costSink CostSink, settings SettingsProvider, alerter Alerter, cfg Config, logger *logging.Logger) *Coordinator {
	if callStore == nil || ledger == nil || auditor == nil || dedupe == nil {
		panic("coordinator: call store, ledger, audit, and dedupe stores are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Coordinator{
		calls:    callStore,
		ledger:   ledger,
		auditor:  auditor,
		dedupe:   dedupe,
		events:   events,
		provider: provider,
		analyzer: analyzer,
		costs:    costSink,
		settings: settings,
		alerter:  alerter,
		metrics:  cfg.Metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessNotification resolves the events behind one push notification and
// applies the implied transitions. Per-event failures are isolated: one bad
// event never aborts its siblings.
func (c *Coordinator) ProcessNotification(ctx context.Context, job queue.NotificationJob) (Summary, error) {
	var summary Summary

	if calendar.ResourceState(job.ResourceState) == calendar.StateSync {
		c.logger.Debug("ignoring sync notification", "org_id", job.OrgID, "channel_id", job.ChannelID)
		summary.Skipped++
		return summary, nil
	}

	changed, err := c.resolveEvents(ctx, job)
	if err != nil {
		c.alert(ctx, alerts.Alert{
			Severity:    alerts.SeverityCritical,
			Title:       "calendar event fetch failed",
			Details:     err.Error(),
			Remediation: "check calendar credentials and provider status",
			OrgID:       job.OrgID,
		})
		return summary, fmt.Errorf("coordinator: resolve events: %w", err)
	}

	for i := range changed {
		ev := changed[i]
		outcome, err := c.processEvent(ctx, job.OrgID, ev)
		if err != nil {
			summary.Errors++
			c.metrics.ObserveEventError()
			c.logger.Error("event processing failed", "error", err, "org_id", job.OrgID, "event_id", ev.ID)
			continue
		}
		if outcome {
			summary.Processed++
		} else {
			summary.Skipped++
		}
	}

	c.logger.Info("notification processed",
		"org_id", job.OrgID,
		"channel_id", job.ChannelID,
		"events", len(changed),
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errors", summary.Errors)
	return summary, nil
}

// resolveEvents fetches the authoritative event detail behind a
// notification, retrying transient failures with doubling backoff.
func (c *Coordinator) resolveEvents(ctx context.Context, job queue.NotificationJob) ([]calendar.Event, error) {
	var (
		events []calendar.Event
		err    error
	)
	delay := c.cfg.RetryBaseDelay
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if job.EventID != "" {
			var ev *calendar.Event
			ev, err = c.events.Event(ctx, job.OrgID, job.EventID)
			if err == nil {
				return []calendar.Event{*ev}, nil
			}
		} else {
			events, err = c.events.ChangedEvents(ctx, job.OrgID, time.Now().UTC().Add(-c.cfg.LookbackWindow))
			if err == nil {
				return events, nil
			}
		}

		if attempt == c.cfg.RetryAttempts {
			break
		}
		c.logger.Warn("calendar fetch failed, retrying",
			"error", err, "org_id", job.OrgID, "attempt", attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, err
}

// processEvent applies the state machine to one changed event. Returns true
// when a mutation happened, false for duplicates and no-ops.
//
// The revision is marked processed only after its mutations commit: marking
// first would consume the (org, event, etag) key on a failure, and neither a
// redelivery nor a lookback re-sync could ever retry that revision.
func (c *Coordinator) processEvent(ctx context.Context, orgID string, ev calendar.Event) (bool, error) {
	seen, err := c.dedupe.AlreadyProcessed(ctx, orgID, ev.ID, ev.Etag)
	if err != nil {
		return false, err
	}
	if seen {
		c.logger.Debug("duplicate event revision", "org_id", orgID, "event_id", ev.ID, "etag", ev.Etag)
		return false, nil
	}

	mutated, err := c.applyEvent(ctx, orgID, ev)
	if err != nil {
		return false, err
	}

	if _, err := c.dedupe.MarkProcessed(ctx, orgID, ev.ID, ev.Etag); err != nil {
		// The transitions committed and are compare-and-set guarded, so a
		// redelivered revision re-running them is a no-op.
		c.logger.Warn("failed to record processed revision",
			"error", err, "org_id", orgID, "event_id", ev.ID, "etag", ev.Etag)
	}
	return mutated, nil
}

// applyEvent maps one event revision onto the tracked call's state machine.
func (c *Coordinator) applyEvent(ctx context.Context, orgID string, ev calendar.Event) (bool, error) {
	call, err := c.calls.GetByEventID(ctx, orgID, ev.ID)
	if err != nil {
		return false, err
	}
	if call == nil {
		if ev.Cancelled() {
			// A cancellation for an event we never tracked carries no
			// call to transition.
			c.logger.Warn("cancellation for unknown event", "org_id", orgID, "event_id", ev.ID)
			return false, nil
		}
		call, err = c.createCall(ctx, orgID, ev, calls.CallType(""), nil)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	state := call.AttendanceState.Normalize()
	if attendance.Terminal(state) {
		c.logger.Debug("ignoring signal for terminal call",
			"org_id", orgID, "call_id", call.ID, "state", string(state))
		return false, nil
	}

	if call.CalendarEtag != ev.Etag {
		if err := c.calls.SetEtag(ctx, call.ID, ev.Etag); err != nil {
			c.logger.Warn("failed to record event etag", "error", err, "call_id", call.ID)
		}
	}

	switch {
	case ev.Cancelled() || ev.GuestDeclined():
		return c.transition(ctx, call, calls.StateCanceled, audit.SourceCalendarWebhook, cancelDetail(ev))
	case !ev.Start.IsZero() && !ev.Start.Equal(call.ScheduledStart):
		return c.reschedule(ctx, call, ev)
	case time.Now().UTC().After(ev.End) && state == calls.StateUnset:
		return c.transition(ctx, call, calls.StateWaiting, audit.SourceCalendarWebhook, "scheduled end passed with no cancel/reschedule")
	default:
		return false, nil
	}
}

func cancelDetail(ev calendar.Event) string {
	if ev.GuestDeclined() {
		return "attendee declined"
	}
	return "event cancelled"
}

// createCall builds a call record for an event with no existing call. When
// forcedType is set the call is a reschedule successor inheriting lineage;
// otherwise the type is classified from the prospect's show history as of
// now, the scheduling time.
func (c *Coordinator) createCall(ctx context.Context, orgID string, ev calendar.Event, forcedType calls.CallType, rescheduledFrom *uuid.UUID) (*calls.Call, error) {
	email := ev.GuestEmail()
	if email == "" {
		return nil, fmt.Errorf("coordinator: event %s has no guest attendee", ev.ID)
	}

	closer := ""
	if c.settings != nil {
		if settings, err := c.settings.Settings(ctx, orgID); err == nil {
			closer = settings.DefaultCloser
		}
	}

	prospect, err := c.ledger.EnsureForCall(ctx, orgID, email, ev.Summary, closer)
	if err != nil {
		return nil, err
	}

	ctype := forcedType
	if ctype == "" {
		ctype = calltype.Classify(prospect.TotalShows, false)
	}

	call := &calls.Call{
		ID:              uuid.New(),
		OrgID:           orgID,
		ProspectID:      prospect.ID,
		ProspectEmail:   prospect.Email,
		ScheduledStart:  ev.Start,
		ScheduledEnd:    ev.End,
		CallType:        ctype,
		AttendanceState: calls.StateUnset,
		CalendarEventID: ev.ID,
		CalendarEtag:    ev.Etag,
		RescheduledFrom: rescheduledFrom,
		Closer:          prospect.Closer,
	}
	if err := c.calls.Create(ctx, call); err != nil {
		return nil, err
	}
	if err := c.ledger.RecordCallScheduled(ctx, prospect.ID, ev.Start); err != nil {
		return nil, err
	}

	if err := c.auditor.Record(ctx, audit.Entry{
		OrgID:        orgID,
		EntityType:   "call",
		EntityID:     call.ID.String(),
		Action:       "call_created",
		Field:        "call_type",
		NewValue:     string(ctype),
		Source:       audit.SourceCalendarWebhook,
		SourceDetail: fmt.Sprintf("event %s", ev.ID),
	}); err != nil {
		c.logger.Error("audit write failed", "error", err, "call_id", call.ID)
	}

	c.logger.Info("call created",
		"org_id", orgID,
		"call_id", call.ID,
		"event_id", ev.ID,
		"call_type", string(ctype),
		"prospect", prospect.Email)
	return call, nil
}

// reschedule marks the original call rescheduled and creates the linked
// successor at the new slot with inherited call-type lineage.
func (c *Coordinator) reschedule(ctx context.Context, original *calls.Call, ev calendar.Event) (bool, error) {
	moved, err := c.transition(ctx, original, calls.StateRescheduled, audit.SourceCalendarWebhook,
		fmt.Sprintf("start moved from %s to %s", original.ScheduledStart.Format(time.RFC3339), ev.Start.Format(time.RFC3339)))
	if err != nil {
		return false, err
	}
	if !moved {
		// Lost the race; the other writer's outcome stands.
		return false, nil
	}

	successor, err := c.createCall(ctx, original.OrgID, ev, original.CallType.RescheduledVariant(), &original.ID)
	if err != nil {
		return false, fmt.Errorf("coordinator: create reschedule successor: %w", err)
	}
	if err := c.calls.LinkReschedule(ctx, original.ID, successor.ID); err != nil {
		return false, fmt.Errorf("coordinator: link reschedule: %w", err)
	}
	return true, nil
}

// transition performs the compare-and-set state write plus its audit entry.
// A lost race returns (false, nil): the winner's state is authoritative.
func (c *Coordinator) transition(ctx context.Context, call *calls.Call, to calls.AttendanceState, source audit.Source, detail string) (bool, error) {
	from := call.AttendanceState.Normalize()
	if !attendance.CanTransition(from, to) {
		c.logger.Debug("transition not allowed",
			"call_id", call.ID, "from", string(from), "to", string(to))
		return false, nil
	}

	ok, err := c.calls.TransitionState(ctx, call.ID, from, to)
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Debug("lost transition race", "call_id", call.ID, "from", string(from), "to", string(to))
		return false, nil
	}

	if err := c.auditor.RecordFieldChange(ctx, call.OrgID, "call", call.ID.String(),
		"attendance_state", string(from), string(to), source, detail); err != nil {
		c.logger.Error("audit write failed", "error", err, "call_id", call.ID)
	}
	c.metrics.ObserveTransition(string(to), string(source))
	call.AttendanceState = to
	return true, nil
}

func (c *Coordinator) alert(ctx context.Context, alert alerts.Alert) {
	if c.alerter == nil {
		return
	}
	c.alerter.Fire(ctx, alert)
}
