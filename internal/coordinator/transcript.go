package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/alerts"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/attendance"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/audit"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/costs"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/queue"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/transcripts"
)

// ProcessTranscript classifies an arrived transcript into show or ghosted
// and applies the transition. A transcript that is not ready yet is a
// no-op, not an error.
func (c *Coordinator) ProcessTranscript(ctx context.Context, orgID string, callID uuid.UUID) error {
	if c.provider == nil {
		return errors.New("coordinator: no transcript provider configured")
	}

	call, err := c.calls.GetByID(ctx, orgID, callID)
	if err != nil {
		return err
	}
	if call == nil {
		return fmt.Errorf("coordinator: call %s not found", callID)
	}

	state := call.AttendanceState.Normalize()
	if attendance.Terminal(state) {
		c.logger.Debug("transcript for terminal call ignored", "call_id", callID, "state", string(state))
		return nil
	}

	// A transcript arriving before the sweeper ran implies the call
	// happened; promote to waiting so the outcome transition is legal.
	if state == calls.StateUnset {
		moved, err := c.transition(ctx, call, calls.StateWaiting, audit.SourceTranscriptArrival, "transcript arrived")
		if err != nil {
			return err
		}
		if !moved {
			// Another writer promoted or resolved the call between the read
			// and the compare-and-set; classify against the fresh state, not
			// the stale snapshot.
			call, err = c.calls.GetByID(ctx, orgID, callID)
			if err != nil {
				return err
			}
			if call == nil {
				return fmt.Errorf("coordinator: call %s not found", callID)
			}
			if attendance.Terminal(call.AttendanceState.Normalize()) {
				c.logger.Debug("transcript for terminal call ignored", "call_id", callID, "state", string(call.AttendanceState))
				return nil
			}
		}
	}

	t, err := c.provider.Fetch(ctx, orgID, callID)
	if errors.Is(err, transcripts.ErrNotReady) {
		c.logger.Debug("transcript not ready", "call_id", callID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("coordinator: fetch transcript: %w", err)
	}

	thresholds := attendance.Thresholds{}
	if c.settings != nil {
		if settings, serr := c.settings.Settings(ctx, orgID); serr == nil {
			thresholds.MinTranscriptChars = settings.MinTranscriptChars
			thresholds.MinSpeakers = settings.MinSpeakers
		}
	}

	speakers := t.Speakers
	substantive := true
	if c.analyzer != nil && t.Text != "" {
		analysis, usage, aerr := c.analyzer.Analyze(ctx, t)
		if aerr != nil {
			c.logger.Warn("transcript analysis failed, falling back to counts", "error", aerr, "call_id", callID)
		} else {
			if analysis.Speakers > 0 {
				speakers = analysis.Speakers
			}
			substantive = analysis.Substantive
			c.recordUsage(ctx, orgID, callID, usage)
		}
	}

	outcome := attendance.ClassifyTranscript(speakers, t.Chars, thresholds)
	if outcome == calls.StateShow && !substantive {
		outcome = calls.StateGhosted
	}

	moved, err := c.transition(ctx, call, outcome, audit.SourceTranscriptArrival,
		fmt.Sprintf("speakers=%d chars=%d", speakers, t.Chars))
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	if ref := fmt.Sprintf("%s/%s.json", orgID, callID); call.TranscriptRef == "" {
		if err := c.calls.SetTranscript(ctx, callID, ref); err != nil {
			c.logger.Warn("failed to record transcript ref", "error", err, "call_id", callID)
		}
	}

	if outcome == calls.StateShow {
		if err := c.ledger.RecordShow(ctx, call.ProspectID); err != nil {
			return fmt.Errorf("coordinator: record show: %w", err)
		}
	}
	return nil
}

// MarkNoRecording applies the externally asserted recording-failure signal.
// Never inferred from transcript absence; that path is the sweeper's.
func (c *Coordinator) MarkNoRecording(ctx context.Context, orgID string, callID uuid.UUID, detail string) error {
	return c.markExternal(ctx, orgID, callID, calls.StateNoRecording, detail)
}

// MarkOverbooked applies the externally asserted closer-double-booked signal.
func (c *Coordinator) MarkOverbooked(ctx context.Context, orgID string, callID uuid.UUID, detail string) error {
	return c.markExternal(ctx, orgID, callID, calls.StateOverbooked, detail)
}

func (c *Coordinator) markExternal(ctx context.Context, orgID string, callID uuid.UUID, to calls.AttendanceState, detail string) error {
	call, err := c.calls.GetByID(ctx, orgID, callID)
	if err != nil {
		return err
	}
	if call == nil {
		return fmt.Errorf("coordinator: call %s not found", callID)
	}

	state := call.AttendanceState.Normalize()
	if attendance.Terminal(state) {
		return fmt.Errorf("coordinator: call %s already terminal (%s)", callID, state)
	}
	if state == calls.StateUnset {
		if _, err := c.transition(ctx, call, calls.StateWaiting, audit.SourceAdminAction, "external signal"); err != nil {
			return err
		}
	}

	moved, err := c.transition(ctx, call, to, audit.SourceAdminAction, detail)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("coordinator: call %s state changed concurrently", callID)
	}
	return nil
}

// recordUsage prices analyzer token usage and appends a cost record.
func (c *Coordinator) recordUsage(ctx context.Context, orgID string, callID uuid.UUID, usage transcripts.Usage) {
	if c.costs == nil || usage.Model == "" {
		return
	}
	cost := float64(usage.InputTokens)/1000*c.cfg.ModelInputCostPer1K +
		float64(usage.OutputTokens)/1000*c.cfg.ModelOutputCostPer1K
	rec := &costs.Record{
		OrgID:        orgID,
		CallID:       callID,
		Model:        usage.Model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      cost,
		Duration:     usage.Duration,
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.costs.Insert(ctx, rec); err != nil {
		c.logger.Error("cost record write failed", "error", err, "call_id", callID)
	}
}

// HandleNotification adapts the coordinator to the queue worker.
func (c *Coordinator) HandleNotification(ctx context.Context, job queue.NotificationJob) (string, error) {
	start := time.Now()
	summary, err := c.ProcessNotification(ctx, job)
	c.metrics.ObserveJobLatency("calendar_notification", time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if summary.Errors > 0 {
		c.alert(ctx, alerts.Alert{
			Severity: alerts.SeverityWarning,
			Title:    "notification batch had event failures",
			Details:  summary.String(),
			OrgID:    job.OrgID,
		})
	}
	return summary.String(), nil
}

// HandleTranscript adapts the coordinator to the queue worker.
func (c *Coordinator) HandleTranscript(ctx context.Context, job queue.TranscriptJob) (string, error) {
	start := time.Now()
	err := c.ProcessTranscript(ctx, job.OrgID, job.CallID)
	c.metrics.ObserveJobLatency("transcript_arrival", time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return "transcript processed", nil
}
