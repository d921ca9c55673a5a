package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// Severity ranks alerts for subject-line triage.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert describes an operational condition a human should look at.
type Alert struct {
	Severity    Severity
	Title       string
	Details     string
	Remediation string
	OrgID       string
}

// Service sends alerts to the configured recipients. Delivery failures are
// logged, never propagated: an alert must not take down the path that
// raised it.
type Service struct {
	sender     EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewService creates an alert service. A nil sender turns the service into
// a log-only sink.
func NewService(sender EmailSender, recipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, recipients: recipients, logger: logger}
}

// Fire delivers the alert to every recipient. It always returns; callers
// treat alerting as fire-and-forget.
func (s *Service) Fire(ctx context.Context, alert Alert) {
	s.logger.Warn("alert raised",
		"severity", string(alert.Severity),
		"title", alert.Title,
		"org_id", alert.OrgID,
		"details", alert.Details)

	if s.sender == nil || len(s.recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)
	body := alert.Details
	if alert.OrgID != "" {
		body = fmt.Sprintf("Org: %s\n\n%s", alert.OrgID, body)
	}
	if alert.Remediation != "" {
		body += "\n\nRemediation: " + alert.Remediation
	}
	body += "\n\nRaised at: " + time.Now().UTC().Format(time.RFC3339)

	for _, to := range s.recipients {
		msg := EmailMessage{To: to, Subject: subject, Body: body}
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Error("alert delivery failed", "error", err, "to", to, "title", alert.Title)
		}
	}
}
