package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/alerts"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calendar"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/jobs"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/observability/metrics"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/queue"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// NotificationEnqueuer publishes calendar notification jobs.
type NotificationEnqueuer interface {
	EnqueueNotification(ctx context.Context, job queue.NotificationJob) error
}

// Alerter raises operator alerts.
type Alerter interface {
	Fire(ctx context.Context, alert alerts.Alert)
}

// CalendarWebhookHandler receives Google Calendar push notifications.
//
// Push notifications carry no event payload; the handler's only job is to
// authenticate the channel, record a pending job, enqueue it, and ack.
// The ack always precedes the work: Google suspends channels that fail to
// respond 200, so even an enqueue failure is acked and surfaced through an
// alert instead. The lookback window on the processing side covers any
// notification lost this way.
type CalendarWebhookHandler struct {
	secret  string
	queue   NotificationEnqueuer
	jobs    jobs.Recorder
	metrics *metrics.PipelineMetrics
	alerter Alerter
	logger  *logging.Logger
}

// NewCalendarWebhookHandler creates the push-notification receiver. jobs,
// metrics and alerter may be nil.
func NewCalendarWebhookHandler(secret string, q NotificationEnqueuer, recorder jobs.Recorder, m *metrics.PipelineMetrics, alerter Alerter, logger *logging.Logger) *CalendarWebhookHandler {
	if q == nil {
		panic("handlers: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarWebhookHandler{
		secret:  strings.TrimSpace(secret),
		queue:   q,
		jobs:    recorder,
		metrics: m,
		alerter: alerter,
		logger:  logger,
	}
}

// Handle processes POST /webhooks/calendar.
func (h *CalendarWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret == "" {
		h.logger.Error("calendar webhook secret not configured")
		http.Error(w, "webhook not configured", http.StatusInternalServerError)
		return
	}

	push, err := calendar.ParsePushHeaders(r.Header)
	if err != nil {
		h.logger.Warn("malformed push notification", "error", err)
		h.metrics.ObserveWebhook("calendar", "bad_request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	orgID, ok := h.authenticate(push.Token)
	if !ok {
		h.logger.Warn("push notification with bad channel token", "channel_id", push.ChannelID)
		h.metrics.ObserveWebhook("calendar", "unauthorized")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Sync messages confirm channel registration; nothing changed yet.
	if push.ResourceState == calendar.StateSync {
		h.metrics.ObserveWebhook("calendar", "sync")
		w.WriteHeader(http.StatusOK)
		return
	}

	msgNum, _ := strconv.Atoi(push.MessageNumber)
	job := queue.NotificationJob{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		ChannelID:     push.ChannelID,
		ResourceID:    push.ResourceID,
		ResourceState: string(push.ResourceState),
		MessageNumber: msgNum,
		ReceivedAt:    time.Now().UTC(),
	}

	if h.jobs != nil {
		rec := &jobs.Record{JobID: job.ID, Kind: "calendar_notification", OrgID: orgID}
		if err := h.jobs.PutPending(r.Context(), rec); err != nil {
			h.logger.Error("failed to record pending job", "job_id", job.ID, "error", err)
		}
	}

	if err := h.queue.EnqueueNotification(r.Context(), job); err != nil {
		// Still ack: a non-200 here makes the provider suspend the channel,
		// which loses all future notifications for the org.
		h.logger.Error("failed to enqueue notification", "job_id", job.ID, "org_id", orgID, "error", err)
		h.metrics.ObserveWebhook("calendar", "enqueue_failed")
		if h.alerter != nil {
			h.alerter.Fire(r.Context(), alerts.Alert{
				Severity:    alerts.SeverityCritical,
				Title:       "calendar notification dropped",
				Details:     "enqueue failed: " + err.Error(),
				Remediation: "the next sweep or notification re-syncs the window; check queue health",
				OrgID:       orgID,
			})
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	h.metrics.ObserveWebhook("calendar", "accepted")
	h.logger.Info("notification enqueued",
		"job_id", job.ID,
		"org_id", orgID,
		"resource_state", job.ResourceState,
	)
	w.WriteHeader(http.StatusOK)
}

// authenticate checks the channel token set at watch registration. Channels
// are registered with token "org=<org-id>&secret=<shared-secret>" so the
// push carries its own tenant binding.
func (h *CalendarWebhookHandler) authenticate(token string) (string, bool) {
	values, err := url.ParseQuery(token)
	if err != nil {
		return "", false
	}
	secret := values.Get("secret")
	orgID := values.Get("org")
	if orgID == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		return "", false
	}
	return orgID, true
}
