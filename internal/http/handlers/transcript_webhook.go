package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/jobs"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/observability/metrics"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/queue"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// TranscriptEnqueuer publishes transcript arrival jobs.
type TranscriptEnqueuer interface {
	EnqueueTranscript(ctx context.Context, job queue.TranscriptJob) error
}

// TranscriptWebhookHandler receives transcript-ready signals from the
// recording pipeline. Like the calendar webhook, it acks before any
// processing happens. Deliveries carry the shared secret in the
// X-Webhook-Token header.
type TranscriptWebhookHandler struct {
	secret  string
	queue   TranscriptEnqueuer
	jobs    jobs.Recorder
	metrics *metrics.PipelineMetrics
	logger  *logging.Logger
}

func NewTranscriptWebhookHandler(secret string, q TranscriptEnqueuer, recorder jobs.Recorder, m *metrics.PipelineMetrics, logger *logging.Logger) *TranscriptWebhookHandler {
	if q == nil {
		panic("handlers: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TranscriptWebhookHandler{secret: strings.TrimSpace(secret), queue: q, jobs: recorder, metrics: m, logger: logger}
}

type transcriptSignal struct {
	OrgID  string `json:"org_id"`
	CallID string `json:"call_id"`
}

// Handle processes POST /webhooks/transcripts.
func (h *TranscriptWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret == "" {
		h.logger.Error("transcript webhook secret not configured")
		http.Error(w, "webhook not configured", http.StatusInternalServerError)
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Webhook-Token")), []byte(h.secret)) != 1 {
		h.metrics.ObserveWebhook("transcript", "unauthorized")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var sig transcriptSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		h.metrics.ObserveWebhook("transcript", "bad_request")
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	callID, err := uuid.Parse(sig.CallID)
	if err != nil || sig.OrgID == "" {
		h.metrics.ObserveWebhook("transcript", "bad_request")
		http.Error(w, "org_id and call_id are required", http.StatusBadRequest)
		return
	}

	job := queue.TranscriptJob{
		ID:         uuid.NewString(),
		OrgID:      sig.OrgID,
		CallID:     callID,
		ReceivedAt: time.Now().UTC(),
	}

	if h.jobs != nil {
		rec := &jobs.Record{JobID: job.ID, Kind: "transcript_arrival", OrgID: sig.OrgID}
		if err := h.jobs.PutPending(r.Context(), rec); err != nil {
			h.logger.Error("failed to record pending job", "job_id", job.ID, "error", err)
		}
	}

	if err := h.queue.EnqueueTranscript(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue transcript job", "job_id", job.ID, "org_id", sig.OrgID, "error", err)
		h.metrics.ObserveWebhook("transcript", "enqueue_failed")
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveWebhook("transcript", "accepted")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}
