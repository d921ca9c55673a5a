package queue

import (
	"context"
	"fmt"

	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// Publisher enqueues pipeline jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("queue: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueNotification publishes a calendar notification job.
func (p *Publisher) EnqueueNotification(ctx context.Context, job NotificationJob) error {
	return p.enqueue(ctx, queuePayload{
		ID:           job.ID,
		Kind:         jobTypeNotification,
		Notification: &job,
	})
}

// EnqueueTranscript publishes a transcript arrival job.
func (p *Publisher) EnqueueTranscript(ctx context.Context, job TranscriptJob) error {
	return p.enqueue(ctx, queuePayload{
		ID:         job.ID,
		Kind:       jobTypeTranscript,
		Transcript: &job,
	})
}

func (p *Publisher) enqueue(ctx context.Context, payload queuePayload) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("queue: failed to enqueue job: %w", err)
	}

	p.logger.Debug("job enqueued", "job_id", payload.ID, "kind", string(payload.Kind))
	return nil
}
