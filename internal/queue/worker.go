package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// Handler processes decoded jobs. The returned summary is persisted on the
// job record for operator visibility.
type Handler interface {
	HandleNotification(ctx context.Context, job NotificationJob) (string, error)
	HandleTranscript(ctx context.Context, job TranscriptJob) (string, error)
}

// JobUpdater records job outcomes. Satisfied by jobs.Store.
type JobUpdater interface {
	MarkCompleted(ctx context.Context, jobID, summary string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets how many goroutines drain the queue.
func WithWorkerCount(count int) WorkerOption {
	return func(c *workerConfig) {
		if count > 0 {
			c.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait per receive call.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(c *workerConfig) {
		if seconds >= 0 {
			c.receiveWaitSecs = seconds
		}
	}
}

// WithReceiveBatchSize sets how many messages one receive may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(c *workerConfig) {
		if size > 0 {
			c.receiveBatchSize = size
		}
	}
}

// Worker drains the queue and dispatches jobs to the handler.
type Worker struct {
	queue   queueClient
	handler Handler
	jobs    JobUpdater
	logger  *logging.Logger
	cfg     workerConfig
	wg      sync.WaitGroup
}

// NewWorker creates a queue worker. jobs may be nil when job tracking is
// disabled.
func NewWorker(queue queueClient, handler Handler, jobUpdater JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("queue: queue cannot be nil")
	}
	if handler == nil {
		panic("queue: handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          2,
		receiveWaitSecs:  10,
		receiveBatchSize: 5,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		queue:   queue,
		handler: handler,
		jobs:    jobUpdater,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("queue worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("queue worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode job", "error", err, "msg_id", msg.ID)
		// Malformed payloads never become valid; drop them.
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	w.logger.Info("worker processing job", "job_id", payload.ID, "kind", string(payload.Kind), "msg_id", msg.ID)

	var (
		summary string
		err     error
	)
	switch payload.Kind {
	case jobTypeNotification:
		if payload.Notification == nil {
			err = errors.New("queue: notification payload missing")
		} else {
			summary, err = w.handler.HandleNotification(ctx, *payload.Notification)
		}
	case jobTypeTranscript:
		if payload.Transcript == nil {
			err = errors.New("queue: transcript payload missing")
		} else {
			summary, err = w.handler.HandleTranscript(ctx, *payload.Transcript)
		}
	default:
		err = errors.New("queue: unknown job kind " + string(payload.Kind))
	}

	if err != nil {
		w.logger.Error("job failed", "error", err, "job_id", payload.ID, "kind", string(payload.Kind))
		if w.jobs != nil {
			if markErr := w.jobs.MarkFailed(ctx, payload.ID, err.Error()); markErr != nil {
				w.logger.Error("failed to mark job failed", "error", markErr, "job_id", payload.ID)
			}
		}
		// Leave the message for redelivery; processing is idempotent.
		return
	}

	if w.jobs != nil {
		if markErr := w.jobs.MarkCompleted(ctx, payload.ID, summary); markErr != nil {
			w.logger.Error("failed to mark job completed", "error", markErr, "job_id", payload.ID)
		}
	}
	w.deleteMessage(ctx, msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete message", "error", err)
	}
}
