package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

type collectingHandler struct {
	mu            sync.Mutex
	notifications []NotificationJob
	transcripts   []TranscriptJob
	err           error
}

func (h *collectingHandler) HandleNotification(_ context.Context, job NotificationJob) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifications = append(h.notifications, job)
	return "ok", h.err
}

func (h *collectingHandler) HandleTranscript(_ context.Context, job TranscriptJob) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transcripts = append(h.transcripts, job)
	return "ok", h.err
}

func (h *collectingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notifications), len(h.transcripts)
}

type recordingUpdater struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (u *recordingUpdater) MarkCompleted(_ context.Context, jobID, _ string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.completed = append(u.completed, jobID)
	return nil
}

func (u *recordingUpdater) MarkFailed(_ context.Context, jobID, _ string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failed = append(u.failed, jobID)
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerProcessesNotificationJobs(t *testing.T) {
	q := NewMemoryQueue(8)
	pub := NewPublisher(q, logging.Default())
	handler := &collectingHandler{}
	updater := &recordingUpdater{}

	require.NoError(t, pub.EnqueueNotification(context.Background(), NotificationJob{
		ID:            "job-1",
		OrgID:         "org_1",
		ChannelID:     "chan-1",
		ResourceState: "exists",
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(q, handler, updater, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	waitFor(t, func() bool {
		n, _ := handler.counts()
		return n == 1
	})
	cancel()
	w.Wait()

	assert.Equal(t, "org_1", handler.notifications[0].OrgID)
	waitForNoFatal := func() bool {
		updater.mu.Lock()
		defer updater.mu.Unlock()
		return len(updater.completed) == 1
	}
	assert.Eventually(t, waitForNoFatal, time.Second, 10*time.Millisecond)
}

func TestWorkerRoutesTranscriptJobs(t *testing.T) {
	q := NewMemoryQueue(8)
	pub := NewPublisher(q, logging.Default())
	handler := &collectingHandler{}

	require.NoError(t, pub.EnqueueTranscript(context.Background(), TranscriptJob{ID: "job-2", OrgID: "org_1"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(q, handler, nil, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	waitFor(t, func() bool {
		_, n := handler.counts()
		return n == 1
	})
	cancel()
	w.Wait()
}

func TestWorkerSkipsMalformedPayload(t *testing.T) {
	q := NewMemoryQueue(8)
	require.NoError(t, q.Send(context.Background(), "not json"))

	handler := &collectingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(q, handler, nil, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	// Give the worker a moment; the malformed message must not reach the handler.
	time.Sleep(100 * time.Millisecond)
	cancel()
	w.Wait()

	n, tr := handler.counts()
	assert.Zero(t, n)
	assert.Zero(t, tr)
}
