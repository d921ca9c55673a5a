// Package queue decouples webhook acknowledgement from pipeline processing.
// Handlers enqueue jobs and return immediately; workers drain the queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeNotification jobType = "calendar_notification"
	jobTypeTranscript   jobType = "transcript_arrival"
)

// NotificationJob carries one calendar push notification from the webhook
// handler to the worker.
type NotificationJob struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	ChannelID     string    `json:"channel_id"`
	ResourceID    string    `json:"resource_id"`
	ResourceState string    `json:"resource_state"`
	EventID       string    `json:"event_id,omitempty"`
	MessageNumber int       `json:"message_number,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// TranscriptJob signals that a call's transcript has arrived.
type TranscriptJob struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	CallID     uuid.UUID `json:"call_id"`
	ReceivedAt time.Time `json:"received_at"`
}

type queuePayload struct {
	ID           string           `json:"id"`
	Kind         jobType          `json:"kind"`
	Notification *NotificationJob `json:"notification,omitempty"`
	Transcript   *TranscriptJob   `json:"transcript,omitempty"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("queue: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
