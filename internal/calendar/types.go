// Package calendar defines the capability interface over the calendar
// provider. The coordinator treats the fetched event detail as the source
// of truth for cancellation and reschedule detection; push notifications
// carry no payload and only say that something changed.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ResourceState is the state token carried by a push notification.
type ResourceState string

const (
	StateExists    ResourceState = "exists"
	StateNotExists ResourceState = "not_exists"
	StateSync      ResourceState = "sync"
)

// PushNotification is the opaque resource-state-change signal delivered by
// the provider's push transport. No event body is included.
type PushNotification struct {
	ChannelID     string
	ResourceID    string
	ResourceState ResourceState
	MessageNumber string
	Token         string
}

// ParsePushHeaders extracts a push notification from Google-style webhook
// headers.
func ParsePushHeaders(h http.Header) (PushNotification, error) {
	n := PushNotification{
		ChannelID:     h.Get("X-Goog-Channel-ID"),
		ResourceID:    h.Get("X-Goog-Resource-ID"),
		MessageNumber: h.Get("X-Goog-Message-Number"),
		Token:         h.Get("X-Goog-Channel-Token"),
	}
	switch strings.ToLower(strings.TrimSpace(h.Get("X-Goog-Resource-State"))) {
	case "exists", "update":
		n.ResourceState = StateExists
	case "not_exists":
		n.ResourceState = StateNotExists
	case "sync":
		n.ResourceState = StateSync
	default:
		return PushNotification{}, fmt.Errorf("calendar: unrecognized resource state %q", h.Get("X-Goog-Resource-State"))
	}
	if n.ChannelID == "" {
		return PushNotification{}, fmt.Errorf("calendar: missing channel id header")
	}
	return n, nil
}

// Attendee is one invitee on a calendar event.
type Attendee struct {
	Email     string
	Response  string // needsAction, accepted, tentative, declined
	Organizer bool
}

// Event is the authoritative event detail fetched from the provider.
type Event struct {
	ID        string
	Etag      string // revision; drives the idempotency key
	Summary   string
	Status    string // confirmed or cancelled
	Start     time.Time
	End       time.Time
	Updated   time.Time // provider-reported update time, used for tie-breaks
	Attendees []Attendee
}

// Cancelled reports whether the provider marked the event cancelled.
func (e Event) Cancelled() bool {
	return strings.EqualFold(e.Status, "cancelled")
}

// GuestDeclined reports whether any non-organizer attendee declined.
func (e Event) GuestDeclined() bool {
	for _, a := range e.Attendees {
		if !a.Organizer && strings.EqualFold(a.Response, "declined") {
			return true
		}
	}
	return false
}

// GuestEmail returns the first non-organizer attendee email, the prospect.
func (e Event) GuestEmail() string {
	for _, a := range e.Attendees {
		if !a.Organizer {
			return a.Email
		}
	}
	return ""
}

// EventSource fetches authoritative event detail for an org's calendar.
type EventSource interface {
	// ChangedEvents lists events updated since the given time, including
	// deleted/cancelled ones.
	ChangedEvents(ctx context.Context, orgID string, updatedSince time.Time) ([]Event, error)
	// Event fetches one event by id.
	Event(ctx context.Context, orgID, eventID string) (*Event, error)
}
