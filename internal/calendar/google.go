package calendar

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// GoogleSource implements EventSource over the Google Calendar API.
type GoogleSource struct {
	svc       *gcal.Service
	calendars CalendarResolver
	logger    *logging.Logger
}

// CalendarResolver maps an org id to its watched calendar id.
type CalendarResolver interface {
	CalendarID(ctx context.Context, orgID string) (string, error)
}

// NewGoogleSource creates a Google Calendar event source.
func NewGoogleSource(svc *gcal.Service, calendars CalendarResolver, logger *logging.Logger) *GoogleSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleSource{svc: svc, calendars: calendars, logger: logger}
}

// NewGoogleService builds the calendar API client from base64-encoded
// service account credentials.
func NewGoogleService(ctx context.Context, credentialsB64 string) (*gcal.Service, error) {
	creds, err := base64.StdEncoding.DecodeString(credentialsB64)
	if err != nil {
		return nil, fmt.Errorf("calendar: decode credentials: %w", err)
	}
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gcal.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return svc, nil
}

// ChangedEvents lists events updated since the given time, including
// cancelled ones, so deletions surface as status=cancelled records.
func (g *GoogleSource) ChangedEvents(ctx context.Context, orgID string, updatedSince time.Time) ([]Event, error) {
	calendarID, err := g.calendars.CalendarID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("calendar: resolve calendar for org %s: %w", orgID, err)
	}

	var out []Event
	call := g.svc.Events.List(calendarID).
		UpdatedMin(updatedSince.UTC().Format(time.RFC3339)).
		ShowDeleted(true).
		SingleEvents(true).
		MaxResults(250).
		Context(ctx)

	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			evt, convErr := fromGoogleEvent(item)
			if convErr != nil {
				g.logger.Warn("skipping unparseable calendar event", "event_id", item.Id, "error", convErr)
				continue
			}
			out = append(out, evt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: list changed events: %w", err)
	}
	return out, nil
}

// Event fetches one event by id.
func (g *GoogleSource) Event(ctx context.Context, orgID, eventID string) (*Event, error) {
	calendarID, err := g.calendars.CalendarID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("calendar: resolve calendar for org %s: %w", orgID, err)
	}
	item, err := g.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: get event %s: %w", eventID, err)
	}
	evt, err := fromGoogleEvent(item)
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

func fromGoogleEvent(item *gcal.Event) (Event, error) {
	evt := Event{
		ID:      item.Id,
		Etag:    item.Etag,
		Summary: item.Summary,
		Status:  item.Status,
	}
	if item.Updated != "" {
		updated, err := time.Parse(time.RFC3339, item.Updated)
		if err != nil {
			return Event{}, fmt.Errorf("calendar: parse updated time: %w", err)
		}
		evt.Updated = updated
	}
	// Cancelled events may omit start/end entirely.
	if item.Start != nil && item.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Event{}, fmt.Errorf("calendar: parse start time: %w", err)
		}
		evt.Start = start
	}
	if item.End != nil && item.End.DateTime != "" {
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return Event{}, fmt.Errorf("calendar: parse end time: %w", err)
		}
		evt.End = end
	}
	for _, a := range item.Attendees {
		evt.Attendees = append(evt.Attendees, Attendee{
			Email:     a.Email,
			Response:  a.ResponseStatus,
			Organizer: a.Organizer,
		})
	}
	return evt, nil
}

var _ EventSource = (*GoogleSource)(nil)
