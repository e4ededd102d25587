// Package google wraps the Calendar REST API for booking lifecycle calls.
// Every call authenticates with the event owner's delegated OAuth token,
// so a fresh service handle is built per request.
package google

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/schedulrr/schedulrr-api/pkg/config"
)

// CreateEventRequest describes the calendar event for a booking.
type CreateEventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	// RequestID is the conference create idempotency key.
	RequestID string
}

// CreatedEvent is the provider result needed by the booking flow.
type CreatedEvent struct {
	EventID  string
	MeetLink string
}

// CalendarClient creates and deletes events on a user's primary calendar.
type CalendarClient struct {
	calendarID string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewCalendarClient builds a client for the configured calendar.
func NewCalendarClient(cfg config.CalendarConfig, logger *zap.Logger) *CalendarClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &CalendarClient{calendarID: calendarID, timeout: cfg.RequestTimeout, logger: logger}
}

func (c *CalendarClient) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return svc, nil
}

// CreateEvent creates a conference-enabled event and returns its id and
// video link. The conference request id makes the create idempotent at the
// provider.
func (c *CalendarClient) CreateEvent(ctx context.Context, accessToken string, req CreateEventRequest) (*CreatedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees))
	for _, email := range req.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}

	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339)},
		Attendees:   attendees,
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{RequestId: req.RequestID},
		},
	}

	created, err := svc.Events.Insert(c.calendarID, event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	c.logger.Info("calendar event created",
		zap.String("event_id", created.Id),
		zap.String("summary", req.Summary))

	return &CreatedEvent{EventID: created.Id, MeetLink: meetLink(created)}, nil
}

// DeleteEvent removes an event by id.
func (c *CalendarClient) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete calendar event %s: %w", eventID, err)
	}
	return nil
}

func meetLink(event *calendar.Event) string {
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return event.HangoutLink
}
