package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/schedulrr/schedulrr-api/internal/google"
	"github.com/schedulrr/schedulrr-api/internal/identity"
	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/internal/repository"
	"github.com/schedulrr/schedulrr-api/internal/slots"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
)

type bookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	ListForOwnerBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Booking, error)
}

type oauthTokenSource interface {
	GoogleOAuthToken(ctx context.Context, clerkUserID string) (string, error)
}

type calendarClient interface {
	CreateEvent(ctx context.Context, accessToken string, req google.CreateEventRequest) (*google.CreatedEvent, error)
	DeleteEvent(ctx context.Context, accessToken, eventID string) error
}

// CreateBookingRequest is the visitor-facing booking payload.
type CreateBookingRequest struct {
	EventID        string    `json:"eventId" validate:"required"`
	Name           string    `json:"name" validate:"required,max=100"`
	Email          string    `json:"email" validate:"required,email"`
	AdditionalInfo *string   `json:"additionalInfo" validate:"omitempty,max=1000"`
	StartTime      time.Time `json:"startTime" validate:"required"`
	EndTime        time.Time `json:"endTime" validate:"required"`
}

// BookingService orchestrates booking creation: calendar event first, local
// persistence second, so a booking row never exists without its meeting.
type BookingService struct {
	bookings     bookingRepository
	events       eventRepository
	users        userRepository
	availability availabilityRepository
	tokens       oauthTokenSource
	calendar     calendarClient
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewBookingService creates a new booking service instance.
func NewBookingService(bookings bookingRepository, events eventRepository, users userRepository,
	availability availabilityRepository, tokens oauthTokenSource, calendar calendarClient,
	metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:     bookings,
		events:       events,
		users:        users,
		availability: availability,
		tokens:       tokens,
		calendar:     calendar,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Create books a slot on a public event. It fetches the owner's delegated
// calendar token, creates the conference-enabled calendar event, then
// persists the booking. When the final insert loses the slot race the
// calendar event is cleaned up best effort and the visitor gets a conflict.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	event, err := s.events.FindByID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	owner, err := s.users.FindByID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event owner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event owner")
	}

	start := req.StartTime.UTC()
	end := req.EndTime.UTC()
	if err := s.checkWindow(ctx, event, owner, start, end); err != nil {
		return nil, err
	}

	token, err := s.tokens.GoogleOAuthToken(ctx, owner.ClerkUserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotConnected) {
			return nil, appErrors.Clone(appErrors.ErrCalendarNotConnected,
				fmt.Sprintf("%s has not connected Google Calendar", owner.Name))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch calendar credentials")
	}

	// Standing attendees are copied in only for private meetings; a public
	// event's list never leaks to arbitrary visitors.
	var standing []string
	if event.IsPrivate {
		standing = event.AttendeeEmails
	}

	created, err := s.calendar.CreateEvent(ctx, token, google.CreateEventRequest{
		Summary:     fmt.Sprintf("%s - %s", req.Name, event.Title),
		Description: eventDescription(req.AdditionalInfo, event),
		Start:       start,
		End:         end,
		Attendees:   attendeeList(req.Email, owner.Email, standing),
		RequestID:   fmt.Sprintf("%s-%d", event.ID, s.now().UnixMilli()),
	})
	if err != nil {
		s.logger.Error("calendar event creation failed",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCalendarCreateFailed.Code,
			appErrors.ErrCalendarCreateFailed.Status, calendarFailureMessage(err))
	}

	booking := &models.Booking{
		EventID:        event.ID,
		UserID:         owner.ID,
		Name:           req.Name,
		Email:          req.Email,
		AdditionalInfo: req.AdditionalInfo,
		StartTime:      start,
		EndTime:        end,
		MeetLink:       optional(created.MeetLink),
		GoogleEventID:  optional(created.EventID),
		InvitedEmails:  standing,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			// The slot was taken between the availability check and the
			// insert. Remove the orphaned calendar event best effort.
			if delErr := s.calendar.DeleteEvent(ctx, token, created.EventID); delErr != nil {
				s.logger.Warn("failed to clean up calendar event after slot conflict",
					zap.String("google_event_id", created.EventID),
					zap.Error(delErr))
			}
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "the selected slot is no longer available")
		}
		s.logger.Error("booking persistence failed after calendar create",
			zap.String("event_id", event.ID),
			zap.String("google_event_id", created.EventID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save booking")
	}

	s.metrics.RecordBookingCreated()
	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("event_id", event.ID),
		zap.Time("start", booking.StartTime))
	return booking, nil
}

// checkWindow validates the requested window against the event duration and
// the owner's current open slots.
func (s *BookingService) checkWindow(ctx context.Context, event *models.Event, owner *models.User, start, end time.Time) error {
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	if end.Sub(start) != time.Duration(event.Duration)*time.Minute {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("booking must be exactly %d minutes", event.Duration))
	}

	availability, err := s.availability.FindByUser(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			availability = defaultAvailability(owner.ID)
		} else {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
		}
	}
	rules, err := slots.FromAvailability(availability)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve schedule")
	}

	dayStart := start.In(rules.Location)
	dayStart = time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), 0, 0, 0, 0, rules.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	existing, err := s.bookings.ListForOwnerBetween(ctx, owner.ID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	booked := make([]slots.Window, len(existing))
	for i, b := range existing {
		booked[i] = slots.Window{Start: b.StartTime, End: b.EndTime}
	}

	open, err := slots.Generate(rules, dayStart, time.Duration(event.Duration)*time.Minute, booked, s.now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate slots")
	}
	for _, w := range open {
		if w.Start.Equal(start) && w.End.Equal(end) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrSlotUnavailable, "the selected slot is no longer available")
}

// SetNow overrides the clock, for tests.
func (s *BookingService) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// attendeeList merges the visitor, the owner and the event's standing
// attendees in stable order, deduplicated by exact email string.
func attendeeList(visitor, owner string, standing []string) []string {
	seen := make(map[string]bool, 2+len(standing))
	var out []string
	for _, email := range append([]string{visitor, owner}, standing...) {
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}

// eventDescription picks the calendar description: the visitor's note first,
// then the event's notes, then its description.
func eventDescription(additionalInfo *string, event *models.Event) string {
	if additionalInfo != nil && *additionalInfo != "" {
		return *additionalInfo
	}
	if event.Notes != nil && *event.Notes != "" {
		return *event.Notes
	}
	if event.Description != nil {
		return *event.Description
	}
	return ""
}

// calendarFailureMessage surfaces the provider's own message to the visitor
// when one is available.
func calendarFailureMessage(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return appErrors.ErrCalendarCreateFailed.Message
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
