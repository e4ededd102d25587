package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/identity"
	"github.com/schedulrr/schedulrr-api/internal/models"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/export"
)

type meetingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	ListByOwner(ctx context.Context, userID string, meetingType models.MeetingType, now time.Time) ([]models.Meeting, error)
	Delete(ctx context.Context, id string) error
}

// ExportFormat selects the meeting export rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult carries rendered export bytes with response metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// MeetingService lists and cancels an owner's booked meetings.
type MeetingService struct {
	bookings meetingRepository
	users    userRepository
	tokens   oauthTokenSource
	calendar calendarClient
	metrics  *MetricsService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewMeetingService creates a new meeting service instance.
func NewMeetingService(bookings meetingRepository, users userRepository, tokens oauthTokenSource,
	calendar calendarClient, metrics *MetricsService, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{
		bookings: bookings,
		users:    users,
		tokens:   tokens,
		calendar: calendar,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		now:      time.Now,
	}
}

// List returns the caller's meetings, upcoming by default. Upcoming sorts
// soonest first, past sorts most recent first.
func (s *MeetingService) List(ctx context.Context, clerkUserID string, meetingType models.MeetingType) ([]models.Meeting, error) {
	if meetingType != models.MeetingPast {
		meetingType = models.MeetingUpcoming
	}
	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}

	meetings, err := s.bookings.ListByOwner(ctx, owner.ID, meetingType, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	return meetings, nil
}

// Cancel removes one of the caller's meetings. The provider-side calendar
// delete is best effort: a failure there is logged and the local booking is
// removed regardless, so the owner's schedule frees up either way.
func (s *MeetingService) Cancel(ctx context.Context, clerkUserID, meetingID string) error {
	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return err
	}

	meeting, err := s.bookings.FindByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	if meeting.UserID != owner.ID {
		return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
	}

	if meeting.GoogleEventID != nil && *meeting.GoogleEventID != "" {
		s.deleteCalendarEvent(ctx, owner, *meeting.GoogleEventID)
	}

	if err := s.bookings.Delete(ctx, meetingID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel meeting")
	}

	s.metrics.RecordBookingCancelled()
	s.logger.Info("meeting cancelled",
		zap.String("booking_id", meetingID),
		zap.String("user_id", owner.ID))
	return nil
}

func (s *MeetingService) deleteCalendarEvent(ctx context.Context, owner *models.User, googleEventID string) {
	token, err := s.tokens.GoogleOAuthToken(ctx, owner.ClerkUserID)
	if err != nil {
		if !errors.Is(err, identity.ErrNotConnected) {
			s.logger.Warn("failed to fetch calendar credentials for cancellation",
				zap.String("user_id", owner.ID), zap.Error(err))
		}
		return
	}
	if err := s.calendar.DeleteEvent(ctx, token, googleEventID); err != nil {
		s.logger.Warn("failed to delete calendar event on cancellation",
			zap.String("google_event_id", googleEventID), zap.Error(err))
	}
}

// Export renders the caller's meetings of the given type as CSV or PDF.
func (s *MeetingService) Export(ctx context.Context, clerkUserID string, meetingType models.MeetingType, format ExportFormat) (*ExportResult, error) {
	meetings, err := s.List(ctx, clerkUserID, meetingType)
	if err != nil {
		return nil, err
	}
	if meetingType != models.MeetingPast {
		meetingType = models.MeetingUpcoming
	}

	dataset := export.Dataset{
		Headers: []string{"Event", "With", "Email", "Start", "End", "Meet Link"},
		Rows:    make([]map[string]string, 0, len(meetings)),
	}
	for _, m := range meetings {
		link := ""
		if m.MeetLink != nil {
			link = *m.MeetLink
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Event":     m.EventTitle,
			"With":      m.Name,
			"Email":     m.Email,
			"Start":     m.StartTime.UTC().Format(time.RFC3339),
			"End":       m.EndTime.UTC().Format(time.RFC3339),
			"Meet Link": link,
		})
	}

	switch format {
	case ExportCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			FileName:    "meetings-" + string(meetingType) + ".csv",
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case ExportPDF:
		data, err := s.pdf.Render(dataset, "Meetings ("+string(meetingType)+")")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			FileName:    "meetings-" + string(meetingType) + ".pdf",
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, expected csv or pdf")
	}
}

// SetNow overrides the clock, for tests.
func (s *MeetingService) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *MeetingService) owner(ctx context.Context, clerkUserID string) (*models.User, error) {
	user, err := s.users.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
