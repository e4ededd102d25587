package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/models"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
)

type eventRepository interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Event, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	FindPublic(ctx context.Context, username, eventID string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
}

// CreateEventRequest is the payload for creating an event type.
type CreateEventRequest struct {
	Title          string   `json:"title" validate:"required,max=100"`
	Description    *string  `json:"description" validate:"omitempty,max=500"`
	Duration       int      `json:"duration" validate:"required,gt=0"`
	IsPrivate      bool     `json:"isPrivate"`
	AttendeeEmails []string `json:"attendeeEmails" validate:"omitempty,max=20,dive,email"`
	Images         []string `json:"images" validate:"omitempty,max=5,dive,url"`
	Documents      []string `json:"documents" validate:"omitempty,max=5,dive,url"`
	Notes          *string  `json:"notes" validate:"omitempty,max=2000"`
}

// EventService manages bookable event types.
type EventService struct {
	repo      eventRepository
	users     userRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService creates a new event service instance.
func NewEventService(repo eventRepository, users userRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, users: users, cache: cache, validator: validate, logger: logger}
}

// Create stores a new event type for the caller.
func (s *EventService) Create(ctx context.Context, clerkUserID string, req CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		UserID:         owner.ID,
		Title:          req.Title,
		Description:    req.Description,
		Duration:       req.Duration,
		IsPrivate:      req.IsPrivate,
		AttendeeEmails: req.AttendeeEmails,
		Images:         req.Images,
		Documents:      req.Documents,
		Notes:          req.Notes,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	s.cache.Invalidate(ctx, profileCacheKey(owner.Username))
	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("user_id", owner.ID),
		zap.Int("duration", event.Duration))
	return event, nil
}

// List returns the caller's events with booking counts, newest first.
func (s *EventService) List(ctx context.Context, clerkUserID string) ([]models.Event, error) {
	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Get loads one of the caller's events.
func (s *EventService) Get(ctx context.Context, clerkUserID, eventID string) (*models.Event, error) {
	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.UserID != owner.ID {
		// Ownership mismatch reads as absence to the caller.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return event, nil
}

// PublicEvent loads a non-private event addressed by owner username, for
// the visitor-facing booking page.
func (s *EventService) PublicEvent(ctx context.Context, username, eventID string) (*models.Event, error) {
	event, err := s.repo.FindPublic(ctx, username, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.IsPrivate {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return event, nil
}

// Delete removes one of the caller's events along with its bookings.
func (s *EventService) Delete(ctx context.Context, clerkUserID, eventID string) error {
	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return err
	}
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.UserID != owner.ID {
		return appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}

	if err := s.repo.Delete(ctx, eventID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}

	s.cache.Invalidate(ctx, profileCacheKey(owner.Username))
	s.logger.Info("event deleted", zap.String("event_id", eventID), zap.String("user_id", owner.ID))
	return nil
}

func (s *EventService) owner(ctx context.Context, clerkUserID string) (*models.User, error) {
	user, err := s.users.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
