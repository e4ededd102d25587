package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/internal/slots"
	"github.com/schedulrr/schedulrr-api/pkg/config"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
)

type availabilityRepository interface {
	FindByUser(ctx context.Context, userID string) (*models.Availability, error)
	Upsert(ctx context.Context, availability *models.Availability) error
}

type slotBookingRepository interface {
	ListForOwnerBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Booking, error)
}

// DayRuleRequest is one weekday rule of an availability update.
type DayRuleRequest struct {
	Day         models.Weekday `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	IsAvailable bool           `json:"isAvailable"`
	StartTime   string         `json:"startTime" validate:"required"`
	EndTime     string         `json:"endTime" validate:"required"`
}

// UpdateAvailabilityRequest replaces the caller's weekly schedule.
type UpdateAvailabilityRequest struct {
	TimeGap  int              `json:"timeGap" validate:"gte=0,lte=240"`
	Timezone string           `json:"timezone"`
	Days     []DayRuleRequest `json:"days" validate:"required,len=7,dive"`
}

// DateSlots groups the open slots of a single calendar day.
type DateSlots struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// AvailabilityService manages weekly schedules and derives open slots.
type AvailabilityService struct {
	repo      availabilityRepository
	users     userRepository
	events    eventRepository
	bookings  slotBookingRepository
	cache     *CacheService
	cfg       config.SlotsConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAvailabilityService creates a new availability service instance.
func NewAvailabilityService(repo availabilityRepository, users userRepository, events eventRepository,
	bookings slotBookingRepository, cache *CacheService, cfg config.SlotsConfig,
	validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 31
	}
	if cfg.DefaultRangeDays <= 0 {
		cfg.DefaultRangeDays = 30
	}
	return &AvailabilityService{
		repo:      repo,
		users:     users,
		events:    events,
		bookings:  bookings,
		cache:     cache,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the caller's schedule, or the default weekday template when
// none has been saved yet.
func (s *AvailabilityService) Get(ctx context.Context, clerkUserID string) (*models.Availability, error) {
	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}

	availability, err := s.repo.FindByUser(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultAvailability(owner.ID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	return availability, nil
}

// Update replaces the caller's weekly schedule.
func (s *AvailabilityService) Update(ctx context.Context, clerkUserID string, req UpdateAvailabilityRequest) (*models.Availability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown timezone %q", req.Timezone))
		}
	}

	seen := make(map[models.Weekday]bool, len(req.Days))
	days := make([]models.DayAvailability, 0, len(req.Days))
	for _, day := range req.Days {
		if seen[day.Day] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate day %q", day.Day))
		}
		seen[day.Day] = true

		if day.IsAvailable {
			startH, startM, err := slots.ParseClock(day.StartTime)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: invalid start time", day.Day))
			}
			endH, endM, err := slots.ParseClock(day.EndTime)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: invalid end time", day.Day))
			}
			if startH*60+startM >= endH*60+endM {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: start time must be before end time", day.Day))
			}
		}
		days = append(days, models.DayAvailability{
			Day:         day.Day,
			IsAvailable: day.IsAvailable,
			StartTime:   day.StartTime,
			EndTime:     day.EndTime,
		})
	}

	owner, err := s.owner(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}

	availability := &models.Availability{
		UserID:   owner.ID,
		TimeGap:  req.TimeGap,
		Timezone: req.Timezone,
		Days:     days,
	}
	if existing, err := s.repo.FindByUser(ctx, owner.ID); err == nil {
		availability.ID = existing.ID
		availability.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.Upsert(ctx, availability); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}

	s.cache.Invalidate(ctx, availabilityCacheKey(owner.ID))
	s.logger.Info("availability updated", zap.String("user_id", owner.ID), zap.Int("time_gap", req.TimeGap))
	return availability, nil
}

// EventSlots enumerates open slots for a public event over a date range.
// Dates are "2006-01-02" strings interpreted in the owner's timezone; when
// the range is omitted it defaults to the configured window starting today.
func (s *AvailabilityService) EventSlots(ctx context.Context, username, eventID, fromDate, toDate string) ([]DateSlots, error) {
	event, err := s.publicEvent(ctx, username, eventID)
	if err != nil {
		return nil, err
	}

	availability, err := s.repo.FindByUser(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			availability = defaultAvailability(event.UserID)
		} else {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
		}
	}

	rules, err := slots.FromAvailability(availability)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve schedule")
	}

	now := s.now().UTC()
	first, last, err := s.resolveRange(fromDate, toDate, rules.Location, now)
	if err != nil {
		return nil, err
	}

	rangeStart := first.UTC()
	rangeEnd := last.AddDate(0, 0, 1).UTC()
	bookings, err := s.bookings.ListForOwnerBetween(ctx, event.UserID, rangeStart, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	booked := make([]slots.Window, len(bookings))
	for i, b := range bookings {
		booked[i] = slots.Window{Start: b.StartTime, End: b.EndTime}
	}

	duration := time.Duration(event.Duration) * time.Minute
	var result []DateSlots
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		windows, err := slots.Generate(rules, day, duration, booked, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate slots")
		}
		clocks := make([]string, len(windows))
		for i, w := range windows {
			clocks[i] = w.Start.In(rules.Location).Format("15:04")
		}
		result = append(result, DateSlots{Date: day.Format("2006-01-02"), Slots: clocks})
	}
	return result, nil
}

// SetNow overrides the clock, for tests.
func (s *AvailabilityService) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *AvailabilityService) resolveRange(fromDate, toDate string, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	today := now.In(loc)
	first := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	last := first.AddDate(0, 0, s.cfg.DefaultRangeDays-1)

	if fromDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", fromDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD")
		}
		first = parsed
		last = first.AddDate(0, 0, s.cfg.DefaultRangeDays-1)
	}
	if toDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", toDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD")
		}
		last = parsed
	}

	if last.Before(first) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}
	if last.Sub(first) > time.Duration(s.cfg.MaxRangeDays)*24*time.Hour {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("date range exceeds %d days", s.cfg.MaxRangeDays))
	}
	return first, last, nil
}

func (s *AvailabilityService) publicEvent(ctx context.Context, username, eventID string) (*models.Event, error) {
	event, err := s.events.FindPublic(ctx, username, eventID)
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

func (s *AvailabilityService) owner(ctx context.Context, clerkUserID string) (*models.User, error) {
	user, err := s.users.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// defaultAvailability is the schedule presented before a user saves one:
// weekdays 09:00-17:00, weekend off, no buffer.
func defaultAvailability(userID string) *models.Availability {
	days := make([]models.DayAvailability, 0, len(models.Weekdays))
	for _, day := range models.Weekdays {
		weekend := day == models.DaySaturday || day == models.DaySunday
		days = append(days, models.DayAvailability{
			Day:         day,
			IsAvailable: !weekend,
			StartTime:   "09:00",
			EndTime:     "17:00",
		})
	}
	return &models.Availability{UserID: userID, TimeGap: 0, Timezone: "UTC", Days: days}
}

func availabilityCacheKey(userID string) string {
	return "availability:" + userID
}
