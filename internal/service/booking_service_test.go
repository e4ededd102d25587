package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/schedulrr/schedulrr-api/internal/google"
	"github.com/schedulrr/schedulrr-api/internal/identity"
	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/internal/repository"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
)

type mockUserRepo struct {
	byID       map[string]*models.User
	byClerkID  map[string]*models.User
	byUsername map[string]*models.User

	upsertErr      error
	upsertCalls    []models.User
	usernameErr    error
	usernameCalls  []string
	duplicateUntil int
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.byID[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByClerkID(ctx context.Context, clerkUserID string) (*models.User, error) {
	if user, ok := m.byClerkID[clerkUserID]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if user, ok := m.byUsername[username]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *models.User) error {
	m.upsertCalls = append(m.upsertCalls, *user)
	if m.duplicateUntil > 0 {
		m.duplicateUntil--
		return repository.ErrDuplicate
	}
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if user.ID == "" {
		user.ID = "user-generated"
	}
	if m.byClerkID == nil {
		m.byClerkID = make(map[string]*models.User)
	}
	cp := *user
	m.byClerkID[user.ClerkUserID] = &cp
	return nil
}

func (m *mockUserRepo) UpdateUsername(ctx context.Context, id, username string) error {
	m.usernameCalls = append(m.usernameCalls, username)
	if m.usernameErr != nil {
		return m.usernameErr
	}
	for _, user := range m.byClerkID {
		if user.ID == id {
			user.Username = username
		}
	}
	return nil
}

type mockEventRepo struct {
	byID      map[string]*models.Event
	listByUID map[string][]models.Event

	created []models.Event
	deleted []string
	listErr error
}

func (m *mockEventRepo) ListByOwner(ctx context.Context, userID string) ([]models.Event, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listByUID[userID], nil
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if event, ok := m.byID[id]; ok {
		cp := *event
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEventRepo) FindPublic(ctx context.Context, username, eventID string) (*models.Event, error) {
	event, ok := m.byID[eventID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *event
	return &cp, nil
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = "event-generated"
	}
	m.created = append(m.created, *event)
	if m.byID == nil {
		m.byID = make(map[string]*models.Event)
	}
	cp := *event
	m.byID[event.ID] = &cp
	return nil
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.byID, id)
	return nil
}

type mockAvailabilityRepo struct {
	byUser    map[string]*models.Availability
	upserted  []models.Availability
	upsertErr error
}

func (m *mockAvailabilityRepo) FindByUser(ctx context.Context, userID string) (*models.Availability, error) {
	if availability, ok := m.byUser[userID]; ok {
		cp := *availability
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAvailabilityRepo) Upsert(ctx context.Context, availability *models.Availability) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, *availability)
	if m.byUser == nil {
		m.byUser = make(map[string]*models.Availability)
	}
	cp := *availability
	m.byUser[availability.UserID] = &cp
	return nil
}

type mockBookingRepo struct {
	existing []models.Booking
	meetings map[string]*models.Meeting
	listed   []models.Meeting

	created   []models.Booking
	deleted   []string
	createErr error
	deleteErr error
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	if m.createErr != nil {
		return m.createErr
	}
	if booking.ID == "" {
		booking.ID = "booking-generated"
	}
	m.created = append(m.created, *booking)
	return nil
}

func (m *mockBookingRepo) ListForOwnerBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range m.existing {
		if b.UserID == userID && b.StartTime.Before(to) && b.EndTime.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	if meeting, ok := m.meetings[id]; ok {
		cp := *meeting
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) ListByOwner(ctx context.Context, userID string, meetingType models.MeetingType, now time.Time) ([]models.Meeting, error) {
	return m.listed, nil
}

func (m *mockBookingRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockTokenSource struct {
	token string
	err   error
	calls int
}

func (m *mockTokenSource) GoogleOAuthToken(ctx context.Context, clerkUserID string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.token, nil
}

type mockCalendar struct {
	created   *google.CreatedEvent
	createErr error
	deleteErr error

	createCalls []google.CreateEventRequest
	deleteCalls []string
}

func (m *mockCalendar) CreateEvent(ctx context.Context, accessToken string, req google.CreateEventRequest) (*google.CreatedEvent, error) {
	m.createCalls = append(m.createCalls, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created, nil
}

func (m *mockCalendar) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	m.deleteCalls = append(m.deleteCalls, eventID)
	return m.deleteErr
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

// Monday 2025-01-06, owner available 09:00-17:00 UTC with a 15 minute gap.
func bookingFixture() (*mockUserRepo, *mockEventRepo, *mockAvailabilityRepo, *mockBookingRepo) {
	owner := &models.User{
		ID:          "owner-1",
		ClerkUserID: "clerk-owner-1",
		Email:       "owner@example.com",
		Name:        "Olivia Owner",
		Username:    "olivia",
	}
	event := &models.Event{
		ID:       "event-1",
		UserID:   owner.ID,
		Title:    "Intro Call",
		Duration: 30,
	}

	days := make([]models.DayAvailability, 0, len(models.Weekdays))
	for _, day := range models.Weekdays {
		weekend := day == models.DaySaturday || day == models.DaySunday
		days = append(days, models.DayAvailability{
			Day: day, IsAvailable: !weekend, StartTime: "09:00", EndTime: "17:00",
		})
	}

	users := &mockUserRepo{
		byID:       map[string]*models.User{owner.ID: owner},
		byClerkID:  map[string]*models.User{owner.ClerkUserID: owner},
		byUsername: map[string]*models.User{owner.Username: owner},
	}
	events := &mockEventRepo{byID: map[string]*models.Event{event.ID: event}}
	availability := &mockAvailabilityRepo{byUser: map[string]*models.Availability{
		owner.ID: {ID: "av-1", UserID: owner.ID, TimeGap: 15, Timezone: "UTC", Days: days},
	}}
	bookings := &mockBookingRepo{}
	return users, events, availability, bookings
}

func newBookingService(users *mockUserRepo, events *mockEventRepo, availability *mockAvailabilityRepo,
	bookings *mockBookingRepo, tokens *mockTokenSource, calendar *mockCalendar) *BookingService {
	svc := NewBookingService(bookings, events, users, availability, tokens, calendar, nil, nil, zap.NewNop())
	svc.SetNow(func() time.Time {
		return time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	})
	return svc
}

func validBookingRequest() CreateBookingRequest {
	return CreateBookingRequest{
		EventID:   "event-1",
		Name:      "Victor Visitor",
		Email:     "victor@example.com",
		StartTime: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
	}
}

func TestBookingServiceCreateSuccess(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{created: &google.CreatedEvent{
		EventID:  "gcal-1",
		MeetLink: "https://meet.google.com/abc-defg-hij",
	}}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	booking, err := svc.Create(context.Background(), validBookingRequest())
	require.NoError(t, err)

	require.NotNil(t, booking)
	assert.Equal(t, "owner-1", booking.UserID)
	require.NotNil(t, booking.MeetLink)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", *booking.MeetLink)
	require.NotNil(t, booking.GoogleEventID)
	assert.Equal(t, "gcal-1", *booking.GoogleEventID)
	require.Len(t, bookings.created, 1)

	require.Len(t, calendar.createCalls, 1)
	created := calendar.createCalls[0]
	assert.Equal(t, "Victor Visitor - Intro Call", created.Summary)
	assert.Contains(t, created.Attendees, "victor@example.com")
	assert.Contains(t, created.Attendees, "owner@example.com")
	assert.Contains(t, created.RequestID, "event-1-")
}

func TestBookingServiceCreateCalendarNotConnected(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	tokens := &mockTokenSource{err: identity.ErrNotConnected}
	calendar := &mockCalendar{}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	_, err := svc.Create(context.Background(), validBookingRequest())
	assert.Equal(t, appErrors.ErrCalendarNotConnected.Code, errorCode(t, err))
	assert.Contains(t, appErrors.FromError(err).Message, "Olivia Owner has not connected Google Calendar")

	// Nothing reaches the provider or the database.
	assert.Empty(t, calendar.createCalls)
	assert.Empty(t, bookings.created)
}

func TestBookingServiceCreateCalendarFailureDoesNotPersist(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{createErr: fmt.Errorf("backend returned 500")}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	_, err := svc.Create(context.Background(), validBookingRequest())
	assert.Equal(t, appErrors.ErrCalendarCreateFailed.Code, errorCode(t, err))
	assert.Contains(t, appErrors.FromError(err).Message, "backend returned 500")
	assert.Empty(t, bookings.created)
}

func TestBookingServiceCreateSurfacesProviderMessage(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{createErr: fmt.Errorf("insert calendar event: %w",
		&googleapi.Error{Code: 403, Message: "Calendar usage limits exceeded."})}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	_, err := svc.Create(context.Background(), validBookingRequest())
	assert.Equal(t, appErrors.ErrCalendarCreateFailed.Code, errorCode(t, err))
	assert.Equal(t, "Calendar usage limits exceeded.", appErrors.FromError(err).Message)
}

func TestBookingServiceCreatePrivateEventInvitesStandingAttendees(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	events.byID["event-1"].IsPrivate = true
	events.byID["event-1"].AttendeeEmails = []string{"cc@example.com"}
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{created: &google.CreatedEvent{EventID: "gcal-1"}}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	booking, err := svc.Create(context.Background(), validBookingRequest())
	require.NoError(t, err)

	require.Len(t, calendar.createCalls, 1)
	assert.Equal(t,
		[]string{"victor@example.com", "owner@example.com", "cc@example.com"},
		calendar.createCalls[0].Attendees)
	assert.Equal(t, pq.StringArray{"cc@example.com"}, booking.InvitedEmails)
}

func TestBookingServiceCreatePublicEventOmitsStandingAttendees(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	events.byID["event-1"].AttendeeEmails = []string{"cc@example.com"}
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{created: &google.CreatedEvent{EventID: "gcal-1"}}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	booking, err := svc.Create(context.Background(), validBookingRequest())
	require.NoError(t, err)

	// The owner's standing list stays off the public event's meetings.
	require.Len(t, calendar.createCalls, 1)
	assert.Equal(t,
		[]string{"victor@example.com", "owner@example.com"},
		calendar.createCalls[0].Attendees)
	assert.Empty(t, booking.InvitedEmails)
}

func TestBookingServiceCreateDescriptionFallback(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	notes := "bring your own agenda"
	desc := "a short intro call"
	events.byID["event-1"].Notes = &notes
	events.byID["event-1"].Description = &desc
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{created: &google.CreatedEvent{EventID: "gcal-1"}}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	_, err := svc.Create(context.Background(), validBookingRequest())
	require.NoError(t, err)
	require.Len(t, calendar.createCalls, 1)
	assert.Equal(t, "bring your own agenda", calendar.createCalls[0].Description)

	// The visitor's note wins when present.
	events.byID["event-1"].Notes = nil
	info := "running five minutes late"
	req := validBookingRequest()
	req.AdditionalInfo = &info
	req.StartTime = time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC)
	req.EndTime = time.Date(2025, 1, 6, 11, 30, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, calendar.createCalls, 2)
	assert.Equal(t, "running five minutes late", calendar.createCalls[1].Description)
}

func TestBookingServiceCreateSlotRaceCleansUpCalendarEvent(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	bookings.createErr = repository.ErrOverlap
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{created: &google.CreatedEvent{EventID: "gcal-orphan"}}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	_, err := svc.Create(context.Background(), validBookingRequest())
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, errorCode(t, err))
	assert.Equal(t, []string{"gcal-orphan"}, calendar.deleteCalls)
}

func TestBookingServiceCreateSlotAlreadyBooked(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	bookings.existing = []models.Booking{{
		UserID:    "owner-1",
		StartTime: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
	}}
	tokens := &mockTokenSource{token: "ya29.token"}
	calendar := &mockCalendar{}
	svc := newBookingService(users, events, availability, bookings, tokens, calendar)

	_, err := svc.Create(context.Background(), validBookingRequest())
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, errorCode(t, err))

	// Rejected before any external call.
	assert.Zero(t, tokens.calls)
	assert.Empty(t, calendar.createCalls)
}

func TestBookingServiceCreateDurationMismatch(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	svc := newBookingService(users, events, availability, bookings, &mockTokenSource{}, &mockCalendar{})

	req := validBookingRequest()
	req.EndTime = req.StartTime.Add(45 * time.Minute)
	_, err := svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
}

func TestBookingServiceCreateUnknownEvent(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	svc := newBookingService(users, events, availability, bookings, &mockTokenSource{}, &mockCalendar{})

	req := validBookingRequest()
	req.EventID = "missing"
	_, err := svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestBookingServiceCreatePastSlotRejected(t *testing.T) {
	users, events, availability, bookings := bookingFixture()
	svc := newBookingService(users, events, availability, bookings, &mockTokenSource{}, &mockCalendar{})
	svc.SetNow(func() time.Time {
		return time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	})

	_, err := svc.Create(context.Background(), validBookingRequest())
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, errorCode(t, err))
}

func TestAttendeeListDeduplicates(t *testing.T) {
	attendees := attendeeList("visitor@example.com", "owner@example.com",
		[]string{"visitor@example.com", "cc@example.com", ""})
	assert.Equal(t, []string{"visitor@example.com", "owner@example.com", "cc@example.com"}, attendees)

	// Comparison is the exact string: a differently cased address is kept.
	attendees = attendeeList("visitor@example.com", "owner@example.com",
		[]string{"Visitor@Example.com"})
	assert.Equal(t,
		[]string{"visitor@example.com", "owner@example.com", "Visitor@Example.com"},
		attendees)
}
