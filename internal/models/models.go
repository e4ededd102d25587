package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
)

// Weekday identifies a day of the weekly availability schedule.
type Weekday string

const (
	DayMonday    Weekday = "monday"
	DayTuesday   Weekday = "tuesday"
	DayWednesday Weekday = "wednesday"
	DayThursday  Weekday = "thursday"
	DayFriday    Weekday = "friday"
	DaySaturday  Weekday = "saturday"
	DaySunday    Weekday = "sunday"
)

// Weekdays lists all days in schedule order, Monday first.
var Weekdays = []Weekday{
	DayMonday, DayTuesday, DayWednesday, DayThursday,
	DayFriday, DaySaturday, DaySunday,
}

// WeekdayOf maps a timestamp to its schedule day.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return DayMonday
	case time.Tuesday:
		return DayTuesday
	case time.Wednesday:
		return DayWednesday
	case time.Thursday:
		return DayThursday
	case time.Friday:
		return DayFriday
	case time.Saturday:
		return DaySaturday
	default:
		return DaySunday
	}
}

// User is an account synced from the identity provider. The username is
// unique and forms the public booking URL.
type User struct {
	ID          string    `db:"id" json:"id"`
	ClerkUserID string    `db:"clerk_user_id" json:"clerkUserId"`
	Email       string    `db:"email" json:"email"`
	Name        string    `db:"name" json:"name"`
	Username    string    `db:"username" json:"username"`
	ImageURL    *string   `db:"image_url" json:"imageUrl,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Event is a bookable event type owned by a user.
type Event struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"userId"`
	Title          string         `db:"title" json:"title"`
	Description    *string        `db:"description" json:"description,omitempty"`
	Duration       int            `db:"duration" json:"duration"`
	IsPrivate      bool           `db:"is_private" json:"isPrivate"`
	AttendeeEmails pq.StringArray `db:"attendee_emails" json:"attendeeEmails,omitempty"`
	Images         pq.StringArray `db:"images" json:"images,omitempty"`
	Documents      pq.StringArray `db:"documents" json:"documents,omitempty"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`

	// BookingCount is populated by list queries only.
	BookingCount int `db:"booking_count" json:"bookingCount"`
}

// DayAvailability is one weekday rule of a user's schedule. Times are
// wall-clock "HH:MM" strings in the availability timezone.
type DayAvailability struct {
	ID             string  `db:"id" json:"-"`
	AvailabilityID string  `db:"availability_id" json:"-"`
	Day            Weekday `db:"day" json:"day"`
	IsAvailable    bool    `db:"is_available" json:"isAvailable"`
	StartTime      string  `db:"start_time" json:"startTime"`
	EndTime        string  `db:"end_time" json:"endTime"`
}

// Availability is a user's weekly schedule, exactly one per user.
type Availability struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	TimeGap   int       `db:"time_gap" json:"timeGap"`
	Timezone  string    `db:"timezone" json:"timezone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Days []DayAvailability `json:"days"`
}

// Booking is a confirmed meeting created by a visitor against an event.
// Timestamps are absolute UTC instants.
type Booking struct {
	ID             string         `db:"id" json:"id"`
	EventID        string         `db:"event_id" json:"eventId"`
	UserID         string         `db:"user_id" json:"userId"`
	Name           string         `db:"name" json:"name"`
	Email          string         `db:"email" json:"email"`
	AdditionalInfo *string        `db:"additional_info" json:"additionalInfo,omitempty"`
	StartTime      time.Time      `db:"start_time" json:"startTime"`
	EndTime        time.Time      `db:"end_time" json:"endTime"`
	MeetLink       *string        `db:"meet_link" json:"meetLink,omitempty"`
	GoogleEventID  *string        `db:"google_event_id" json:"googleEventId,omitempty"`
	InvitedEmails  pq.StringArray `db:"invited_emails" json:"invitedEmails,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// Meeting is a booking joined with its event for owner-facing lists.
type Meeting struct {
	Booking
	EventTitle    string `db:"event_title" json:"eventTitle"`
	EventDuration int    `db:"event_duration" json:"eventDuration"`
	OwnerName     string `db:"owner_name" json:"ownerName"`
	OwnerEmail    string `db:"owner_email" json:"ownerEmail"`
}

// MeetingType partitions meeting lists relative to now.
type MeetingType string

const (
	MeetingUpcoming MeetingType = "upcoming"
	MeetingPast     MeetingType = "past"
)

// JWTClaims are the session token claims issued by the identity provider.
// Subject carries the stable external user id.
type JWTClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ClerkUserID returns the external identity the session belongs to.
func (c *JWTClaims) ClerkUserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// Pagination describes list slicing metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
