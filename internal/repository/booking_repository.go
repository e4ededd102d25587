package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

// ErrOverlap signals that a booking insert lost the race for its slot.
var ErrOverlap = errors.New("overlapping booking")

const bookingColumns = `b.id, b.event_id, b.user_id, b.name, b.email, b.additional_info,
	b.start_time, b.end_time, b.meet_link, b.google_event_id, b.invited_emails,
	b.created_at, b.updated_at`

// BookingRepository handles persistence for confirmed bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository instantiates a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts the booking inside one transaction that first takes a
// per-owner advisory lock and then re-checks for overlapping bookings. Two
// visitors racing for the same free slot serialize on the lock, so the
// second one sees the first insert and gets ErrOverlap.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The lock is released when the transaction ends.
	if _, err = tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, booking.UserID); err != nil {
		return fmt.Errorf("lock owner schedule: %w", err)
	}

	var conflicts []string
	err = tx.SelectContext(ctx, &conflicts,
		`SELECT id FROM bookings
		WHERE user_id = $1 AND start_time < $3 AND end_time > $2`,
		booking.UserID, booking.StartTime, booking.EndTime)
	if err != nil {
		return fmt.Errorf("check booking overlap: %w", err)
	}
	if len(conflicts) > 0 {
		err = ErrOverlap
		return err
	}

	if _, err = tx.NamedExecContext(ctx,
		`INSERT INTO bookings (id, event_id, user_id, name, email, additional_info,
		start_time, end_time, meet_link, google_event_id, invited_emails, created_at, updated_at)
		VALUES (:id, :event_id, :user_id, :name, :email, :additional_info,
		:start_time, :end_time, :meet_link, :google_event_id, :invited_emails, :created_at, :updated_at)`,
		booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// FindByID loads a booking joined with its event for ownership checks and
// calendar cancellation.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := fmt.Sprintf(`SELECT %s, e.title AS event_title, e.duration AS event_duration,
		u.name AS owner_name, u.email AS owner_email
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		JOIN users u ON u.id = b.user_id
		WHERE b.id = $1`, bookingColumns)
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// ListByOwner returns the owner's meetings partitioned around now:
// upcoming ascending, past descending.
func (r *BookingRepository) ListByOwner(ctx context.Context, userID string, meetingType models.MeetingType, now time.Time) ([]models.Meeting, error) {
	comparison := "b.start_time >= $2"
	order := "ASC"
	if meetingType == models.MeetingPast {
		comparison = "b.start_time < $2"
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s, e.title AS event_title, e.duration AS event_duration,
		u.name AS owner_name, u.email AS owner_email
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		JOIN users u ON u.id = b.user_id
		WHERE b.user_id = $1 AND %s
		ORDER BY b.start_time %s`, bookingColumns, comparison, order)

	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query, userID, now); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// ListForOwnerBetween returns bookings of the owner intersecting
// [from, to), used by slot generation.
func (r *BookingRepository) ListForOwnerBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings b
		WHERE b.user_id = $1 AND b.start_time < $3 AND b.end_time > $2
		ORDER BY b.start_time ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list bookings in range: %w", err)
	}
	return bookings, nil
}

// Delete removes a booking permanently.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}
