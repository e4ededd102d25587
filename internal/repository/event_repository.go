package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

const eventColumns = `e.id, e.user_id, e.title, e.description, e.duration, e.is_private,
	e.attendee_emails, e.images, e.documents, e.notes, e.created_at, e.updated_at`

// EventRepository handles persistence for bookable event types.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository instantiates an event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListByOwner returns the owner's events newest first with booking counts.
func (r *EventRepository) ListByOwner(ctx context.Context, userID string) ([]models.Event, error) {
	query := fmt.Sprintf(`SELECT %s,
		(SELECT COUNT(*) FROM bookings b WHERE b.event_id = e.id) AS booking_count
		FROM events e WHERE e.user_id = $1 ORDER BY e.created_at DESC`, eventColumns)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, userID); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// FindByID loads an event by identifier.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s, 0 AS booking_count FROM events e WHERE e.id = $1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// FindPublic loads an event addressed through its owner's username, as used
// by the public booking page.
func (r *EventRepository) FindPublic(ctx context.Context, username, eventID string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s, 0 AS booking_count FROM events e
		JOIN users u ON u.id = e.user_id
		WHERE e.id = $1 AND u.username = $2`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, eventID, username); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	const query = `INSERT INTO events (id, user_id, title, description, duration, is_private,
		attendee_emails, images, documents, notes, created_at, updated_at)
		VALUES (:id, :user_id, :title, :description, :duration, :is_private,
		:attendee_emails, :images, :documents, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Delete removes an event; bookings cascade at the schema level.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
