package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

// AvailabilityRepository persists weekly schedules. Exactly one
// availability row per user, with seven day rows, is maintained by Upsert.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository instantiates an availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// FindByUser loads a user's schedule including its day rules.
func (r *AvailabilityRepository) FindByUser(ctx context.Context, userID string) (*models.Availability, error) {
	const query = `SELECT id, user_id, time_gap, timezone, created_at, updated_at
		FROM availability WHERE user_id = $1`
	var availability models.Availability
	if err := r.db.GetContext(ctx, &availability, query, userID); err != nil {
		return nil, err
	}

	const daysQuery = `SELECT id, availability_id, day, is_available, start_time, end_time
		FROM day_availability WHERE availability_id = $1
		ORDER BY CASE day
			WHEN 'monday' THEN 1 WHEN 'tuesday' THEN 2 WHEN 'wednesday' THEN 3
			WHEN 'thursday' THEN 4 WHEN 'friday' THEN 5 WHEN 'saturday' THEN 6
			ELSE 7 END`
	if err := r.db.SelectContext(ctx, &availability.Days, daysQuery, availability.ID); err != nil {
		return nil, fmt.Errorf("load day availability: %w", err)
	}

	return &availability, nil
}

// Upsert replaces the user's schedule atomically: the availability row is
// inserted or updated, old day rows are dropped and the new seven inserted.
func (r *AvailabilityRepository) Upsert(ctx context.Context, availability *models.Availability) error {
	if availability.ID == "" {
		availability.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if availability.CreatedAt.IsZero() {
		availability.CreatedAt = now
	}
	availability.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin availability tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var availabilityID string
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO availability (id, user_id, time_gap, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET time_gap = EXCLUDED.time_gap, timezone = EXCLUDED.timezone, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		availability.ID, availability.UserID, availability.TimeGap,
		availability.Timezone, availability.CreatedAt, availability.UpdatedAt,
	).Scan(&availabilityID)
	if err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	availability.ID = availabilityID

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM day_availability WHERE availability_id = $1`, availabilityID); err != nil {
		return fmt.Errorf("clear day availability: %w", err)
	}

	for i := range availability.Days {
		day := &availability.Days[i]
		if day.ID == "" {
			day.ID = uuid.NewString()
		}
		day.AvailabilityID = availabilityID
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO day_availability (id, availability_id, day, is_available, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			day.ID, day.AvailabilityID, day.Day, day.IsAvailable, day.StartTime, day.EndTime); err != nil {
			return fmt.Errorf("insert day availability: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit availability tx: %w", err)
	}
	return nil
}
