package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

// ErrDuplicate signals a unique-constraint violation.
var ErrDuplicate = errors.New("duplicate value")

const userColumns = `id, clerk_user_id, email, name, username, image_url, created_at, updated_at`

// UserRepository handles persistence for identity-synced users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository instantiates a user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID loads a user by primary key.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByClerkID loads a user by its external identity reference.
func (r *UserRepository) FindByClerkID(ctx context.Context, clerkUserID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE clerk_user_id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, clerkUserID); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername loads a user by its public booking handle.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert inserts or refreshes a user keyed by the external identity id.
// The username is seeded from the identity payload on first sync only.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, clerk_user_id, email, name, username, image_url, created_at, updated_at)
		VALUES (:id, :clerk_user_id, :email, :name, :username, :image_url, :created_at, :updated_at)
		ON CONFLICT (clerk_user_id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name, image_url = EXCLUDED.image_url, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateUsername changes the public handle, surfacing ErrDuplicate when it
// is already taken.
func (r *UserRepository) UpdateUsername(ctx context.Context, id, username string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, updated_at = $3 WHERE id = $1`,
		id, username, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update username: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
