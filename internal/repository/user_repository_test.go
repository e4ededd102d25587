package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "clerk_user_id", "email", "name", "username", "image_url", "created_at", "updated_at"}).
		AddRow("user-1", "clerk-1", "olivia@example.com", "Olivia Owner", "olivia", nil, now, now)
}

func TestUserRepositoryFindByClerkID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, clerk_user_id, email, name, username, image_url, created_at, updated_at FROM users WHERE clerk_user_id = $1")).
		WithArgs("clerk-1").
		WillReturnRows(userRows(time.Now()))

	user, err := repo.FindByClerkID(context.Background(), "clerk-1")
	require.NoError(t, err)
	require.Equal(t, "olivia", user.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByUsernameMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "nobody")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		ClerkUserID: "clerk-1",
		Email:       "olivia@example.com",
		Name:        "Olivia Owner",
		Username:    "olivia",
	}
	require.NoError(t, repo.Upsert(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpsertDuplicateUsername(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Upsert(context.Background(), &models.User{
		ClerkUserID: "clerk-1",
		Email:       "olivia@example.com",
		Name:        "Olivia Owner",
		Username:    "taken",
	})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateUsername(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET username = $2")).
		WithArgs("user-1", "newname", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateUsername(context.Background(), "user-1", "newname"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET username = $2")).
		WithArgs("missing", "newname", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateUsername(context.Background(), "missing", "newname")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
