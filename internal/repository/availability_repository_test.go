package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

func TestAvailabilityRepositoryFindByUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, time_gap, timezone, created_at, updated_at")).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "time_gap", "timezone", "created_at", "updated_at"}).
			AddRow("av-1", "owner-1", 15, "UTC", now, now))

	dayRows := sqlmock.NewRows([]string{"id", "availability_id", "day", "is_available", "start_time", "end_time"})
	for i, day := range models.Weekdays {
		weekend := day == models.DaySaturday || day == models.DaySunday
		dayRows.AddRow("day-"+string(rune('1'+i)), "av-1", string(day), !weekend, "09:00", "17:00")
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, availability_id, day, is_available, start_time, end_time")).
		WithArgs("av-1").
		WillReturnRows(dayRows)

	availability, err := repo.FindByUser(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Equal(t, 15, availability.TimeGap)
	require.Len(t, availability.Days, 7)
	require.Equal(t, models.DayMonday, availability.Days[0].Day)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryUpsertReplacesDays(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO availability")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("av-1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM day_availability WHERE availability_id = $1")).
		WithArgs("av-1").
		WillReturnResult(sqlmock.NewResult(0, 7))
	for range models.Weekdays {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO day_availability")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	days := make([]models.DayAvailability, 0, len(models.Weekdays))
	for _, day := range models.Weekdays {
		days = append(days, models.DayAvailability{
			Day: day, IsAvailable: true, StartTime: "09:00", EndTime: "17:00",
		})
	}
	availability := &models.Availability{
		UserID:   "owner-1",
		TimeGap:  15,
		Timezone: "UTC",
		Days:     days,
	}
	require.NoError(t, repo.Upsert(context.Background(), availability))
	require.Equal(t, "av-1", availability.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
