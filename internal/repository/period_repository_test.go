package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-api/internal/models"
)

func newPeriodMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPeriodRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "semester", "academic_year", "registration_start", "registration_end", "lecturer_selection_end",
		"internship_start", "search_deadline", "internship_end", "is_active", "allow_retake", "match_lecturer_department",
		"target_departments", "target_cohorts", "target_internship_statuses", "created_at", "updated_at"}).
		AddRow("p1", "Odd", "2025/2026", day, day.AddDate(0, 0, 6), day.AddDate(0, 0, 14),
			day.AddDate(0, 1, 0), day.AddDate(0, 1, 14), day.AddDate(0, 4, 0), true, true, false,
			"{Informatics,Systems}", "{}", "{}", day, day)
	mock.ExpectQuery(regexp.QuoteMeta("FROM internship_periods WHERE is_active = TRUE LIMIT 1")).WillReturnRows(rows)

	period, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p1", period.ID)
	assert.Equal(t, pq.StringArray{"Informatics", "Systems"}, period.TargetDepartments)
	assert.Empty(t, period.TargetCohorts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetActive(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE internship_periods SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "p2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE internship_periods SET is_active = TRUE, updated_at = $2 WHERE id = $1")).
		WithArgs("p2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActive(context.Background(), "p2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetActiveUnknownRollsBack(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE internship_periods SET is_active = FALSE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE internship_periods SET is_active = TRUE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetActive(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectExec("INSERT INTO internship_periods").WillReturnResult(sqlmock.NewResult(1, 1))

	period := &models.Period{Semester: "Odd", AcademicYear: "2025/2026", TargetDepartments: pq.StringArray{"Informatics"}}
	require.NoError(t, repo.Create(context.Background(), period))
	assert.NotEmpty(t, period.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryList(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	active := true
	mock.ExpectQuery(regexp.QuoteMeta("FROM internship_periods WHERE 1=1 AND is_active = $1 ORDER BY registration_start DESC LIMIT 20 OFFSET 0")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM internship_periods WHERE 1=1 AND is_active = $1")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	periods, total, err := repo.List(context.Background(), models.PeriodFilter{IsActive: &active})
	require.NoError(t, err)
	assert.Empty(t, periods)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFindAwaitingProgress(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE internship_start <= $1 AND EXISTS")).
		WithArgs(day).
		WillReturnRows(sqlmock.NewRows([]string{"id", "semester"}).AddRow("p1", "Ganjil"))

	periods, err := repo.FindAwaitingProgress(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "p1", periods[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
