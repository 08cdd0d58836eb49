package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-api/internal/models"
)

func TestAllocationRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (lecturer_id, period_id) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "l1", "p1", 5, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_count", "created_at", "updated_at"}).AddRow("a1", 2, now, now))

	allocation := &models.LecturerAllocation{LecturerID: "l1", PeriodID: "p1", MaxStudents: 5}
	require.NoError(t, repo.Upsert(context.Background(), allocation))
	assert.Equal(t, "a1", allocation.ID)
	assert.Equal(t, 3, allocation.SlotsRemaining())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryUpsertBelowAssigned(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	mock.ExpectQuery("INSERT INTO lecturer_allocations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_count", "created_at", "updated_at"}))

	err := repo.Upsert(context.Background(), &models.LecturerAllocation{LecturerID: "l1", PeriodID: "p1", MaxStudents: 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryDeleteInUse(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lecturer_allocations WHERE lecturer_id = $1 AND period_id = $2 AND assigned_count = 0")).
		WithArgs("l1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "l1", "p1")
	assert.ErrorIs(t, err, ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryListByPeriod(t *testing.T) {
	db, mock, cleanup := newRegistrationMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "lecturer_id", "period_id", "max_students", "assigned_count", "created_at", "updated_at",
		"lecturer_name", "lecturer_department", "restrict_to_department"}).
		AddRow("a1", "l1", "p1", 3, 1, now, now, "Dr. A", "Informatics", true)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.period_id = $1 AND l.active = TRUE")).
		WithArgs("p1").
		WillReturnRows(rows)

	list, err := repo.ListByPeriod(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].RestrictToDepartment)
	assert.Equal(t, 2, list[0].SlotsRemaining())
	assert.NoError(t, mock.ExpectationsWereMet())
}
