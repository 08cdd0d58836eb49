package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-api/internal/models"
)

const allocationColumns = `a.id, a.lecturer_id, a.period_id, a.max_students, a.assigned_count, a.created_at, a.updated_at`

// AllocationRepository persists the lecturer capacity ledger.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository constructs an AllocationRepository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// Find returns the allocation of a lecturer in a period.
func (r *AllocationRepository) Find(ctx context.Context, lecturerID, periodID string) (*models.LecturerAllocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM lecturer_allocations a WHERE a.lecturer_id = $1 AND a.period_id = $2`
	var allocation models.LecturerAllocation
	if err := r.db.GetContext(ctx, &allocation, query, lecturerID, periodID); err != nil {
		return nil, err
	}
	return &allocation, nil
}

// ListByPeriod returns every allocation of a period joined with lecturer attributes, ordered by lecturer id.
func (r *AllocationRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.LecturerAllocationDetail, error) {
	query := `SELECT ` + allocationColumns + `, l.full_name AS lecturer_name, l.department AS lecturer_department,
	l.restrict_to_department
	FROM lecturer_allocations a
	JOIN lecturers l ON l.id = a.lecturer_id
	WHERE a.period_id = $1 AND l.active = TRUE
	ORDER BY a.lecturer_id ASC`
	var allocations []models.LecturerAllocationDetail
	if err := r.db.SelectContext(ctx, &allocations, query, periodID); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return allocations, nil
}

// Upsert sets the capacity of a lecturer in a period. Lowering the capacity below the number
// of consumed slots yields ErrCapacityExceeded.
func (r *AllocationRepository) Upsert(ctx context.Context, allocation *models.LecturerAllocation) error {
	if allocation.ID == "" {
		allocation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	const query = `INSERT INTO lecturer_allocations (id, lecturer_id, period_id, max_students, assigned_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 0, $5, $5)
	ON CONFLICT (lecturer_id, period_id) DO UPDATE SET max_students = EXCLUDED.max_students, updated_at = EXCLUDED.updated_at
	WHERE lecturer_allocations.assigned_count <= EXCLUDED.max_students
	RETURNING id, assigned_count, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, allocation.ID, allocation.LecturerID, allocation.PeriodID, allocation.MaxStudents, now)
	if err := row.Scan(&allocation.ID, &allocation.AssignedCount, &allocation.CreatedAt, &allocation.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCapacityExceeded
		}
		return fmt.Errorf("upsert allocation: %w", err)
	}
	return nil
}

// Delete removes an allocation that has no consumed slot. ErrStaleState is returned when slots are in use.
func (r *AllocationRepository) Delete(ctx context.Context, lecturerID, periodID string) error {
	const query = `DELETE FROM lecturer_allocations WHERE lecturer_id = $1 AND period_id = $2 AND assigned_count = 0`
	result, err := r.db.ExecContext(ctx, query, lecturerID, periodID)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return expectAffectedAs(result, ErrStaleState)
}
