package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-api/internal/models"
)

const periodColumns = `id, semester, academic_year, registration_start, registration_end, lecturer_selection_end,
       internship_start, search_deadline, internship_end, is_active, allow_retake, match_lecturer_department,
       target_departments, target_cohorts, target_internship_statuses, created_at, updated_at`

// PeriodRepository handles persistence for internship periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository instantiates a period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// List returns periods matching provided filters.
func (r *PeriodRepository) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, int, error) {
	base := "FROM internship_periods WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"registration_start": true,
		"internship_start":   true,
		"academic_year":      true,
		"created_at":         true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "registration_start"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", periodColumns, base, sortBy, order, size, offset)

	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list periods: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count periods: %w", err)
	}

	return periods, total, nil
}

// FindByID loads a period by identifier.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM internship_periods WHERE id = $1`
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActive returns the single active period.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM internship_periods WHERE is_active = TRUE LIMIT 1`
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindAwaitingProgress returns periods that have started by day and still hold approved or running registrations.
func (r *PeriodRepository) FindAwaitingProgress(ctx context.Context, day time.Time) ([]models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM internship_periods
	WHERE internship_start <= $1 AND EXISTS (
		SELECT 1 FROM internship_registrations reg
		WHERE reg.period_id = internship_periods.id AND reg.status IN ('approved', 'in_progress')
	) ORDER BY internship_start`
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query, day); err != nil {
		return nil, fmt.Errorf("list periods awaiting progress: %w", err)
	}
	return periods, nil
}

// ExistsBySemesterAndYear checks whether another period already uses the label.
func (r *PeriodRepository) ExistsBySemesterAndYear(ctx context.Context, semester, academicYear, excludeID string) (bool, error) {
	base := "SELECT 1 FROM internship_periods WHERE semester = $1 AND academic_year = $2"
	args := []interface{}{semester, academicYear}
	if excludeID != "" {
		base += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check period uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a new period record.
func (r *PeriodRepository) Create(ctx context.Context, period *models.Period) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now

	const query = `INSERT INTO internship_periods (id, semester, academic_year, registration_start, registration_end, lecturer_selection_end,
	internship_start, search_deadline, internship_end, is_active, allow_retake, match_lecturer_department,
	target_departments, target_cohorts, target_internship_statuses, created_at, updated_at)
	VALUES (:id, :semester, :academic_year, :registration_start, :registration_end, :lecturer_selection_end,
	:internship_start, :search_deadline, :internship_end, :is_active, :allow_retake, :match_lecturer_department,
	:target_departments, :target_cohorts, :target_internship_statuses, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// Update modifies an existing period. Activation is handled by SetActive.
func (r *PeriodRepository) Update(ctx context.Context, period *models.Period) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE internship_periods SET semester = :semester, academic_year = :academic_year,
	registration_start = :registration_start, registration_end = :registration_end, lecturer_selection_end = :lecturer_selection_end,
	internship_start = :internship_start, search_deadline = :search_deadline, internship_end = :internship_end,
	allow_retake = :allow_retake, match_lecturer_department = :match_lecturer_department,
	target_departments = :target_departments, target_cohorts = :target_cohorts,
	target_internship_statuses = :target_internship_statuses, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, period)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update period: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check period update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive marks the provided period as active and deactivates the rest.
func (r *PeriodRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE internship_periods SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, now, id); err != nil {
		return fmt.Errorf("deactivate other periods: %w", err)
	}

	var result sql.Result
	if result, err = tx.ExecContext(ctx, `UPDATE internship_periods SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, now); err != nil {
		return fmt.Errorf("activate period: %w", err)
	}
	var affected int64
	if affected, err = result.RowsAffected(); err != nil {
		return fmt.Errorf("check period activation rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}

// Delete removes a period without registrations.
func (r *PeriodRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM internship_periods WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	return nil
}

// CountRegistrations returns the number of registrations referencing the period.
func (r *PeriodRepository) CountRegistrations(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM internship_registrations WHERE period_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count period registrations: %w", err)
	}
	return count, nil
}
