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

const registrationColumns = `r.id, r.student_id, r.period_id, r.status, r.assigned_lecturer_id, r.prefer_own_lecturer, r.is_retake,
       r.company_name, r.company_address, r.supervisor_name, r.supervisor_phone, r.position,
       r.reports_materialized, r.status_changed_at, r.created_at, r.updated_at`

const registrationDetailColumns = registrationColumns + `,
       s.full_name AS student_name, s.student_number, l.full_name AS lecturer_name,
       (SELECT COUNT(*) FROM weekly_reports w WHERE w.registration_id = r.id AND w.status <> 'not_submitted') AS submitted_count,
       (SELECT ROUND(AVG(w.grade), 1) FROM weekly_reports w WHERE w.registration_id = r.id AND w.grade IS NOT NULL) AS average_grade`

const registrationDetailFrom = ` FROM internship_registrations r
	JOIN students s ON s.id = r.student_id
	LEFT JOIN lecturers l ON l.id = r.assigned_lecturer_id`

// RegistrationRepository persists registrations and applies lifecycle transitions atomically.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration. A second registration for the same student and period yields ErrDuplicate.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	if reg.StatusChangedAt.IsZero() {
		reg.StatusChangedAt = reg.CreatedAt
	}
	reg.UpdatedAt = now

	const query = `INSERT INTO internship_registrations
	(id, student_id, period_id, status, assigned_lecturer_id, prefer_own_lecturer, is_retake,
	 company_name, company_address, supervisor_name, supervisor_phone, position,
	 reports_materialized, status_changed_at, created_at, updated_at)
	VALUES (:id, :student_id, :period_id, :status, :assigned_lecturer_id, :prefer_own_lecturer, :is_retake,
	 :company_name, :company_address, :supervisor_name, :supervisor_phone, :position,
	 :reports_materialized, :status_changed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID fetches a registration by identifier.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM internship_registrations r WHERE r.id = $1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByStudentAndPeriod fetches the registration of a student in a period.
func (r *RegistrationRepository) FindByStudentAndPeriod(ctx context.Context, studentID, periodID string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM internship_registrations r WHERE r.student_id = $1 AND r.period_id = $2`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, studentID, periodID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindLatestCompletedByStudent returns the most recently completed registration of a student.
func (r *RegistrationRepository) FindLatestCompletedByStudent(ctx context.Context, studentID string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM internship_registrations r
	WHERE r.student_id = $1 AND r.status = $2 ORDER BY r.status_changed_at DESC LIMIT 1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, studentID, models.RegistrationCompleted); err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetDetail returns a registration enriched with student, lecturer and report aggregates.
func (r *RegistrationRepository) GetDetail(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	query := `SELECT ` + registrationDetailColumns + registrationDetailFrom + ` WHERE r.id = $1`
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns registrations matching the filter.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.PeriodID != "" {
		args = append(args, filter.PeriodID)
		conditions = append(conditions, fmt.Sprintf("r.period_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)))
	}
	if filter.LecturerID != "" {
		args = append(args, filter.LecturerID)
		conditions = append(conditions, fmt.Sprintf("r.assigned_lecturer_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("r.status IN (%s)", strings.Join(placeholders, ",")))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":     "r.created_at",
		"status":         "r.status",
		"student_name":   "s.full_name",
		"student_number": "s.student_number",
	}
	sortBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortBy = "r.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s%s%s ORDER BY %s %s, r.id LIMIT %d OFFSET %d",
		registrationDetailColumns, registrationDetailFrom, where, sortBy, order, size, offset)

	var items []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM internship_registrations r" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return items, total, nil
}

// ListAutoAssignCandidates returns registered, unassigned registrations of a period in creation order.
func (r *RegistrationRepository) ListAutoAssignCandidates(ctx context.Context, periodID string) ([]models.AutoAssignCandidate, error) {
	const query = `SELECT r.id AS registration_id, r.student_id, s.department, r.created_at
	FROM internship_registrations r
	JOIN students s ON s.id = r.student_id
	WHERE r.period_id = $1 AND r.status = $2 AND r.assigned_lecturer_id IS NULL
	ORDER BY r.created_at ASC, r.id ASC`
	var candidates []models.AutoAssignCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, periodID, models.RegistrationRegistered); err != nil {
		return nil, fmt.Errorf("list auto-assign candidates: %w", err)
	}
	return candidates, nil
}

// ListByPeriodAndStatus returns bare registrations in the given statuses.
func (r *RegistrationRepository) ListByPeriodAndStatus(ctx context.Context, periodID string, statuses ...models.RegistrationStatus) ([]models.Registration, error) {
	args := []interface{}{periodID}
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := `SELECT ` + registrationColumns + ` FROM internship_registrations r WHERE r.period_id = $1`
	if len(statuses) > 0 {
		query += fmt.Sprintf(" AND r.status IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY r.created_at ASC, r.id ASC"

	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, fmt.Errorf("list registrations by status: %w", err)
	}
	return regs, nil
}

// UpdatePreference records whether the student waits for auto-assignment.
func (r *RegistrationRepository) UpdatePreference(ctx context.Context, id string, expected models.RegistrationStatus, preferOwn bool, at time.Time) error {
	const query = `UPDATE internship_registrations SET prefer_own_lecturer = $1, updated_at = $2
	WHERE id = $3 AND status = $4 AND assigned_lecturer_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, preferOwn, at, id, expected)
	if err != nil {
		return fmt.Errorf("update registration preference: %w", err)
	}
	return expectAffectedAs(result, ErrStaleState)
}

// AssignLecturerParams describes a capacity-guarded lecturer assignment.
type AssignLecturerParams struct {
	RegistrationID string
	PeriodID       string
	LecturerID     string
	// PreviousLecturerID is released when set; the registration must currently reference it.
	PreviousLecturerID string
	ExpectedStatus     models.RegistrationStatus
	NewStatus          models.RegistrationStatus
	PreferOwnLecturer  bool
	At                 time.Time
}

// AssignLecturer consumes one slot of the lecturer's allocation and updates the registration in one
// transaction. The slot is taken with a conditional increment so concurrent callers cannot overbook.
func (r *RegistrationRepository) AssignLecturer(ctx context.Context, params AssignLecturerParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign lecturer tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = reserveSlot(ctx, tx, params.LecturerID, params.PeriodID, params.At); err != nil {
		return err
	}

	lecturerGuard := "assigned_lecturer_id IS NULL"
	args := []interface{}{params.LecturerID, params.NewStatus, params.PreferOwnLecturer, params.At, params.RegistrationID, params.ExpectedStatus}
	if params.PreviousLecturerID != "" {
		args = append(args, params.PreviousLecturerID)
		lecturerGuard = fmt.Sprintf("assigned_lecturer_id = $%d", len(args))
	}
	query := `UPDATE internship_registrations SET assigned_lecturer_id = $1, status = $2, prefer_own_lecturer = $3,
	status_changed_at = $4, updated_at = $4 WHERE id = $5 AND status = $6 AND ` + lecturerGuard
	var result sql.Result
	result, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("assign registration lecturer: %w", err)
	}
	if err = expectAffectedAs(result, ErrStaleState); err != nil {
		return err
	}

	if params.PreviousLecturerID != "" {
		if err = releaseSlot(ctx, tx, params.PreviousLecturerID, params.PeriodID, params.At); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assign lecturer tx: %w", err)
	}
	return nil
}

// TransitionParams describes a guarded status change and its side effects.
type TransitionParams struct {
	RegistrationID string
	PeriodID       string
	From           models.RegistrationStatus
	To             models.RegistrationStatus
	// ReleaseLecturerID frees one slot of this lecturer's allocation.
	ReleaseLecturerID string
	// ReserveLecturerID takes one slot of this lecturer's allocation, failing with ErrCapacityExceeded
	// or ErrNoAllocation.
	ReserveLecturerID string
	ClearLecturer     bool
	Company           *models.CompanyInfo
	// Reports are inserted when not yet present and mark the registration as materialized.
	Reports []models.WeeklyReport
	At      time.Time
}

// ApplyTransition moves a registration from one status to another together with its slot and
// weekly report side effects. ErrStaleState is returned when the registration is no longer in From.
func (r *RegistrationRepository) ApplyTransition(ctx context.Context, params TransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	setParts := []string{"status = $1", "status_changed_at = $2", "updated_at = $2"}
	args := []interface{}{params.To, params.At}
	if params.ClearLecturer {
		setParts = append(setParts, "assigned_lecturer_id = NULL")
	}
	if params.Company != nil {
		for _, field := range []struct {
			column string
			value  string
		}{
			{"company_name", params.Company.CompanyName},
			{"company_address", params.Company.CompanyAddress},
			{"supervisor_name", params.Company.SupervisorName},
			{"supervisor_phone", params.Company.SupervisorPhone},
			{"position", params.Company.Position},
		} {
			args = append(args, field.value)
			setParts = append(setParts, fmt.Sprintf("%s = $%d", field.column, len(args)))
		}
	}
	if len(params.Reports) > 0 {
		setParts = append(setParts, "reports_materialized = TRUE")
	}
	args = append(args, params.RegistrationID, params.From)
	query := fmt.Sprintf("UPDATE internship_registrations SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setParts, ", "), len(args)-1, len(args))

	var result sql.Result
	result, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if err = expectAffectedAs(result, ErrStaleState); err != nil {
		return err
	}

	if params.ReleaseLecturerID != "" {
		if err = releaseSlot(ctx, tx, params.ReleaseLecturerID, params.PeriodID, params.At); err != nil {
			return err
		}
	}

	if params.ReserveLecturerID != "" {
		if err = reserveSlot(ctx, tx, params.ReserveLecturerID, params.PeriodID, params.At); err != nil {
			return err
		}
	}

	for i := range params.Reports {
		if err = insertWeeklyReport(ctx, tx, &params.Reports[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

func reserveSlot(ctx context.Context, tx *sqlx.Tx, lecturerID, periodID string, at time.Time) error {
	const query = `UPDATE lecturer_allocations SET assigned_count = assigned_count + 1, updated_at = $1
	WHERE lecturer_id = $2 AND period_id = $3 AND assigned_count < max_students`
	result, err := tx.ExecContext(ctx, query, at, lecturerID, periodID)
	if err != nil {
		return fmt.Errorf("reserve lecturer slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM lecturer_allocations WHERE lecturer_id = $1 AND period_id = $2)`, lecturerID, periodID); err != nil {
		return fmt.Errorf("check lecturer allocation: %w", err)
	}
	if !exists {
		return ErrNoAllocation
	}
	return ErrCapacityExceeded
}

func releaseSlot(ctx context.Context, tx *sqlx.Tx, lecturerID, periodID string, at time.Time) error {
	const query = `UPDATE lecturer_allocations SET assigned_count = assigned_count - 1, updated_at = $1
	WHERE lecturer_id = $2 AND period_id = $3 AND assigned_count > 0`
	if _, err := tx.ExecContext(ctx, query, at, lecturerID, periodID); err != nil {
		return fmt.Errorf("release lecturer slot: %w", err)
	}
	return nil
}

func insertWeeklyReport(ctx context.Context, tx *sqlx.Tx, report *models.WeeklyReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	const query = `INSERT INTO weekly_reports
	(id, registration_id, week_number, start_date, end_date, status, report_title, created_at, updated_at)
	VALUES (:id, :registration_id, :week_number, :start_date, :end_date, :status, :report_title, :created_at, :updated_at)
	ON CONFLICT (registration_id, week_number) DO NOTHING`
	if _, err := tx.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("materialize weekly report %d: %w", report.WeekNumber, err)
	}
	return nil
}

func expectAffectedAs(result sql.Result, sentinel error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if affected == 0 {
		return sentinel
	}
	return nil
}
