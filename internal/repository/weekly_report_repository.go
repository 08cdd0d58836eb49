package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-api/internal/models"
)

const weeklyReportColumns = `id, registration_id, week_number, start_date, end_date, status, submission_date, report_title,
       report_file_ref, grade, lecturer_feedback, reviewed_date, reviewed_by, created_at, updated_at`

// WeeklyReportRepository persists weekly report records.
type WeeklyReportRepository struct {
	db *sqlx.DB
}

// NewWeeklyReportRepository constructs a WeeklyReportRepository.
func NewWeeklyReportRepository(db *sqlx.DB) *WeeklyReportRepository {
	return &WeeklyReportRepository{db: db}
}

// ListByRegistration returns the reports of a registration ordered by week.
func (r *WeeklyReportRepository) ListByRegistration(ctx context.Context, registrationID string) ([]models.WeeklyReport, error) {
	query := `SELECT ` + weeklyReportColumns + ` FROM weekly_reports WHERE registration_id = $1 ORDER BY week_number ASC`
	var reports []models.WeeklyReport
	if err := r.db.SelectContext(ctx, &reports, query, registrationID); err != nil {
		return nil, fmt.Errorf("list weekly reports: %w", err)
	}
	return reports, nil
}

// FindByWeek returns one report of a registration.
func (r *WeeklyReportRepository) FindByWeek(ctx context.Context, registrationID string, week int) (*models.WeeklyReport, error) {
	query := `SELECT ` + weeklyReportColumns + ` FROM weekly_reports WHERE registration_id = $1 AND week_number = $2`
	var report models.WeeklyReport
	if err := r.db.GetContext(ctx, &report, query, registrationID, week); err != nil {
		return nil, err
	}
	return &report, nil
}

// SubmitParams captures a student submission.
type SubmitParams struct {
	ID             string
	ExpectedStatus models.WeeklyReportStatus
	Status         models.WeeklyReportStatus
	Title          string
	FileRef        string
	SubmittedAt    time.Time
}

// Submit records a submission when the report is still in the expected status.
func (r *WeeklyReportRepository) Submit(ctx context.Context, params SubmitParams) error {
	const query = `UPDATE weekly_reports SET status = $1, report_title = $2, report_file_ref = $3, submission_date = $4, updated_at = $4
	WHERE id = $5 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, params.Status, params.Title, params.FileRef, params.SubmittedAt, params.ID, params.ExpectedStatus)
	if err != nil {
		return fmt.Errorf("submit weekly report: %w", err)
	}
	return expectAffectedAs(result, ErrStaleState)
}

// ReviewParams captures a lecturer decision.
type ReviewParams struct {
	ID             string
	ExpectedStatus models.WeeklyReportStatus
	Status         models.WeeklyReportStatus
	Grade          float64
	Feedback       *string
	ReviewedBy     string
	ReviewedAt     time.Time
}

// Review records a lecturer decision when the report is still in the expected status.
func (r *WeeklyReportRepository) Review(ctx context.Context, params ReviewParams) error {
	const query = `UPDATE weekly_reports SET status = $1, grade = $2, lecturer_feedback = $3, reviewed_by = $4, reviewed_date = $5, updated_at = $5
	WHERE id = $6 AND status = $7`
	result, err := r.db.ExecContext(ctx, query, params.Status, params.Grade, params.Feedback, params.ReviewedBy, params.ReviewedAt, params.ID, params.ExpectedStatus)
	if err != nil {
		return fmt.Errorf("review weekly report: %w", err)
	}
	return expectAffectedAs(result, ErrStaleState)
}
