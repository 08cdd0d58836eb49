package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-api/internal/models"
)

const retakeColumns = `id, student_id, registration_id, reason, previous_grade, status, admin_note, reviewed_by, requested_at, reviewed_at`

// RetakeRepository persists retake requests.
type RetakeRepository struct {
	db *sqlx.DB
}

// NewRetakeRepository constructs the repository.
func NewRetakeRepository(db *sqlx.DB) *RetakeRepository {
	return &RetakeRepository{db: db}
}

// Create inserts a pending request. A second pending request of the same student yields ErrDuplicate.
func (r *RetakeRepository) Create(ctx context.Context, request *models.RetakeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RetakePending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO retake_requests
	(id, student_id, registration_id, reason, previous_grade, status, admin_note, reviewed_by, requested_at, reviewed_at)
	VALUES (:id, :student_id, :registration_id, :reason, :previous_grade, :status, :admin_note, :reviewed_by, :requested_at, :reviewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create retake request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RetakeRepository) GetByID(ctx context.Context, id string) (*models.RetakeRequest, error) {
	query := `SELECT ` + retakeColumns + ` FROM retake_requests WHERE id = $1`
	var request models.RetakeRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindPendingByStudent returns the pending request of a student.
func (r *RetakeRepository) FindPendingByStudent(ctx context.Context, studentID string) (*models.RetakeRequest, error) {
	query := `SELECT ` + retakeColumns + ` FROM retake_requests WHERE student_id = $1 AND status = $2 LIMIT 1`
	var request models.RetakeRequest
	if err := r.db.GetContext(ctx, &request, query, studentID, models.RetakePending); err != nil {
		return nil, err
	}
	return &request, nil
}

// HasUnusedApproval reports whether the student holds an approved request that no retake
// registration has consumed since its approval.
func (r *RetakeRepository) HasUnusedApproval(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM retake_requests rr
		WHERE rr.student_id = $1 AND rr.status = $2
		AND NOT EXISTS (
			SELECT 1 FROM internship_registrations ir
			WHERE ir.student_id = rr.student_id AND ir.is_retake = TRUE AND ir.created_at >= rr.reviewed_at
		)
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, models.RetakeApproved); err != nil {
		return false, fmt.Errorf("check retake approval: %w", err)
	}
	return exists, nil
}

// List returns requests matching the filter, latest first.
func (r *RetakeRepository) List(ctx context.Context, filter models.RetakeFilter) ([]models.RetakeRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + retakeColumns + ` FROM retake_requests`)

	conditions := make([]string, 0, 2)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.RetakeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list retake requests: %w", err)
	}
	return requests, nil
}

// ReviewRetakeParams groups the columns written by an admin decision.
type ReviewRetakeParams struct {
	ID         string
	Status     models.RetakeStatus
	Note       *string
	ReviewedBy string
	ReviewedAt time.Time
}

// Review persists the decision while the request is still pending.
func (r *RetakeRepository) Review(ctx context.Context, params ReviewRetakeParams) error {
	const query = `UPDATE retake_requests SET status = :status, admin_note = :admin_note, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at
	WHERE id = :id AND status = 'pending'`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.Status,
		"admin_note":  params.Note,
		"reviewed_by": params.ReviewedBy,
		"reviewed_at": params.ReviewedAt,
	})
	if err != nil {
		return fmt.Errorf("review retake request: %w", err)
	}
	return expectAffectedAs(result, ErrStaleState)
}
