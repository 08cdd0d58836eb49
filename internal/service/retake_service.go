package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/repository"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

const retakeAgent = "retake-service"

type retakeStore interface {
	Create(ctx context.Context, request *models.RetakeRequest) error
	GetByID(ctx context.Context, id string) (*models.RetakeRequest, error)
	FindPendingByStudent(ctx context.Context, studentID string) (*models.RetakeRequest, error)
	List(ctx context.Context, filter models.RetakeFilter) ([]models.RetakeRequest, error)
	Review(ctx context.Context, params repository.ReviewRetakeParams) error
}

type completedRegistrationFinder interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindLatestCompletedByStudent(ctx context.Context, studentID string) (*models.Registration, error)
}

// RetakeService runs the retake request workflow.
type RetakeService struct {
	requests  retakeStore
	regs      completedRegistrationFinder
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// RetakeServiceOption customises the service.
type RetakeServiceOption func(*RetakeService)

// WithRetakeClock overrides the time source.
func WithRetakeClock(clock Clock) RetakeServiceOption {
	return func(s *RetakeService) {
		s.clock = clock
	}
}

// NewRetakeService constructs the service.
func NewRetakeService(requests retakeStore, regs completedRegistrationFinder, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts ...RetakeServiceOption) *RetakeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RetakeService{
		requests:  requests,
		regs:      regs,
		audit:     audit,
		validator: validate,
		logger:    logger,
		clock:     SystemClock(time.UTC),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CanRequest reports whether the student completed an internship and has no pending request.
func (s *RetakeService) CanRequest(ctx context.Context, studentID string, actor *models.Actor) (*models.RetakeEligibility, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if studentID == "" || !actor.IsAdmin() {
		studentID = actor.UserID
	}
	return s.eligibility(ctx, studentID)
}

func (s *RetakeService) eligibility(ctx context.Context, studentID string) (*models.RetakeEligibility, error) {
	result := &models.RetakeEligibility{StudentID: studentID}

	completed, err := s.regs.FindLatestCompletedByStudent(ctx, studentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result.Reason = "no completed internship"
		return result, nil
	case err != nil:
		return nil, internalError(err, "failed to load completed registration")
	}
	completedID := completed.ID
	result.CompletedRegistrationID = &completedID

	pending, err := s.requests.FindPendingByStudent(ctx, studentID)
	switch {
	case err == nil:
		pendingID := pending.ID
		result.PendingRequestID = &pendingID
		result.Reason = "a retake request is already pending"
		return result, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to load pending retake request")
	}

	result.Eligible = true
	return result, nil
}

// Submit files a pending retake request for the calling student.
func (s *RetakeService) Submit(ctx context.Context, req dto.CreateRetakeRequest, actor *models.Actor) (*models.RetakeRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request a retake")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "reason is required and previous grade must be between 0 and 10")
	}

	eligibility, err := s.eligibility(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if eligibility.PendingRequestID != nil {
		return nil, appErrors.WithDetails(appErrors.ErrDuplicateEntity, "a retake request is already pending", map[string]interface{}{
			"request_id": *eligibility.PendingRequestID,
		})
	}
	if !eligibility.Eligible {
		return nil, appErrors.WithDetails(appErrors.ErrNotEligible, "a completed internship is required before requesting a retake", map[string]interface{}{
			"criterion": CriterionRetake,
		})
	}

	registrationID := eligibility.CompletedRegistrationID
	if ref := strings.TrimSpace(req.RegistrationID); ref != "" {
		reg, err := s.regs.FindByID(ctx, ref)
		if err != nil {
			return nil, notFoundOr(err, "registration not found", "failed to load registration")
		}
		if reg.StudentID != actor.UserID || reg.Status != models.RegistrationCompleted {
			return nil, appErrors.Clone(appErrors.ErrValidation, "registration must be one of your completed internships")
		}
		registrationID = &ref
	}

	request := &models.RetakeRequest{
		ID:             uuid.NewString(),
		StudentID:      actor.UserID,
		RegistrationID: registrationID,
		Reason:         req.Reason,
		PreviousGrade:  req.PreviousGrade,
		Status:         models.RetakePending,
		RequestedAt:    s.clock.Now(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "a retake request is already pending")
		}
		return nil, internalError(err, "failed to create retake request")
	}
	s.logger.Info("retake requested", zap.String("request_id", request.ID), zap.String("student_id", request.StudentID))
	return request, nil
}

// Approve grants renewed eligibility. The note is optional.
func (s *RetakeService) Approve(ctx context.Context, requestID, note string, actor *models.Actor) (*models.RetakeRequest, error) {
	return s.Review(ctx, requestID, dto.ReviewRetakeRequest{Status: models.RetakeApproved, Note: note}, actor)
}

// Reject denies the request. The note is mandatory.
func (s *RetakeService) Reject(ctx context.Context, requestID, note string, actor *models.Actor) (*models.RetakeRequest, error) {
	return s.Review(ctx, requestID, dto.ReviewRetakeRequest{Status: models.RetakeRejected, Note: note}, actor)
}

// Review applies a terminal admin decision to a pending request.
func (s *RetakeService) Review(ctx context.Context, requestID string, req dto.ReviewRetakeRequest, actor *models.Actor) (*models.RetakeRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "status must be approved or rejected")
	}
	note := optionalString(req.Note)
	if req.Status == models.RetakeRejected && note == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a note is required when rejecting")
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, notFoundOr(err, "retake request not found", "failed to load retake request")
	}
	if request.Status != models.RetakePending {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "retake request was already reviewed", map[string]interface{}{
			"current_status": request.Status,
		})
	}

	now := s.clock.Now()
	err = s.requests.Review(ctx, repository.ReviewRetakeParams{
		ID:         request.ID,
		Status:     req.Status,
		Note:       note,
		ReviewedBy: actor.UserID,
		ReviewedAt: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "retake request was already reviewed", map[string]interface{}{
				"current_status": request.Status,
			})
		}
		return nil, internalError(err, "failed to review retake request")
	}

	before := *request
	reviewer := actor.UserID
	request.Status = req.Status
	request.AdminNote = note
	request.ReviewedBy = &reviewer
	request.ReviewedAt = &now

	id := request.ID
	emitAudit(ctx, s.audit, s.logger, retakeAgent, &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &reviewer,
		Action:     models.AuditActionRetakeReview,
		Resource:   "retake_request",
		ResourceID: &id,
		OldValues:  auditPayload(before),
		NewValues:  auditPayload(request),
		CreatedAt:  now,
	})
	return request, nil
}

// List returns retake requests; students only see their own.
func (s *RetakeService) List(ctx context.Context, query dto.RetakeQuery, actor *models.Actor) ([]models.RetakeRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	filter := models.RetakeFilter{Status: query.Status, Limit: query.Limit, Offset: query.Offset}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	default:
		return nil, appErrors.ErrForbidden
	}
	items, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list retake requests")
	}
	return items, nil
}
