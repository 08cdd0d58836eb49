package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/repository"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

const allocationAgent = "allocation-service"

// Reasons reported for candidates left unassigned by auto-assignment.
const (
	ReasonNoCapacity        = "no lecturer with remaining capacity"
	ReasonNoDepartmentMatch = "no lecturer of the student's department with remaining capacity"
	ReasonChanged           = "registration changed during assignment"
	ReasonAssignFailed      = "assignment could not be stored"
)

type allocationStore interface {
	Find(ctx context.Context, lecturerID, periodID string) (*models.LecturerAllocation, error)
	ListByPeriod(ctx context.Context, periodID string) ([]models.LecturerAllocationDetail, error)
	Upsert(ctx context.Context, allocation *models.LecturerAllocation) error
	Delete(ctx context.Context, lecturerID, periodID string) error
}

type assignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	ListAutoAssignCandidates(ctx context.Context, periodID string) ([]models.AutoAssignCandidate, error)
	AssignLecturer(ctx context.Context, params repository.AssignLecturerParams) error
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
}

// AllocationServiceConfig holds capacity defaults.
type AllocationServiceConfig struct {
	DefaultCapacity int
}

// AllocationService manages lecturer capacity and matches students to lecturers.
type AllocationService struct {
	allocations allocationStore
	regs        assignmentStore
	periods     periodReader
	lecturers   lecturerReader
	audit       auditRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	clock       Clock
	cfg         AllocationServiceConfig
}

// AllocationServiceOption customises the service.
type AllocationServiceOption func(*AllocationService)

// WithAllocationClock overrides the time source.
func WithAllocationClock(clock Clock) AllocationServiceOption {
	return func(s *AllocationService) {
		s.clock = clock
	}
}

// WithAllocationMetrics records assignment counters.
func WithAllocationMetrics(metrics *MetricsService) AllocationServiceOption {
	return func(s *AllocationService) {
		s.metrics = metrics
	}
}

// NewAllocationService constructs the service.
func NewAllocationService(allocations allocationStore, regs assignmentStore, periods periodReader, lecturers lecturerReader, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cfg AllocationServiceConfig, opts ...AllocationServiceOption) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = models.DefaultLecturerCapacity
	}
	svc := &AllocationService{
		allocations: allocations,
		regs:        regs,
		periods:     periods,
		lecturers:   lecturers,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		clock:       SystemClock(nil),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// List returns the allocations of a period.
func (s *AllocationService) List(ctx context.Context, periodID string, actor *models.Actor) ([]models.LecturerAllocationDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	items, err := s.allocations.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, internalError(err, "failed to list allocations")
	}
	return items, nil
}

// Upsert sets a lecturer's capacity for a period. A capacity below the consumed slots is refused.
func (s *AllocationService) Upsert(ctx context.Context, periodID string, req dto.UpsertAllocationRequest, actor *models.Actor) (*models.LecturerAllocation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid allocation payload")
	}
	if _, err := s.periods.FindByID(ctx, periodID); err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	if _, err := s.lecturers.FindByID(ctx, req.LecturerID); err != nil {
		return nil, notFoundOr(err, "lecturer not found", "failed to load lecturer")
	}

	allocation := &models.LecturerAllocation{
		LecturerID:  req.LecturerID,
		PeriodID:    periodID,
		MaxStudents: req.MaxStudents,
	}
	if allocation.MaxStudents == 0 {
		allocation.MaxStudents = s.cfg.DefaultCapacity
	}
	if err := s.allocations.Upsert(ctx, allocation); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			return nil, appErrors.WithDetails(appErrors.ErrConflict, "capacity cannot drop below the students already assigned", map[string]interface{}{
				"max_students": allocation.MaxStudents,
			})
		}
		return nil, internalError(err, "failed to save allocation")
	}

	s.recordAudit(ctx, actor, models.AuditActionAllocationUpsert, allocation.ID, nil, allocation)
	return allocation, nil
}

// Delete removes an allocation with no consumed slot.
func (s *AllocationService) Delete(ctx context.Context, periodID, lecturerID string, actor *models.Actor) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	existing, err := s.allocations.Find(ctx, lecturerID, periodID)
	if err != nil {
		return notFoundOr(err, "allocation not found", "failed to load allocation")
	}
	if err := s.allocations.Delete(ctx, lecturerID, periodID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return appErrors.WithDetails(appErrors.ErrConflict, "allocation still has assigned students", map[string]interface{}{
				"assigned_count": existing.AssignedCount,
			})
		}
		return internalError(err, "failed to delete allocation")
	}
	s.recordAudit(ctx, actor, models.AuditActionAllocationDelete, existing.ID, existing, nil)
	return nil
}

// Assign is the admin manual assignment. A different current lecturer is swapped out in the
// same transaction; the new lecturer's slot is guarded like any other.
func (s *AllocationService) Assign(ctx context.Context, registrationID string, req dto.AssignLecturerRequest, actor *models.Actor) (*models.Registration, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "lecturer_id is required")
	}
	reg, err := s.regs.FindByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	next, ok := NextStatus(reg.Status, ActionAdminAssign)
	if !ok {
		return nil, transitionNotAllowed(reg.Status, ActionAdminAssign)
	}
	if reg.LecturerID() == req.LecturerID {
		return reg, nil
	}
	lecturer, err := s.lecturers.FindByID(ctx, req.LecturerID)
	if err != nil {
		return nil, notFoundOr(err, "lecturer not found", "failed to load lecturer")
	}
	if !lecturer.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lecturer is not active")
	}

	now := s.clock.Now()
	before := *reg
	err = s.regs.AssignLecturer(ctx, repository.AssignLecturerParams{
		RegistrationID:     reg.ID,
		PeriodID:           reg.PeriodID,
		LecturerID:         lecturer.ID,
		PreviousLecturerID: reg.LecturerID(),
		ExpectedStatus:     reg.Status,
		NewStatus:          next,
		PreferOwnLecturer:  reg.PreferOwnLecturer,
		At:                 now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.metrics.RecordCapacityConflict()
		}
		return nil, mapSlotError(err, reg.Status, ActionAdminAssign, "failed to assign lecturer")
	}

	s.metrics.RecordTransition(ActionAdminAssign, reg.Status, next)
	lecturerID := lecturer.ID
	reg.AssignedLecturerID = &lecturerID
	reg.Status = next
	reg.StatusChangedAt = now
	reg.UpdatedAt = now
	s.recordAudit(ctx, actor, models.AuditActionLecturerAssign, reg.ID, &before, reg)
	return reg, nil
}

// Unassign clears the lecturer of a registration that has not submitted company details yet
// and returns it to registered.
func (s *AllocationService) Unassign(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reg, err := s.regs.FindByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	next, ok := NextStatus(reg.Status, ActionAdminUnassign)
	if !ok || !reg.HasLecturer() {
		return nil, transitionNotAllowed(reg.Status, ActionAdminUnassign)
	}

	now := s.clock.Now()
	before := *reg
	err = s.regs.ApplyTransition(ctx, repository.TransitionParams{
		RegistrationID:    reg.ID,
		PeriodID:          reg.PeriodID,
		From:              reg.Status,
		To:                next,
		ReleaseLecturerID: reg.LecturerID(),
		ClearLecturer:     true,
		At:                now,
	})
	if err != nil {
		return nil, mapSlotError(err, reg.Status, ActionAdminUnassign, "failed to unassign lecturer")
	}

	s.metrics.RecordTransition(ActionAdminUnassign, reg.Status, next)
	reg.AssignedLecturerID = nil
	reg.Status = next
	reg.StatusChangedAt = now
	reg.UpdatedAt = now
	s.recordAudit(ctx, actor, models.AuditActionLecturerUnassign, reg.ID, &before, reg)
	return reg, nil
}

// AutoAssign matches every registered, unassigned registration of a period to the lecturer with
// the most free slots. Candidates that cannot be placed are reported, not treated as errors.
// Rerunning without intervening changes assigns nothing new.
func (s *AllocationService) AutoAssign(ctx context.Context, periodID string, actor *models.Actor) (*models.AutoAssignResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	candidates, err := s.regs.ListAutoAssignCandidates(ctx, period.ID)
	if err != nil {
		return nil, internalError(err, "failed to list candidates")
	}
	allocations, err := s.allocations.ListByPeriod(ctx, period.ID)
	if err != nil {
		return nil, internalError(err, "failed to list allocations")
	}
	next, _ := NextStatus(models.RegistrationRegistered, ActionAutoAssign)

	result := &models.AutoAssignResult{
		PeriodID:    period.ID,
		Assignments: []models.AutoAssignment{},
		Failures:    []models.AutoAssignFailure{},
	}
	for _, candidate := range candidates {
		lecturerID, reason := s.assignCandidate(ctx, period, candidate, allocations, next)
		if reason != "" {
			result.Failures = append(result.Failures, models.AutoAssignFailure{
				RegistrationID: candidate.RegistrationID,
				StudentID:      candidate.StudentID,
				Reason:         reason,
			})
			continue
		}
		result.AssignedCount++
		result.Assignments = append(result.Assignments, models.AutoAssignment{
			RegistrationID: candidate.RegistrationID,
			StudentID:      candidate.StudentID,
			LecturerID:     lecturerID,
		})
	}

	s.metrics.RecordAutoAssign(result.AssignedCount, len(result.Failures))
	s.logger.Info("auto-assignment finished",
		zap.String("period_id", period.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("assigned", result.AssignedCount),
		zap.Int("failures", len(result.Failures)),
	)
	s.recordAudit(ctx, actor, models.AuditActionAutoAssign, period.ID, nil, result)
	return result, nil
}

// assignCandidate tries lecturers in preference order until one accepts or none remain.
// allocations is updated in place so later candidates see the consumed slots.
func (s *AllocationService) assignCandidate(ctx context.Context, period *models.Period, candidate models.AutoAssignCandidate, allocations []models.LecturerAllocationDetail, next models.RegistrationStatus) (string, string) {
	for {
		idx, reason := PickLecturer(candidate, allocations, period.MatchLecturerDepartment)
		if idx < 0 {
			return "", reason
		}
		chosen := &allocations[idx]
		err := s.regs.AssignLecturer(ctx, repository.AssignLecturerParams{
			RegistrationID: candidate.RegistrationID,
			PeriodID:       period.ID,
			LecturerID:     chosen.LecturerID,
			ExpectedStatus: models.RegistrationRegistered,
			NewStatus:      next,
			At:             s.clock.Now(),
		})
		switch {
		case err == nil:
			chosen.AssignedCount++
			s.metrics.RecordTransition(ActionAutoAssign, models.RegistrationRegistered, next)
			return chosen.LecturerID, ""
		case errors.Is(err, repository.ErrCapacityExceeded), errors.Is(err, repository.ErrNoAllocation):
			// Another request took the last slot or removed the allocation; treat the lecturer as full and re-pick.
			s.metrics.RecordCapacityConflict()
			chosen.AssignedCount = chosen.MaxStudents
		case errors.Is(err, repository.ErrStaleState), errors.Is(err, sql.ErrNoRows):
			return "", ReasonChanged
		default:
			s.logger.Error("auto-assign candidate failed",
				zap.String("registration_id", candidate.RegistrationID),
				zap.String("lecturer_id", chosen.LecturerID),
				zap.Error(err),
			)
			return "", ReasonAssignFailed
		}
	}
}

// PickLecturer returns the index of the allocation with the most free slots, ties going to the
// lowest lecturer id. Department affinity applies when the period or the lecturer requires it.
// A negative index comes with the reason no lecturer qualified.
func PickLecturer(candidate models.AutoAssignCandidate, allocations []models.LecturerAllocationDetail, matchDepartment bool) (int, string) {
	best := -1
	filteredByDepartment := false
	for i := range allocations {
		allocation := &allocations[i]
		if !allocation.HasCapacity() {
			continue
		}
		if (matchDepartment || allocation.RestrictToDepartment) && !sameDepartment(candidate.Department, allocation.LecturerDepartment) {
			filteredByDepartment = true
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		current := &allocations[best]
		if allocation.SlotsRemaining() > current.SlotsRemaining() ||
			(allocation.SlotsRemaining() == current.SlotsRemaining() && allocation.LecturerID < current.LecturerID) {
			best = i
		}
	}
	if best >= 0 {
		return best, ""
	}
	if filteredByDepartment {
		return -1, ReasonNoDepartmentMatch
	}
	return -1, ReasonNoCapacity
}

func (s *AllocationService) recordAudit(ctx context.Context, actor *models.Actor, action, resourceID string, before, after interface{}) {
	userID := actor.UserID
	id := resourceID
	emitAudit(ctx, s.audit, s.logger, allocationAgent, &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     action,
		Resource:   "lecturer_allocation",
		ResourceID: &id,
		OldValues:  auditPayload(before),
		NewValues:  auditPayload(after),
		CreatedAt:  s.clock.Now(),
	})
}
