package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const registrationAgent = "registration-service"

type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindByStudentAndPeriod(ctx context.Context, studentID, periodID string) (*models.Registration, error)
	GetDetail(ctx context.Context, id string) (*models.RegistrationDetail, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	ListByPeriodAndStatus(ctx context.Context, periodID string, statuses ...models.RegistrationStatus) ([]models.Registration, error)
	UpdatePreference(ctx context.Context, id string, expected models.RegistrationStatus, preferOwn bool, at time.Time) error
	AssignLecturer(ctx context.Context, params repository.AssignLecturerParams) error
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type lecturerReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
}

type retakeApprovalChecker interface {
	HasUnusedApproval(ctx context.Context, studentID string) (bool, error)
}

type reportProgressReader interface {
	Progress(ctx context.Context, registrationID string) (*models.WeeklyReportProgress, error)
}

// RegistrationService drives the registration lifecycle of students within a period.
type RegistrationService struct {
	regs      registrationStore
	periods   periodReader
	students  studentReader
	lecturers lecturerReader
	retakes   retakeApprovalChecker
	progress  reportProgressReader
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// RegistrationServiceOption customises the service.
type RegistrationServiceOption func(*RegistrationService)

// WithRegistrationClock overrides the time source used by date windows.
func WithRegistrationClock(clock Clock) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.clock = clock
	}
}

// WithRegistrationMetrics records transition counters.
func WithRegistrationMetrics(metrics *MetricsService) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.metrics = metrics
	}
}

// WithRegistrationProgress attaches the weekly report summary used on completion.
func WithRegistrationProgress(progress reportProgressReader) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.progress = progress
	}
}

// NewRegistrationService constructs the service.
func NewRegistrationService(regs registrationStore, periods periodReader, students studentReader, lecturers lecturerReader, retakes retakeApprovalChecker, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts ...RegistrationServiceOption) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RegistrationService{
		regs:      regs,
		periods:   periods,
		students:  students,
		lecturers: lecturers,
		retakes:   retakes,
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

// Register admits a student into a period after the eligibility check.
func (s *RegistrationService) Register(ctx context.Context, req dto.CreateRegistrationRequest, actor *models.Actor) (*models.Registration, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	studentID := actor.UserID
	switch {
	case actor.IsAdmin():
		if strings.TrimSpace(req.StudentID) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
		}
		studentID = strings.TrimSpace(req.StudentID)
	case actor.Role != models.RoleStudent:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may register")
	}

	period, err := s.periods.FindByID(ctx, req.PeriodID)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	if !period.IsActive {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "period is not open for registration", map[string]interface{}{
			"current_status": models.RegistrationNotStarted,
			"action":         ActionRegister,
		})
	}
	now := s.clock.Now()
	if window := period.RegistrationWindow(); !window.Contains(now) {
		return nil, outsideWindow(models.RegistrationNotStarted, ActionRegister, window)
	}

	existing, err := s.regs.FindByStudentAndPeriod(ctx, studentID, period.ID)
	switch {
	case err == nil && existing != nil:
		return nil, appErrors.WithDetails(appErrors.ErrDuplicateEntity, "student is already registered for this period", map[string]interface{}{
			"registration_id": existing.ID,
		})
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to check existing registration")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, notFoundOr(err, "student profile not found", "failed to load student")
	}

	isRetake, err := s.admit(ctx, student, period)
	if err != nil {
		return nil, err
	}

	reg := &models.Registration{
		ID:              uuid.NewString(),
		StudentID:       student.ID,
		PeriodID:        period.ID,
		Status:          models.RegistrationRegistered,
		IsRetake:        isRetake,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.regs.Create(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "student is already registered for this period")
		}
		return nil, internalError(err, "failed to create registration")
	}

	s.metrics.RecordTransition(ActionRegister, models.RegistrationNotStarted, reg.Status)
	s.logger.Info("student registered",
		zap.String("registration_id", reg.ID),
		zap.String("student_id", reg.StudentID),
		zap.String("period_id", reg.PeriodID),
		zap.Bool("retake", reg.IsRetake),
	)
	return reg, nil
}

// admit runs the strict eligibility rules and falls back to the relaxed retake path when the
// period allows retakes and the student holds an unused approval.
func (s *RegistrationService) admit(ctx context.Context, student *models.Student, period *models.Period) (bool, error) {
	criterion, ok := CheckEligibility(student, period, false)
	if ok {
		return false, nil
	}
	if period.AllowRetake && s.retakes != nil {
		approved, err := s.retakes.HasUnusedApproval(ctx, student.ID)
		if err != nil {
			return false, internalError(err, "failed to check retake approval")
		}
		if approved {
			relaxedCriterion, relaxedOK := CheckEligibility(student, period, true)
			if relaxedOK {
				return true, nil
			}
			criterion = relaxedCriterion
		}
	}
	return false, appErrors.WithDetails(appErrors.ErrNotEligible, fmt.Sprintf("student does not meet the %s criterion", criterion), map[string]interface{}{
		"criterion": criterion,
	})
}

// ChooseLecturer assigns the chosen lecturer directly, or parks the registration in
// waiting_lecturer when confirmation is requested. Either way a slot is consumed.
func (s *RegistrationService) ChooseLecturer(ctx context.Context, registrationID string, req dto.ChooseLecturerRequest, actor *models.Actor) (*models.Registration, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "lecturer_id is required")
	}
	reg, err := s.loadOwned(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}

	action := ActionChooseLecturer
	if req.RequireConfirmation {
		action = ActionRequestLecturer
	}
	next, ok := NextStatus(reg.Status, action)
	if !ok || reg.HasLecturer() {
		return nil, transitionNotAllowed(reg.Status, action)
	}

	period, err := s.periods.FindByID(ctx, reg.PeriodID)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	now := s.clock.Now()
	if window := period.LecturerSelectionWindow(); !window.Contains(now) {
		return nil, outsideWindow(reg.Status, action, window)
	}

	lecturer, err := s.lecturers.FindByID(ctx, req.LecturerID)
	if err != nil {
		return nil, notFoundOr(err, "lecturer not found", "failed to load lecturer")
	}
	if !lecturer.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lecturer is not active")
	}
	if period.MatchLecturerDepartment || lecturer.RestrictToDepartment {
		student, err := s.students.FindByID(ctx, reg.StudentID)
		if err != nil {
			return nil, notFoundOr(err, "student profile not found", "failed to load student")
		}
		if !sameDepartment(student.Department, lecturer.Department) {
			return nil, appErrors.WithDetails(appErrors.ErrNotEligible, "lecturer supervises another department", map[string]interface{}{
				"criterion": CriterionDepartment,
			})
		}
	}

	err = s.regs.AssignLecturer(ctx, repository.AssignLecturerParams{
		RegistrationID:    reg.ID,
		PeriodID:          reg.PeriodID,
		LecturerID:        lecturer.ID,
		ExpectedStatus:    reg.Status,
		NewStatus:         next,
		PreferOwnLecturer: true,
		At:                now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.metrics.RecordCapacityConflict()
		}
		return nil, mapSlotError(err, reg.Status, action, "failed to assign lecturer")
	}

	s.metrics.RecordTransition(action, reg.Status, next)
	lecturerID := lecturer.ID
	reg.AssignedLecturerID = &lecturerID
	reg.PreferOwnLecturer = true
	reg.Status = next
	reg.StatusChangedAt = now
	reg.UpdatedAt = now
	return reg, nil
}

// DeferToAutoAssign leaves the registration in registered for the next auto-assignment run.
func (s *RegistrationService) DeferToAutoAssign(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reg, err := s.loadOwned(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	if _, ok := NextStatus(reg.Status, ActionDeferToAutoAssign); !ok || reg.HasLecturer() {
		return nil, transitionNotAllowed(reg.Status, ActionDeferToAutoAssign)
	}
	now := s.clock.Now()
	if err := s.regs.UpdatePreference(ctx, reg.ID, reg.Status, false, now); err != nil {
		return nil, mapSlotError(err, reg.Status, ActionDeferToAutoAssign, "failed to update registration")
	}
	reg.PreferOwnLecturer = false
	reg.UpdatedAt = now
	return reg, nil
}

// ConfirmLecturer is the lecturer accepting a pending supervision request.
func (s *RegistrationService) ConfirmLecturer(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error) {
	reg, err := s.loadForLecturer(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	next, ok := NextStatus(reg.Status, ActionConfirmLecturer)
	if !ok {
		return nil, transitionNotAllowed(reg.Status, ActionConfirmLecturer)
	}
	params := repository.TransitionParams{
		RegistrationID: reg.ID,
		PeriodID:       reg.PeriodID,
		From:           reg.Status,
		To:             next,
		At:             s.clock.Now(),
	}
	before := *reg
	if err := s.apply(ctx, reg, ActionConfirmLecturer, params); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, models.AuditActionLecturerConfirm, &before, reg)
	return reg, nil
}

// DeclineLecturer is the lecturer refusing a pending request; the slot is released and the
// student may choose again.
func (s *RegistrationService) DeclineLecturer(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error) {
	reg, err := s.loadForLecturer(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	next, ok := NextStatus(reg.Status, ActionDeclineLecturer)
	if !ok {
		return nil, transitionNotAllowed(reg.Status, ActionDeclineLecturer)
	}
	params := repository.TransitionParams{
		RegistrationID:    reg.ID,
		PeriodID:          reg.PeriodID,
		From:              reg.Status,
		To:                next,
		ReleaseLecturerID: reg.LecturerID(),
		ClearLecturer:     true,
		At:                s.clock.Now(),
	}
	before := *reg
	if err := s.apply(ctx, reg, ActionDeclineLecturer, params); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, models.AuditActionLecturerDecline, &before, reg)
	return reg, nil
}

// SubmitCompany stores the placement details during the company search window.
func (s *RegistrationService) SubmitCompany(ctx context.Context, registrationID string, req dto.SubmitCompanyRequest, actor *models.Actor) (*models.Registration, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	company := models.CompanyInfo{
		CompanyName:     strings.TrimSpace(req.CompanyName),
		CompanyAddress:  strings.TrimSpace(req.CompanyAddress),
		SupervisorName:  strings.TrimSpace(req.SupervisorName),
		SupervisorPhone: strings.TrimSpace(req.SupervisorPhone),
		Position:        strings.TrimSpace(req.Position),
	}
	if err := s.validator.Struct(company); err != nil {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "all company fields are required", map[string]interface{}{
			"missing": missingFields(err),
		})
	}

	reg, err := s.loadOwned(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	next, ok := NextStatus(reg.Status, ActionSubmitCompany)
	if !ok {
		return nil, transitionNotAllowed(reg.Status, ActionSubmitCompany)
	}
	if !reg.HasLecturer() {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "a lecturer must be assigned before company details are submitted", map[string]interface{}{
			"current_status": reg.Status,
			"action":         ActionSubmitCompany,
		})
	}

	period, err := s.periods.FindByID(ctx, reg.PeriodID)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	now := s.clock.Now()
	if window := period.CompanySubmissionWindow(); !window.Contains(now) {
		return nil, outsideWindow(reg.Status, ActionSubmitCompany, window)
	}

	params := repository.TransitionParams{
		RegistrationID: reg.ID,
		PeriodID:       reg.PeriodID,
		From:           reg.Status,
		To:             next,
		Company:        &company,
		At:             now,
	}
	if err := s.apply(ctx, reg, ActionSubmitCompany, params); err != nil {
		return nil, err
	}
	return reg, nil
}

// MarkPendingApproval moves a submitted placement into the admin review queue.
func (s *RegistrationService) MarkPendingApproval(ctx context.Context, registrationID string, req dto.RegistrationDecisionRequest, actor *models.Actor) (*models.Registration, error) {
	return s.decide(ctx, registrationID, ActionMarkPendingApproval, models.AuditActionRegistrationReview, req, actor)
}

// Approve accepts the placement and lays out the weekly reports.
func (s *RegistrationService) Approve(ctx context.Context, registrationID string, req dto.RegistrationDecisionRequest, actor *models.Actor) (*models.Registration, error) {
	reg, err := s.decide(ctx, registrationID, ActionApprove, models.AuditActionRegistrationApprove, req, actor)
	if err != nil {
		return nil, err
	}
	period, err := s.periods.FindByID(ctx, reg.PeriodID)
	if err != nil {
		return reg, nil
	}
	return s.advanceByCalendar(ctx, reg, period), nil
}

// Reject closes the registration. The lecturer reference is kept for history; its slot is released.
func (s *RegistrationService) Reject(ctx context.Context, registrationID string, req dto.RegistrationDecisionRequest, actor *models.Actor) (*models.Registration, error) {
	return s.decide(ctx, registrationID, ActionReject, models.AuditActionRegistrationReject, req, actor)
}

func (s *RegistrationService) decide(ctx context.Context, registrationID string, action Action, auditAction string, req dto.RegistrationDecisionRequest, actor *models.Actor) (*models.Registration, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reg, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	next, ok := NextStatus(reg.Status, action)
	if !ok {
		return nil, transitionNotAllowed(reg.Status, action)
	}

	params := repository.TransitionParams{
		RegistrationID: reg.ID,
		PeriodID:       reg.PeriodID,
		From:           reg.Status,
		To:             next,
		At:             s.clock.Now(),
	}
	if reg.HasLecturer() && reg.Status.ConsumesSlot() && !next.ConsumesSlot() {
		params.ReleaseLecturerID = reg.LecturerID()
	}
	if next.IsInternshipActive() && !reg.ReportsMaterialized {
		if err := s.withReports(ctx, reg, &params); err != nil {
			return nil, err
		}
	}

	before := *reg
	if err := s.apply(ctx, reg, action, params); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, auditAction, &before, map[string]interface{}{
		"registration": reg,
		"note":         optionalString(req.Note),
	})
	return reg, nil
}

// Complete confirms the end of an internship. The reporting threshold is advisory and
// returned alongside the result.
func (s *RegistrationService) Complete(ctx context.Context, registrationID string, actor *models.Actor) (*dto.CompletionResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reg, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (actor.Role != models.RoleLecturer || actor.UserID != reg.LecturerID()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned lecturer or an admin may confirm completion")
	}
	next, ok := NextStatus(reg.Status, ActionComplete)
	if !ok {
		return nil, transitionNotAllowed(reg.Status, ActionComplete)
	}

	params := repository.TransitionParams{
		RegistrationID: reg.ID,
		PeriodID:       reg.PeriodID,
		From:           reg.Status,
		To:             next,
		At:             s.clock.Now(),
	}
	if reg.HasLecturer() {
		params.ReleaseLecturerID = reg.LecturerID()
	}
	before := *reg
	if err := s.apply(ctx, reg, ActionComplete, params); err != nil {
		return nil, err
	}

	result := &dto.CompletionResult{Registration: reg}
	if s.progress != nil {
		progress, err := s.progress.Progress(ctx, reg.ID)
		if err != nil {
			s.logger.Warn("failed to summarise weekly reports", zap.String("registration_id", reg.ID), zap.Error(err))
		} else {
			result.Progress = progress
			if !progress.MeetsRequirement {
				s.logger.Info("registration completed below reporting threshold",
					zap.String("registration_id", reg.ID),
					zap.Int("submitted", progress.Submitted),
					zap.Int("required", progress.Required),
				)
			}
		}
	}
	s.recordAudit(ctx, actor, models.AuditActionRegistrationComplete, &before, result)
	return result, nil
}

// Override sets any status except not_started, keeping slot bookkeeping and report
// materialization consistent with the new status.
func (s *RegistrationService) Override(ctx context.Context, registrationID string, req dto.OverrideStatusRequest, actor *models.Actor) (*models.Registration, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	target, err := models.ParseRegistrationStatus(string(req.Status))
	if err != nil || target == models.RegistrationNotStarted {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "status must be a registration status other than not_started", map[string]interface{}{
			"status": req.Status,
		})
	}
	reg, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status == target {
		return reg, nil
	}
	if target.RequiresLecturer() && !reg.HasLecturer() {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "assign a lecturer before moving the registration to this status", map[string]interface{}{
			"current_status": reg.Status,
			"status":         target,
		})
	}

	params := repository.TransitionParams{
		RegistrationID: reg.ID,
		PeriodID:       reg.PeriodID,
		From:           reg.Status,
		To:             target,
		At:             s.clock.Now(),
	}
	if reg.HasLecturer() {
		holds := reg.Status.ConsumesSlot()
		switch {
		case target == models.RegistrationRegistered:
			params.ClearLecturer = true
			if holds {
				params.ReleaseLecturerID = reg.LecturerID()
			}
		case holds && !target.ConsumesSlot():
			params.ReleaseLecturerID = reg.LecturerID()
		case !holds && target.ConsumesSlot():
			params.ReserveLecturerID = reg.LecturerID()
		}
	}
	if target.IsInternshipActive() && !reg.ReportsMaterialized {
		if err := s.withReports(ctx, reg, &params); err != nil {
			return nil, err
		}
	}

	before := *reg
	if err := s.apply(ctx, reg, ActionOverride, params); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, models.AuditActionRegistrationOverride, &before, map[string]interface{}{
		"registration": reg,
		"note":         optionalString(req.Note),
	})
	return reg, nil
}

// SyncProgress applies calendar progression to every approved or running registration of a period.
func (s *RegistrationService) SyncProgress(ctx context.Context, periodID string, actor *models.Actor) (*dto.ProgressSyncResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	regs, err := s.regs.ListByPeriodAndStatus(ctx, period.ID, models.RegistrationApproved, models.RegistrationInProgress)
	if err != nil {
		return nil, internalError(err, "failed to list registrations")
	}

	result := &dto.ProgressSyncResult{PeriodID: period.ID, Failures: []string{}}
	for i := range regs {
		reg := &regs[i]
		started, completed, err := s.progressByCalendar(ctx, reg, period)
		if started {
			result.Started++
		}
		if completed {
			result.Completed++
		}
		if err != nil {
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", reg.ID, err))
		}
	}
	s.logger.Info("calendar progression applied",
		zap.String("period_id", period.ID),
		zap.Int("started", result.Started),
		zap.Int("completed", result.Completed),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// GetStatus reports where the calling student stands in a period; not_started when unregistered.
func (s *RegistrationService) GetStatus(ctx context.Context, periodID, studentID string, actor *models.Actor) (*dto.RegistrationStatusView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if studentID == "" || !actor.IsAdmin() {
		studentID = actor.UserID
	}
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	reg, err := s.regs.FindByStudentAndPeriod(ctx, studentID, period.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.RegistrationStatusView{PeriodID: period.ID, Status: models.RegistrationNotStarted}, nil
		}
		return nil, internalError(err, "failed to load registration")
	}
	reg = s.advanceByCalendar(ctx, reg, period)
	return &dto.RegistrationStatusView{PeriodID: period.ID, Status: reg.Status, Registration: reg}, nil
}

// Get returns one registration with display fields.
func (s *RegistrationService) Get(ctx context.Context, registrationID string, actor *models.Actor) (*models.RegistrationDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reg, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !canViewRegistration(actor, reg) {
		return nil, appErrors.ErrForbidden
	}
	if actor.UserID == reg.StudentID {
		if period, err := s.periods.FindByID(ctx, reg.PeriodID); err == nil {
			s.advanceByCalendar(ctx, reg, period)
		}
	}
	detail, err := s.regs.GetDetail(ctx, reg.ID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	return detail, nil
}

// List returns registrations visible to the caller.
func (s *RegistrationService) List(ctx context.Context, query dto.RegistrationQuery, actor *models.Actor) ([]models.RegistrationDetail, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.RegistrationFilter{
		PeriodID:  query.PeriodID,
		Status:    query.Status,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleLecturer:
		filter.LecturerID = actor.UserID
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	default:
		return nil, nil, appErrors.ErrForbidden
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 20
	}

	items, total, err := s.regs.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list registrations")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// advanceByCalendar applies calendar progression and returns the freshest view of reg.
// Failures are logged; the stored state is still returned.
func (s *RegistrationService) advanceByCalendar(ctx context.Context, reg *models.Registration, period *models.Period) *models.Registration {
	if _, _, err := s.progressByCalendar(ctx, reg, period); err != nil {
		s.logger.Warn("calendar progression failed", zap.String("registration_id", reg.ID), zap.Error(err))
	}
	return reg
}

// progressByCalendar starts an approved internship once internshipStart is reached and
// completes a running one after internshipEnd.
func (s *RegistrationService) progressByCalendar(ctx context.Context, reg *models.Registration, period *models.Period) (started, completed bool, err error) {
	now := s.clock.Now()
	window := period.InternshipWindow()

	if reg.Status == models.RegistrationApproved && !window.Before(now) {
		next, _ := NextStatus(reg.Status, ActionStart)
		params := repository.TransitionParams{
			RegistrationID: reg.ID,
			PeriodID:       reg.PeriodID,
			From:           reg.Status,
			To:             next,
			At:             now,
		}
		if !reg.ReportsMaterialized {
			params.Reports = BuildWeeklyReports(reg.ID, period.InternshipStart, now)
		}
		if err := s.apply(ctx, reg, ActionStart, params); err != nil {
			return false, false, err
		}
		started = true
	}

	if reg.Status == models.RegistrationInProgress && window.After(now) {
		next, _ := NextStatus(reg.Status, ActionComplete)
		params := repository.TransitionParams{
			RegistrationID: reg.ID,
			PeriodID:       reg.PeriodID,
			From:           reg.Status,
			To:             next,
			At:             now,
		}
		if reg.HasLecturer() {
			params.ReleaseLecturerID = reg.LecturerID()
		}
		if err := s.apply(ctx, reg, ActionComplete, params); err != nil {
			return started, false, err
		}
		completed = true
	}
	return started, completed, nil
}

func (s *RegistrationService) withReports(ctx context.Context, reg *models.Registration, params *repository.TransitionParams) error {
	period, err := s.periods.FindByID(ctx, reg.PeriodID)
	if err != nil {
		return notFoundOr(err, "period not found", "failed to load period")
	}
	params.Reports = BuildWeeklyReports(reg.ID, period.InternshipStart, params.At)
	return nil
}

// apply persists a transition and mirrors it onto reg.
func (s *RegistrationService) apply(ctx context.Context, reg *models.Registration, action Action, params repository.TransitionParams) error {
	if err := s.regs.ApplyTransition(ctx, params); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.metrics.RecordCapacityConflict()
		}
		return mapSlotError(err, reg.Status, action, "failed to update registration")
	}
	s.metrics.RecordTransition(action, params.From, params.To)

	reg.Status = params.To
	reg.StatusChangedAt = params.At
	reg.UpdatedAt = params.At
	if params.ClearLecturer {
		reg.AssignedLecturerID = nil
	}
	if params.Company != nil {
		reg.CompanyName = params.Company.CompanyName
		reg.CompanyAddress = params.Company.CompanyAddress
		reg.SupervisorName = params.Company.SupervisorName
		reg.SupervisorPhone = params.Company.SupervisorPhone
		reg.Position = params.Company.Position
	}
	if len(params.Reports) > 0 {
		reg.ReportsMaterialized = true
	}
	return nil
}

func (s *RegistrationService) load(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, err := s.regs.FindByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	return reg, nil
}

func (s *RegistrationService) loadOwned(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error) {
	reg, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != reg.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	return reg, nil
}

func (s *RegistrationService) loadForLecturer(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reg, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (actor.Role != models.RoleLecturer || actor.UserID != reg.LecturerID()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request is addressed to another lecturer")
	}
	return reg, nil
}

func (s *RegistrationService) recordAudit(ctx context.Context, actor *models.Actor, action string, before, after interface{}) {
	var resourceID *string
	if reg, ok := before.(*models.Registration); ok && reg != nil {
		id := reg.ID
		resourceID = &id
	}
	userID := actor.UserID
	emitAudit(ctx, s.audit, s.logger, registrationAgent, &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     action,
		Resource:   "internship_registration",
		ResourceID: resourceID,
		OldValues:  auditPayload(before),
		NewValues:  auditPayload(after),
		CreatedAt:  s.clock.Now(),
	})
}

// missingFields names the struct fields a validator run rejected.
func missingFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
