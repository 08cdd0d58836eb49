package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/repository"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

const (
	periodAgent          = "period-service"
	activePeriodCacheKey = "internship:period:active"
	periodCachePattern   = "internship:period:*"
)

type periodStore interface {
	List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, int, error)
	FindByID(ctx context.Context, id string) (*models.Period, error)
	FindActive(ctx context.Context) (*models.Period, error)
	ExistsBySemesterAndYear(ctx context.Context, semester, academicYear, excludeID string) (bool, error)
	Create(ctx context.Context, period *models.Period) error
	Update(ctx context.Context, period *models.Period) error
	SetActive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountRegistrations(ctx context.Context, id string) (int, error)
}

// PeriodService administers internship periods and answers which period a student may see.
type PeriodService struct {
	repo      periodStore
	students  studentReader
	retakes   retakeApprovalChecker
	cache     *CacheService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewPeriodService constructs the service. cache may be nil.
func NewPeriodService(repo periodStore, students studentReader, retakes retakeApprovalChecker, cache *CacheService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{
		repo:      repo,
		students:  students,
		retakes:   retakes,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// List returns paginated periods.
func (s *PeriodService) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, *models.Pagination, error) {
	periods, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list periods")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return periods, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a period by id.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.Period, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	return period, nil
}

// Active returns the single active period, served from cache when enabled.
func (s *PeriodService) Active(ctx context.Context) (*models.Period, error) {
	var cached models.Period
	if hit, _ := s.cache.Get(ctx, activePeriodCacheKey, &cached); hit {
		return &cached, nil
	}
	period, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, notFoundOr(err, "no active period", "failed to load active period")
	}
	_ = s.cache.Set(ctx, activePeriodCacheKey, period, s.cacheTTL)
	return period, nil
}

// Visible returns the periods the calling student may register for: the active period when the
// student passes the strict rules, or the relaxed rules with an unused retake approval.
func (s *PeriodService) Visible(ctx context.Context, actor *models.Actor) ([]models.Period, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	period, err := s.Active(ctx)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return []models.Period{}, nil
		}
		return nil, err
	}
	if actor.IsAdmin() {
		return []models.Period{*period}, nil
	}
	if actor.Role != models.RoleStudent {
		return []models.Period{}, nil
	}

	student, err := s.students.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFoundOr(err, "student profile not found", "failed to load student")
	}
	if IsEligible(student, period, false) {
		return []models.Period{*period}, nil
	}
	if period.AllowRetake && s.retakes != nil {
		approved, err := s.retakes.HasUnusedApproval(ctx, student.ID)
		if err != nil {
			return nil, internalError(err, "failed to check retake approval")
		}
		if approved && IsEligible(student, period, true) {
			return []models.Period{*period}, nil
		}
	}
	return []models.Period{}, nil
}

// Create validates and stores a new period. New periods start inactive.
func (s *PeriodService) Create(ctx context.Context, req dto.PeriodRequest, actor *models.Actor) (*models.Period, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	period, err := s.buildPeriod(req)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsBySemesterAndYear(ctx, period.Semester, period.AcademicYear, "")
	if err != nil {
		return nil, internalError(err, "failed to validate period")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "a period with this semester and academic year already exists")
	}
	period.ID = uuid.NewString()
	if err := s.repo.Create(ctx, period); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "a period with this semester and academic year already exists")
		}
		return nil, internalError(err, "failed to create period")
	}
	s.invalidate(ctx)
	return period, nil
}

// Update replaces the editable fields of a period.
func (s *PeriodService) Update(ctx context.Context, id string, req dto.PeriodRequest, actor *models.Actor) (*models.Period, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	period, err := s.buildPeriod(req)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsBySemesterAndYear(ctx, period.Semester, period.AcademicYear, id)
	if err != nil {
		return nil, internalError(err, "failed to validate period")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "a period with this semester and academic year already exists")
	}
	period.ID = existing.ID
	period.IsActive = existing.IsActive
	period.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, period); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntity, "a period with this semester and academic year already exists")
		}
		return nil, internalError(err, "failed to update period")
	}
	s.invalidate(ctx)
	return period, nil
}

// SetActive activates one period and deactivates every other in a single step.
func (s *PeriodService) SetActive(ctx context.Context, id string, actor *models.Actor) (*models.Period, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id); err != nil {
		return nil, notFoundOr(err, "period not found", "failed to activate period")
	}
	s.invalidate(ctx)

	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	userID := actor.UserID
	periodID := period.ID
	emitAudit(ctx, s.audit, s.logger, periodAgent, &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     models.AuditActionPeriodActivate,
		Resource:   "internship_period",
		ResourceID: &periodID,
		NewValues:  auditPayload(period),
		CreatedAt:  time.Now().UTC(),
	})
	return period, nil
}

// Delete removes a period that has no registrations.
func (s *PeriodService) Delete(ctx context.Context, id string, actor *models.Actor) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFoundOr(err, "period not found", "failed to load period")
	}
	count, err := s.repo.CountRegistrations(ctx, id)
	if err != nil {
		return internalError(err, "failed to check period usage")
	}
	if count > 0 {
		return appErrors.WithDetails(appErrors.ErrConflict, "period has registrations", map[string]interface{}{
			"registrations": count,
		})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete period")
	}
	s.invalidate(ctx)
	return nil
}

func (s *PeriodService) buildPeriod(req dto.PeriodRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid period payload")
	}
	dates := make([]time.Time, 6)
	for i, raw := range []string{req.RegistrationStart, req.RegistrationEnd, req.LecturerSelectionEnd, req.InternshipStart, req.SearchDeadline, req.InternshipEnd} {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, validationError(err, "dates must use YYYY-MM-DD")
		}
		dates[i] = parsed
	}
	period := &models.Period{
		Semester:                 strings.TrimSpace(req.Semester),
		AcademicYear:             strings.TrimSpace(req.AcademicYear),
		RegistrationStart:        dates[0],
		RegistrationEnd:          dates[1],
		LecturerSelectionEnd:     dates[2],
		InternshipStart:          dates[3],
		SearchDeadline:           dates[4],
		InternshipEnd:            dates[5],
		AllowRetake:              req.AllowRetake,
		MatchLecturerDepartment:  req.MatchLecturerDepartment,
		TargetDepartments:        cleanTargets(req.TargetDepartments),
		TargetCohorts:            cleanTargets(req.TargetCohorts),
		TargetInternshipStatuses: cleanTargets(req.TargetInternshipStatuses),
	}
	if err := ValidatePeriodDates(period); err != nil {
		return nil, err
	}
	return period, nil
}

// ValidatePeriodDates enforces the ordering of the registration and internship boundaries.
func ValidatePeriodDates(period *models.Period) error {
	checks := []struct {
		earlier, later time.Time
		rule           string
	}{
		{period.RegistrationStart, period.RegistrationEnd, "registration_start <= registration_end"},
		{period.RegistrationEnd, period.LecturerSelectionEnd, "registration_end <= lecturer_selection_end"},
		{period.InternshipStart, period.SearchDeadline, "internship_start <= search_deadline"},
		{period.SearchDeadline, period.InternshipEnd, "search_deadline <= internship_end"},
	}
	for _, check := range checks {
		if models.DateOf(check.earlier).After(models.DateOf(check.later)) {
			return appErrors.WithDetails(appErrors.ErrValidation, "period dates are out of order", map[string]interface{}{
				"rule": check.rule,
			})
		}
	}
	return nil
}

func cleanTargets(values []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func (s *PeriodService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, periodCachePattern)
}
