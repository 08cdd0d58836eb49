package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/repository"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
	"github.com/noah-isme/internship-api/pkg/export"
	"github.com/noah-isme/internship-api/pkg/storage"
)

type weeklyReportStore interface {
	ListByRegistration(ctx context.Context, registrationID string) ([]models.WeeklyReport, error)
	FindByWeek(ctx context.Context, registrationID string, week int) (*models.WeeklyReport, error)
	Submit(ctx context.Context, params repository.SubmitParams) error
	Review(ctx context.Context, params repository.ReviewParams) error
}

type registrationReader interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
}

type reportBlobStore interface {
	Put(ctx context.Context, owner, filename string, content io.Reader) (*storage.Blob, error)
	URL(owner, key string) (string, time.Time, error)
	Delete(key string) error
}

type calendarRenderer interface {
	Render(name string, events []export.CalendarEvent) ([]byte, error)
}

// WeeklyReportServiceConfig bounds uploaded report documents.
type WeeklyReportServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// WeeklyReportService handles submission, review and summaries of weekly reports.
type WeeklyReportService struct {
	reports       weeklyReportStore
	registrations registrationReader
	blobs         reportBlobStore
	calendar      calendarRenderer
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	clock         Clock
	cfg           WeeklyReportServiceConfig
	mimeSet       map[string]struct{}
}

// WeeklyReportServiceOption customises the service.
type WeeklyReportServiceOption func(*WeeklyReportService)

// WithWeeklyReportClock overrides the time source.
func WithWeeklyReportClock(clock Clock) WeeklyReportServiceOption {
	return func(s *WeeklyReportService) {
		s.clock = clock
	}
}

// WithWeeklyReportMetrics records submission and review counters.
func WithWeeklyReportMetrics(metrics *MetricsService) WeeklyReportServiceOption {
	return func(s *WeeklyReportService) {
		s.metrics = metrics
	}
}

// WithWeeklyReportCalendar overrides the iCalendar renderer.
func WithWeeklyReportCalendar(renderer calendarRenderer) WeeklyReportServiceOption {
	return func(s *WeeklyReportService) {
		if renderer != nil {
			s.calendar = renderer
		}
	}
}

// NewWeeklyReportService constructs the service.
func NewWeeklyReportService(reports weeklyReportStore, registrations registrationReader, blobs reportBlobStore, validate *validator.Validate, logger *zap.Logger, cfg WeeklyReportServiceConfig, opts ...WeeklyReportServiceOption) *WeeklyReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	svc := &WeeklyReportService{
		reports:       reports,
		registrations: registrations,
		blobs:         blobs,
		calendar:      export.NewCalendarExporter("", nil),
		validator:     validate,
		logger:        logger,
		clock:         SystemClock(time.UTC),
		cfg:           cfg,
		mimeSet:       mimeSet,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// BuildWeeklyReports lays out the fixed weekly windows of a registration starting at internshipStart.
func BuildWeeklyReports(registrationID string, internshipStart, createdAt time.Time) []models.WeeklyReport {
	start := models.DateOf(internshipStart)
	reports := make([]models.WeeklyReport, 0, models.WeeklyReportCount)
	for week := 1; week <= models.WeeklyReportCount; week++ {
		weekStart := start.AddDate(0, 0, 7*(week-1))
		reports = append(reports, models.WeeklyReport{
			RegistrationID: registrationID,
			WeekNumber:     week,
			StartDate:      weekStart,
			EndDate:        weekStart.AddDate(0, 0, 6),
			Status:         models.WeeklyReportNotSubmitted,
			CreatedAt:      createdAt,
			UpdatedAt:      createdAt,
		})
	}
	return reports
}

// SummarizeReports computes reporting progress. Reports of other registrations are ignored.
func SummarizeReports(registrationID string, reports []models.WeeklyReport) models.WeeklyReportProgress {
	progress := models.WeeklyReportProgress{
		RegistrationID: registrationID,
		Total:          models.WeeklyReportCount,
		Required:       models.CompletionThreshold,
	}
	var gradeSum float64
	var graded int
	for _, report := range reports {
		if report.RegistrationID != "" && report.RegistrationID != registrationID {
			continue
		}
		if report.Status.CountsAsSubmitted() {
			progress.Submitted++
		}
		if report.Status.IsLate() {
			progress.Late++
		}
		if report.Status.IsReviewed() {
			progress.Reviewed++
		}
		if report.Status == models.WeeklyReportApproved {
			progress.Approved++
		}
		if report.Grade != nil {
			gradeSum += *report.Grade
			graded++
		}
	}
	if graded > 0 {
		avg := math.Round(gradeSum/float64(graded)*100) / 100
		progress.AverageGrade = &avg
	}
	progress.MeetsRequirement = progress.Submitted >= progress.Required
	return progress
}

// SubmissionStatus decides the status a submission moves a report into.
func SubmissionStatus(current models.WeeklyReportStatus, endDate, now time.Time) (models.WeeklyReportStatus, bool) {
	late := models.DateOf(now).After(models.DateOf(endDate))
	switch current {
	case models.WeeklyReportNotSubmitted:
		if late {
			return models.WeeklyReportLateSubmitted, true
		}
		return models.WeeklyReportSubmitted, true
	case models.WeeklyReportNeedsRevision:
		if late {
			return models.WeeklyReportLateResubmitted, true
		}
		return models.WeeklyReportResubmitted, true
	}
	return "", false
}

// List returns the reports of a registration with signed file URLs and a progress summary.
func (s *WeeklyReportService) List(ctx context.Context, registrationID string, actor *models.Actor) (*dto.WeeklyReportList, error) {
	registration, err := s.loadVisible(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports.ListByRegistration(ctx, registration.ID)
	if err != nil {
		return nil, internalError(err, "failed to list weekly reports")
	}
	views := make([]dto.WeeklyReportView, 0, len(reports))
	for _, report := range reports {
		views = append(views, s.view(registration.ID, report))
	}
	return &dto.WeeklyReportList{
		Reports:  views,
		Progress: SummarizeReports(registration.ID, reports),
	}, nil
}

// Progress summarises reporting for a registration without access checks.
func (s *WeeklyReportService) Progress(ctx context.Context, registrationID string) (*models.WeeklyReportProgress, error) {
	reports, err := s.reports.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, internalError(err, "failed to load weekly reports")
	}
	progress := SummarizeReports(registrationID, reports)
	return &progress, nil
}

// Submit records a student submission for one week.
func (s *WeeklyReportService) Submit(ctx context.Context, registrationID string, week int, req dto.SubmitWeeklyReportRequest, actor *models.Actor) (*dto.WeeklyReportView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "report title is required")
	}
	if week < 1 || week > models.WeeklyReportCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week must be between 1 and %d", models.WeeklyReportCount))
	}

	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	if !actor.IsAdmin() && actor.UserID != registration.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the registered student may submit reports")
	}
	if !registration.Status.IsInternshipActive() {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "weekly reports are not open for this registration", map[string]interface{}{
			"current_status": registration.Status,
		})
	}

	report, err := s.reports.FindByWeek(ctx, registration.ID, week)
	if err != nil {
		return nil, notFoundOr(err, "weekly report not found", "failed to load weekly report")
	}

	now := s.clock.Now()
	next, ok := SubmissionStatus(report.Status, report.EndDate, now)
	if !ok {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "report cannot be submitted in its current status", map[string]interface{}{
			"current_status": report.Status,
			"allowed_from":   []models.WeeklyReportStatus{models.WeeklyReportNotSubmitted, models.WeeklyReportNeedsRevision},
		})
	}

	fileRef, uploaded, err := s.resolveFile(ctx, registration.ID, report, req)
	if err != nil {
		return nil, err
	}

	err = s.reports.Submit(ctx, repository.SubmitParams{
		ID:             report.ID,
		ExpectedStatus: report.Status,
		Status:         next,
		Title:          req.Title,
		FileRef:        fileRef,
		SubmittedAt:    now,
	})
	if err != nil {
		if uploaded {
			s.discardBlob(fileRef)
		}
		if errors.Is(err, repository.ErrStaleState) {
			return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "report changed concurrently, reload and retry", map[string]interface{}{
				"current_status": report.Status,
			})
		}
		return nil, internalError(err, "failed to submit weekly report")
	}

	s.metrics.RecordSubmission(next.IsLate())
	s.logger.Info("weekly report submitted",
		zap.String("registration_id", registration.ID),
		zap.Int("week", week),
		zap.String("status", string(next)),
	)

	report.Status = next
	report.ReportTitle = req.Title
	report.ReportFileRef = &fileRef
	report.SubmissionDate = &now
	report.UpdatedAt = now
	view := s.view(registration.ID, *report)
	return &view, nil
}

// Review records a lecturer decision and grade.
func (s *WeeklyReportService) Review(ctx context.Context, registrationID string, week int, req dto.ReviewWeeklyReportRequest, actor *models.Actor) (*dto.WeeklyReportView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	grade, err := normaliseGrade(req.Grade)
	if err != nil {
		return nil, err
	}
	switch req.Decision {
	case models.WeeklyReportApproved, models.WeeklyReportRejected, models.WeeklyReportNeedsRevision:
	default:
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "decision must be approved, rejected or needs_revision", map[string]interface{}{
			"decision": req.Decision,
		})
	}
	if week < 1 || week > models.WeeklyReportCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week must be between 1 and %d", models.WeeklyReportCount))
	}

	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	if !actor.IsAdmin() && (actor.Role != models.RoleLecturer || actor.UserID != registration.LecturerID()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned lecturer may review reports")
	}

	report, err := s.reports.FindByWeek(ctx, registration.ID, week)
	if err != nil {
		return nil, notFoundOr(err, "weekly report not found", "failed to load weekly report")
	}
	if !report.Status.AwaitingReview() {
		return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "report is not awaiting review", map[string]interface{}{
			"current_status": report.Status,
			"allowed_from": []models.WeeklyReportStatus{
				models.WeeklyReportSubmitted, models.WeeklyReportLateSubmitted,
				models.WeeklyReportResubmitted, models.WeeklyReportLateResubmitted,
			},
		})
	}

	now := s.clock.Now()
	feedback := optionalString(req.Feedback)
	err = s.reports.Review(ctx, repository.ReviewParams{
		ID:             report.ID,
		ExpectedStatus: report.Status,
		Status:         req.Decision,
		Grade:          grade,
		Feedback:       feedback,
		ReviewedBy:     actor.UserID,
		ReviewedAt:     now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "report changed concurrently, reload and retry", map[string]interface{}{
				"current_status": report.Status,
			})
		}
		return nil, internalError(err, "failed to review weekly report")
	}

	s.metrics.RecordReview(req.Decision)

	reviewer := actor.UserID
	report.Status = req.Decision
	report.Grade = &grade
	report.LecturerFeedback = feedback
	report.ReviewedBy = &reviewer
	report.ReviewedDate = &now
	report.UpdatedAt = now
	view := s.view(registration.ID, *report)
	return &view, nil
}

// Calendar renders the report windows of a registration as an iCalendar feed.
func (s *WeeklyReportService) Calendar(ctx context.Context, registrationID string, actor *models.Actor) ([]byte, error) {
	registration, err := s.loadVisible(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports.ListByRegistration(ctx, registration.ID)
	if err != nil {
		return nil, internalError(err, "failed to list weekly reports")
	}
	events := make([]export.CalendarEvent, 0, len(reports))
	for _, report := range reports {
		events = append(events, export.CalendarEvent{
			UID:         fmt.Sprintf("%s-week-%02d@internship", registration.ID, report.WeekNumber),
			Summary:     fmt.Sprintf("Weekly report %d", report.WeekNumber),
			Description: fmt.Sprintf("Submit by %s to stay on time. Status: %s", models.FormatDate(report.EndDate), report.Status),
			Start:       report.StartDate,
			End:         report.EndDate,
		})
	}
	payload, err := s.calendar.Render("Internship weekly reports", events)
	if err != nil {
		return nil, internalError(err, "failed to render report calendar")
	}
	return payload, nil
}

func (s *WeeklyReportService) loadVisible(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	if !canViewRegistration(actor, registration) {
		return nil, appErrors.ErrForbidden
	}
	return registration, nil
}

// resolveFile returns the file reference to attach and whether it was uploaded by this call.
func (s *WeeklyReportService) resolveFile(ctx context.Context, registrationID string, report *models.WeeklyReport, req dto.SubmitWeeklyReportRequest) (string, bool, error) {
	if req.File != nil {
		if req.File.Content == nil || req.File.Size <= 0 {
			return "", false, appErrors.Clone(appErrors.ErrValidation, "report file is empty")
		}
		if req.File.Size > s.cfg.MaxFileSize {
			return "", false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
		}
		mimeType := strings.ToLower(strings.TrimSpace(strings.Split(req.File.MimeType, ";")[0]))
		if _, ok := s.mimeSet[mimeType]; !ok {
			return "", false, appErrors.WithDetails(appErrors.ErrValidation, "unsupported file type", map[string]interface{}{
				"mime_type": req.File.MimeType,
			})
		}
		if s.blobs == nil {
			return "", false, internalError(errors.New("blob store not configured"), "failed to store report file")
		}
		blob, err := s.blobs.Put(ctx, registrationID, req.File.Filename, io.LimitReader(req.File.Content, s.cfg.MaxFileSize+1))
		if err != nil {
			return "", false, internalError(err, "failed to store report file")
		}
		if blob.Size > s.cfg.MaxFileSize {
			s.discardBlob(blob.Key)
			return "", false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
		}
		return blob.Key, true, nil
	}

	if ref := strings.TrimSpace(req.FileRef); ref != "" {
		if !strings.HasPrefix(ref, registrationID+"/") {
			return "", false, appErrors.Clone(appErrors.ErrValidation, "file reference does not belong to this registration")
		}
		return ref, false, nil
	}
	if report.ReportFileRef != nil && *report.ReportFileRef != "" {
		return *report.ReportFileRef, false, nil
	}
	return "", false, appErrors.Clone(appErrors.ErrValidation, "report file is required")
}

func (s *WeeklyReportService) discardBlob(key string) {
	if err := s.blobs.Delete(key); err != nil {
		s.logger.Warn("failed to remove unused report file", zap.String("key", key), zap.Error(err))
	}
}

func (s *WeeklyReportService) view(registrationID string, report models.WeeklyReport) dto.WeeklyReportView {
	view := dto.WeeklyReportView{WeeklyReport: report}
	if s.blobs == nil || report.ReportFileRef == nil || *report.ReportFileRef == "" {
		return view
	}
	url, _, err := s.blobs.URL(registrationID, *report.ReportFileRef)
	if err != nil {
		s.logger.Warn("failed to sign report url", zap.String("report_id", report.ID), zap.Error(err))
		return view
	}
	view.FileURL = &url
	return view
}

// normaliseGrade checks the [0,10] range and keeps one fractional digit.
func normaliseGrade(grade *float64) (float64, error) {
	if grade == nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "grade is required")
	}
	value := *grade
	if math.IsNaN(value) || value < 0 || value > models.MaxGrade {
		return 0, appErrors.WithDetails(appErrors.ErrValidation, "grade must be between 0 and 10", map[string]interface{}{
			"grade": value,
		})
	}
	return math.Round(value*10) / 10, nil
}

func canViewRegistration(actor *models.Actor, registration *models.Registration) bool {
	switch {
	case actor == nil || registration == nil:
		return false
	case actor.IsAdmin():
		return true
	case actor.Role == models.RoleStudent:
		return actor.UserID == registration.StudentID
	case actor.Role == models.RoleLecturer:
		return actor.UserID == registration.LecturerID()
	}
	return false
}
