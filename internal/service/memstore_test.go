package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/repository"
)

// memStore is a mutex-guarded record store mirroring the conditional updates of the SQL repositories.
type memStore struct {
	mu          sync.Mutex
	periods     map[string]*models.Period
	students    map[string]*models.Student
	lecturers   map[string]*models.Lecturer
	allocations map[string]*models.LecturerAllocation
	regs        map[string]*models.Registration
	reports     map[string][]models.WeeklyReport
	retakes     map[string]*models.RetakeRequest
	audits      []models.AuditLog
	writes      int
}

func newMemStore() *memStore {
	return &memStore{
		periods:     map[string]*models.Period{},
		students:    map[string]*models.Student{},
		lecturers:   map[string]*models.Lecturer{},
		allocations: map[string]*models.LecturerAllocation{},
		regs:        map[string]*models.Registration{},
		reports:     map[string][]models.WeeklyReport{},
		retakes:     map[string]*models.RetakeRequest{},
	}
}

func allocationKey(lecturerID, periodID string) string {
	return lecturerID + "|" + periodID
}

func (m *memStore) addPeriod(p *models.Period) {
	m.periods[p.ID] = p
}

func (m *memStore) addStudent(s *models.Student) {
	s.Active = true
	m.students[s.ID] = s
}

func (m *memStore) addLecturer(l *models.Lecturer) {
	l.Active = true
	m.lecturers[l.ID] = l
}

func (m *memStore) addAllocation(lecturerID, periodID string, max, assigned int) {
	m.allocations[allocationKey(lecturerID, periodID)] = &models.LecturerAllocation{
		ID:            "alloc-" + lecturerID,
		LecturerID:    lecturerID,
		PeriodID:      periodID,
		MaxStudents:   max,
		AssignedCount: assigned,
	}
}

func (m *memStore) addRegistration(r *models.Registration) {
	m.regs[r.ID] = r
}

func (m *memStore) allocation(lecturerID, periodID string) models.LecturerAllocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.allocations[allocationKey(lecturerID, periodID)]
}

func (m *memStore) registration(id string) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.regs[id]
	return &cp
}

func (m *memStore) reportsOf(id string) []models.WeeklyReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WeeklyReport(nil), m.reports[id]...)
}

func strPtr(v string) *string {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

// registrationStub implements the registration repository contract.
type registrationStub struct{ *memStore }

func (s registrationStub) Create(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.regs {
		if existing.StudentID == reg.StudentID && existing.PeriodID == reg.PeriodID {
			return repository.ErrDuplicate
		}
	}
	cp := *reg
	s.regs[reg.ID] = &cp
	s.writes++
	return nil
}

func (s registrationStub) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *reg
	return &cp, nil
}

func (s registrationStub) FindByStudentAndPeriod(ctx context.Context, studentID, periodID string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.regs {
		if reg.StudentID == studentID && reg.PeriodID == periodID {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s registrationStub) FindLatestCompletedByStudent(ctx context.Context, studentID string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Registration
	for _, reg := range s.regs {
		if reg.StudentID != studentID || reg.Status != models.RegistrationCompleted {
			continue
		}
		if latest == nil || reg.StatusChangedAt.After(latest.StatusChangedAt) {
			latest = reg
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (s registrationStub) GetDetail(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	reg, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.RegistrationDetail{Registration: *reg}, nil
}

func (s registrationStub) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.RegistrationDetail
	for _, reg := range s.regs {
		if filter.PeriodID != "" && reg.PeriodID != filter.PeriodID {
			continue
		}
		if filter.StudentID != "" && reg.StudentID != filter.StudentID {
			continue
		}
		if filter.LecturerID != "" && reg.LecturerID() != filter.LecturerID {
			continue
		}
		detail := models.RegistrationDetail{Registration: *reg}
		if student, ok := s.students[reg.StudentID]; ok {
			detail.StudentName = student.FullName
			detail.StudentNumber = student.StudentNumber
		}
		items = append(items, detail)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (s registrationStub) ListByPeriodAndStatus(ctx context.Context, periodID string, statuses ...models.RegistrationStatus) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Registration
	for _, reg := range s.regs {
		if reg.PeriodID != periodID {
			continue
		}
		for _, status := range statuses {
			if reg.Status == status {
				out = append(out, *reg)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s registrationStub) ListAutoAssignCandidates(ctx context.Context, periodID string) ([]models.AutoAssignCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AutoAssignCandidate
	for _, reg := range s.regs {
		if reg.PeriodID != periodID || reg.Status != models.RegistrationRegistered || reg.HasLecturer() {
			continue
		}
		candidate := models.AutoAssignCandidate{RegistrationID: reg.ID, StudentID: reg.StudentID, CreatedAt: reg.CreatedAt}
		if student, ok := s.students[reg.StudentID]; ok {
			candidate.Department = student.Department
		}
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RegistrationID < out[j].RegistrationID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s registrationStub) UpdatePreference(ctx context.Context, id string, expected models.RegistrationStatus, preferOwn bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok || reg.Status != expected || reg.HasLecturer() {
		return repository.ErrStaleState
	}
	reg.PreferOwnLecturer = preferOwn
	reg.UpdatedAt = at
	s.writes++
	return nil
}

func (s registrationStub) AssignLecturer(ctx context.Context, params repository.AssignLecturerParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	allocation, ok := s.allocations[allocationKey(params.LecturerID, params.PeriodID)]
	if !ok {
		return repository.ErrNoAllocation
	}
	if allocation.AssignedCount >= allocation.MaxStudents {
		return repository.ErrCapacityExceeded
	}
	reg, ok := s.regs[params.RegistrationID]
	if !ok || reg.Status != params.ExpectedStatus || reg.LecturerID() != params.PreviousLecturerID {
		return repository.ErrStaleState
	}
	allocation.AssignedCount++
	if params.PreviousLecturerID != "" {
		if previous, ok := s.allocations[allocationKey(params.PreviousLecturerID, params.PeriodID)]; ok && previous.AssignedCount > 0 {
			previous.AssignedCount--
		}
	}
	lecturerID := params.LecturerID
	reg.AssignedLecturerID = &lecturerID
	reg.Status = params.NewStatus
	reg.PreferOwnLecturer = params.PreferOwnLecturer
	reg.StatusChangedAt = params.At
	reg.UpdatedAt = params.At
	s.writes++
	return nil
}

func (s registrationStub) ApplyTransition(ctx context.Context, params repository.TransitionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[params.RegistrationID]
	if !ok || reg.Status != params.From {
		return repository.ErrStaleState
	}
	if params.ReserveLecturerID != "" {
		allocation, ok := s.allocations[allocationKey(params.ReserveLecturerID, params.PeriodID)]
		if !ok {
			return repository.ErrNoAllocation
		}
		if allocation.AssignedCount >= allocation.MaxStudents {
			return repository.ErrCapacityExceeded
		}
		allocation.AssignedCount++
	}
	if params.ReleaseLecturerID != "" {
		if allocation, ok := s.allocations[allocationKey(params.ReleaseLecturerID, params.PeriodID)]; ok && allocation.AssignedCount > 0 {
			allocation.AssignedCount--
		}
	}
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
		if len(s.reports[reg.ID]) == 0 {
			for i, report := range params.Reports {
				if report.ID == "" {
					report.ID = fmt.Sprintf("%s-week-%02d", reg.ID, i+1)
				}
				s.reports[reg.ID] = append(s.reports[reg.ID], report)
			}
		}
	}
	s.writes++
	return nil
}

type periodStub struct{ *memStore }

func (s periodStub) FindByID(ctx context.Context, id string) (*models.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	period, ok := s.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *period
	return &cp, nil
}

func (s periodStub) FindActive(ctx context.Context) (*models.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, period := range s.periods {
		if period.IsActive {
			cp := *period
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s periodStub) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Period
	for _, period := range s.periods {
		out = append(out, *period)
	}
	return out, len(out), nil
}

func (s periodStub) ExistsBySemesterAndYear(ctx context.Context, semester, academicYear, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, period := range s.periods {
		if period.ID != excludeID && period.Semester == semester && period.AcademicYear == academicYear {
			return true, nil
		}
	}
	return false, nil
}

func (s periodStub) Create(ctx context.Context, period *models.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *period
	s.periods[period.ID] = &cp
	s.writes++
	return nil
}

func (s periodStub) Update(ctx context.Context, period *models.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[period.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *period
	s.periods[period.ID] = &cp
	s.writes++
	return nil
}

func (s periodStub) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[id]; !ok {
		return sql.ErrNoRows
	}
	for _, period := range s.periods {
		period.IsActive = period.ID == id
	}
	s.writes++
	return nil
}

func (s periodStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.periods, id)
	return nil
}

func (s periodStub) CountRegistrations(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, reg := range s.regs {
		if reg.PeriodID == id {
			count++
		}
	}
	return count, nil
}

type studentStub struct{ *memStore }

func (s studentStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *student
	return &cp, nil
}

type lecturerStub struct{ *memStore }

func (s lecturerStub) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lecturer, ok := s.lecturers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *lecturer
	return &cp, nil
}

type allocationStub struct{ *memStore }

func (s allocationStub) Find(ctx context.Context, lecturerID, periodID string) (*models.LecturerAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allocation, ok := s.allocations[allocationKey(lecturerID, periodID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *allocation
	return &cp, nil
}

func (s allocationStub) ListByPeriod(ctx context.Context, periodID string) ([]models.LecturerAllocationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LecturerAllocationDetail
	for _, allocation := range s.allocations {
		if allocation.PeriodID != periodID {
			continue
		}
		lecturer, ok := s.lecturers[allocation.LecturerID]
		if !ok || !lecturer.Active {
			continue
		}
		out = append(out, models.LecturerAllocationDetail{
			LecturerAllocation:   *allocation,
			LecturerName:         lecturer.FullName,
			LecturerDepartment:   lecturer.Department,
			RestrictToDepartment: lecturer.RestrictToDepartment,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LecturerID < out[j].LecturerID })
	return out, nil
}

func (s allocationStub) Upsert(ctx context.Context, allocation *models.LecturerAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allocationKey(allocation.LecturerID, allocation.PeriodID)
	if existing, ok := s.allocations[key]; ok {
		if existing.AssignedCount > allocation.MaxStudents {
			return repository.ErrCapacityExceeded
		}
		existing.MaxStudents = allocation.MaxStudents
		allocation.ID = existing.ID
		allocation.AssignedCount = existing.AssignedCount
		return nil
	}
	if allocation.ID == "" {
		allocation.ID = "alloc-" + allocation.LecturerID
	}
	cp := *allocation
	s.allocations[key] = &cp
	return nil
}

func (s allocationStub) Delete(ctx context.Context, lecturerID, periodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allocationKey(lecturerID, periodID)
	allocation, ok := s.allocations[key]
	if !ok || allocation.AssignedCount != 0 {
		return repository.ErrStaleState
	}
	delete(s.allocations, key)
	return nil
}

type reportStub struct{ *memStore }

func (s reportStub) ListByRegistration(ctx context.Context, registrationID string) ([]models.WeeklyReport, error) {
	return s.reportsOf(registrationID), nil
}

func (s reportStub) FindByWeek(ctx context.Context, registrationID string, week int) (*models.WeeklyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, report := range s.reports[registrationID] {
		if report.WeekNumber == week {
			cp := report
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s reportStub) update(id string, expected models.WeeklyReportStatus, mutate func(*models.WeeklyReport)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for regID, reports := range s.reports {
		for i := range reports {
			if reports[i].ID != id {
				continue
			}
			if reports[i].Status != expected {
				return repository.ErrStaleState
			}
			mutate(&s.reports[regID][i])
			s.writes++
			return nil
		}
	}
	return repository.ErrStaleState
}

func (s reportStub) Submit(ctx context.Context, params repository.SubmitParams) error {
	return s.update(params.ID, params.ExpectedStatus, func(report *models.WeeklyReport) {
		at := params.SubmittedAt
		ref := params.FileRef
		report.Status = params.Status
		report.ReportTitle = params.Title
		report.ReportFileRef = &ref
		report.SubmissionDate = &at
	})
}

func (s reportStub) Review(ctx context.Context, params repository.ReviewParams) error {
	return s.update(params.ID, params.ExpectedStatus, func(report *models.WeeklyReport) {
		at := params.ReviewedAt
		grade := params.Grade
		reviewer := params.ReviewedBy
		report.Status = params.Status
		report.Grade = &grade
		report.LecturerFeedback = params.Feedback
		report.ReviewedBy = &reviewer
		report.ReviewedDate = &at
	})
}

type retakeStub struct{ *memStore }

func (s retakeStub) Create(ctx context.Context, request *models.RetakeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.retakes {
		if existing.StudentID == request.StudentID && existing.Status == models.RetakePending {
			return repository.ErrDuplicate
		}
	}
	cp := *request
	s.retakes[request.ID] = &cp
	return nil
}

func (s retakeStub) GetByID(ctx context.Context, id string) (*models.RetakeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.retakes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *request
	return &cp, nil
}

func (s retakeStub) FindPendingByStudent(ctx context.Context, studentID string) (*models.RetakeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.retakes {
		if request.StudentID == studentID && request.Status == models.RetakePending {
			cp := *request
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s retakeStub) HasUnusedApproval(ctx context.Context, studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.retakes {
		if request.StudentID != studentID || request.Status != models.RetakeApproved || request.ReviewedAt == nil {
			continue
		}
		used := false
		for _, reg := range s.regs {
			if reg.StudentID == studentID && reg.IsRetake && !reg.CreatedAt.Before(*request.ReviewedAt) {
				used = true
				break
			}
		}
		if !used {
			return true, nil
		}
	}
	return false, nil
}

func (s retakeStub) List(ctx context.Context, filter models.RetakeFilter) ([]models.RetakeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RetakeRequest
	for _, request := range s.retakes {
		if filter.StudentID != "" && request.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *request)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s retakeStub) Review(ctx context.Context, params repository.ReviewRetakeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.retakes[params.ID]
	if !ok || request.Status != models.RetakePending {
		return repository.ErrStaleState
	}
	at := params.ReviewedAt
	reviewer := params.ReviewedBy
	request.Status = params.Status
	request.AdminNote = params.Note
	request.ReviewedBy = &reviewer
	request.ReviewedAt = &at
	return nil
}

type auditStub struct{ *memStore }

func (s auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *log)
	return nil
}

// mustDate parses a calendar day.
func mustDate(day string) time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return t
}

// clockAt returns a clock frozen at 10:00 UTC of day.
func clockAt(day string) Clock {
	at := mustDate(day).Add(10 * time.Hour)
	return NewClock(func() time.Time { return at }, time.UTC)
}

// settableClock lets a test move time between calls.
type settableClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSettableClock(day string) *settableClock {
	return &settableClock{now: mustDate(day).Add(10 * time.Hour)}
}

func (c *settableClock) set(day string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = mustDate(day).Add(10 * time.Hour)
}

func (c *settableClock) Clock() Clock {
	return NewClock(func() time.Time {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.now
	}, time.UTC)
}

// fallPeriod follows the calendar used across the registration tests.
func fallPeriod() *models.Period {
	return &models.Period{
		ID:                   "period-1",
		Semester:             "Ganjil",
		AcademicYear:         "2025/2026",
		RegistrationStart:    mustDate("2025-09-01"),
		RegistrationEnd:      mustDate("2025-09-07"),
		LecturerSelectionEnd: mustDate("2025-09-14"),
		InternshipStart:      mustDate("2025-10-06"),
		SearchDeadline:       mustDate("2025-10-20"),
		InternshipEnd:        mustDate("2026-01-04"),
		IsActive:             true,
	}
}

var (
	adminActor = &models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
)

func studentActor(id string) *models.Actor {
	return &models.Actor{UserID: id, Role: models.RoleStudent}
}

func lecturerActor(id string) *models.Actor {
	return &models.Actor{UserID: id, Role: models.RoleLecturer}
}
