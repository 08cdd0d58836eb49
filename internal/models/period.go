package models

import (
	"time"

	"github.com/lib/pq"
)

// Period is one academic term's internship program instance.
type Period struct {
	ID                       string         `db:"id" json:"id"`
	Semester                 string         `db:"semester" json:"semester"`
	AcademicYear             string         `db:"academic_year" json:"academic_year"`
	RegistrationStart        time.Time      `db:"registration_start" json:"registration_start"`
	RegistrationEnd          time.Time      `db:"registration_end" json:"registration_end"`
	LecturerSelectionEnd     time.Time      `db:"lecturer_selection_end" json:"lecturer_selection_end"`
	InternshipStart          time.Time      `db:"internship_start" json:"internship_start"`
	SearchDeadline           time.Time      `db:"search_deadline" json:"search_deadline"`
	InternshipEnd            time.Time      `db:"internship_end" json:"internship_end"`
	IsActive                 bool           `db:"is_active" json:"is_active"`
	AllowRetake              bool           `db:"allow_retake" json:"allow_retake"`
	MatchLecturerDepartment  bool           `db:"match_lecturer_department" json:"match_lecturer_department"`
	TargetDepartments        pq.StringArray `db:"target_departments" json:"target_departments"`
	TargetCohorts            pq.StringArray `db:"target_cohorts" json:"target_cohorts"`
	TargetInternshipStatuses pq.StringArray `db:"target_internship_statuses" json:"target_internship_statuses"`
	CreatedAt                time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time      `db:"updated_at" json:"updated_at"`
}

// RegistrationWindow is the span in which students may self-register.
func (p *Period) RegistrationWindow() Window {
	return NewWindow(p.RegistrationStart, p.RegistrationEnd)
}

// LecturerSelectionWindow is the span in which a student picks a lecturer directly.
func (p *Period) LecturerSelectionWindow() Window {
	return NewWindow(p.RegistrationEnd, p.LecturerSelectionEnd)
}

// CompanySubmissionWindow is the company search span.
func (p *Period) CompanySubmissionWindow() Window {
	return NewWindow(p.InternshipStart, p.SearchDeadline)
}

// InternshipWindow spans the whole internship.
func (p *Period) InternshipWindow() Window {
	return NewWindow(p.InternshipStart, p.InternshipEnd)
}

// PeriodFilter defines filters supported by list endpoints.
type PeriodFilter struct {
	AcademicYear string
	IsActive     *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// Window is an inclusive calendar-day range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow builds a window normalised to calendar days.
func NewWindow(start, end time.Time) Window {
	return Window{Start: DateOf(start), End: DateOf(end)}
}

// Contains reports whether the calendar day of now lies inside the window, both ends included.
func (w Window) Contains(now time.Time) bool {
	day := DateOf(now)
	return !day.Before(w.Start) && !day.After(w.End)
}

// Before reports whether now falls on a day before the window opens.
func (w Window) Before(now time.Time) bool {
	return DateOf(now).Before(w.Start)
}

// After reports whether now falls on a day after the window closes.
func (w Window) After(now time.Time) bool {
	return DateOf(now).After(w.End)
}

// DateOf truncates a timestamp to its calendar day, read in the timestamp's own
// location, and returns that day as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DateOf(t).Format("2006-01-02")
}
