package models

import (
	"fmt"
	"time"
)

// RegistrationStatus is the lifecycle state of a student's participation in a period.
type RegistrationStatus string

// Registration statuses. The string values are part of the external contract.
const (
	RegistrationNotStarted        RegistrationStatus = "not_started"
	RegistrationRegistered        RegistrationStatus = "registered"
	RegistrationSearching         RegistrationStatus = "searching"
	RegistrationCompanySubmitted  RegistrationStatus = "company_submitted"
	RegistrationPendingApproval   RegistrationStatus = "pending_approval"
	RegistrationWaitingLecturer   RegistrationStatus = "waiting_lecturer"
	RegistrationLecturerConfirmed RegistrationStatus = "lecturer_confirmed"
	RegistrationApproved          RegistrationStatus = "approved"
	RegistrationInProgress        RegistrationStatus = "in_progress"
	RegistrationCompleted         RegistrationStatus = "completed"
	RegistrationRejected          RegistrationStatus = "rejected"
	RegistrationAssignedToProject RegistrationStatus = "assigned_to_project"
)

// RegistrationStatuses lists every status in declaration order.
var RegistrationStatuses = []RegistrationStatus{
	RegistrationNotStarted,
	RegistrationRegistered,
	RegistrationSearching,
	RegistrationCompanySubmitted,
	RegistrationPendingApproval,
	RegistrationWaitingLecturer,
	RegistrationLecturerConfirmed,
	RegistrationApproved,
	RegistrationInProgress,
	RegistrationCompleted,
	RegistrationRejected,
	RegistrationAssignedToProject,
}

// ParseRegistrationStatus validates a raw status string.
func ParseRegistrationStatus(raw string) (RegistrationStatus, error) {
	for _, status := range RegistrationStatuses {
		if string(status) == raw {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown registration status: %s", raw)
}

// IsTerminal reports whether no further lifecycle transition is possible.
func (s RegistrationStatus) IsTerminal() bool {
	return s == RegistrationCompleted || s == RegistrationRejected
}

// ConsumesSlot reports whether a registration in this status counts against its
// lecturer's allocation.
func (s RegistrationStatus) ConsumesSlot() bool {
	switch s {
	case RegistrationNotStarted, RegistrationCompleted, RegistrationRejected:
		return false
	}
	return true
}

// RequiresLecturer reports whether a registration may only hold this status
// with an assigned lecturer.
func (s RegistrationStatus) RequiresLecturer() bool {
	return s.ConsumesSlot() && s != RegistrationRegistered
}

// IsInternshipActive reports whether weekly reporting applies in this status.
func (s RegistrationStatus) IsInternshipActive() bool {
	switch s {
	case RegistrationApproved, RegistrationInProgress, RegistrationAssignedToProject:
		return true
	}
	return false
}

// Registration is one student's lifecycle record for one period.
type Registration struct {
	ID                  string             `db:"id" json:"id"`
	StudentID           string             `db:"student_id" json:"student_id"`
	PeriodID            string             `db:"period_id" json:"period_id"`
	Status              RegistrationStatus `db:"status" json:"status"`
	AssignedLecturerID  *string            `db:"assigned_lecturer_id" json:"assigned_lecturer_id,omitempty"`
	PreferOwnLecturer   bool               `db:"prefer_own_lecturer" json:"prefer_own_lecturer"`
	IsRetake            bool               `db:"is_retake" json:"is_retake"`
	CompanyName         string             `db:"company_name" json:"company_name"`
	CompanyAddress      string             `db:"company_address" json:"company_address"`
	SupervisorName      string             `db:"supervisor_name" json:"supervisor_name"`
	SupervisorPhone     string             `db:"supervisor_phone" json:"supervisor_phone"`
	Position            string             `db:"position" json:"position"`
	ReportsMaterialized bool               `db:"reports_materialized" json:"reports_materialized"`
	StatusChangedAt     time.Time          `db:"status_changed_at" json:"status_changed_at"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// HasLecturer reports whether a lecturer is assigned.
func (r *Registration) HasLecturer() bool {
	return r.AssignedLecturerID != nil && *r.AssignedLecturerID != ""
}

// LecturerID returns the assigned lecturer id or an empty string.
func (r *Registration) LecturerID() string {
	if r.AssignedLecturerID == nil {
		return ""
	}
	return *r.AssignedLecturerID
}

// CompanyInfo holds the five company fields a student submits.
type CompanyInfo struct {
	CompanyName     string `json:"company_name" validate:"required"`
	CompanyAddress  string `json:"company_address" validate:"required"`
	SupervisorName  string `json:"supervisor_name" validate:"required"`
	SupervisorPhone string `json:"supervisor_phone" validate:"required"`
	Position        string `json:"position" validate:"required"`
}

// RegistrationDetail enriches Registration with display fields.
type RegistrationDetail struct {
	Registration
	StudentName    string   `db:"student_name" json:"student_name"`
	StudentNumber  string   `db:"student_number" json:"student_number"`
	LecturerName   *string  `db:"lecturer_name" json:"lecturer_name,omitempty"`
	SubmittedCount int      `db:"submitted_count" json:"submitted_count"`
	AverageGrade   *float64 `db:"average_grade" json:"average_grade,omitempty"`
}

// RegistrationFilter provides filters for listing registrations.
type RegistrationFilter struct {
	PeriodID   string
	StudentID  string
	LecturerID string
	Status     []RegistrationStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
