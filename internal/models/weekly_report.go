package models

import (
	"fmt"
	"time"
)

const (
	// WeeklyReportCount is the fixed number of weekly reports per registration.
	WeeklyReportCount = 13
	// CompletionThreshold is the advisory number of submitted reports for completion.
	CompletionThreshold = 8
	// MaxGrade is the upper bound of a weekly report grade.
	MaxGrade = 10.0
)

// WeeklyReportStatus is the state of one weekly report.
type WeeklyReportStatus string

// Weekly report statuses. The string values are part of the external contract.
const (
	WeeklyReportNotSubmitted    WeeklyReportStatus = "not_submitted"
	WeeklyReportSubmitted       WeeklyReportStatus = "submitted"
	WeeklyReportLateSubmitted   WeeklyReportStatus = "late_submitted"
	WeeklyReportResubmitted     WeeklyReportStatus = "resubmitted"
	WeeklyReportLateResubmitted WeeklyReportStatus = "late_resubmitted"
	WeeklyReportApproved        WeeklyReportStatus = "approved"
	WeeklyReportRejected        WeeklyReportStatus = "rejected"
	WeeklyReportNeedsRevision   WeeklyReportStatus = "needs_revision"
)

// ParseWeeklyReportStatus validates a raw status string.
func ParseWeeklyReportStatus(raw string) (WeeklyReportStatus, error) {
	switch s := WeeklyReportStatus(raw); s {
	case WeeklyReportNotSubmitted, WeeklyReportSubmitted, WeeklyReportLateSubmitted,
		WeeklyReportResubmitted, WeeklyReportLateResubmitted, WeeklyReportApproved,
		WeeklyReportRejected, WeeklyReportNeedsRevision:
		return s, nil
	}
	return "", fmt.Errorf("unknown weekly report status: %s", raw)
}

// AwaitingReview reports whether a lecturer may review the report.
func (s WeeklyReportStatus) AwaitingReview() bool {
	switch s {
	case WeeklyReportSubmitted, WeeklyReportLateSubmitted, WeeklyReportResubmitted, WeeklyReportLateResubmitted:
		return true
	}
	return false
}

// IsReviewed reports whether the report carries a lecturer decision.
func (s WeeklyReportStatus) IsReviewed() bool {
	switch s {
	case WeeklyReportApproved, WeeklyReportRejected, WeeklyReportNeedsRevision:
		return true
	}
	return false
}

// IsLate reports whether the submission was tagged late.
func (s WeeklyReportStatus) IsLate() bool {
	return s == WeeklyReportLateSubmitted || s == WeeklyReportLateResubmitted
}

// CountsAsSubmitted reports whether the report reached a submitted-or-beyond status.
func (s WeeklyReportStatus) CountsAsSubmitted() bool {
	return s != "" && s != WeeklyReportNotSubmitted
}

// WeeklyReport is one of the fixed weekly submission/review records of a registration.
type WeeklyReport struct {
	ID               string             `db:"id" json:"id"`
	RegistrationID   string             `db:"registration_id" json:"registration_id"`
	WeekNumber       int                `db:"week_number" json:"week_number"`
	StartDate        time.Time          `db:"start_date" json:"start_date"`
	EndDate          time.Time          `db:"end_date" json:"end_date"`
	Status           WeeklyReportStatus `db:"status" json:"status"`
	SubmissionDate   *time.Time         `db:"submission_date" json:"submission_date,omitempty"`
	ReportTitle      string             `db:"report_title" json:"report_title"`
	ReportFileRef    *string            `db:"report_file_ref" json:"report_file_ref,omitempty"`
	Grade            *float64           `db:"grade" json:"grade,omitempty"`
	LecturerFeedback *string            `db:"lecturer_feedback" json:"lecturer_feedback,omitempty"`
	ReviewedDate     *time.Time         `db:"reviewed_date" json:"reviewed_date,omitempty"`
	ReviewedBy       *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// WeeklyReportProgress summarises reporting for a registration.
type WeeklyReportProgress struct {
	RegistrationID   string   `json:"registration_id"`
	Total            int      `json:"total"`
	Submitted        int      `json:"submitted"`
	Late             int      `json:"late"`
	Reviewed         int      `json:"reviewed"`
	Approved         int      `json:"approved"`
	AverageGrade     *float64 `json:"average_grade,omitempty"`
	Required         int      `json:"required"`
	MeetsRequirement bool     `json:"meets_requirement"`
}
