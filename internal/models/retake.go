package models

import "time"

// RetakeStatus captures the workflow state of a retake request.
type RetakeStatus string

// Retake statuses. The string values are part of the external contract.
const (
	RetakePending  RetakeStatus = "pending"
	RetakeApproved RetakeStatus = "approved"
	RetakeRejected RetakeStatus = "rejected"
)

// RetakeRequest asks an admin to grant renewed eligibility for a future period.
type RetakeRequest struct {
	ID             string       `db:"id" json:"id"`
	StudentID      string       `db:"student_id" json:"student_id"`
	RegistrationID *string      `db:"registration_id" json:"registration_id,omitempty"`
	Reason         string       `db:"reason" json:"reason"`
	PreviousGrade  *float64     `db:"previous_grade" json:"previous_grade,omitempty"`
	Status         RetakeStatus `db:"status" json:"status"`
	AdminNote      *string      `db:"admin_note" json:"admin_note,omitempty"`
	ReviewedBy     *string      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RequestedAt    time.Time    `db:"requested_at" json:"requested_at"`
	ReviewedAt     *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// RetakeFilter constrains listing queries.
type RetakeFilter struct {
	StudentID string
	Status    []RetakeStatus
	Limit     int
	Offset    int
}

// RetakeEligibility explains whether a student may file a retake request.
type RetakeEligibility struct {
	StudentID               string  `json:"student_id"`
	Eligible                bool    `json:"eligible"`
	CompletedRegistrationID *string `json:"completed_registration_id,omitempty"`
	PendingRequestID        *string `json:"pending_request_id,omitempty"`
	Reason                  string  `json:"reason,omitempty"`
}
