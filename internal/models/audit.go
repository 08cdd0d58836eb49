package models

import "time"

// Audit actions recorded for privileged decisions.
const (
	AuditActionPeriodActivate       = "PERIOD_ACTIVATE"
	AuditActionRegistrationReview   = "REGISTRATION_PENDING_APPROVAL"
	AuditActionRegistrationApprove  = "REGISTRATION_APPROVE"
	AuditActionRegistrationReject   = "REGISTRATION_REJECT"
	AuditActionRegistrationOverride = "REGISTRATION_STATUS_OVERRIDE"
	AuditActionRegistrationComplete = "REGISTRATION_COMPLETE"
	AuditActionLecturerAssign       = "LECTURER_ASSIGN"
	AuditActionLecturerUnassign     = "LECTURER_UNASSIGN"
	AuditActionLecturerConfirm      = "LECTURER_CONFIRM"
	AuditActionLecturerDecline      = "LECTURER_DECLINE"
	AuditActionAllocationUpsert     = "ALLOCATION_UPSERT"
	AuditActionAllocationDelete     = "ALLOCATION_DELETE"
	AuditActionAutoAssign           = "LECTURER_AUTO_ASSIGN"
	AuditActionRetakeReview         = "RETAKE_REVIEW"
	AuditActionRosterExport         = "ROSTER_EXPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
