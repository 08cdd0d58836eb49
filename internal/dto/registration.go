package dto

import "github.com/noah-isme/internship-api/internal/models"

// CreateRegistrationRequest registers a student for a period. StudentID is honoured only for admins.
type CreateRegistrationRequest struct {
	PeriodID  string `json:"period_id" validate:"required"`
	StudentID string `json:"student_id"`
}

// ChooseLecturerRequest selects a lecturer directly or asks for confirmation.
type ChooseLecturerRequest struct {
	LecturerID          string `json:"lecturer_id" validate:"required"`
	RequireConfirmation bool   `json:"require_confirmation"`
}

// SubmitCompanyRequest carries the five company fields.
type SubmitCompanyRequest struct {
	CompanyName     string `json:"company_name" validate:"required"`
	CompanyAddress  string `json:"company_address" validate:"required"`
	SupervisorName  string `json:"supervisor_name" validate:"required"`
	SupervisorPhone string `json:"supervisor_phone" validate:"required"`
	Position        string `json:"position" validate:"required"`
}

// RegistrationDecisionRequest carries an optional note for admin decisions.
type RegistrationDecisionRequest struct {
	Note string `json:"note"`
}

// OverrideStatusRequest sets any status except not_started.
type OverrideStatusRequest struct {
	Status models.RegistrationStatus `json:"status" validate:"required"`
	Note   string                    `json:"note"`
}

// RegistrationQuery mirrors supported listing filters.
type RegistrationQuery struct {
	PeriodID  string
	Status    []models.RegistrationStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RegistrationStatusView answers "where am I in this period", including not_started.
type RegistrationStatusView struct {
	PeriodID     string                    `json:"period_id"`
	Status       models.RegistrationStatus `json:"status"`
	Registration *models.Registration      `json:"registration,omitempty"`
}

// CompletionResult pairs a completed registration with its advisory reporting summary.
type CompletionResult struct {
	Registration *models.Registration         `json:"registration"`
	Progress     *models.WeeklyReportProgress `json:"progress"`
}

// ProgressSyncResult summarises a calendar progression run.
type ProgressSyncResult struct {
	PeriodID  string   `json:"period_id"`
	Started   int      `json:"started"`
	Completed int      `json:"completed"`
	Failures  []string `json:"failures"`
}
