package dto

import "github.com/noah-isme/internship-api/internal/models"

// CreateRetakeRequest is submitted by a student who completed an internship.
type CreateRetakeRequest struct {
	Reason         string   `json:"reason" validate:"required"`
	RegistrationID string   `json:"registration_id"`
	PreviousGrade  *float64 `json:"previous_grade" validate:"omitempty,gte=0,lte=10"`
}

// ReviewRetakeRequest captures an admin decision. Note is mandatory when rejecting.
type ReviewRetakeRequest struct {
	Status models.RetakeStatus `json:"status" validate:"required,oneof=approved rejected"`
	Note   string              `json:"note"`
}

// RetakeQuery mirrors supported listing filters.
type RetakeQuery struct {
	Status []models.RetakeStatus
	Limit  int
	Offset int
}
