package dto

// UpsertAllocationRequest sets a lecturer's capacity for a period. Zero means the configured default.
type UpsertAllocationRequest struct {
	LecturerID  string `json:"lecturer_id" validate:"required"`
	MaxStudents int    `json:"max_students" validate:"gte=0,lte=500"`
}

// AssignLecturerRequest is the admin manual assignment payload.
type AssignLecturerRequest struct {
	LecturerID string `json:"lecturer_id" validate:"required"`
}
