package models

import "time"

// DefaultLecturerCapacity is used when an allocation is created without a capacity.
const DefaultLecturerCapacity = 20

// LecturerAllocation is a lecturer's declared capacity for a period together with
// the number of slots currently consumed.
type LecturerAllocation struct {
	ID            string    `db:"id" json:"id"`
	LecturerID    string    `db:"lecturer_id" json:"lecturer_id"`
	PeriodID      string    `db:"period_id" json:"period_id"`
	MaxStudents   int       `db:"max_students" json:"max_students"`
	AssignedCount int       `db:"assigned_count" json:"assigned_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SlotsRemaining returns the free capacity, never negative.
func (a *LecturerAllocation) SlotsRemaining() int {
	if a.AssignedCount >= a.MaxStudents {
		return 0
	}
	return a.MaxStudents - a.AssignedCount
}

// HasCapacity reports whether one more student fits.
func (a *LecturerAllocation) HasCapacity() bool {
	return a.AssignedCount < a.MaxStudents
}

// LecturerAllocationDetail joins the allocation with lecturer attributes used for
// department affinity.
type LecturerAllocationDetail struct {
	LecturerAllocation
	LecturerName         string  `db:"lecturer_name" json:"lecturer_name"`
	LecturerDepartment   *string `db:"lecturer_department" json:"lecturer_department,omitempty"`
	RestrictToDepartment bool    `db:"restrict_to_department" json:"restrict_to_department"`
}

// AutoAssignCandidate is a registration waiting for automatic lecturer assignment.
type AutoAssignCandidate struct {
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	Department     *string   `db:"department" json:"department,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// AutoAssignFailure explains why a candidate stayed unassigned.
type AutoAssignFailure struct {
	RegistrationID string `json:"registration_id"`
	StudentID      string `json:"student_id"`
	Reason         string `json:"reason"`
}

// AutoAssignResult aggregates the outcome of an auto-assignment run.
type AutoAssignResult struct {
	PeriodID      string              `json:"period_id"`
	AssignedCount int                 `json:"assigned_count"`
	Assignments   []AutoAssignment    `json:"assignments"`
	Failures      []AutoAssignFailure `json:"failures"`
}

// AutoAssignment records one successful assignment of a run.
type AutoAssignment struct {
	RegistrationID string `json:"registration_id"`
	StudentID      string `json:"student_id"`
	LecturerID     string `json:"lecturer_id"`
}
