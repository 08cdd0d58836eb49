package models

import "time"

// Student is the profile the identity provider exposes for a student account.
// Department, cohort year and prior internship status feed the eligibility filter;
// an absent attribute never satisfies a non-empty target set.
type Student struct {
	ID               string    `db:"id" json:"id"`
	StudentNumber    string    `db:"student_number" json:"student_number"`
	FullName         string    `db:"full_name" json:"full_name"`
	Department       *string   `db:"department" json:"department,omitempty"`
	CohortYear       *string   `db:"cohort_year" json:"cohort_year,omitempty"`
	InternshipStatus *string   `db:"internship_status" json:"internship_status,omitempty"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Lecturer is a supervising lecturer profile.
type Lecturer struct {
	ID                   string    `db:"id" json:"id"`
	EmployeeNumber       string    `db:"employee_number" json:"employee_number"`
	FullName             string    `db:"full_name" json:"full_name"`
	Department           *string   `db:"department" json:"department,omitempty"`
	RestrictToDepartment bool      `db:"restrict_to_department" json:"restrict_to_department"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}
