package dto

// PeriodRequest is the payload for creating or updating an internship period.
// Dates are calendar days in YYYY-MM-DD form.
type PeriodRequest struct {
	Semester                 string   `json:"semester" validate:"required"`
	AcademicYear             string   `json:"academic_year" validate:"required"`
	RegistrationStart        string   `json:"registration_start" validate:"required,datetime=2006-01-02"`
	RegistrationEnd          string   `json:"registration_end" validate:"required,datetime=2006-01-02"`
	LecturerSelectionEnd     string   `json:"lecturer_selection_end" validate:"required,datetime=2006-01-02"`
	InternshipStart          string   `json:"internship_start" validate:"required,datetime=2006-01-02"`
	SearchDeadline           string   `json:"search_deadline" validate:"required,datetime=2006-01-02"`
	InternshipEnd            string   `json:"internship_end" validate:"required,datetime=2006-01-02"`
	AllowRetake              bool     `json:"allow_retake"`
	MatchLecturerDepartment  bool     `json:"match_lecturer_department"`
	TargetDepartments        []string `json:"target_departments"`
	TargetCohorts            []string `json:"target_cohorts"`
	TargetInternshipStatuses []string `json:"target_internship_statuses"`
}
