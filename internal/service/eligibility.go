package service

import (
	"strings"

	"github.com/noah-isme/internship-api/internal/models"
)

// Criterion names the eligibility rule a student failed.
type Criterion string

// Eligibility criteria reported with NotEligible errors.
const (
	CriterionDepartment  Criterion = "department"
	CriterionCohort      Criterion = "cohort"
	CriterionPriorStatus Criterion = "prior_status"
	CriterionRetake      Criterion = "retake"
)

// IsEligible reports whether the student satisfies every non-empty target set of the period.
// In relaxed mode only the department target applies.
func IsEligible(student *models.Student, period *models.Period, relaxed bool) bool {
	_, ok := CheckEligibility(student, period, relaxed)
	return ok
}

// CheckEligibility is IsEligible that also names the first unmet criterion.
func CheckEligibility(student *models.Student, period *models.Period, relaxed bool) (Criterion, bool) {
	if student == nil || period == nil {
		return CriterionDepartment, false
	}
	if !matchesTarget(period.TargetDepartments, student.Department) {
		return CriterionDepartment, false
	}
	if relaxed {
		return "", true
	}
	if !matchesTarget(period.TargetCohorts, student.CohortYear) {
		return CriterionCohort, false
	}
	if !matchesTarget(period.TargetInternshipStatuses, student.InternshipStatus) {
		return CriterionPriorStatus, false
	}
	return "", true
}

// matchesTarget treats an empty target set as unrestricted; otherwise the attribute must be
// present and equal to one entry, ignoring case and surrounding whitespace.
func matchesTarget(targets []string, value *string) bool {
	restricted := false
	for _, target := range targets {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		restricted = true
		if value != nil && strings.EqualFold(target, strings.TrimSpace(*value)) {
			return true
		}
	}
	return !restricted
}

// sameDepartment compares two optional department labels.
func sameDepartment(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}
