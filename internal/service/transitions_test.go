package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/internship-api/internal/models"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

func TestNextStatus(t *testing.T) {
	cases := []struct {
		from   models.RegistrationStatus
		action Action
		to     models.RegistrationStatus
		ok     bool
	}{
		{models.RegistrationNotStarted, ActionRegister, models.RegistrationRegistered, true},
		{models.RegistrationRegistered, ActionChooseLecturer, models.RegistrationSearching, true},
		{models.RegistrationRegistered, ActionRequestLecturer, models.RegistrationWaitingLecturer, true},
		{models.RegistrationWaitingLecturer, ActionDeclineLecturer, models.RegistrationRegistered, true},
		{models.RegistrationSearching, ActionSubmitCompany, models.RegistrationCompanySubmitted, true},
		{models.RegistrationCompanySubmitted, ActionApprove, models.RegistrationApproved, true},
		{models.RegistrationApproved, ActionStart, models.RegistrationInProgress, true},
		{models.RegistrationAssignedToProject, ActionComplete, models.RegistrationCompleted, true},
		{models.RegistrationSearching, ActionChooseLecturer, "", false},
		{models.RegistrationRegistered, ActionSubmitCompany, "", false},
		{models.RegistrationCompleted, ActionReject, "", false},
		{models.RegistrationRejected, ActionApprove, "", false},
		{models.RegistrationRegistered, ActionOverride, "", false},
	}
	for _, tc := range cases {
		to, ok := NextStatus(tc.from, tc.action)
		assert.Equal(t, tc.ok, ok, "%s from %s", tc.action, tc.from)
		assert.Equal(t, tc.to, to, "%s from %s", tc.action, tc.from)
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for action, targets := range transitionTable {
		for from := range targets {
			assert.False(t, from.IsTerminal(), "%s leaves terminal status %s", action, from)
		}
	}
}

func TestTransitionNotAllowedDetails(t *testing.T) {
	err := transitionNotAllowed(models.RegistrationCompleted, ActionApprove)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTransitionNotAllowed))
	assert.Equal(t, models.RegistrationCompleted, err.Details["current_status"])
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationCompanySubmitted, models.RegistrationPendingApproval}, err.Details["allowed_from"])
}
