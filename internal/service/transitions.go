package service

import (
	"github.com/noah-isme/internship-api/internal/models"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

// Action is a registration lifecycle trigger.
type Action string

// Registration lifecycle actions.
const (
	ActionRegister            Action = "register"
	ActionChooseLecturer      Action = "choose_lecturer"
	ActionRequestLecturer     Action = "request_lecturer"
	ActionConfirmLecturer     Action = "confirm_lecturer"
	ActionDeclineLecturer     Action = "decline_lecturer"
	ActionDeferToAutoAssign   Action = "defer_to_auto_assign"
	ActionAutoAssign          Action = "auto_assign"
	ActionAdminAssign         Action = "admin_assign"
	ActionAdminUnassign       Action = "admin_unassign"
	ActionSubmitCompany       Action = "submit_company"
	ActionMarkPendingApproval Action = "mark_pending_approval"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionStart               Action = "start"
	ActionComplete            Action = "complete"
	ActionOverride            Action = "override"
)

type statusMap map[models.RegistrationStatus]models.RegistrationStatus

// transitionTable lists every permitted (from, action) pair and its target status.
// Status override is not table driven.
var transitionTable = map[Action]statusMap{
	ActionRegister: {
		models.RegistrationNotStarted: models.RegistrationRegistered,
	},
	ActionChooseLecturer: {
		models.RegistrationRegistered: models.RegistrationSearching,
	},
	ActionRequestLecturer: {
		models.RegistrationRegistered: models.RegistrationWaitingLecturer,
	},
	ActionConfirmLecturer: {
		models.RegistrationWaitingLecturer: models.RegistrationLecturerConfirmed,
	},
	ActionDeclineLecturer: {
		models.RegistrationWaitingLecturer: models.RegistrationRegistered,
	},
	ActionDeferToAutoAssign: {
		models.RegistrationRegistered: models.RegistrationRegistered,
	},
	ActionAutoAssign: {
		models.RegistrationRegistered: models.RegistrationSearching,
	},
	ActionAdminAssign: {
		models.RegistrationRegistered:        models.RegistrationSearching,
		models.RegistrationWaitingLecturer:   models.RegistrationSearching,
		models.RegistrationSearching:         models.RegistrationSearching,
		models.RegistrationLecturerConfirmed: models.RegistrationLecturerConfirmed,
		models.RegistrationCompanySubmitted:  models.RegistrationCompanySubmitted,
		models.RegistrationPendingApproval:   models.RegistrationPendingApproval,
		models.RegistrationApproved:          models.RegistrationApproved,
		models.RegistrationInProgress:        models.RegistrationInProgress,
		models.RegistrationAssignedToProject: models.RegistrationAssignedToProject,
	},
	ActionAdminUnassign: {
		models.RegistrationSearching:         models.RegistrationRegistered,
		models.RegistrationWaitingLecturer:   models.RegistrationRegistered,
		models.RegistrationLecturerConfirmed: models.RegistrationRegistered,
	},
	ActionSubmitCompany: {
		models.RegistrationSearching:         models.RegistrationCompanySubmitted,
		models.RegistrationLecturerConfirmed: models.RegistrationCompanySubmitted,
		models.RegistrationCompanySubmitted:  models.RegistrationCompanySubmitted,
	},
	ActionMarkPendingApproval: {
		models.RegistrationCompanySubmitted: models.RegistrationPendingApproval,
	},
	ActionApprove: {
		models.RegistrationCompanySubmitted: models.RegistrationApproved,
		models.RegistrationPendingApproval:  models.RegistrationApproved,
	},
	ActionReject: {
		models.RegistrationRegistered:        models.RegistrationRejected,
		models.RegistrationSearching:         models.RegistrationRejected,
		models.RegistrationWaitingLecturer:   models.RegistrationRejected,
		models.RegistrationLecturerConfirmed: models.RegistrationRejected,
		models.RegistrationCompanySubmitted:  models.RegistrationRejected,
		models.RegistrationPendingApproval:   models.RegistrationRejected,
		models.RegistrationApproved:          models.RegistrationRejected,
		models.RegistrationInProgress:        models.RegistrationRejected,
		models.RegistrationAssignedToProject: models.RegistrationRejected,
	},
	ActionStart: {
		models.RegistrationApproved: models.RegistrationInProgress,
	},
	ActionComplete: {
		models.RegistrationInProgress:        models.RegistrationCompleted,
		models.RegistrationAssignedToProject: models.RegistrationCompleted,
	},
}

// NextStatus looks up the target status of an action taken from a status.
func NextStatus(from models.RegistrationStatus, action Action) (models.RegistrationStatus, bool) {
	targets, ok := transitionTable[action]
	if !ok {
		return "", false
	}
	to, ok := targets[from]
	return to, ok
}

// AllowedFrom lists the statuses an action may start from.
func AllowedFrom(action Action) []models.RegistrationStatus {
	targets := transitionTable[action]
	allowed := make([]models.RegistrationStatus, 0, len(targets))
	for _, status := range models.RegistrationStatuses {
		if _, ok := targets[status]; ok {
			allowed = append(allowed, status)
		}
	}
	return allowed
}

func transitionNotAllowed(current models.RegistrationStatus, action Action) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrTransitionNotAllowed,
		"action "+string(action)+" is not allowed from status "+string(current),
		map[string]interface{}{
			"current_status": current,
			"action":         action,
			"allowed_from":   AllowedFrom(action),
		})
}

func outsideWindow(current models.RegistrationStatus, action Action, window models.Window) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrTransitionNotAllowed,
		"action "+string(action)+" is only allowed between "+models.FormatDate(window.Start)+" and "+models.FormatDate(window.End),
		map[string]interface{}{
			"current_status": current,
			"action":         action,
			"window_start":   models.FormatDate(window.Start),
			"window_end":     models.FormatDate(window.End),
		})
}
