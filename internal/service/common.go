package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/repository"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// emitAudit persists an audit entry; failures are logged and never surface to the caller.
func emitAudit(ctx context.Context, recorder auditRecorder, logger *zap.Logger, agent string, log *models.AuditLog) {
	if recorder == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = agent
	if err := recorder.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func auditPayload(value interface{}) []byte {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return payload
}

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// notFoundOr maps sql.ErrNoRows to NotFound and anything else to an internal error.
func notFoundOr(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internalError(err, failure)
}

// mapSlotError translates repository sentinels raised by slot-consuming writes.
func mapSlotError(err error, current models.RegistrationStatus, action Action, failure string) error {
	switch {
	case errors.Is(err, repository.ErrCapacityExceeded):
		return appErrors.WithDetails(appErrors.ErrCapacityExceeded, "lecturer has no remaining capacity", map[string]interface{}{
			"action": action,
		})
	case errors.Is(err, repository.ErrNoAllocation):
		return appErrors.WithDetails(appErrors.ErrNotFound, "lecturer has no allocation in this period", map[string]interface{}{
			"action": action,
		})
	case errors.Is(err, repository.ErrStaleState):
		return appErrors.WithDetails(appErrors.ErrTransitionNotAllowed, "registration changed concurrently, reload and retry", map[string]interface{}{
			"current_status": current,
			"action":         action,
		})
	default:
		return internalError(err, failure)
	}
}

func requireActor(actor *models.Actor) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	return nil
}

func requireAdmin(actor *models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return nil
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}
