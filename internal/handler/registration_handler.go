package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, req dto.CreateRegistrationRequest, actor *models.Actor) (*models.Registration, error)
	ChooseLecturer(ctx context.Context, registrationID string, req dto.ChooseLecturerRequest, actor *models.Actor) (*models.Registration, error)
	DeferToAutoAssign(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error)
	ConfirmLecturer(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error)
	DeclineLecturer(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error)
	SubmitCompany(ctx context.Context, registrationID string, req dto.SubmitCompanyRequest, actor *models.Actor) (*models.Registration, error)
	MarkPendingApproval(ctx context.Context, registrationID string, req dto.RegistrationDecisionRequest, actor *models.Actor) (*models.Registration, error)
	Approve(ctx context.Context, registrationID string, req dto.RegistrationDecisionRequest, actor *models.Actor) (*models.Registration, error)
	Reject(ctx context.Context, registrationID string, req dto.RegistrationDecisionRequest, actor *models.Actor) (*models.Registration, error)
	Complete(ctx context.Context, registrationID string, actor *models.Actor) (*dto.CompletionResult, error)
	Override(ctx context.Context, registrationID string, req dto.OverrideStatusRequest, actor *models.Actor) (*models.Registration, error)
	SyncProgress(ctx context.Context, periodID string, actor *models.Actor) (*dto.ProgressSyncResult, error)
	GetStatus(ctx context.Context, periodID, studentID string, actor *models.Actor) (*dto.RegistrationStatusView, error)
	Get(ctx context.Context, registrationID string, actor *models.Actor) (*models.RegistrationDetail, error)
	List(ctx context.Context, query dto.RegistrationQuery, actor *models.Actor) ([]models.RegistrationDetail, *models.Pagination, error)
}

// RegistrationHandler exposes the registration lifecycle.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler builds a new handler.
func NewRegistrationHandler(service registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// Register godoc
// @Summary Register for an internship period
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid registration payload"))
		return
	}
	registration, err := h.service.Register(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// List godoc
// @Summary List registrations visible to the caller
// @Tags Registrations
// @Produce json
// @Param period_id query string false "Period ID"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	query := dto.RegistrationQuery{
		PeriodID:  c.Query("period_id"),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "page_size"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.RegistrationStatus(status))
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Status godoc
// @Summary Get a student's registration status in a period
// @Tags Registrations
// @Produce json
// @Param id path string true "Period ID"
// @Param student_id query string false "Student ID (admins only)"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/registration-status [get]
func (h *RegistrationHandler) Status(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	view, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), c.Query("student_id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ChooseLecturer godoc
// @Summary Choose a supervising lecturer
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.ChooseLecturerRequest true "Lecturer choice"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/lecturer [post]
func (h *RegistrationHandler) ChooseLecturer(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.ChooseLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid lecturer choice"))
		return
	}
	registration, err := h.service.ChooseLecturer(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// DeferToAutoAssign godoc
// @Summary Leave lecturer selection to auto-assignment
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/defer-lecturer [post]
func (h *RegistrationHandler) DeferToAutoAssign(c *gin.Context) {
	h.simple(c, h.service.DeferToAutoAssign)
}

// ConfirmLecturer godoc
// @Summary Confirm a pending supervision request
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/lecturer/confirm [post]
func (h *RegistrationHandler) ConfirmLecturer(c *gin.Context) {
	h.simple(c, h.service.ConfirmLecturer)
}

// DeclineLecturer godoc
// @Summary Decline a pending supervision request
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/lecturer/decline [post]
func (h *RegistrationHandler) DeclineLecturer(c *gin.Context) {
	h.simple(c, h.service.DeclineLecturer)
}

// SubmitCompany godoc
// @Summary Submit or resubmit company details
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.SubmitCompanyRequest true "Company details"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/company [put]
func (h *RegistrationHandler) SubmitCompany(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	// Field completeness is reported by the service with the names of the missing fields.
	var req dto.SubmitCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid company payload"))
		return
	}
	registration, err := h.service.SubmitCompany(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// MarkPendingApproval godoc
// @Summary Move a company submission under review
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.RegistrationDecisionRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/review [post]
func (h *RegistrationHandler) MarkPendingApproval(c *gin.Context) {
	h.decision(c, h.service.MarkPendingApproval)
}

// Approve godoc
// @Summary Approve a company submission
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.RegistrationDecisionRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	h.decision(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a company submission
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.RegistrationDecisionRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	h.decision(c, h.service.Reject)
}

// Complete godoc
// @Summary Complete an internship
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/complete [post]
func (h *RegistrationHandler) Complete(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	result, err := h.service.Complete(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Override godoc
// @Summary Force a registration status
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.OverrideStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/status [put]
func (h *RegistrationHandler) Override(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid status override"))
		return
	}
	registration, err := h.service.Override(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// SyncProgress godoc
// @Summary Start and complete internships whose calendar dates have passed
// @Tags Registrations
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/progress-sync [post]
func (h *RegistrationHandler) SyncProgress(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	result, err := h.service.SyncProgress(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *RegistrationHandler) simple(c *gin.Context, op func(context.Context, string, *models.Actor) (*models.Registration, error)) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	registration, err := op(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// decision binds an optional note; an empty body is accepted.
func (h *RegistrationHandler) decision(c *gin.Context, op func(context.Context, string, dto.RegistrationDecisionRequest, *models.Actor) (*models.Registration, error)) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.RegistrationDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidPayload(err, "invalid decision payload"))
		return
	}
	registration, err := op(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}
