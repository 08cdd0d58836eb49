package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/pkg/response"
)

type allocationService interface {
	List(ctx context.Context, periodID string, actor *models.Actor) ([]models.LecturerAllocationDetail, error)
	Upsert(ctx context.Context, periodID string, req dto.UpsertAllocationRequest, actor *models.Actor) (*models.LecturerAllocation, error)
	Delete(ctx context.Context, periodID, lecturerID string, actor *models.Actor) error
	Assign(ctx context.Context, registrationID string, req dto.AssignLecturerRequest, actor *models.Actor) (*models.Registration, error)
	Unassign(ctx context.Context, registrationID string, actor *models.Actor) (*models.Registration, error)
	AutoAssign(ctx context.Context, periodID string, actor *models.Actor) (*models.AutoAssignResult, error)
}

// AllocationHandler exposes lecturer capacity and assignment endpoints.
type AllocationHandler struct {
	service allocationService
}

// NewAllocationHandler builds a new handler.
func NewAllocationHandler(service allocationService) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// List godoc
// @Summary List lecturer allocations of a period with remaining capacity
// @Tags Allocations
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Upsert godoc
// @Summary Set a lecturer's capacity for a period
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body dto.UpsertAllocationRequest true "Allocation payload"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/allocations [put]
func (h *AllocationHandler) Upsert(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.UpsertAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid allocation payload"))
		return
	}
	allocation, err := h.service.Upsert(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// Delete godoc
// @Summary Remove an unused lecturer allocation
// @Tags Allocations
// @Param id path string true "Period ID"
// @Param lecturerId path string true "Lecturer ID"
// @Success 204
// @Router /periods/{id}/allocations/{lecturerId} [delete]
func (h *AllocationHandler) Delete(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("lecturerId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AutoAssign godoc
// @Summary Assign lecturers to every registered student without one
// @Tags Allocations
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/auto-assign [post]
func (h *AllocationHandler) AutoAssign(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	result, err := h.service.AutoAssign(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Assign godoc
// @Summary Manually assign or replace a registration's lecturer
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.AssignLecturerRequest true "Lecturer"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/assignment [put]
func (h *AllocationHandler) Assign(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.AssignLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid assignment payload"))
		return
	}
	registration, err := h.service.Assign(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Unassign godoc
// @Summary Release a registration's lecturer
// @Tags Allocations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/assignment [delete]
func (h *AllocationHandler) Unassign(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	registration, err := h.service.Unassign(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}
