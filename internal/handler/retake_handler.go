package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/pkg/response"
)

type retakeService interface {
	CanRequest(ctx context.Context, studentID string, actor *models.Actor) (*models.RetakeEligibility, error)
	Submit(ctx context.Context, req dto.CreateRetakeRequest, actor *models.Actor) (*models.RetakeRequest, error)
	Review(ctx context.Context, requestID string, req dto.ReviewRetakeRequest, actor *models.Actor) (*models.RetakeRequest, error)
	List(ctx context.Context, query dto.RetakeQuery, actor *models.Actor) ([]models.RetakeRequest, error)
}

// RetakeHandler exposes retake request endpoints.
type RetakeHandler struct {
	service retakeService
}

// NewRetakeHandler builds a new handler.
func NewRetakeHandler(service retakeService) *RetakeHandler {
	return &RetakeHandler{service: service}
}

// Eligibility godoc
// @Summary Check whether a student may request a retake
// @Tags Retakes
// @Produce json
// @Param student_id query string false "Student ID (admins only)"
// @Success 200 {object} response.Envelope
// @Router /retakes/eligibility [get]
func (h *RetakeHandler) Eligibility(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	result, err := h.service.CanRequest(c.Request.Context(), c.Query("student_id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Request a retake
// @Tags Retakes
// @Accept json
// @Produce json
// @Param payload body dto.CreateRetakeRequest true "Retake payload"
// @Success 201 {object} response.Envelope
// @Router /retakes [post]
func (h *RetakeHandler) Submit(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateRetakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid retake payload"))
		return
	}
	request, err := h.service.Submit(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List retake requests
// @Tags Retakes
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /retakes [get]
func (h *RetakeHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	query := dto.RetakeQuery{Limit: queryInt(c, "limit"), Offset: queryInt(c, "offset")}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.RetakeStatus(status))
	}
	items, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Review godoc
// @Summary Approve or reject a retake request
// @Tags Retakes
// @Accept json
// @Produce json
// @Param id path string true "Retake request ID"
// @Param payload body dto.ReviewRetakeRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /retakes/{id}/review [post]
func (h *RetakeHandler) Review(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.ReviewRetakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid retake decision"))
		return
	}
	request, err := h.service.Review(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
