package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
	"github.com/noah-isme/internship-api/pkg/response"
)

type weeklyReportService interface {
	List(ctx context.Context, registrationID string, actor *models.Actor) (*dto.WeeklyReportList, error)
	Submit(ctx context.Context, registrationID string, week int, req dto.SubmitWeeklyReportRequest, actor *models.Actor) (*dto.WeeklyReportView, error)
	Review(ctx context.Context, registrationID string, week int, req dto.ReviewWeeklyReportRequest, actor *models.Actor) (*dto.WeeklyReportView, error)
	Calendar(ctx context.Context, registrationID string, actor *models.Actor) ([]byte, error)
}

// WeeklyReportHandler exposes weekly report submission and review.
type WeeklyReportHandler struct {
	service weeklyReportService
}

// NewWeeklyReportHandler builds a new handler.
func NewWeeklyReportHandler(service weeklyReportService) *WeeklyReportHandler {
	return &WeeklyReportHandler{service: service}
}

// List godoc
// @Summary List the weekly reports of a registration with progress
// @Tags WeeklyReports
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/weekly-reports [get]
func (h *WeeklyReportHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.service.List(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Submit godoc
// @Summary Submit or resubmit a weekly report
// @Tags WeeklyReports
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Registration ID"
// @Param week path int true "Week number"
// @Param report_title formData string true "Report title"
// @Param report_file_ref formData string false "Reference to an earlier upload"
// @Param file formData file false "Report document"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/weekly-reports/{week} [post]
func (h *WeeklyReportHandler) Submit(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	week, ok := pathWeek(c)
	if !ok {
		return
	}

	var req dto.SubmitWeeklyReportRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.Title = c.PostForm("report_title")
		req.FileRef = c.PostForm("report_file_ref")
		if fileHeader, err := c.FormFile("file"); err == nil {
			src, openErr := fileHeader.Open()
			if openErr != nil {
				response.Error(c, appErrors.Wrap(openErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
				return
			}
			defer src.Close()
			req.File = &dto.UploadedFile{
				Filename: fileHeader.Filename,
				Size:     fileHeader.Size,
				MimeType: fileHeader.Header.Get("Content-Type"),
				Content:  src,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			response.Error(c, invalidPayload(err, "invalid report upload"))
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid report payload"))
		return
	}

	view, err := h.service.Submit(c.Request.Context(), c.Param("id"), week, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Review godoc
// @Summary Grade a submitted weekly report
// @Tags WeeklyReports
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param week path int true "Week number"
// @Param payload body dto.ReviewWeeklyReportRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/weekly-reports/{week}/review [post]
func (h *WeeklyReportHandler) Review(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	week, ok := pathWeek(c)
	if !ok {
		return
	}
	var req dto.ReviewWeeklyReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid review payload"))
		return
	}
	view, err := h.service.Review(c.Request.Context(), c.Param("id"), week, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Calendar godoc
// @Summary Download the weekly report windows as iCalendar
// @Tags WeeklyReports
// @Produce text/calendar
// @Param id path string true "Registration ID"
// @Success 200 {file} binary
// @Router /registrations/{id}/weekly-reports/calendar.ics [get]
func (h *WeeklyReportHandler) Calendar(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	payload, err := h.service.Calendar(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "weekly-reports-"+c.Param("id")+".ics", "text/calendar; charset=utf-8", payload)
}
