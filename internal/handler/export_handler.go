package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/service"
	"github.com/noah-isme/internship-api/pkg/response"
)

type rosterExporter interface {
	Roster(ctx context.Context, periodID string, format service.ExportFormat, actor *models.Actor) (*service.RosterFile, error)
}

// ExportHandler streams period rosters.
type ExportHandler struct {
	service rosterExporter
}

// NewExportHandler builds a new handler.
func NewExportHandler(service rosterExporter) *ExportHandler {
	return &ExportHandler{service: service}
}

// Roster godoc
// @Summary Download the registration roster of a period
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Period ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} binary
// @Router /periods/{id}/roster [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	format := strings.TrimSpace(c.DefaultQuery("format", string(service.ExportCSV)))
	file, err := h.service.Roster(c.Request.Context(), c.Param("id"), service.ExportFormat(format), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
