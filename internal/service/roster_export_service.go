package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/models"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
	"github.com/noah-isme/internship-api/pkg/export"
)

// ExportFormat selects the roster rendering.
type ExportFormat string

// Supported roster formats.
const (
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
	ExportXLSX ExportFormat = "xlsx"
)

const rosterPageSize = 200

var rosterHeaders = []string{"Student Number", "Student", "Status", "Lecturer", "Company", "Position", "Reports Submitted", "Average Grade"}

type rosterSource interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet, title string) ([]byte, error)
}

// RosterFile is a rendered roster ready for download.
type RosterFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders period rosters.
type ExportService struct {
	regs    rosterSource
	periods periodReader
	csv     csvRenderer
	pdf     pdfRenderer
	xlsx    xlsxRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the package defaults.
func NewExportService(regs rosterSource, periods periodReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{regs: regs, periods: periods, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

// Roster renders every registration of a period. Lecturers only see their own students.
func (s *ExportService) Roster(ctx context.Context, periodID string, format ExportFormat, actor *models.Actor) (*RosterFile, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	filter := models.RegistrationFilter{PeriodID: periodID, PageSize: rosterPageSize, SortBy: "student_number", SortOrder: "asc"}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleLecturer:
		filter.LecturerID = actor.UserID
	default:
		return nil, appErrors.ErrForbidden
	}
	format = ExportFormat(strings.ToLower(string(format)))
	switch format {
	case ExportCSV, ExportPDF, ExportXLSX:
	default:
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "format must be csv, pdf or xlsx", map[string]interface{}{
			"format": format,
		})
	}

	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}

	var rows []models.RegistrationDetail
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.regs.List(ctx, filter)
		if err != nil {
			return nil, internalError(err, "failed to load roster")
		}
		rows = append(rows, items...)
		if len(items) == 0 || len(rows) >= total {
			break
		}
	}

	dataset := rosterDataset(rows)
	title := fmt.Sprintf("Internship roster %s %s", period.Semester, period.AcademicYear)
	base := fmt.Sprintf("roster-%s-%s", sanitizeLabel(period.AcademicYear), sanitizeLabel(period.Semester))

	var file RosterFile
	switch format {
	case ExportCSV:
		file.Content, err = s.csv.Render(dataset)
		file.ContentType = "text/csv"
	case ExportPDF:
		file.Content, err = s.pdf.Render(dataset, title)
		file.ContentType = "application/pdf"
	case ExportXLSX:
		file.Content, err = s.xlsx.Render(dataset, "Roster", title)
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return nil, internalError(err, "failed to render roster")
	}
	file.Filename = base + "." + string(format)
	s.logger.Info("roster exported",
		zap.String("period_id", period.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)),
	)
	return &file, nil
}

func rosterDataset(rows []models.RegistrationDetail) export.Dataset {
	data := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		lecturer := ""
		if row.LecturerName != nil {
			lecturer = *row.LecturerName
		}
		average := ""
		if row.AverageGrade != nil {
			average = strconv.FormatFloat(*row.AverageGrade, 'f', 1, 64)
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student Number":    row.StudentNumber,
			"Student":           row.StudentName,
			"Status":            string(row.Status),
			"Lecturer":          lecturer,
			"Company":           row.CompanyName,
			"Position":          row.Position,
			"Reports Submitted": fmt.Sprintf("%d/%d", row.SubmittedCount, models.WeeklyReportCount),
			"Average Grade":     average,
		})
	}
	return data
}

func sanitizeLabel(value string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	return builder.String()
}
