package dto

import (
	"io"

	"github.com/noah-isme/internship-api/internal/models"
)

// SubmitWeeklyReportRequest captures a student submission. Either File or FileRef
// (an earlier upload of the same registration) may be given; without both the
// previously stored file is reused.
type SubmitWeeklyReportRequest struct {
	Title   string        `json:"report_title" validate:"required"`
	FileRef string        `json:"report_file_ref"`
	File    *UploadedFile `json:"-"`
}

// UploadedFile carries an uploaded document stream.
type UploadedFile struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// ReviewWeeklyReportRequest captures a lecturer decision.
type ReviewWeeklyReportRequest struct {
	Decision models.WeeklyReportStatus `json:"decision" validate:"required,oneof=approved rejected needs_revision"`
	Grade    *float64                  `json:"grade" validate:"required"`
	Feedback string                    `json:"feedback"`
}

// WeeklyReportView decorates a report with a signed file URL.
type WeeklyReportView struct {
	models.WeeklyReport
	FileURL *string `json:"file_url,omitempty"`
}

// WeeklyReportList bundles the reports of a registration with their progress summary.
type WeeklyReportList struct {
	Reports  []WeeklyReportView          `json:"reports"`
	Progress models.WeeklyReportProgress `json:"progress"`
}
