package export

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExporterRenderPaginates(t *testing.T) {
	rows := make([]map[string]string, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, map[string]string{"Student": fmt.Sprintf("Student %02d", i), "Status": "in_progress"})
	}
	exporter := &PDFExporter{now: func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) }}

	out, err := exporter.Render(Dataset{Headers: []string{"Student", "Status"}, Rows: rows}, "Internship roster")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.GreaterOrEqual(t, bytes.Count(out, []byte("/Type /Page\n")), 2)
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestFitTruncatesLongText(t *testing.T) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 8)

	assert.Equal(t, "short", fit(pdf, "short", 30))
	long := fit(pdf, "PT Sangat Panjang Sekali Nama Perusahaannya Indonesia", 30)
	assert.True(t, len(long) < 50)
	assert.LessOrEqual(t, pdf.GetStringWidth(long), 30.0)
	assert.Contains(t, long, "...")
}
