package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the dataset under an optional title row and returns the workbook bytes.
func (e *XLSXExporter) Render(data Dataset, sheet, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	if sheet == "" {
		sheet = "Export"
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("drop default sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	row := 1
	if title != "" {
		last, _ := excelize.ColumnNumberToName(len(data.Headers))
		_ = f.SetCellValue(sheet, "A1", title)
		if len(data.Headers) > 1 {
			_ = f.MergeCell(sheet, "A1", last+"1")
		}
		_ = f.SetCellStyle(sheet, "A1", "A1", headerStyle)
		row = 2
	}

	for i, header := range data.Headers {
		cellName, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cellName, header)
		_ = f.SetCellStyle(sheet, cellName, cellName, headerStyle)
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, 20)
	}

	for _, record := range data.Rows {
		row++
		for i, header := range data.Headers {
			cellName, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cellName, record[header])
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
