package interfaces

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"sensor-ingest/internal/query"
)

const timeLayout = "2006-01-02 15:04:05"

const timeColumn = "time"

// WriteTableCSV renders the wide table as CSV. Absent cells stay empty.
func WriteTableCSV(w io.Writer, table *query.Table) error {
	if table == nil {
		return errors.New("export: nil table")
	}
	cw := csv.NewWriter(w)
	header := append([]string{timeColumn}, table.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, row := range table.Rows {
		record[0] = row.Time.Format(timeLayout)
		for i, column := range table.Columns {
			record[i+1] = row.Values[column]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildTableXLSX renders the wide table as a single-sheet XLSX.
func BuildTableXLSX(table *query.Table) ([]byte, error) {
	if table == nil {
		return nil, errors.New("export: nil table")
	}
	f := excelize.NewFile()
	sheet := "readings"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", timeColumn)
	for i, column := range table.Columns {
		cell, err := excelize.CoordinatesToCellName(i+2, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, column)
	}
	for r, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, row.Time.Format(timeLayout))
		for c, column := range table.Columns {
			value, ok := row.Values[column]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+2, r+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTablePDF renders the wide table as a landscape PDF.
func BuildTablePDF(table *query.Table) ([]byte, error) {
	if table == nil {
		return nil, errors.New("export: nil table")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 10)
	pdf.AddPage()

	pdf.Cell(0, 8, "Sensor Readings")
	pdf.Ln(10)

	columnWidth := 40.0
	if n := len(table.Columns) + 1; n > 0 {
		if available := 277.0 / float64(n); available < columnWidth {
			columnWidth = available
		}
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(columnWidth, 6, timeColumn, "1", 0, "C", false, 0, "")
	for _, column := range table.Columns {
		pdf.CellFormat(columnWidth, 6, column, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range table.Rows {
		pdf.CellFormat(columnWidth, 6, row.Time.Format(timeLayout), "1", 0, "C", false, 0, "")
		for _, column := range table.Columns {
			pdf.CellFormat(columnWidth, 6, row.Values[column], "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("export: pdf output: %w", err)
	}
	return buf.Bytes(), nil
}
