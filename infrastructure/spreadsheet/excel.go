// Package spreadsheet renders exported review tables as xlsx workbooks.
package spreadsheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/aphrc/proposal-review/internal/ports"
)

const defaultSheet = "Sheet1"

// ExcelWriter implements ports.SpreadsheetWriter with excelize.
type ExcelWriter struct{}

var _ ports.SpreadsheetWriter = ExcelWriter{}

// Write renders sheets in order into one workbook. The header row of each
// sheet is bold and column widths follow the column definitions.
func (ExcelWriter) Write(w io.Writer, sheets ...ports.Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("at least one sheet is required")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range sheets {
		if sheet.Name == "" {
			return fmt.Errorf("sheet %d has no name", i)
		}
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sheet.Name, err)
		}

		if err := writeSheet(f, sheet, bold); err != nil {
			return fmt.Errorf("failed to write sheet %q: %w", sheet.Name, err)
		}
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet ports.Sheet, headerStyle int) error {
	headers := make([]any, len(sheet.Columns))
	for i, col := range sheet.Columns {
		headers[i] = col.Header

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if col.Width > 0 {
			if err := f.SetColWidth(sheet.Name, name, name, col.Width); err != nil {
				return err
			}
		}
	}

	if len(headers) > 0 {
		if err := f.SetSheetRow(sheet.Name, "A1", &headers); err != nil {
			return err
		}
		if err := f.SetRowStyle(sheet.Name, 1, 1, headerStyle); err != nil {
			return err
		}
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return err
		}
	}
	return nil
}
