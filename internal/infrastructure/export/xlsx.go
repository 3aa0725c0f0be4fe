// Package export renders cached rows as spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length
const maxSheetName = 31

// XLSXWriter writes tables as single-sheet XLSX workbooks
type XLSXWriter struct{}

// NewXLSXWriter creates a new XLSXWriter
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// WriteTable writes a header row of columns followed by rows. Empty and
// missing values are left as blank cells.
func (XLSXWriter) WriteTable(w io.Writer, sheet string, columns []string, rows [][]string) (err error) {
	if sheet == "" {
		return errors.New("export: sheet name is required")
	}
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("export: name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("export: open sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{}); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(columns))
		for j := range cells {
			if j < len(row) && row[j] != "" {
				cells[j] = row[j]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: row %d: %w", i+1, err)
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
