package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

func writeXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	if len(t.Headers) > 0 {
		if err := f.SetSheetRow(sheet, "A1", &t.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("failed to style headers: %w", err)
		}
		lastCol, _, err := excelize.SplitCellName(last)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
			return fmt.Errorf("failed to size columns: %w", err)
		}
	}

	for i, record := range t.Rows {
		row := record
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return f.Write(w)
}
