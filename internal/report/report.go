// Package report renders a calibration run's findings into a workbook a
// caregiver or installer can review, per SPEC_FULL.md §11's excelize
// wiring for the `calibrate` CLI subcommand's diagnostic output.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/buzzwordmojo/nightwatch/internal/calibration"
)

// WriteCalibrationReport writes a .xlsx workbook summarizing one or more
// detector baselines to path.
func WriteCalibrationReport(path string, baselines []calibration.Baseline) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Calibration"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Detector", "Parameter", "Value", "Computed At"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, b := range baselines {
		for param, value := range b.Params {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), b.Detector)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), param)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), value)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), b.ComputedAt.Format(time.RFC3339))
			row++
		}
	}

	return f.SaveAs(path)
}
