// Package excel exports patient records as spreadsheets.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"nof1sim/domain/record"
)

const sheetName = "Sheet1"

// Writer renders a patient record into a worksheet: the identifier columns
// first, then every series column in sorted order. Missing cells stay empty.
type Writer struct{}

// NewWriter creates a record writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write saves the record to path as an .xlsx workbook.
func (w *Writer) Write(t *record.Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"patient_id", "date", "block", "day", "treatment"}
	series := t.SeriesNames()
	headers = append(headers, series...)

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}

	for row := 0; row < t.Len(); row++ {
		values := []interface{}{
			t.PatientID[row],
			t.Date[row].Format("2006-01-02"),
			t.Block[row],
			t.Day[row],
			t.Treatment[row],
		}
		for _, name := range series {
			v := t.Series[name][row]
			if record.IsMissing(v) {
				values = append(values, nil)
			} else {
				values = append(values, v)
			}
		}

		for col, value := range values {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
