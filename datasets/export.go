package datasets

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes the frame with a header row.
func (f *Frame) WriteCSV(path string) error {
	records := make([][]string, 0, f.NRows()+1)
	records = append(records, f.Names())
	for i := 0; i < f.NRows(); i++ {
		rec := make([]string, len(f.cols))
		for j, col := range f.cols {
			rec[j] = formatFloat(col[i])
		}
		records = append(records, rec)
	}
	return writeCSV(path, records)
}

// WriteCSV writes the table with a header row.
func (t *CategoricalTable) WriteCSV(path string) error {
	records := make([][]string, 0, t.NRows()+1)
	records = append(records, t.Names())
	for i := 0; i < t.NRows(); i++ {
		rec := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[j] = c.Values[i]
		}
		records = append(records, rec)
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// WriteXLSX writes the frame to the first sheet of a new workbook.
func (f *Frame) WriteXLSX(path string) error {
	book := excelize.NewFile()
	defer book.Close()

	for j, name := range f.names {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := book.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}
	for i := 0; i < f.NRows(); i++ {
		for j, col := range f.cols {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := book.SetCellValue(sheetName, cell, col[i]); err != nil {
				return err
			}
		}
	}
	if err := book.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

// ReadXLSX reads a workbook written by WriteXLSX back into a frame.
func ReadXLSX(path string) (*Frame, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer book.Close()

	rows, err := book.GetRows(sheetName)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(rows) == 0 {
		return nil, errors.NewModelError("ReadXLSX", "no header row", errors.ErrEmptyData)
	}
	names := rows[0]
	cols := make([][]float64, len(names))
	for _, row := range rows[1:] {
		for j := range names {
			v := 0.0
			if j < len(row) && row[j] != "" {
				if v, err = strconv.ParseFloat(row[j], 64); err != nil {
					return nil, errors.Wrapf(err, "parse %s row value %q", names[j], row[j])
				}
			}
			cols[j] = append(cols[j], v)
		}
	}
	return NewFrame(names, cols)
}
