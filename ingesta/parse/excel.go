package parse

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelParser handles workbooks with a header band followed by one date
// column and one value column on a named sheet.
type ExcelParser struct{}

func (p *ExcelParser) Parse(path string, opts Options) (Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Result{}, &Error{Input: path, Reason: fmt.Sprintf("sheet %q not found", sheet)}
	}
	if opts.SkipRows >= len(rows) {
		return Result{}, &Error{Input: path, Reason: fmt.Sprintf("skip_rows %d leaves no data", opts.SkipRows)}
	}
	rows = rows[opts.SkipRows:]

	// GetRows trims trailing empty cells, so a blank value cell comes back
	// as a short row. Pad to the configured width to keep it a blank cell.
	width := opts.DateColumn
	if opts.ValueColumn > width {
		width = opts.ValueColumn
	}
	for i, row := range rows {
		if len(row) <= width {
			padded := make([]string, width+1)
			copy(padded, row)
			rows[i] = padded
		}
	}

	points, err := rowsToPoints(rows, opts)
	if err != nil {
		return Result{}, err
	}
	return finishPoints(points, opts.Periodicity, len(rows)), nil
}
