package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MatrixParser handles multi-year tables laid out as year columns by month
// rows: the first data row carries the year labels, the first column the
// Spanish month names. The grid is melted to long form with dates built
// from (year, month-of-row).
type MatrixParser struct{}

func (p *MatrixParser) Parse(path string, opts Options) (Result, error) {
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
	if opts.SkipRows+1 >= len(rows) {
		return Result{}, &Error{Input: path, Reason: fmt.Sprintf("skip_rows %d leaves no data", opts.SkipRows)}
	}
	rows = rows[opts.SkipRows:]

	header := rows[0]
	years := make(map[int]int) // column index -> year
	for col := 1; col < len(header); col++ {
		label := strings.TrimSpace(header[col])
		if label == "" {
			continue
		}
		year, err := strconv.Atoi(label)
		if err != nil {
			return Result{}, &Error{Input: label, Reason: "year column header is not a number"}
		}
		years[col] = year
	}
	if len(years) == 0 {
		return Result{}, &Error{Input: path, Reason: "no year columns found in header"}
	}

	var points []Point
	rawCount := 0
	for _, row := range rows[1:] {
		if len(row) == 0 || cellBlank(row[0]) {
			continue
		}
		month, ok := MonthFromSpanish(row[0])
		if !ok {
			return Result{}, &Error{Input: row[0], Reason: "row label is not a Spanish month"}
		}

		for col, year := range years {
			rawCount++
			if col >= len(row) || cellBlank(row[col]) {
				continue
			}
			value, present, err := ParseNumber(row[col])
			if err != nil {
				return Result{}, err
			}
			if !present {
				continue
			}
			date, err := DateFromYearMonth(year, int(month))
			if err != nil {
				return Result{}, err
			}
			points = append(points, Point{Date: date, Value: value})
		}
	}

	return finishPoints(points, opts.Periodicity, rawCount), nil
}
