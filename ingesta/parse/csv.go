package parse

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// CSVParser handles two-column delimited files: one date column, one value
// column, optionally behind a header band.
type CSVParser struct {
	// Comma overrides the field separator; zero value means ','.
	Comma rune
}

func (p *CSVParser) Parse(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if p.Comma != 0 {
		reader.Comma = p.Comma
	}
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if opts.SkipRows >= len(rows) {
		return Result{}, &Error{Input: path, Reason: fmt.Sprintf("skip_rows %d leaves no data", opts.SkipRows)}
	}
	rows = rows[opts.SkipRows:]

	points, err := rowsToPoints(rows, opts)
	if err != nil {
		return Result{}, err
	}
	return finishPoints(points, opts.Periodicity, len(rows)), nil
}

// rowsToPoints applies the shared row policy over a cell grid: blank date
// or value cells drop the row, sentinels drop the row, anything else must
// parse. Rows that do not even reach the configured columns are a hard
// error, not a skip.
func rowsToPoints(rows [][]string, opts Options) ([]Point, error) {
	var points []Point
	for _, row := range rows {
		if opts.DateColumn >= len(row) || opts.ValueColumn >= len(row) {
			return nil, &Error{
				Input: strings.Join(row, ","),
				Reason: fmt.Sprintf("row has %d columns, need date column %d and value column %d",
					len(row), opts.DateColumn, opts.ValueColumn),
			}
		}
		dateCell := row[opts.DateColumn]
		valueCell := row[opts.ValueColumn]
		if cellBlank(dateCell) || cellBlank(valueCell) {
			continue
		}

		date, err := ParseDate(dateCell)
		if err != nil {
			return nil, err
		}
		value, ok, err := ParseNumber(valueCell)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		points = append(points, Point{Date: date, Value: value})
	}
	return points, nil
}
