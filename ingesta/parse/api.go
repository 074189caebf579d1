package parse

import (
	"encoding/json"
	"fmt"
	"os"
)

// APIDocument is the normalized shape of a central-bank JSON response
// after the fetch driver has merged its paginated chunks.
type APIDocument struct {
	Periods []APIPeriod `json:"periods"`
}

// APIPeriod is one observation: the vendor-encoded date in Name and the
// values of each requested series.
type APIPeriod struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// APIParser handles the merged JSON document the API fetch driver writes.
// The descriptor's value column selects which entry of each period's
// values array belongs to the target series.
type APIParser struct{}

func (p *APIParser) Parse(path string, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc APIDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{}, &Error{Input: path, Reason: "response is not valid JSON"}
	}
	if len(doc.Periods) == 0 {
		return Result{}, &Error{Input: path, Reason: "response contains no periods"}
	}

	var points []Point
	for _, period := range doc.Periods {
		if opts.ValueColumn >= len(period.Values) {
			return Result{}, &Error{
				Input:  period.Name,
				Reason: fmt.Sprintf("period has %d values, need column %d", len(period.Values), opts.ValueColumn),
			}
		}
		raw := period.Values[opts.ValueColumn]
		if cellBlank(period.Name) || cellBlank(raw) {
			continue
		}

		date, err := ParseDate(period.Name)
		if err != nil {
			return Result{}, err
		}
		value, present, err := ParseNumber(raw)
		if err != nil {
			return Result{}, err
		}
		if !present {
			continue
		}
		points = append(points, Point{Date: date, Value: value})
	}

	return finishPoints(points, opts.Periodicity, len(doc.Periods)), nil
}
