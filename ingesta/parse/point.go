// Package parse converts raw source artifacts into tidy (date, value)
// sequences. Every parser shares the same date and number normalizers;
// unrecognized formats fail loud instead of being skipped.
package parse

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Point is one tidy observation.
type Point struct {
	Date  time.Time
	Value decimal.Decimal
}

// Result is what a parser hands to the temporal normalizer: the tidy
// points plus bookkeeping about what was filtered out.
type Result struct {
	Points      []Point
	Periodicity string
	RawCount    int
	Kept        int
	From        time.Time
	To          time.Time
}

func newResult(points []Point, periodicity string, rawCount int) Result {
	res := Result{
		Points:      points,
		Periodicity: periodicity,
		RawCount:    rawCount,
		Kept:        len(points),
	}
	for _, p := range points {
		if res.From.IsZero() || p.Date.Before(res.From) {
			res.From = p.Date
		}
		if p.Date.After(res.To) {
			res.To = p.Date
		}
	}
	return res
}

// Error is a hard parse failure: an unrecognized date or number format.
type Error struct {
	Input  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}
