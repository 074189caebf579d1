// Package temporal holds the pure gap-filling and periodicity functions
// applied between parsing and the upsert. Every function returns a new
// slice; none mutates its input. Post-condition shared by all of them:
// the emitted series is sorted ascending with no duplicate dates.
package temporal

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macrodatos/ingesta/ingesta/parse"
)

// ToMonthly aggregates a series to one point per month, stamped on day 01.
// Monthly input with duplicate (year, month) entries is averaged; daily or
// weekly input is averaged per month. Months absent from the input stay
// absent.
func ToMonthly(points []parse.Point) []parse.Point {
	type monthKey struct {
		year  int
		month time.Month
	}

	sums := make(map[monthKey]decimal.Decimal)
	counts := make(map[monthKey]int64)
	for _, p := range points {
		k := monthKey{p.Date.Year(), p.Date.Month()}
		sums[k] = sums[k].Add(p.Value)
		counts[k]++
	}

	out := make([]parse.Point, 0, len(sums))
	for k, sum := range sums {
		out = append(out, parse.Point{
			Date:  time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC),
			Value: sum.Div(decimal.NewFromInt(counts[k])),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CompleteDaily builds the full calendar between min and max date, merges
// the original values in and forward-fills missing days with the last
// known value. With businessOnly the output is restricted to Mon-Fri.
func CompleteDaily(points []parse.Point, businessOnly bool) []parse.Point {
	if len(points) == 0 {
		return nil
	}

	byDate := make(map[string]decimal.Decimal, len(points))
	minDate, maxDate := points[0].Date, points[0].Date
	for _, p := range points {
		byDate[p.Date.Format("2006-01-02")] = p.Value
		if p.Date.Before(minDate) {
			minDate = p.Date
		}
		if p.Date.After(maxDate) {
			maxDate = p.Date
		}
	}

	var out []parse.Point
	last := decimal.Zero
	haveLast := false
	for d := minDate; !d.After(maxDate); d = d.AddDate(0, 0, 1) {
		if v, ok := byDate[d.Format("2006-01-02")]; ok {
			last = v
			haveLast = true
		}
		if !haveLast {
			continue
		}
		if businessOnly {
			wd := d.Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}
		out = append(out, parse.Point{Date: d, Value: last})
	}
	return out
}

// MergeKeepNew concatenates a long historical series with a fresher scrape
// and drops every historical date that the new source also carries,
// regardless of value. Use-case: a full-history CSV superseded at the tail
// by the live source.
func MergeKeepNew(historical, fresh []parse.Point) []parse.Point {
	freshDates := make(map[string]bool, len(fresh))
	for _, p := range fresh {
		freshDates[p.Date.Format("2006-01-02")] = true
	}

	out := make([]parse.Point, 0, len(historical)+len(fresh))
	for _, p := range historical {
		if freshDates[p.Date.Format("2006-01-02")] {
			continue
		}
		out = append(out, p)
	}
	out = append(out, fresh...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// ValidateDates rejects series with missing dates, deduplicates keeping
// the last value per date, and guarantees ascending order.
func ValidateDates(points []parse.Point) ([]parse.Point, error) {
	byDate := make(map[string]parse.Point, len(points))
	var order []string
	for _, p := range points {
		if p.Date.IsZero() {
			return nil, fmt.Errorf("series contains a point with no date")
		}
		key := p.Date.Format("2006-01-02")
		if _, seen := byDate[key]; !seen {
			order = append(order, key)
		}
		byDate[key] = p
	}

	out := make([]parse.Point, 0, len(byDate))
	for _, key := range order {
		out = append(out, byDate[key])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	if len(out) > 0 {
		slog.Debug("Validated series range",
			slog.String("type", "sys"),
			slog.Time("from", out[0].Date),
			slog.Time("to", out[len(out)-1].Date),
			slog.Int("points", len(out)))
	}
	return out, nil
}
