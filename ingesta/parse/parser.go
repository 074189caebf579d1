package parse

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Options parameterize a parser run: where the data lives inside the
// artifact and how to stamp its periodicity.
type Options struct {
	Sheet       string
	SkipRows    int
	DateColumn  int
	ValueColumn int
	Periodicity string // D | W | M
}

// Parser converts one raw artifact into a tidy Result.
type Parser interface {
	Parse(path string, opts Options) (Result, error)
}

// ForKind returns the parser registered under kind: csv, excel, matrix
// or api.
func ForKind(kind string) (Parser, error) {
	switch kind {
	case "csv":
		return &CSVParser{}, nil
	case "excel":
		return &ExcelParser{}, nil
	case "matrix":
		return &MatrixParser{}, nil
	case "api":
		return &APIParser{}, nil
	default:
		return nil, fmt.Errorf("unknown parser kind %q", kind)
	}
}

// finishPoints applies the shared post-parse policy: rows dated after
// today are dropped, points are sorted ascending, and the result carries
// the raw/kept counts and the detected range.
func finishPoints(points []Point, periodicity string, rawCount int) Result {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	kept := points[:0]
	for _, p := range points {
		if p.Date.After(today) {
			continue
		}
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })

	res := newResult(kept, periodicity, rawCount)
	slog.Debug("Parsed series",
		slog.String("type", "sys"),
		slog.Int("raw", res.RawCount),
		slog.Int("kept", res.Kept),
		slog.Time("from", res.From),
		slog.Time("to", res.To))
	return res
}

// cellBlank reports whether a raw cell should drop the whole row. Only
// fully blank date or value cells are skipped silently; everything else
// must parse.
func cellBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' {
			return false
		}
	}
	return true
}
