// Package derived rebuilds series whose values are deterministic functions
// of other series already in the store. A recipe declares its inputs, a
// horizon and a pure compute function; the runner loads the inputs,
// computes and commits with full replace.
package derived

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/macrodatos/ingesta/ingesta/database/models"
	"github.com/macrodatos/ingesta/ingesta/database/repositories"
	"github.com/macrodatos/ingesta/ingesta/parse"
	"github.com/macrodatos/ingesta/ingesta/upsert"
)

// MasterKey names one input or output series.
type MasterKey struct {
	VariableID int
	CountryID  int
}

// Recipe is one derived series definition. A zero horizon recomputes over
// the full history of every input.
type Recipe struct {
	Name          string
	Target        MasterKey
	Inputs        []MasterKey
	HorizonMonths int
	Compute       func(inputs [][]parse.Point) []parse.Point
}

// Runner executes recipes against the store.
type Runner struct {
	series  repositories.SeriesRepository
	engine  *upsert.Engine
	recipes map[string]Recipe
	logger  *slog.Logger
}

func NewRunner(series repositories.SeriesRepository, engine *upsert.Engine, recipes []Recipe) *Runner {
	byName := make(map[string]Recipe, len(recipes))
	for _, r := range recipes {
		byName[r.Name] = r
	}
	return &Runner{
		series:  series,
		engine:  engine,
		recipes: byName,
		logger:  slog.With(slog.String("service", "derived")),
	}
}

// Names lists the registered recipes.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.recipes))
	for name := range r.recipes {
		names = append(names, name)
	}
	return names
}

// Has reports whether name is a registered recipe.
func (r *Runner) Has(name string) bool {
	_, ok := r.recipes[name]
	return ok
}

// Run recomputes one recipe. It refuses to run if any required input has
// zero rows within the horizon.
func (r *Runner) Run(ctx context.Context, name string) error {
	recipe, ok := r.recipes[name]
	if !ok {
		return fmt.Errorf("unknown derived recipe %q", name)
	}

	from := time.Now().UTC().AddDate(0, -recipe.HorizonMonths, 0)
	from = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)

	inputs := make([][]parse.Point, len(recipe.Inputs))
	for i, key := range recipe.Inputs {
		var rows []models.SeriesPoint
		var err error
		if recipe.HorizonMonths > 0 {
			rows, err = r.series.PointsSince(ctx, key.VariableID, key.CountryID, from)
		} else {
			rows, err = r.series.GetPoints(ctx, key.VariableID, key.CountryID)
		}
		if err != nil {
			return fmt.Errorf("failed to load input (%d,%d): %w", key.VariableID, key.CountryID, err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("derived %q: input (%d,%d) has no rows since %s",
				name, key.VariableID, key.CountryID, from.Format("2006-01-02"))
		}
		points := make([]parse.Point, len(rows))
		for j, row := range rows {
			points[j] = parse.Point{Date: row.Date, Value: row.Value}
		}
		inputs[i] = points
	}

	output := recipe.Compute(inputs)
	if len(output) == 0 {
		return fmt.Errorf("derived %q: compute produced no points", name)
	}

	result, err := r.engine.CommitSeries(ctx, recipe.Target.VariableID, recipe.Target.CountryID, output, upsert.ModeFullReplace)
	if err != nil {
		return err
	}

	r.logger.Info("Derived series rebuilt",
		slog.String("type", "job"),
		slog.String("job", name),
		slog.Int("points", result.Inserted))
	return nil
}

// MonthlyMean is the cross-sectional mean per month over the inputs,
// computed only on months where at least one input has a value. Inputs are
// aligned on first-of-month dates.
func MonthlyMean(inputs [][]parse.Point) []parse.Point {
	type bucket struct {
		sum   decimal.Decimal
		count int64
	}
	buckets := make(map[time.Time]*bucket)
	for _, series := range inputs {
		for _, p := range series {
			month := time.Date(p.Date.Year(), p.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
			b, ok := buckets[month]
			if !ok {
				b = &bucket{}
				buckets[month] = b
			}
			b.sum = b.sum.Add(p.Value)
			b.count++
		}
	}

	out := make([]parse.Point, 0, len(buckets))
	for month, b := range buckets {
		out = append(out, parse.Point{
			Date:  month,
			Value: b.sum.Div(decimal.NewFromInt(b.count)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
