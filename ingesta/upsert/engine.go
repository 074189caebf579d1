// Package upsert commits tidy series into the catalog store. Correctness
// does not rely on a uniqueness constraint in the database: full-replace
// deletes the master's history before inserting, and merge updates
// existing dates in place. Each commit holds a per-master lock so distinct
// masters can commit concurrently.
package upsert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/macrodatos/ingesta/ingesta/database/models"
	"github.com/macrodatos/ingesta/ingesta/database/repositories"
	"github.com/macrodatos/ingesta/ingesta/parse"
)

// Mode selects the commit protocol.
type Mode int

const (
	// ModeFullReplace deletes every point of the master and inserts the new
	// set. Default: most sources republish the full history.
	ModeFullReplace Mode = iota
	// ModeMerge updates values for dates already present and inserts the
	// rest. Only for jobs that explicitly opt in.
	ModeMerge
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "replace":
		return ModeFullReplace, nil
	case "merge":
		return ModeMerge, nil
	default:
		return ModeFullReplace, fmt.Errorf("unknown commit mode %q", s)
	}
}

const masterCacheSize = 256

type masterKey struct {
	variableID int
	countryID  int
}

// Engine is the single write path for series points.
type Engine struct {
	masters repositories.MasterRepository
	series  repositories.SeriesRepository

	mu    sync.Mutex
	locks map[masterKey]*sync.Mutex

	resolved *lru.Cache // masterKey -> *models.Master
	logger   *slog.Logger
}

func NewEngine(masters repositories.MasterRepository, series repositories.SeriesRepository) *Engine {
	cache, _ := lru.New(masterCacheSize)
	return &Engine{
		masters:  masters,
		series:   series,
		locks:    make(map[masterKey]*sync.Mutex),
		resolved: cache,
		logger:   slog.With(slog.String("service", "upsert")),
	}
}

// CommitResult reports what a commit did. Total is the point count of the
// master after the write.
type CommitResult struct {
	Inserted int
	Updated  int
	Total    int
	Mode     Mode
}

// CommitSeries resolves the master, takes its lock and writes the points
// under the selected mode. The write itself is transactional; a failure
// leaves the store untouched.
func (e *Engine) CommitSeries(ctx context.Context, variableID, countryID int, points []parse.Point, mode Mode) (CommitResult, error) {
	master, err := e.resolveMaster(ctx, variableID, countryID)
	if err != nil {
		return CommitResult{}, err
	}

	lock := e.lockFor(masterKey{variableID, countryID})
	lock.Lock()
	defer lock.Unlock()

	rows := make([]models.SeriesPoint, len(points))
	for i, p := range points {
		rows[i] = models.SeriesPoint{
			VariableID: variableID,
			CountryID:  countryID,
			Date:       p.Date,
			Value:      p.Value,
		}
	}

	start := time.Now()
	var result CommitResult
	switch mode {
	case ModeFullReplace:
		inserted, err := e.series.ReplacePoints(ctx, variableID, countryID, rows)
		if err != nil {
			e.invalidate(variableID, countryID)
			return CommitResult{}, err
		}
		result = CommitResult{Inserted: inserted, Mode: mode}
	case ModeMerge:
		inserted, updated, err := e.series.MergePoints(ctx, variableID, countryID, rows)
		if err != nil {
			e.invalidate(variableID, countryID)
			return CommitResult{}, err
		}
		result = CommitResult{Inserted: inserted, Updated: updated, Mode: mode}
	default:
		return CommitResult{}, fmt.Errorf("unknown commit mode %d", mode)
	}

	// The write already committed; the count is informational.
	if total, countErr := e.series.CountPoints(ctx, variableID, countryID); countErr == nil {
		result.Total = total
	}

	e.logger.Info("Series committed",
		slog.String("type", "db"),
		slog.Int("variable_id", variableID),
		slog.Int("country_id", countryID),
		slog.String("source", master.SourceLabel),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
		slog.Int("total", result.Total),
		slog.Duration("took", time.Since(start)))
	return result, nil
}

func (e *Engine) resolveMaster(ctx context.Context, variableID, countryID int) (*models.Master, error) {
	key := masterKey{variableID, countryID}
	if cached, ok := e.resolved.Get(key); ok {
		return cached.(*models.Master), nil
	}

	master, err := e.masters.Resolve(ctx, variableID, countryID)
	if err != nil {
		return nil, err
	}
	e.resolved.Add(key, master)
	return master, nil
}

func (e *Engine) invalidate(variableID, countryID int) {
	e.resolved.Remove(masterKey{variableID, countryID})
}

func (e *Engine) lockFor(key masterKey) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}
