package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/macrodatos/ingesta/ingesta"
	"github.com/macrodatos/ingesta/ingesta/derived"
	"github.com/macrodatos/ingesta/ingesta/fetch"
	"github.com/macrodatos/ingesta/ingesta/logger"
	"github.com/macrodatos/ingesta/ingesta/parse"
	"github.com/macrodatos/ingesta/ingesta/rawcache"
	"github.com/macrodatos/ingesta/ingesta/storage"
	"github.com/macrodatos/ingesta/ingesta/temporal"
	"github.com/macrodatos/ingesta/ingesta/upsert"
)

const (
	// CompositeJob runs every active job plus the derived recipes.
	CompositeJob = "all"

	defaultJobTimeout     = 3 * time.Hour
	defaultBrowserCeiling = 2
)

// ConfigMissing means a job descriptor lacks required identifiers. It is
// surfaced before any network call.
type ConfigMissing struct {
	Job   string
	Field string
}

func (e *ConfigMissing) Error() string {
	return fmt.Sprintf("job %q: descriptor is missing %s", e.Job, e.Field)
}

// Orchestrator runs ingestion jobs in background goroutines, one runner
// per job name, each with its own transcript file.
type Orchestrator struct {
	jobs     map[string]ingesta.JobConfig
	order    []string
	cache    *rawcache.Cache
	engine   *upsert.Engine
	derived  *derived.Runner
	registry *Registry
	spaces   *storage.SpacesService // nil when mirroring is disabled

	logsDir    string
	browserCfg fetch.BrowserConfig
	browserSem *semaphore.Weighted
	timeout    time.Duration
	logger     *slog.Logger
}

func NewOrchestrator(
	cfg *ingesta.Config,
	cache *rawcache.Cache,
	engine *upsert.Engine,
	derivedRunner *derived.Runner,
	registry *Registry,
	spaces *storage.SpacesService,
) *Orchestrator {
	byName := make(map[string]ingesta.JobConfig, len(cfg.Jobs))
	var order []string
	for _, job := range cfg.Jobs {
		byName[job.Name] = job
		order = append(order, job.Name)
	}

	ceiling := cfg.Browser.MaxSessions
	if ceiling <= 0 {
		ceiling = defaultBrowserCeiling
	}

	browserCfg := fetch.BrowserConfig{
		Binary:      cfg.Browser.Binary,
		SearchPaths: cfg.Browser.SearchPaths,
	}
	if cfg.Browser.DownloadTimeout > 0 {
		browserCfg.DownloadTimeout = time.Duration(cfg.Browser.DownloadTimeout) * time.Second
	}

	return &Orchestrator{
		jobs:       byName,
		order:      order,
		cache:      cache,
		engine:     engine,
		derived:    derivedRunner,
		registry:   registry,
		spaces:     spaces,
		logsDir:    cfg.Cache.LogsDir,
		browserCfg: browserCfg,
		browserSem: semaphore.NewWeighted(int64(ceiling)),
		timeout:    defaultJobTimeout,
		logger:     slog.With(slog.String("service", "orchestrator")),
	}
}

// Names lists every startable job: configured sources, derived recipes and
// the composite.
func (o *Orchestrator) Names() []string {
	names := make([]string, 0, len(o.order)+2)
	names = append(names, o.order...)
	names = append(names, o.derived.Names()...)
	names = append(names, CompositeJob)
	sort.Strings(names)
	return names
}

// Known reports whether name is startable.
func (o *Orchestrator) Known(name string) bool {
	if name == CompositeJob {
		return true
	}
	if _, ok := o.jobs[name]; ok {
		return true
	}
	return o.derived.Has(name)
}

// Status returns the latest snapshot for a job.
func (o *Orchestrator) Status(name string) *Status {
	return o.registry.Get(name)
}

// Start launches a job in the background. The returned snapshot carries the
// started_at and log_file the caller polls with.
func (o *Orchestrator) Start(name string) (*Status, error) {
	if !o.Known(name) {
		return nil, fmt.Errorf("unknown job %q", name)
	}

	status, err := o.registry.TryStart(name)
	if err != nil {
		return nil, err
	}

	go o.runGuarded(name, status)
	return status, nil
}

// runGuarded is the job body wrapper: transcript, wall-clock timeout,
// lease release and terminal snapshot. No error escapes the job boundary
// unlogged.
func (o *Orchestrator) runGuarded(name string, status *Status) {
	tr, err := NewTranscript(o.logsDir, name, status.StartedAt)
	if err != nil {
		o.registry.Finish(name, status.StartedAt, status.LogFile, nil, err)
		logger.LogError("Failed to open job transcript", err, slog.String("job", name))
		return
	}
	defer tr.Close()
	tr.Notify(func(progress []string) { o.registry.UpdateProgress(name, progress) })

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	runErr := o.dispatch(ctx, name, tr)
	if runErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		runErr = fmt.Errorf("job timed out after %s: %w", o.timeout, runErr)
	}
	if runErr != nil {
		tr.Fail(runErr)
	} else {
		tr.Printf("OK")
	}

	o.registry.Finish(name, status.StartedAt, status.LogFile, tr.Progress(), runErr)
	logger.LogJob(name, time.Since(status.StartedAt), runErr)
}

func (o *Orchestrator) dispatch(ctx context.Context, name string, tr *Transcript) error {
	switch {
	case name == CompositeJob:
		return o.runAll(ctx, tr)
	case o.derived.Has(name):
		tr.Printf("recalculating derived series")
		return o.derived.Run(ctx, name)
	default:
		return o.runSource(ctx, o.jobs[name], tr)
	}
}

// runAll executes every active job and then the derived recipes. Jobs are
// independent: one failure never cancels its siblings, and the composite
// fails if any of them did.
func (o *Orchestrator) runAll(ctx context.Context, tr *Transcript) error {
	var g errgroup.Group
	var mu sync.Mutex
	var failed []string

	for _, name := range o.order {
		job := o.jobs[name]
		if !job.Active {
			tr.Printf("skipping inactive job %s", name)
			continue
		}
		name := name
		g.Go(func() error {
			status, err := o.registry.TryStart(name)
			if err != nil {
				tr.Printf("skipping %s: %v", name, err)
				return nil
			}

			jobTr, err := NewTranscript(o.logsDir, name, status.StartedAt)
			if err != nil {
				o.registry.Finish(name, status.StartedAt, status.LogFile, nil, err)
				return nil
			}
			defer jobTr.Close()
			jobTr.Notify(func(progress []string) { o.registry.UpdateProgress(name, progress) })

			runErr := o.runSource(ctx, job, jobTr)
			if runErr != nil {
				jobTr.Fail(runErr)
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
			}
			o.registry.Finish(name, status.StartedAt, status.LogFile, jobTr.Progress(), runErr)
			logger.LogJob(name, time.Since(status.StartedAt), runErr)
			tr.Printf("%s done (err=%v)", name, runErr)
			return nil
		})
	}
	_ = g.Wait()

	for _, name := range o.derived.Names() {
		tr.Printf("recalculating derived series %s", name)
		if err := o.derived.Run(ctx, name); err != nil {
			failed = append(failed, name)
			tr.Printf("derived %s failed: %v", name, err)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d job(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// runSource is the sequential job body: fetch, parse, normalize, commit.
func (o *Orchestrator) runSource(ctx context.Context, job ingesta.JobConfig, tr *Transcript) error {
	if err := validateJob(job); err != nil {
		return err
	}

	mode, err := upsert.ParseMode(job.Mode)
	if err != nil {
		return &ConfigMissing{Job: job.Name, Field: "mode"}
	}

	if job.Driver == "browser" {
		if err := o.browserSem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer o.browserSem.Release(1)
	}

	driver, err := fetch.ForKind(job.Driver, o.cache, o.browserCfg)
	if err != nil {
		return err
	}

	tr.Printf("fetching %s via %s", job.URL, job.Driver)
	path, err := driver.Fetch(ctx, descriptorFor(job))
	if err != nil {
		// data_raw stays authoritative across re-runs: a working copy from
		// an earlier fetch keeps the job alive when the source is down.
		cached, cacheErr := o.cache.NewestMatching(cachedPattern(job.File))
		if cacheErr != nil {
			return err
		}
		tr.Printf("fetch failed (%v), reusing cached artifact %s", err, filepath.Base(cached))
		path = cached
	}
	tr.Printf("artifact at %s", path)

	parser, err := parse.ForKind(job.Parser)
	if err != nil {
		return err
	}
	result, err := parser.Parse(path, parse.Options{
		Sheet:       job.Sheet,
		SkipRows:    job.SkipRows,
		DateColumn:  job.DateColumn,
		ValueColumn: job.ValueColumn,
		Periodicity: job.Periodicity,
	})
	if err != nil {
		return err
	}
	tr.Printf("parsed %d/%d rows, range %s .. %s",
		result.Kept, result.RawCount,
		result.From.Format("2006-01-02"), result.To.Format("2006-01-02"))

	points, err := temporal.ValidateDates(result.Points)
	if err != nil {
		return err
	}
	if job.HistoricalFile != "" {
		historical, err := parser.Parse(o.cache.HistoricoPath(job.HistoricalFile), parse.Options{
			Sheet:       job.Sheet,
			SkipRows:    job.SkipRows,
			DateColumn:  job.DateColumn,
			ValueColumn: job.ValueColumn,
			Periodicity: job.Periodicity,
		})
		if err != nil {
			return err
		}
		points = temporal.MergeKeepNew(historical.Points, points)
		tr.Printf("merged under %s: %d points total", job.HistoricalFile, len(points))
	}
	if job.ToMonthly {
		points = temporal.ToMonthly(points)
		tr.Printf("aggregated to %d monthly points", len(points))
	}
	if job.FillDaily {
		points = temporal.CompleteDaily(points, job.BusinessOnly)
		tr.Printf("completed daily calendar to %d points", len(points))
	}

	commit, err := o.engine.CommitSeries(ctx, job.VariableID, job.CountryID, points, mode)
	if err != nil {
		return err
	}
	tr.Printf("committed: inserted=%d updated=%d total=%d", commit.Inserted, commit.Updated, commit.Total)

	snapshot, err := o.cache.Snapshot(job.File)
	if err != nil {
		return err
	}
	if o.spaces != nil {
		if err := o.spaces.MirrorSnapshot(ctx, snapshot); err != nil {
			// Mirroring is best-effort: the commit already succeeded.
			tr.Printf("snapshot mirror failed: %v", err)
		}
	}
	return nil
}

func validateJob(job ingesta.JobConfig) error {
	switch {
	case job.VariableID <= 0:
		return &ConfigMissing{Job: job.Name, Field: "variable_id"}
	case job.CountryID <= 0:
		return &ConfigMissing{Job: job.Name, Field: "country_id"}
	case job.Driver == "":
		return &ConfigMissing{Job: job.Name, Field: "driver"}
	case job.URL == "":
		return &ConfigMissing{Job: job.Name, Field: "url"}
	case job.File == "":
		return &ConfigMissing{Job: job.Name, Field: "file"}
	case job.Parser == "":
		return &ConfigMissing{Job: job.Name, Field: "parser"}
	}
	return nil
}

func descriptorFor(job ingesta.JobConfig) fetch.Descriptor {
	var start time.Time
	if job.StartDate != "" {
		if t, err := time.Parse("2006-01-02", job.StartDate); err == nil {
			start = t
		}
	}
	return fetch.Descriptor{
		Kind:          job.Driver,
		URL:           job.URL,
		Canonical:     job.File,
		InsecureTLS:   job.InsecureTLS,
		MonthlyProbe:  job.MonthlyProbe,
		Selector:      job.Selector,
		WindowYears:   job.WindowYears,
		APIKeyParam:   job.APIKeyParam,
		APIKey:        job.APIKey,
		StartDate:     start,
		CleanPatterns: vendorPatterns(job.File),
	}
}

// vendorPatterns builds the "file (1).xlsx" style globs browsers and
// vendors leave next to the canonical name.
func vendorPatterns(canonical string) []string {
	ext := filepath.Ext(canonical)
	base := strings.TrimSuffix(canonical, ext)
	return []string{base + " (*" + ext}
}

// cachedPattern matches the canonical working copy and any vendor-named
// leftover for a source file.
func cachedPattern(canonical string) string {
	ext := filepath.Ext(canonical)
	return strings.TrimSuffix(canonical, ext) + "*" + ext
}
