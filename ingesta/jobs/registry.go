package jobs

import (
	"fmt"
	"sync"
	"time"
)

// Status is an immutable snapshot of one job's state. The runner publishes
// a fresh snapshot on every transition; readers never see a partially
// updated record.
type Status struct {
	Name        string     `json:"name"`
	Running     bool       `json:"running"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ReturnCode  *int       `json:"returncode,omitempty"`
	Progress    []string   `json:"progress"`
	Error       string     `json:"error,omitempty"`
	LogFile     string     `json:"log_file"`
}

// JobAlreadyRunning is returned when the single-runner guard trips.
type JobAlreadyRunning struct {
	Job       string
	StartedAt time.Time
}

func (e *JobAlreadyRunning) Error() string {
	return fmt.Sprintf("job %q already running since %s", e.Job, e.StartedAt.Format(time.RFC3339))
}

// Registry is the concurrency-safe job status store. A job is identified
// by name, not by goroutine or PID; the check-and-start is atomic.
type Registry struct {
	mu       sync.Mutex
	statuses map[string]*Status
}

func NewRegistry() *Registry {
	return &Registry{statuses: make(map[string]*Status)}
}

// TryStart flips the job to running if and only if it is not already. On
// contention the current status is returned inside JobAlreadyRunning. The
// start time and transcript name come from one clock read, so log_file
// always names the file the runner actually writes.
func (r *Registry) TryStart(name string) (*Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.statuses[name]; ok && current.Running {
		return nil, &JobAlreadyRunning{Job: name, StartedAt: current.StartedAt}
	}

	started := time.Now()
	status := &Status{
		Name:      name,
		Running:   true,
		StartedAt: started,
		LogFile:   LogFileName(name, started),
		Progress:  []string{},
	}
	r.statuses[name] = status
	return status, nil
}

// UpdateProgress refreshes the progress window on a running job. Finished
// snapshots are immutable; a line arriving after Finish is dropped.
func (r *Registry) UpdateProgress(name string, progress []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.statuses[name]
	if !ok || !current.Running {
		return
	}
	next := *current
	next.Progress = progress
	r.statuses[name] = &next
}

// Publish replaces the stored snapshot for a job.
func (r *Registry) Publish(status *Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status.Name] = status
}

// Get returns the latest snapshot for a job, or nil when it never ran.
func (r *Registry) Get(name string) *Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[name]
}

// Finish publishes the terminal snapshot for a run.
func (r *Registry) Finish(name string, started time.Time, logFile string, progress []string, runErr error) {
	completed := time.Now()
	code := 0
	errMsg := ""
	if runErr != nil {
		code = 1
		errMsg = runErr.Error()
	}
	r.Publish(&Status{
		Name:        name,
		Running:     false,
		StartedAt:   started,
		CompletedAt: &completed,
		ReturnCode:  &code,
		Progress:    progress,
		Error:       errMsg,
		LogFile:     logFile,
	})
}
