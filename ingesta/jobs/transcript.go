package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	transcriptKeepLines  = 100
	transcriptShowLines  = 5
	logTimestampLayout   = "20060102_150405"
	transcriptTimeLayout = "2006-01-02 15:04:05"
)

// LogFileName builds the per-run transcript filename for a job.
func LogFileName(job string, start time.Time) string {
	return fmt.Sprintf("update_%s_%s.log", job, start.Format(logTimestampLayout))
}

// Transcript is the per-run plain-text log: every line goes to the file,
// the last 100 stay in memory, and the last 5 are exposed as progress.
type Transcript struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	lines   []string
	publish func([]string)
}

// NewTranscript opens the log file and writes the run header.
func NewTranscript(logsDir, job string, start time.Time) (*Transcript, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	path := filepath.Join(logsDir, LogFileName(job, start))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	t := &Transcript{file: file, path: path}
	t.Printf("=== %s === Inicio: %s", job, start.Format(time.RFC3339))
	return t, nil
}

func (t *Transcript) Path() string {
	return t.path
}

// Notify registers a sink that receives the progress window after every
// line, starting with whatever was already written.
func (t *Transcript) Notify(fn func([]string)) {
	t.mu.Lock()
	t.publish = fn
	window := t.window()
	t.mu.Unlock()

	fn(window)
}

// Printf appends one timestamped line to the transcript and pushes the
// fresh window to the registered sink.
func (t *Transcript) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)

	t.mu.Lock()
	fmt.Fprintf(t.file, "[%s] %s\n", time.Now().Format(transcriptTimeLayout), line)
	t.lines = append(t.lines, line)
	if len(t.lines) > transcriptKeepLines {
		t.lines = t.lines[len(t.lines)-transcriptKeepLines:]
	}
	window := t.window()
	publish := t.publish
	t.mu.Unlock()

	if publish != nil {
		publish(window)
	}
}

// Fail annotates the transcript with the terminal error.
func (t *Transcript) Fail(err error) {
	t.Printf("ERROR: %v", err)
}

// Progress returns the last few lines for the status endpoint.
func (t *Transcript) Progress() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window()
}

// window copies the last few lines. Caller holds mu.
func (t *Transcript) window() []string {
	n := len(t.lines)
	if n > transcriptShowLines {
		n = transcriptShowLines
	}
	out := make([]string, n)
	copy(out, t.lines[len(t.lines)-n:])
	return out
}

func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
