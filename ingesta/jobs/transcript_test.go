package jobs

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestTranscript(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, time.July, 15, 9, 30, 45, 0, time.UTC)

	tr, err := NewTranscript(dir, "ipc", start)
	if err != nil {
		t.Fatalf("NewTranscript() error = %v", err)
	}

	tr.Printf("descarga completa: %d filas", 120)
	tr.Fail(fmt.Errorf("commit rechazado"))
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("failed to read transcript: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "=== ipc === Inicio: 2025-07-15T09:30:45Z") {
		t.Errorf("transcript missing run header:\n%s", content)
	}
	if !strings.Contains(content, "descarga completa: 120 filas") {
		t.Errorf("transcript missing progress line:\n%s", content)
	}
	if !strings.Contains(content, "ERROR: commit rechazado") {
		t.Errorf("transcript missing error line:\n%s", content)
	}

	if !strings.HasSuffix(tr.Path(), "update_ipc_20250715_093045.log") {
		t.Errorf("transcript path = %q, want update_ipc_20250715_093045.log suffix", tr.Path())
	}
}

func TestTranscript_Progress(t *testing.T) {
	tr, err := NewTranscript(t.TempDir(), "tc", time.Now())
	if err != nil {
		t.Fatalf("NewTranscript() error = %v", err)
	}
	defer tr.Close()

	for i := 1; i <= 10; i++ {
		tr.Printf("paso %d", i)
	}

	got := tr.Progress()
	if len(got) != 5 {
		t.Fatalf("Progress() returned %d lines, want 5", len(got))
	}
	if got[0] != "paso 6" || got[4] != "paso 10" {
		t.Errorf("Progress() = %v, want the last five lines", got)
	}
}

func TestTranscript_Notify(t *testing.T) {
	tr, err := NewTranscript(t.TempDir(), "ipc", time.Now())
	if err != nil {
		t.Fatalf("NewTranscript() error = %v", err)
	}
	defer tr.Close()

	var windows [][]string
	tr.Notify(func(progress []string) {
		windows = append(windows, progress)
	})

	// Registration replays what was already written (the run header).
	if len(windows) != 1 || len(windows[0]) != 1 {
		t.Fatalf("sink saw %v at registration, want the header line", windows)
	}

	tr.Printf("descargando")
	tr.Printf("analizando")

	if len(windows) != 3 {
		t.Fatalf("sink called %d times, want 3", len(windows))
	}
	last := windows[2]
	if last[len(last)-1] != "analizando" {
		t.Errorf("last window = %v, want it to end with the latest line", last)
	}
}

func TestTranscript_KeepsBoundedHistory(t *testing.T) {
	tr, err := NewTranscript(t.TempDir(), "tc", time.Now())
	if err != nil {
		t.Fatalf("NewTranscript() error = %v", err)
	}
	defer tr.Close()

	for i := 0; i < 500; i++ {
		tr.Printf("linea %d", i)
	}

	tr.mu.Lock()
	kept := len(tr.lines)
	tr.mu.Unlock()
	if kept != transcriptKeepLines {
		t.Errorf("transcript keeps %d lines in memory, want %d", kept, transcriptKeepLines)
	}
}
