package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/macrodatos/ingesta/backend/models"
	"github.com/macrodatos/ingesta/ingesta"
	"github.com/macrodatos/ingesta/ingesta/derived"
	"github.com/macrodatos/ingesta/ingesta/jobs"
	"github.com/macrodatos/ingesta/ingesta/rawcache"
	"github.com/macrodatos/ingesta/ingesta/upsert"
)

func testApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	base := t.TempDir()
	logsDir := filepath.Join(base, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		t.Fatalf("failed to create logs dir: %v", err)
	}

	cache, err := rawcache.New(filepath.Join(base, "data_raw"), filepath.Join(base, "historicos"))
	if err != nil {
		t.Fatalf("rawcache.New() error = %v", err)
	}
	cfg := &ingesta.Config{
		Cache: ingesta.CacheConfig{LogsDir: logsDir},
		Jobs: []ingesta.JobConfig{
			{Name: "ipc", Active: true},
		},
	}
	orchestrator := jobs.NewOrchestrator(cfg, cache,
		upsert.NewEngine(nil, nil),
		derived.NewRunner(nil, nil, nil),
		jobs.NewRegistry(), nil)

	h := NewJobHandlers(orchestrator, logsDir)
	app := fiber.New()
	app.Post("/run", h.Run)
	app.Get("/status", h.Status)
	app.Get("/logs", h.Logs)
	app.Get("/logs/:filename", h.LogFile)
	app.Post("/run-single/:name", h.RunSingle)
	app.Get("/status-single/:name", h.StatusSingle)
	return app, logsDir
}

func decodeResponse(t *testing.T, body io.Reader) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestJobHandlers_RunSingle_Unknown(t *testing.T) {
	app, _ := testApp(t)

	req := httptest.NewRequest("POST", "/run-single/ip", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want %d", res.StatusCode, fiber.StatusNotFound)
	}

	resp := decodeResponse(t, res.Body)
	if resp.Success {
		t.Error("unknown job reported success")
	}
	if resp.Error == nil || resp.Error.Details["did_you_mean"] != "ipc" {
		t.Errorf("expected did_you_mean=ipc suggestion, got %+v", resp.Error)
	}
}

func TestJobHandlers_StatusSingle_NeverRan(t *testing.T) {
	app, _ := testApp(t)

	req := httptest.NewRequest("GET", "/status-single/ipc", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want %d", res.StatusCode, fiber.StatusOK)
	}

	resp := decodeResponse(t, res.Body)
	if !resp.Success {
		t.Error("status for a never-run job should succeed")
	}
}

func TestJobHandlers_StatusSingle_Unknown(t *testing.T) {
	app, _ := testApp(t)

	req := httptest.NewRequest("GET", "/status-single/nada", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want %d", res.StatusCode, fiber.StatusNotFound)
	}
}

func TestJobHandlers_Logs(t *testing.T) {
	app, logsDir := testApp(t)

	for _, name := range []string{"update_ipc_20250101_000000.log", "update_tc_20250102_000000.log"} {
		if err := os.WriteFile(filepath.Join(logsDir, name), []byte("contenido"), 0o644); err != nil {
			t.Fatalf("failed to write log fixture: %v", err)
		}
	}
	// Non-log files are excluded from the listing.
	if err := os.WriteFile(filepath.Join(logsDir, "notas.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	req := httptest.NewRequest("GET", "/logs", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer res.Body.Close()

	var resp struct {
		Success bool                 `json:"success"`
		Data    []models.LogFileInfo `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("listing holds %d files, want 2", len(resp.Data))
	}
	for _, f := range resp.Data {
		if !strings.HasSuffix(f.Filename, ".log") {
			t.Errorf("listing contains non-log file %q", f.Filename)
		}
	}
}

func TestJobHandlers_LogFile(t *testing.T) {
	app, logsDir := testApp(t)

	if err := os.WriteFile(filepath.Join(logsDir, "update_ipc_20250101_000000.log"),
		[]byte("=== ipc ==="), 0o644); err != nil {
		t.Fatalf("failed to write log fixture: %v", err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "existing", path: "/logs/update_ipc_20250101_000000.log", wantStatus: fiber.StatusOK},
		{name: "missing", path: "/logs/no_existe.log", wantStatus: fiber.StatusNotFound},
		{name: "traversal", path: "/logs/..%2F..%2Fetc%2Fpasswd", wantStatus: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			res, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == fiber.StatusOK {
				body, _ := io.ReadAll(res.Body)
				if string(body) != "=== ipc ===" {
					t.Errorf("body = %q, want transcript content", body)
				}
			}
		})
	}
}
