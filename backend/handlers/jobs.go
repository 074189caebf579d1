package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilm/fuzzy"

	"github.com/macrodatos/ingesta/backend/models"
	"github.com/macrodatos/ingesta/backend/utils"
	"github.com/macrodatos/ingesta/ingesta/jobs"
)

const logListLimit = 50

// JobHandlers exposes the job-control surface over the orchestrator.
type JobHandlers struct {
	orchestrator *jobs.Orchestrator
	logsDir      string
}

func NewJobHandlers(orchestrator *jobs.Orchestrator, logsDir string) *JobHandlers {
	return &JobHandlers{orchestrator: orchestrator, logsDir: logsDir}
}

type runRequest struct {
	Job string `json:"job"`
}

// Run starts the composite update (or a named job when the body asks for
// one). A run already in flight answers 409 with its current status.
func (h *JobHandlers) Run(c *fiber.Ctx) error {
	name := jobs.CompositeJob
	var req runRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "invalid request body", nil)
		}
		if req.Job != "" {
			name = req.Job
		}
	}
	return h.start(c, name)
}

// RunSingle starts one named job. Unknown names get a fuzzy suggestion.
func (h *JobHandlers) RunSingle(c *fiber.Ctx) error {
	return h.start(c, c.Params("name"))
}

func (h *JobHandlers) start(c *fiber.Ctx, name string) error {
	if !h.orchestrator.Known(name) {
		var details map[string]string
		if suggestion := h.suggest(name); suggestion != "" {
			details = map[string]string{"did_you_mean": suggestion}
		}
		return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "unknown job "+name, details)
	}

	status, err := h.orchestrator.Start(name)
	if err != nil {
		var running *jobs.JobAlreadyRunning
		if errors.As(err, &running) {
			return utils.SendJSON(c, fiber.StatusConflict,
				models.NewErrorResponse("ALREADY_RUNNING", err.Error(), map[string]string{
					"job":        running.Job,
					"started_at": running.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
				}))
		}
		return utils.SendInternalServerError(c, err.Error())
	}
	return utils.SendAccepted(c, status, "job started")
}

// Status reports the composite run.
func (h *JobHandlers) Status(c *fiber.Ctx) error {
	return h.statusOf(c, jobs.CompositeJob)
}

// StatusSingle reports one named job.
func (h *JobHandlers) StatusSingle(c *fiber.Ctx) error {
	return h.statusOf(c, c.Params("name"))
}

func (h *JobHandlers) statusOf(c *fiber.Ctx, name string) error {
	if !h.orchestrator.Known(name) {
		return utils.SendNotFound(c, "unknown job "+name)
	}
	status := h.orchestrator.Status(name)
	if status == nil {
		status = &jobs.Status{Name: name, Progress: []string{}}
	}
	return utils.SendSuccess(c, status, "")
}

// Logs lists the most recent transcript files.
func (h *JobHandlers) Logs(c *fiber.Ctx) error {
	entries, err := os.ReadDir(h.logsDir)
	if err != nil {
		return utils.SendInternalServerError(c, "failed to read log directory")
	}

	var files []models.LogFileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, models.LogFileInfo{
			Filename: e.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	if len(files) > logListLimit {
		files = files[:logListLimit]
	}
	return utils.SendSuccess(c, files, "")
}

// LogFile streams one transcript as text/plain. Anything that does not
// resolve under the log directory is refused.
func (h *JobHandlers) LogFile(c *fiber.Ctx) error {
	name := c.Params("filename")
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return utils.SendBadRequest(c, "invalid log filename", nil)
	}

	path := filepath.Join(h.logsDir, name)
	if _, err := os.Stat(path); err != nil {
		return utils.SendNotFound(c, "log file not found")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendFile(path)
}

func (h *JobHandlers) suggest(name string) string {
	names := h.orchestrator.Names()
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
