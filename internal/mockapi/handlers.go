package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcreactor/workspace/internal/api"
	"github.com/arcreactor/workspace/internal/events"
	"github.com/arcreactor/workspace/internal/samplesheet"
)

// errorResponse mirrors the backend error body.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func notFound(c *gin.Context, runID string) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{
		Error:  "Run not found",
		Detail: "No run exists with ID " + runID,
		Code:   "NOT_FOUND",
	})
}

func invalid(c *gin.Context, message, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:  message,
		Detail: detail,
		Code:   "VALIDATION_ERROR",
	})
}

// Health handles health check requests.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles readiness checks.
func (s *Server) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ListRuns returns every run, newest first.
func (s *Server) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, s.fixtures.Runs())
}

// GetRun returns one run.
func (s *Server) GetRun(c *gin.Context) {
	run, ok := s.fixtures.Run(c.Param("id"))
	if !ok {
		notFound(c, c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, run)
}

type createRunRequest struct {
	Pipeline        string         `json:"pipeline" binding:"required"`
	PipelineVersion string         `json:"pipeline_version"`
	SamplesheetCSV  string         `json:"samplesheet_csv"`
	Params          map[string]any `json:"params"`
}

// CreateRun submits a pending run.
func (s *Server) CreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "Invalid request", err.Error())
		return
	}

	pipeline, ok := s.fixtures.Pipeline(req.Pipeline)
	if !ok {
		invalid(c, "Pipeline not found", req.Pipeline)
		return
	}
	version := req.PipelineVersion
	if version == "" {
		version = pipeline.Version
	}
	if version != pipeline.Version {
		invalid(c, "Pipeline version not available", version)
		return
	}

	if strings.TrimSpace(req.SamplesheetCSV) == "" {
		invalid(c, "samplesheet_csv must include at least one sample", "")
		return
	}
	rows, err := samplesheet.Parse(req.SamplesheetCSV, samplesheet.ColumnsFor(req.Pipeline))
	if err != nil {
		invalid(c, "Invalid samplesheet", err.Error())
		return
	}

	c.JSON(http.StatusCreated, s.fixtures.CreateRun(req.Pipeline, version, len(rows)))
}

// CancelRun cancels an active run.
func (s *Server) CancelRun(c *gin.Context) {
	runID := c.Param("id")
	run, err := s.fixtures.Cancel(runID)
	switch {
	case errors.Is(err, errRunNotFound):
		notFound(c, runID)
	case errors.Is(err, errRunTerminal):
		current, _ := s.fixtures.Run(runID)
		invalid(c, "Run is already in terminal state", string(current.Status))
	default:
		c.JSON(http.StatusOK, run)
	}
}

// RecoverRun resubmits a finished run.
func (s *Server) RecoverRun(c *gin.Context) {
	var opts api.RecoverOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			invalid(c, "Invalid request", err.Error())
			return
		}
	}

	runID := c.Param("id")
	run, err := s.fixtures.Recover(runID)
	switch {
	case errors.Is(err, errRunNotFound):
		notFound(c, runID)
	case errors.Is(err, errRunActive):
		invalid(c, "Run is still active", runID)
	default:
		c.JSON(http.StatusCreated, run)
	}
}

// ListTasks returns a run's tasks.
func (s *Server) ListTasks(c *gin.Context) {
	tasks, ok := s.fixtures.Tasks(c.Param("id"))
	if !ok {
		notFound(c, c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// TaskSummary returns a run's task counts.
func (s *Server) TaskSummary(c *gin.Context) {
	summary, ok := s.fixtures.Summary(c.Param("id"))
	if !ok {
		notFound(c, c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListPipelines returns the known pipelines.
func (s *Server) ListPipelines(c *gin.Context) {
	c.JSON(http.StatusOK, s.fixtures.Pipelines())
}

// GetPipeline returns one pipeline. Names contain a slash, so the route
// is a catch-all.
func (s *Server) GetPipeline(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	pipeline, ok := s.fixtures.Pipeline(name)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{
			Error:  "Pipeline not found",
			Detail: name,
			Code:   "NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, pipeline)
}

// RunEvents streams a run's status changes as server-sent events. The
// first event carries the current status; a done event follows the first
// terminal status, removal of the run or the stream timeout.
func (s *Server) RunEvents(c *gin.Context) {
	runID := c.Param("id")
	run, ok := s.fixtures.Run(runID)
	if !ok {
		notFound(c, runID)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	emit := func(name string, ev events.StatusEvent) {
		c.SSEvent(name, ev)
		c.Writer.Flush()
	}

	last := run.Status
	emit(events.EventStatus, s.statusEvent(run))
	if api.IsTerminalStatus(last) {
		emit(events.EventDone, events.StatusEvent{Status: last, Timestamp: stamp()})
		return
	}

	ticker := time.NewTicker(s.cfg.Server.EventPoll)
	defer ticker.Stop()
	deadline := time.NewTimer(s.eventTimeout)
	defer deadline.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			emit(events.EventDone, events.StatusEvent{Status: "timeout"})
			return
		case <-ticker.C:
		}

		current, ok := s.fixtures.Run(runID)
		if !ok {
			emit(events.EventDone, events.StatusEvent{Status: "not_found"})
			return
		}
		if current.Status == last {
			continue
		}
		last = current.Status
		emit(events.EventStatus, s.statusEvent(current))
		if api.IsTerminalStatus(last) {
			emit(events.EventDone, events.StatusEvent{Status: last, Timestamp: stamp()})
			return
		}
	}
}

// statusEvent reports progress as the completed share of the run's tasks.
func (s *Server) statusEvent(run api.RunSummary) events.StatusEvent {
	ev := events.StatusEvent{Status: run.Status, Timestamp: stamp()}
	if summary, ok := s.fixtures.Summary(run.ID); ok && summary.Total > 0 {
		progress := float64(summary.Completed+summary.Cached) / float64(summary.Total)
		ev.Progress = &progress
	}
	return ev
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
