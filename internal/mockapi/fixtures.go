package mockapi

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arcreactor/workspace/internal/api"
	"github.com/arcreactor/workspace/internal/shared/id"
)

var (
	errRunNotFound = errors.New("run not found")
	errRunTerminal = errors.New("run is already in terminal state")
	errRunActive   = errors.New("run is still active")
)

// Fixtures is the in-memory run, task and pipeline store.
type Fixtures struct {
	mu        sync.RWMutex
	runs      map[string]*api.RunSummary
	tasks     map[string][]api.Task
	pipelines []api.PipelineSummary
	ids       *id.Generator
	now       func() time.Time
}

// NewFixtures returns a store seeded with one run per status and the
// pipelines the column schema knows.
func NewFixtures() *Fixtures {
	f := &Fixtures{
		runs:  make(map[string]*api.RunSummary),
		tasks: make(map[string][]api.Task),
		pipelines: []api.PipelineSummary{
			{Name: "nf-core/scrnaseq", Version: "2.7.1", Description: "Single-cell RNA-seq alignment and quantification"},
			{Name: "nf-core/rnaseq", Version: "3.14.0", Description: "Bulk RNA-seq analysis"},
		},
		ids: id.NewGenerator(),
		now: time.Now,
	}

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []struct {
		id     string
		status api.RunStatus
		tasks  []string
	}{
		{"run-completed", api.StatusCompleted, []string{"COMPLETED", "COMPLETED", "CACHED"}},
		{"run-failed", api.StatusFailed, []string{"COMPLETED", "FAILED"}},
		{"run-running", api.StatusRunning, []string{"COMPLETED", "RUNNING", "SUBMITTED"}},
		{"run-pending", api.StatusPending, nil},
	}
	for i, s := range seed {
		samples := 4
		run := &api.RunSummary{
			ID:          s.id,
			Pipeline:    "nf-core/scrnaseq",
			Version:     "2.7.1",
			Status:      s.status,
			SampleCount: &samples,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		}
		if s.status != api.StatusPending {
			run.StartedAt = base.Add(time.Duration(i)*time.Hour + time.Minute).Format(time.RFC3339)
		}
		if api.IsTerminalStatus(s.status) {
			run.CompletedAt = base.Add(time.Duration(i)*time.Hour + 30*time.Minute).Format(time.RFC3339)
		}
		f.runs[s.id] = run
		f.tasks[s.id] = seedTasks(s.id, s.tasks)
	}
	return f
}

func seedTasks(runID string, statuses []string) []api.Task {
	tasks := make([]api.Task, 0, len(statuses))
	for i, status := range statuses {
		task := api.Task{
			ID:      fmt.Sprintf("%s-task-%d", runID, i+1),
			RunID:   runID,
			TaskID:  i + 1,
			Hash:    fmt.Sprintf("ab/%02x12cd", i),
			Name:    fmt.Sprintf("NFCORE_SCRNASEQ:STARSOLO (sample%d)", i+1),
			Process: "NFCORE_SCRNASEQ:STARSOLO",
			Status:  status,
			Attempt: 1,
		}
		if status == "FAILED" {
			code := 137
			task.ExitCode = &code
			task.ErrorMessage = "Process exceeded memory limit"
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// Runs lists runs newest first.
func (f *Fixtures) Runs() []api.RunSummary {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]api.RunSummary, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Run returns one run.
func (f *Fixtures) Run(runID string) (api.RunSummary, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	run, ok := f.runs[runID]
	if !ok {
		return api.RunSummary{}, false
	}
	return *run, true
}

// CreateRun stores a pending run for pipeline.
func (f *Fixtures) CreateRun(pipeline, version string, sampleCount int) api.RunSummary {
	f.mu.Lock()
	defer f.mu.Unlock()

	run := &api.RunSummary{
		ID:          f.ids.GenerateWithPrefix("run"),
		Pipeline:    pipeline,
		Version:     version,
		Status:      api.StatusPending,
		SampleCount: &sampleCount,
		CreatedAt:   f.now().UTC().Format(time.RFC3339Nano),
	}
	f.runs[run.ID] = run
	return *run
}

// Cancel moves an active run to cancelled.
func (f *Fixtures) Cancel(runID string) (api.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	run, ok := f.runs[runID]
	if !ok {
		return api.RunSummary{}, errRunNotFound
	}
	if api.IsTerminalStatus(run.Status) {
		return api.RunSummary{}, errRunTerminal
	}
	run.Status = api.StatusCancelled
	run.CompletedAt = f.now().UTC().Format(time.RFC3339Nano)
	return *run, nil
}

// Recover submits a new pending run copying a finished one.
func (f *Fixtures) Recover(runID string) (api.RunSummary, error) {
	f.mu.Lock()
	parent, ok := f.runs[runID]
	if !ok {
		f.mu.Unlock()
		return api.RunSummary{}, errRunNotFound
	}
	if !api.IsTerminalStatus(parent.Status) {
		f.mu.Unlock()
		return api.RunSummary{}, errRunActive
	}
	pipeline, version := parent.Pipeline, parent.Version
	samples := 0
	if parent.SampleCount != nil {
		samples = *parent.SampleCount
	}
	f.mu.Unlock()

	return f.CreateRun(pipeline, version, samples), nil
}

// SetStatus forces a run's status. It reports false for unknown runs.
func (f *Fixtures) SetStatus(runID string, status api.RunStatus) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	run, ok := f.runs[runID]
	if !ok {
		return false
	}
	f.setStatus(run, status)
	return true
}

func (f *Fixtures) setStatus(run *api.RunSummary, status api.RunStatus) {
	run.Status = status
	stamp := f.now().UTC().Format(time.RFC3339Nano)
	switch {
	case status == api.StatusRunning && run.StartedAt == "":
		run.StartedAt = stamp
	case api.IsTerminalStatus(status):
		run.CompletedAt = stamp
	}
}

// Delete removes a run and its tasks.
func (f *Fixtures) Delete(runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.runs, runID)
	delete(f.tasks, runID)
}

// Advance steps every active run one status forward:
// pending, submitted, running, completed.
func (f *Fixtures) Advance() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, run := range f.runs {
		switch run.Status {
		case api.StatusPending:
			f.setStatus(run, api.StatusSubmitted)
		case api.StatusSubmitted:
			f.setStatus(run, api.StatusRunning)
		case api.StatusRunning:
			f.setStatus(run, api.StatusCompleted)
		}
	}
}

// Tasks returns a run's tasks.
func (f *Fixtures) Tasks(runID string) ([]api.Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, ok := f.runs[runID]; !ok {
		return nil, false
	}
	tasks := make([]api.Task, len(f.tasks[runID]))
	copy(tasks, f.tasks[runID])
	return tasks, true
}

// Summary counts a run's tasks by status.
func (f *Fixtures) Summary(runID string) (api.TaskSummary, bool) {
	tasks, ok := f.Tasks(runID)
	if !ok {
		return api.TaskSummary{}, false
	}

	summary := api.TaskSummary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case "COMPLETED":
			summary.Completed++
		case "RUNNING":
			summary.Running++
		case "SUBMITTED":
			summary.Submitted++
		case "FAILED":
			summary.Failed++
		case "CACHED":
			summary.Cached++
		}
	}
	return summary, true
}

// Pipelines lists the known pipelines.
func (f *Fixtures) Pipelines() []api.PipelineSummary {
	out := make([]api.PipelineSummary, len(f.pipelines))
	copy(out, f.pipelines)
	return out
}

// Pipeline looks a pipeline up by name.
func (f *Fixtures) Pipeline(name string) (api.PipelineSummary, bool) {
	for _, p := range f.pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return api.PipelineSummary{}, false
}
