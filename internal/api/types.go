package api

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusSubmitted RunStatus = "submitted"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// IsActiveStatus reports whether a run is still progressing.
func IsActiveStatus(s RunStatus) bool {
	return s == StatusPending || s == StatusSubmitted || s == StatusRunning
}

// IsTerminalStatus reports whether a run has finished.
func IsTerminalStatus(s RunStatus) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// RunSummary is a pipeline run as listed by the backend.
type RunSummary struct {
	ID          string    `json:"id"`
	Pipeline    string    `json:"pipeline"`
	Version     string    `json:"version,omitempty"`
	Status      RunStatus `json:"status"`
	SampleCount *int      `json:"sampleCount,omitempty"`
	CreatedAt   string    `json:"createdAt,omitempty"`
	StartedAt   string    `json:"startedAt,omitempty"`
	CompletedAt string    `json:"completedAt,omitempty"`
}

// PipelineSummary describes an available pipeline.
type PipelineSummary struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// RecoverOptions tweaks a run recovery.
type RecoverOptions struct {
	Notes              string         `json:"notes,omitempty"`
	OverrideParameters map[string]any `json:"overrideParameters,omitempty"`
	OverrideConfig     string         `json:"overrideConfig,omitempty"`
}

// Task is one Nextflow process execution within a run.
type Task struct {
	ID           string   `json:"id"`
	RunID        string   `json:"run_id"`
	TaskID       int      `json:"task_id"`
	Hash         string   `json:"hash"`
	Name         string   `json:"name"`
	Process      string   `json:"process"`
	Status       string   `json:"status"`
	ExitCode     *int     `json:"exit_code,omitempty"`
	SubmitTime   *int64   `json:"submit_time,omitempty"`
	StartTime    *int64   `json:"start_time,omitempty"`
	CompleteTime *int64   `json:"complete_time,omitempty"`
	DurationMS   *int64   `json:"duration_ms,omitempty"`
	RealtimeMS   *int64   `json:"realtime_ms,omitempty"`
	CPUPercent   *float64 `json:"cpu_percent,omitempty"`
	PeakRSS      *int64   `json:"peak_rss,omitempty"`
	PeakVMem     *int64   `json:"peak_vmem,omitempty"`
	Workdir      string   `json:"workdir,omitempty"`
	Container    string   `json:"container,omitempty"`
	Attempt      int      `json:"attempt"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// TaskSummary counts a run's tasks by status.
type TaskSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Running   int `json:"running"`
	Submitted int `json:"submitted"`
	Failed    int `json:"failed"`
	Cached    int `json:"cached"`
}
