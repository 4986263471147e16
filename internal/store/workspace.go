package store

import (
	"sync"

	"github.com/arcreactor/workspace/internal/samplesheet"
)

// WorkspaceState is the pipeline workspace: the selected pipeline and the
// file contents being edited for submission.
type WorkspaceState struct {
	SelectedPipeline string
	SelectedVersion  string
	Samplesheet      string
	Config           string
	Validation       *samplesheet.ValidationResult
	IsDirty          bool
	SamplesheetDirty bool
	ConfigDirty      bool
}

// WorkspaceStore owns the workspace state.
type WorkspaceStore struct {
	mu    sync.RWMutex
	state WorkspaceState
	hub   hub[WorkspaceState]
}

// NewWorkspaceStore creates an empty workspace.
func NewWorkspaceStore() *WorkspaceStore {
	return &WorkspaceStore{}
}

// Update applies fn under the write lock and notifies subscribers.
func (s *WorkspaceStore) Update(fn func(*WorkspaceState)) {
	s.hub.commit(func() WorkspaceState {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(&s.state)
		return s.state.clone()
	})
}

// Snapshot returns a copy of the current state.
func (s *WorkspaceStore) Snapshot() WorkspaceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn for post-update snapshots.
func (s *WorkspaceStore) Subscribe(fn func(WorkspaceState)) func() {
	return s.hub.subscribe(fn)
}

// Samplesheet returns the current samplesheet text.
func (s *WorkspaceStore) Samplesheet() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Samplesheet
}

// Config returns the current pipeline config text.
func (s *WorkspaceStore) Config() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Config
}

// SetPipeline selects a pipeline and resets the dirty flags.
func (s *WorkspaceStore) SetPipeline(pipeline, version string) {
	s.Update(func(st *WorkspaceState) {
		st.SelectedPipeline = pipeline
		st.SelectedVersion = version
		st.IsDirty = false
		st.SamplesheetDirty = false
		st.ConfigDirty = false
	})
}

// SetSamplesheet replaces the samplesheet text.
func (s *WorkspaceStore) SetSamplesheet(text string) {
	s.Update(func(st *WorkspaceState) {
		st.Samplesheet = text
		st.IsDirty = true
		st.SamplesheetDirty = true
	})
}

// SetConfig replaces the pipeline config text.
func (s *WorkspaceStore) SetConfig(text string) {
	s.Update(func(st *WorkspaceState) {
		st.Config = text
		st.IsDirty = true
		st.ConfigDirty = true
	})
}

// SetValidationResult stores the latest validation outcome.
func (s *WorkspaceStore) SetValidationResult(result *samplesheet.ValidationResult) {
	s.Update(func(st *WorkspaceState) { st.Validation = result })
}

// Clear restores the initial state.
func (s *WorkspaceStore) Clear() {
	s.Update(func(st *WorkspaceState) { *st = WorkspaceState{} })
}

// ValidateSamplesheet checks the current samplesheet against the columns of
// the selected pipeline and stores the result.
func (s *WorkspaceStore) ValidateSamplesheet() (samplesheet.ValidationResult, error) {
	snap := s.Snapshot()
	columns := samplesheet.ColumnsFor(snap.SelectedPipeline)

	result, _, err := samplesheet.ValidateText(snap.Samplesheet, columns)
	if err != nil {
		return samplesheet.ValidationResult{}, err
	}
	s.SetValidationResult(&result)
	return result, nil
}

func (st WorkspaceState) clone() WorkspaceState {
	out := st
	if st.Validation != nil {
		v := *st.Validation
		v.Errors = append([]samplesheet.Issue(nil), st.Validation.Errors...)
		v.Warnings = append([]samplesheet.Issue(nil), st.Validation.Warnings...)
		out.Validation = &v
	}
	return out
}
