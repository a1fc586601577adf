// Package runtime provides the client for the remote pipeline-execution
// runtime: run creation, dual-channel run monitoring (event stream plus
// polling), and step-output retrieval.
package runtime

import (
	"encoding/json"
	"strings"
)

// RunStatus is the overall status of a pipeline run as reported by the runtime.
type RunStatus string

// Run status values. Terminal statuses are monotonic: once a run reaches one,
// its status never changes again.
const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
	StatusError     RunStatus = "error"
)

// IsTerminal reports whether the status is a final state for the run.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusError:
		return true
	}
	return false
}

// StepStatus is the last known condition of a single pipeline step.
type StepStatus string

// Step status values.
const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// StepState holds a step's status and its structured output, if any.
// The output schema is step-specific and opaque to the monitor; only the
// scaffold step's "files" field is interpreted (by the extractor).
type StepState struct {
	Status StepStatus      `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
}

// PipelineRun is the reconstructed view of one remote run, folded together
// from stream frames and poll snapshots.
type PipelineRun struct {
	RunID  string
	Status RunStatus
	Steps  map[string]StepState
}

// ApplyStep folds in a step transition. A step already observed as success is
// never regressed to an earlier status; last-writer-wins would be unsafe here
// because the two channels deliver transitions in no particular order.
// Re-reporting the stored status is not a transition: poll snapshots replay
// the full run state every tick, and counting those replays as progress would
// grow the progress text without bound.
// Returns false when nothing changed or the transition was rejected as a
// regression.
func (r *PipelineRun) ApplyStep(stepID string, status StepStatus) bool {
	if stepID == "" || status == "" {
		return false
	}
	if r.Steps == nil {
		r.Steps = make(map[string]StepState)
	}
	cur, ok := r.Steps[stepID]
	if ok && cur.Status == status {
		return false
	}
	if ok && cur.Status == StepSuccess {
		return false
	}
	cur.Status = status
	r.Steps[stepID] = cur
	return true
}

// ApplyStatus folds in an overall run status. Once the run is terminal the
// status is frozen. Returns true when the stored status changed.
func (r *PipelineRun) ApplyStatus(status RunStatus) bool {
	if status == "" || status == r.Status {
		return false
	}
	if r.Status.IsTerminal() {
		return false
	}
	r.Status = status
	return true
}

// Clone returns a deep copy of the run, safe to hand to callers while the
// monitor keeps mutating the original.
func (r *PipelineRun) Clone() *PipelineRun {
	cp := &PipelineRun{RunID: r.RunID, Status: r.Status}
	if r.Steps != nil {
		cp.Steps = make(map[string]StepState, len(r.Steps))
		for id, st := range r.Steps {
			out := make(json.RawMessage, len(st.Output))
			copy(out, st.Output)
			if len(out) == 0 {
				out = nil
			}
			cp.Steps[id] = StepState{Status: st.Status, Output: out}
		}
	}
	return cp
}

// WatchSnapshot is the poll channel's full view of a run at one instant.
type WatchSnapshot struct {
	Status      RunStatus                  `json:"status"`
	Results     map[string]json.RawMessage `json:"results,omitempty"`
	ActivePaths map[string]StepStatus      `json:"activePaths,omitempty"`
	Timestamp   int64                      `json:"timestamp,omitempty"`
}

// RunRecord is the full run record returned by the runs endpoint.
type RunRecord struct {
	Steps map[string]StepState `json:"steps"`
}

// FileRef is one file reported in a step's structured output.
type FileRef struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// StepFiles is the portion of a scaffold step's output the client interprets.
type StepFiles struct {
	Files []FileRef `json:"files"`
}

// IsScaffoldStep reports whether a step identifier matches the scaffold
// naming convention used by the pipeline (e.g. "scaffoldProject").
func IsScaffoldStep(stepID string) bool {
	return strings.Contains(strings.ToLower(stepID), "scaffold")
}
