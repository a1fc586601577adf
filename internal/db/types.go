package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run status values stored in scaffold_runs.status.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ScaffoldRun is a row in scaffold_runs. RemoteID is the identifier the
// pipeline runtime assigned; ID is ours.
type ScaffoldRun struct {
	ID             uuid.UUID
	RemoteID       string
	Idea           string
	ProjectName    string
	Slug           string
	Status         string
	OutputDir      *string
	FilesExtracted int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// StepResult is a row in run_steps: the last observed state of one pipeline
// step within a run.
type StepResult struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	StepID    string
	Status    string
	Output    json.RawMessage
	UpdatedAt time.Time
}

// CachedPage is a row in reference_pages: a fetched idea-context page kept
// for reuse across runs.
type CachedPage struct {
	ID         uuid.UUID
	URL        string
	RawHTML    *string
	ParsedText *string
	HTTPStatus *int
	FetchedAt  time.Time
}
