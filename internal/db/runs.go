package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRun records a new scaffold run and returns its ID.
func (db *DB) CreateRun(ctx context.Context, remoteID, idea, projectName, slug string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO scaffold_runs (remote_id, idea, project_name, slug, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		remoteID, idea, projectName, slug, RunStatusRunning,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a scaffold run as finished and records where and how many
// files were extracted.
func (db *DB) CompleteRun(ctx context.Context, id uuid.UUID, status, outputDir string, filesExtracted int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE scaffold_runs
		 SET status = $1, output_dir = $2, files_extracted = $3, completed_at = NOW()
		 WHERE id = $4`,
		status, nullIfEmpty(outputDir), filesExtracted, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRunByRemoteID retrieves a scaffold run by the runtime's run identifier.
// Returns nil when no such run exists.
func (db *DB) GetRunByRemoteID(ctx context.Context, remoteID string) (*ScaffoldRun, error) {
	var run ScaffoldRun
	err := db.pool.QueryRow(ctx,
		`SELECT id, remote_id, idea, project_name, slug, status, output_dir,
		        files_extracted, created_at, completed_at
		 FROM scaffold_runs WHERE remote_id = $1`,
		remoteID,
	).Scan(&run.ID, &run.RemoteID, &run.Idea, &run.ProjectName, &run.Slug,
		&run.Status, &run.OutputDir, &run.FilesExtracted, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRecentRuns returns the most recent scaffold runs, newest first.
func (db *DB) ListRecentRuns(ctx context.Context, limit int) ([]ScaffoldRun, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, remote_id, idea, project_name, slug, status, output_dir,
		        files_extracted, created_at, completed_at
		 FROM scaffold_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []ScaffoldRun
	for rows.Next() {
		var run ScaffoldRun
		if err := rows.Scan(&run.ID, &run.RemoteID, &run.Idea, &run.ProjectName,
			&run.Slug, &run.Status, &run.OutputDir, &run.FilesExtracted,
			&run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveStepResult upserts the latest observed state of a pipeline step.
func (db *DB) SaveStepResult(ctx context.Context, runID uuid.UUID, stepID, status string, output json.RawMessage) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_steps (run_id, step_id, status, output)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, step_id) DO UPDATE SET status = $3, output = $4, updated_at = NOW()`,
		runID, stepID, status, output,
	)
	if err != nil {
		return fmt.Errorf("failed to save step result %s: %w", stepID, err)
	}
	return nil
}

// GetStepResults retrieves every recorded step state for a run.
func (db *DB) GetStepResults(ctx context.Context, runID uuid.UUID) ([]StepResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, step_id, status, output, updated_at
		 FROM run_steps WHERE run_id = $1 ORDER BY updated_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get step results: %w", err)
	}
	defer rows.Close()

	var steps []StepResult
	for rows.Next() {
		var step StepResult
		if err := rows.Scan(&step.ID, &step.RunID, &step.StepID, &step.Status,
			&step.Output, &step.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
