// Package extract locates the files a pipeline run produced and materializes
// them under a destination directory. Discovery is layered: structured step
// output first, then a scan of candidate filesystem roots, then a lossy
// partial collection. Every layer is best-effort; exhausting all of them is a
// silent no-op, never a hard failure.
package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jonathan/scaffold-agent/internal/runtime"
	"github.com/jonathan/scaffold-agent/internal/schemas"
)

// RunFetcher retrieves full run records; satisfied by *runtime.Client.
type RunFetcher interface {
	FetchRun(ctx context.Context, runID string) (*runtime.RunRecord, error)
}

// Options configures an Extractor.
type Options struct {
	// OutputDir is the destination the project is materialized into.
	OutputDir string
	// CandidateRoots overrides the default search roots for the filesystem
	// fallback strategies. Tests supply synthetic roots here.
	CandidateRoots []string
	// Logf receives diagnostics; nil discards them.
	Logf func(format string, args ...any)
}

// Extractor reconciles a run's artifacts onto the local filesystem.
// Re-running is safe: files are overwritten in place, never appended to.
type Extractor struct {
	runs       RunFetcher
	outputDir  string
	candidates []string
	logf       func(format string, args ...any)
}

// New creates an Extractor writing into opts.OutputDir.
func New(runs RunFetcher, opts Options) *Extractor {
	candidates := opts.CandidateRoots
	if candidates == nil {
		candidates = DefaultCandidateRoots()
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Extractor{
		runs:       runs,
		outputDir:  opts.OutputDir,
		candidates: candidates,
		logf:       logf,
	}
}

// Extract runs the layered strategies in order and returns the number of
// files written. A zero count with a nil error means every strategy came up
// empty, the documented "no files found" outcome.
func (e *Extractor) Extract(ctx context.Context, runID string) (int, error) {
	if n := e.fromStepOutput(ctx, runID); n > 0 {
		return n, nil
	}
	if n := e.fromCandidateRoot(); n > 0 {
		return n, nil
	}
	if n := e.fromPartialCollection(); n > 0 {
		return n, nil
	}
	return 0, nil
}

// fromStepOutput is the structured lookup: fetch the run record, find the
// scaffold step, and write the files its output names. A step marked success
// is preferred; any scaffold step with output is accepted otherwise.
func (e *Extractor) fromStepOutput(ctx context.Context, runID string) int {
	if e.runs == nil {
		return 0
	}
	rec, err := e.runs.FetchRun(ctx, runID)
	if err != nil {
		e.logf("structured lookup failed: %v", err)
		return 0
	}

	output := scaffoldOutput(rec)
	if len(output) == 0 {
		return 0
	}
	if err := schemas.ValidateStepFiles(output); err != nil {
		e.logf("scaffold output failed schema validation: %v", err)
		return 0
	}

	var sf runtime.StepFiles
	if err := json.Unmarshal(output, &sf); err != nil {
		e.logf("scaffold output not decodable: %v", err)
		return 0
	}

	written := 0
	for _, f := range sf.Files {
		dest, err := safeJoin(e.outputDir, f.Path)
		if err != nil {
			e.logf("skipping artifact: %v", err)
			continue
		}
		if err := writeFileAtomic(dest, []byte(f.Content)); err != nil {
			e.logf("writing %s: %v", f.Path, err)
			continue
		}
		written++
	}
	return written
}

// scaffoldOutput picks the scaffold step's output from a run record,
// preferring a successful step.
func scaffoldOutput(rec *runtime.RunRecord) json.RawMessage {
	var fallback json.RawMessage
	for stepID, step := range rec.Steps {
		if !runtime.IsScaffoldStep(stepID) {
			continue
		}
		if step.Status == runtime.StepSuccess && len(step.Output) > 0 {
			return step.Output
		}
		if len(step.Output) > 0 && fallback == nil {
			fallback = step.Output
		}
	}
	return fallback
}

// fromCandidateRoot tries each candidate directory in priority order and
// copies the first that exists and looks like a real project root.
func (e *Extractor) fromCandidateRoot() int {
	for _, root := range e.candidates {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		if !looksLikeProjectRoot(root) {
			continue
		}
		n, err := e.copyTree(root, e.outputDir)
		if err != nil {
			e.logf("copying %s: %v", root, err)
			continue
		}
		if n > 0 {
			e.logf("recovered project from %s", root)
			return n
		}
	}
	return 0
}

// fromPartialCollection is the lossy last resort: scan every candidate's
// immediate subdirectories independently and merge any that individually
// hold relevant files into the destination.
func (e *Extractor) fromPartialCollection() int {
	total := 0
	for _, root := range e.candidates {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !shouldDescend(entry.Name()) {
				continue
			}
			sub := filepath.Join(root, entry.Name())
			if !containsRelevantFiles(sub) {
				continue
			}
			n, err := e.copyTree(sub, filepath.Join(e.outputDir, entry.Name()))
			if err != nil {
				e.logf("partial copy of %s: %v", sub, err)
				continue
			}
			total += n
		}
	}
	return total
}

// copyTree recursively copies src into dst, applying the directory exclusion
// and file inclusion rules. Existing destination files are overwritten.
func (e *Extractor) copyTree(src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if path != src && !shouldDescend(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !shouldCopy(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			e.logf("reading %s: %v", path, err)
			return nil
		}
		if err := writeFileAtomic(filepath.Join(dst, rel), data); err != nil {
			e.logf("writing %s: %v", rel, err)
			return nil
		}
		copied++
		return nil
	})
	return copied, err
}
