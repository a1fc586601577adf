package extract

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/scaffold-agent/internal/runtime"
)

type fakeRuns struct {
	rec *runtime.RunRecord
	err error
}

func (f *fakeRuns) FetchRun(context.Context, string) (*runtime.RunRecord, error) {
	return f.rec, f.err
}

func recordWithFiles(status runtime.StepStatus, files string) *runtime.RunRecord {
	return &runtime.RunRecord{Steps: map[string]runtime.StepState{
		"scaffoldProject": {
			Status: status,
			Output: json.RawMessage(`{"files":` + files + `}`),
		},
	}}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			require.NoError(t, err)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestExtract_StructuredLookup(t *testing.T) {
	dest := t.TempDir()
	runs := &fakeRuns{rec: recordWithFiles(runtime.StepSuccess, `[{"path":"README.md","content":"# Hi"}]`)}

	e := New(runs, Options{OutputDir: dest, CandidateRoots: []string{}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"README.md"}, listFiles(t, dest))
	assert.Equal(t, "# Hi", readFile(t, filepath.Join(dest, "README.md")))
}

func TestExtract_StructuredLookup_NestedPaths(t *testing.T) {
	dest := t.TempDir()
	runs := &fakeRuns{rec: recordWithFiles(runtime.StepSuccess,
		`[{"path":"src/app.js","content":"app"},{"path":"src/lib/util.js","content":"util"}]`)}

	e := New(runs, Options{OutputDir: dest, CandidateRoots: []string{}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "util", readFile(t, filepath.Join(dest, "src", "lib", "util.js")))
}

func TestExtract_Idempotent(t *testing.T) {
	dest := t.TempDir()
	runs := &fakeRuns{rec: recordWithFiles(runtime.StepSuccess,
		`[{"path":"README.md","content":"# Hi"},{"path":"main.go","content":"package main"}]`)}

	e := New(runs, Options{OutputDir: dest, CandidateRoots: []string{}})

	n1, err := e.Extract(context.Background(), "abc123")
	require.NoError(t, err)
	first := listFiles(t, dest)

	n2, err := e.Extract(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, n1, n2)
	assert.Equal(t, first, listFiles(t, dest))
	assert.Equal(t, "# Hi", readFile(t, filepath.Join(dest, "README.md")))
}

func TestExtract_TraversalRejected(t *testing.T) {
	dest := t.TempDir()
	runs := &fakeRuns{rec: recordWithFiles(runtime.StepSuccess,
		`[{"path":"../breakout.txt","content":"nope"},{"path":"/etc/owned","content":"nope"},{"path":"ok.txt","content":"fine"}]`)}

	e := New(runs, Options{OutputDir: dest, CandidateRoots: []string{}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ok.txt"}, listFiles(t, dest))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "breakout.txt"))
}

func TestExtract_PrefersSuccessfulScaffoldStep(t *testing.T) {
	dest := t.TempDir()
	rec := &runtime.RunRecord{Steps: map[string]runtime.StepState{
		"scaffoldDraft": {
			Status: runtime.StepFailed,
			Output: json.RawMessage(`{"files":[{"path":"draft.txt","content":"old"}]}`),
		},
		"scaffoldProject": {
			Status: runtime.StepSuccess,
			Output: json.RawMessage(`{"files":[{"path":"final.txt","content":"new"}]}`),
		},
	}}

	e := New(&fakeRuns{rec: rec}, Options{OutputDir: dest, CandidateRoots: []string{}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"final.txt"}, listFiles(t, dest))
}

func TestExtract_FallsBackToUnsuccessfulOutput(t *testing.T) {
	dest := t.TempDir()
	rec := &runtime.RunRecord{Steps: map[string]runtime.StepState{
		"scaffoldProject": {
			Status: runtime.StepFailed,
			Output: json.RawMessage(`{"files":[{"path":"partial.txt","content":"partial"}]}`),
		},
	}}

	e := New(&fakeRuns{rec: rec}, Options{OutputDir: dest, CandidateRoots: []string{}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExtract_InvalidOutputFallsThrough(t *testing.T) {
	dest := t.TempDir()
	candidate := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(candidate, "package.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(candidate, "index.js"), []byte("js"), 0o644))

	// scaffold output present but fails schema validation
	rec := &runtime.RunRecord{Steps: map[string]runtime.StepState{
		"scaffoldProject": {
			Status: runtime.StepSuccess,
			Output: json.RawMessage(`{"summary":"no files field"}`),
		},
	}}

	e := New(&fakeRuns{rec: rec}, Options{OutputDir: dest, CandidateRoots: []string{candidate}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"package.json", "index.js"}, listFiles(t, dest))
}

func TestExtract_FilesystemFallback_PriorityOrder(t *testing.T) {
	dest := t.TempDir()
	missing := filepath.Join(t.TempDir(), "nope")
	empty := t.TempDir() // exists but no plausible content
	winner := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(winner, "go.mod"), []byte("module x"), 0o644))

	e := New(&fakeRuns{err: errors.New("runtime down")}, Options{
		OutputDir:      dest,
		CandidateRoots: []string{missing, empty, winner},
	})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"go.mod"}, listFiles(t, dest))
}

func TestExtract_ExclusionCorrectness(t *testing.T) {
	dest := t.TempDir()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "left-pad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "left-pad", "index.js"), []byte("js"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.ts"), []byte("ts"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "binary.bin"), []byte{0x00}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.secret"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("dist\n"), 0o644))

	e := New(nil, Options{OutputDir: dest, CandidateRoots: []string{root}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t,
		[]string{"package.json", "src/app.ts", ".gitignore"},
		listFiles(t, dest))
}

func TestExtract_PartialCollection(t *testing.T) {
	dest := t.TempDir()
	root := t.TempDir()
	// No marker at the top level, so the root itself is not a project root.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "frontend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "frontend", "app.jsx"), []byte("fe"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backend", "server.py"), []byte("be"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "junk"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "junk", "blob.dat"), []byte("x"), 0o644))

	e := New(nil, Options{OutputDir: dest, CandidateRoots: []string{root}})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t,
		[]string{"frontend/app.jsx", "backend/server.py"},
		listFiles(t, dest))
}

func TestExtract_TotalMissIsSilent(t *testing.T) {
	dest := t.TempDir()
	e := New(&fakeRuns{err: errors.New("down")}, Options{
		OutputDir:      dest,
		CandidateRoots: []string{filepath.Join(t.TempDir(), "missing")},
	})
	n, err := e.Extract(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Zero(t, n)
}
