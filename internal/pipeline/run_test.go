package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/scaffold-agent/internal/runtime"
)

// scaffoldRuntime fakes the remote pipeline runtime: run creation, an event
// stream, polling, and the runs endpoint with structured scaffold output.
func scaffoldRuntime(t *testing.T) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	started := false

	runsBody := `{"steps":{"scaffoldProject":{"status":"success","output":{"files":[{"path":"README.md","content":"# Hi"},{"path":"main.go","content":"package main"}]}}}}`

	mux := http.NewServeMux()
	mux.HandleFunc("/createRun", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]string{"runId": "run-1"})
	})
	mux.HandleFunc("/start-async", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		started = true
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			w.Header().Set("Content-Type", "text/event-stream")
			fl := w.(http.Flusher)
			frames := []string{
				`{"type":"step","stepId":"plan","status":"success"}`,
				`{"type":"step","stepId":"scaffoldProject","status":"success"}`,
				`{"type":"status","status":"completed"}`,
			}
			for _, f := range frames {
				fmt.Fprintf(w, "data: %s\n\n", f)
				fl.Flush()
				time.Sleep(10 * time.Millisecond)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"running","activePaths":{}}`))
	})
	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(runsBody))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		require.True(t, started, "start-async was never called")
	})
	return srv
}

func TestRunScaffold_EndToEnd(t *testing.T) {
	srv := scaffoldRuntime(t)
	outDir := filepath.Join(t.TempDir(), "project")

	var events []ProgressEvent
	var evMu sync.Mutex

	result, err := RunScaffold(context.Background(), RunOptions{
		Idea:       "a task tracker web app",
		RuntimeURL: srv.URL,
		OutputDir:  outDir,
		Monitor: runtime.MonitorOptions{
			PollInterval:         50 * time.Millisecond,
			StreamConnectTimeout: time.Second,
		},
		OnProgress: func(e ProgressEvent) {
			evMu.Lock()
			events = append(events, e)
			evMu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, runtime.StatusCompleted, result.Run.Status)
	assert.Equal(t, 2, result.FilesExtracted)

	// No API key, so the fallback brief names the project from the idea.
	require.NotNil(t, result.Brief)
	assert.Equal(t, "a-task-tracker-web", result.Brief.Slug)

	data, err := os.ReadFile(filepath.Join(outDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Hi", string(data))

	evMu.Lock()
	defer evMu.Unlock()
	steps := make(map[string]bool)
	for _, e := range events {
		steps[e.Step] = true
	}
	assert.True(t, steps["brief"])
	assert.True(t, steps["initiate"])
	assert.True(t, steps["done"])
}

func TestRunScaffold_ExplicitProjectName(t *testing.T) {
	srv := scaffoldRuntime(t)

	result, err := RunScaffold(context.Background(), RunOptions{
		Idea:        "a task tracker web app",
		ProjectName: "My Tracker",
		RuntimeURL:  srv.URL,
		OutputDir:   filepath.Join(t.TempDir(), "out"),
		Monitor: runtime.MonitorOptions{
			PollInterval:         50 * time.Millisecond,
			StreamConnectTimeout: time.Second,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "My Tracker", result.Brief.Name)
	assert.Equal(t, "my-tracker", result.Brief.Slug)
}

func TestRunScaffold_InitiationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := RunScaffold(context.Background(), RunOptions{
		Idea:       "an idea",
		RuntimeURL: srv.URL,
		OutputDir:  t.TempDir(),
	})
	require.Error(t, err)

	var initErr *runtime.InitiationError
	assert.ErrorAs(t, err, &initErr)
}

func TestDescribeStep(t *testing.T) {
	info := DescribeStep("scaffoldProject")
	assert.Equal(t, "Scaffolding project files", info.Label)

	unknown := DescribeStep("somethingNew")
	assert.Equal(t, "somethingNew", unknown.Label)
	assert.Equal(t, "somethingNew", unknown.ID)
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "second", lastLine("first\nsecond\n"))
	assert.Equal(t, "only", lastLine("only"))
	assert.Equal(t, "", lastLine(""))
}
