package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envWithout returns the current environment minus the named variables, so
// tests are insulated from whatever the developer has exported.
func envWithout(names ...string) []string {
	var env []string
	for _, e := range os.Environ() {
		keep := true
		for _, name := range names {
			if strings.HasPrefix(e, name+"=") {
				keep = false
				break
			}
		}
		if keep {
			env = append(env, e)
		}
	}
	return env
}

func TestCreateCommand_MissingIdea(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "create")
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "--idea is required")
}

func TestCreateCommand_MissingRuntimeURL(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "create", "--idea", "a todo app")
	cmd.Env = envWithout("SCAFFOLD_RUNTIME_URL")

	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "SCAFFOLD_RUNTIME_URL environment variable or --runtime-url flag is required")
}

func TestCreateCommand_EndToEnd(t *testing.T) {
	binaryPath := getBinaryPath(t)
	srv := fakeRuntimeServer(t)

	outDir := filepath.Join(t.TempDir(), "project")

	cmd := exec.Command(binaryPath, "create",
		"--idea", "a todo app",
		"--runtime-url", srv.URL,
		"--out", outDir,
		"--poll-interval-ms", "50")
	// no GEMINI_API_KEY: the brief falls back to heuristic naming;
	// no DATABASE_URL: persistence is skipped
	cmd.Env = envWithout("GEMINI_API_KEY", "DATABASE_URL", "SCAFFOLD_RUNTIME_URL")

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "create failed: %s", output)

	assert.Contains(t, string(output), "finished with status completed")
	assert.Contains(t, string(output), "Extracted 1 file(s)")

	data, err := os.ReadFile(filepath.Join(outDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Todo", string(data))
}

func TestMonitorCommand_Attach(t *testing.T) {
	binaryPath := getBinaryPath(t)
	srv := fakeRuntimeServer(t)

	outDir := filepath.Join(t.TempDir(), "recovered")

	cmd := exec.Command(binaryPath, "monitor", "run-1",
		"--runtime-url", srv.URL,
		"--out", outDir,
		"--poll-interval-ms", "50")
	cmd.Env = envWithout("SCAFFOLD_RUNTIME_URL")

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "monitor failed: %s", output)

	assert.Contains(t, string(output), "finished with status completed")

	_, err = os.Stat(filepath.Join(outDir, "README.md"))
	assert.NoError(t, err)
}

func TestExtractCommand_Recovers(t *testing.T) {
	binaryPath := getBinaryPath(t)
	srv := fakeRuntimeServer(t)

	outDir := filepath.Join(t.TempDir(), "manual")

	cmd := exec.Command(binaryPath, "extract", "run-1",
		"--runtime-url", srv.URL,
		"--out", outDir)
	cmd.Env = envWithout("SCAFFOLD_RUNTIME_URL")

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "extract failed: %s", output)

	data, err := os.ReadFile(filepath.Join(outDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Todo", string(data))
}

func TestStatusCommand_Snapshot(t *testing.T) {
	binaryPath := getBinaryPath(t)
	srv := fakeRuntimeServer(t)

	cmd := exec.Command(binaryPath, "status", "run-1", "--runtime-url", srv.URL)
	cmd.Env = envWithout("SCAFFOLD_RUNTIME_URL")

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "status failed: %s", output)

	assert.Contains(t, string(output), "Status: running")
}

// fakeRuntimeServer serves the minimal runtime surface: run creation, an
// event stream that completes immediately, a poll snapshot, and a run record
// with one scaffolded file.
func fakeRuntimeServer(t *testing.T) *httptest.Server {
	t.Helper()

	runsBody := `{"steps":{"scaffoldProject":{"status":"success","output":{"files":[{"path":"README.md","content":"# Todo"}]}}}}`

	mux := http.NewServeMux()
	mux.HandleFunc("/createRun", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"runId": "run-1"})
	})
	mux.HandleFunc("/start-async", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			w.Header().Set("Content-Type", "text/event-stream")
			fl := w.(http.Flusher)
			frames := []string{
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
		_, _ = w.Write([]byte(`{"status":"running","activePaths":{"scaffoldProject":"running"}}`))
	})
	mux.HandleFunc("/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(runsBody))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
