package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/scaffold-agent/internal/brief"
	"github.com/jonathan/scaffold-agent/internal/runtime"
)

func TestPrintBrief(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBrief(&brief.ProjectBrief{
		Name:     "Task Tracker",
		Slug:     "task-tracker",
		Summary:  "A simple task tracking web app.",
		Features: []string{"create tasks", "mark complete"},
		Stack:    []string{"react", "postgres"},
	})
	output := buf.String()

	assert.Contains(t, output, "PROJECT BRIEF")
	assert.Contains(t, output, "Task Tracker")
	assert.Contains(t, output, "task-tracker")
	assert.Contains(t, output, "create tasks")
	assert.Contains(t, output, "react, postgres")
}

func TestPrintBrief_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBrief(nil)

	assert.Empty(t, buf.String())
}

func TestPrintBrief_TruncatesFeatureList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBrief(&brief.ProjectBrief{
		Name:     "Big App",
		Slug:     "big-app",
		Features: []string{"a", "b", "c", "d", "e", "f", "g"},
	})

	assert.Contains(t, buf.String(), "... and 2 more")
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	run := &runtime.PipelineRun{
		RunID:  "abc123",
		Status: runtime.StatusCompleted,
		Steps: map[string]runtime.StepState{
			"plan":            {Status: runtime.StepSuccess},
			"scaffoldProject": {Status: runtime.StepSuccess},
			"deploy":          {Status: runtime.StepFailed},
		},
	}

	p.PrintRunSummary(run)
	output := buf.String()

	assert.Contains(t, output, "PIPELINE RUN")
	assert.Contains(t, output, "abc123")
	assert.Contains(t, output, "✓ plan: success")
	assert.Contains(t, output, "✗ deploy: failed")
}

func TestPrintRunSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(nil)

	assert.Empty(t, buf.String())
}

func TestPrintExtractionSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintExtractionSummary("/tmp/out", 12)
	output := buf.String()

	assert.Contains(t, output, "PROJECT EXTRACTED")
	assert.Contains(t, output, "12")
	assert.Contains(t, output, "/tmp/out")
}

func TestPrintExtractionSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintExtractionSummary("/tmp/out", 0)

	assert.Contains(t, buf.String(), "NO PROJECT FILES FOUND")
}

func TestRenderStepOutput_Files(t *testing.T) {
	output := json.RawMessage(`{"files":[{"path":"README.md"},{"path":"main.go"}]}`)

	rendered := RenderStepOutput("scaffoldProject", output)

	assert.Contains(t, rendered, "scaffoldProject produced 2 files")
	assert.Contains(t, rendered, "README.md")
	assert.Contains(t, rendered, "main.go")
}

func TestRenderStepOutput_GenericObject(t *testing.T) {
	output := json.RawMessage(`{"summary":"done","tokens":120}`)

	rendered := RenderStepOutput("plan", output)

	assert.Contains(t, rendered, "plan output")
	assert.Contains(t, rendered, "summary")
	assert.Contains(t, rendered, "tokens")
}

func TestRenderStepOutput_Unrenderable(t *testing.T) {
	assert.Empty(t, RenderStepOutput("plan", nil))
	assert.Empty(t, RenderStepOutput("plan", json.RawMessage(`"just a string"`)))
	assert.Empty(t, RenderStepOutput("plan", json.RawMessage(`{}`)))
}
