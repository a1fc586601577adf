// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/scaffold-agent/internal/brief"
	"github.com/jonathan/scaffold-agent/internal/runtime"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintBrief outputs a human-readable summary of the derived project brief.
func (p *Printer) PrintBrief(b *brief.ProjectBrief) {
	if b == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Name:  %s\n", b.Name))
	sb.WriteString(fmt.Sprintf("Slug:  %s\n", b.Slug))
	if b.Summary != "" {
		summary := b.Summary
		if len(summary) > 50 {
			summary = summary[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("About: %s\n", summary))
	}
	sb.WriteString("\n")

	if len(b.Features) > 0 {
		sb.WriteString("Features:\n")
		count := min(len(b.Features), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", b.Features[i]))
		}
		if len(b.Features) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(b.Features)-maxItemsToShow))
		}
	}

	if len(b.Stack) > 0 {
		sb.WriteString(fmt.Sprintf("Stack: %s\n", strings.Join(b.Stack, ", ")))
	}

	p.printBox("PROJECT BRIEF", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunSummary outputs the final state of a pipeline run: overall status
// and the status of every observed step.
func (p *Printer) PrintRunSummary(run *runtime.PipelineRun) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:    %s\n", run.RunID))
	sb.WriteString(fmt.Sprintf("Status: %s\n", run.Status))

	if len(run.Steps) > 0 {
		sb.WriteString("\nSteps:\n")
		stepIDs := make([]string, 0, len(run.Steps))
		for id := range run.Steps {
			stepIDs = append(stepIDs, id)
		}
		sort.Strings(stepIDs)
		for _, id := range stepIDs {
			marker := " "
			switch run.Steps[id].Status {
			case runtime.StepSuccess:
				marker = "✓"
			case runtime.StepFailed:
				marker = "✗"
			}
			sb.WriteString(fmt.Sprintf("  %s %s: %s\n", marker, id, run.Steps[id].Status))
		}
	}

	p.printBox("PIPELINE RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintExtractionSummary outputs where artifacts were written and how many.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintExtractionSummary(outputDir string, count int) {
	if count == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO PROJECT FILES FOUND")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Files written: %d\n", count))
	sb.WriteString(fmt.Sprintf("Destination:   %s", outputDir))

	p.printBox("PROJECT EXTRACTED", sb.String())
}

// RenderStepOutput turns a step's structured output into a short progress
// block. File-bearing outputs render as a path listing; everything else
// renders as its top-level keys. Unrenderable output yields "".
func RenderStepOutput(stepID string, output json.RawMessage) string {
	if len(output) == 0 {
		return ""
	}

	var sf runtime.StepFiles
	if err := json.Unmarshal(output, &sf); err == nil && len(sf.Files) > 0 {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s produced %d files:\n", stepID, len(sf.Files)))
		count := min(len(sf.Files), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  %s\n", sf.Files[i].Path))
		}
		if len(sf.Files) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(sf.Files)-maxItemsToShow))
		}
		return strings.TrimSuffix(sb.String(), "\n")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(output, &obj); err == nil && len(obj) > 0 {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%s output: %s", stepID, strings.Join(keys, ", "))
	}

	return ""
}
