// Package pipeline provides the high-level orchestration for scaffolding a
// project from an idea: derive a brief, initiate a remote run, observe it
// over both channels, and reconcile the produced files onto disk.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/scaffold-agent/internal/brief"
	"github.com/jonathan/scaffold-agent/internal/db"
	"github.com/jonathan/scaffold-agent/internal/extract"
	"github.com/jonathan/scaffold-agent/internal/fetch"
	"github.com/jonathan/scaffold-agent/internal/llm"
	"github.com/jonathan/scaffold-agent/internal/observability"
	"github.com/jonathan/scaffold-agent/internal/runtime"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds configuration for running the scaffold pipeline
type RunOptions struct {
	Idea          string
	ProjectName   string // optional; derived from the brief when empty
	ReferenceURLs []string

	RuntimeURL    string
	RuntimeAPIKey string
	APIKey        string // Gemini API key; empty skips LLM brief derivation
	DatabaseURL   string
	OutputDir     string

	// Monitor supplies observation tuning and callbacks. The pipeline wires
	// the extractor and output rendering itself.
	Monitor runtime.MonitorOptions

	Verbose    bool
	OnProgress ProgressCallback
}

// RunResult is what a completed (or abandoned) scaffold run produced.
type RunResult struct {
	RunID          string
	Brief          *brief.ProjectBrief
	Run            *runtime.PipelineRun
	OutputDir      string
	FilesExtracted int
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, step, message, runID string, content any) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{
			Step:    step,
			Message: message,
			RunID:   runID,
			Content: content,
		})
	}
}

// RunScaffold orchestrates the full idea-to-project flow.
func RunScaffold(ctx context.Context, opts RunOptions) (*RunResult, error) {

	// Initialize observability printer for verbose output
	printer := observability.NewPrinter(os.Stdout)

	// Initialize database connection if configured
	var database *db.DB
	if opts.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			fmt.Printf("Warning: Failed to connect to database: %v\n", err)
			fmt.Printf("Continuing without database persistence...\n")
		} else {
			defer database.Close()
			if opts.Verbose {
				fmt.Printf("[VERBOSE] Connected to database\n")
			}
		}
	}

	// One LLM client serves both context condensing and brief derivation.
	var llmClient llm.Client
	if opts.APIKey != "" {
		var err error
		llmClient, err = llm.NewClient(ctx, nil, opts.APIKey)
		if err != nil {
			fmt.Printf("Warning: Failed to create LLM client: %v\n", err)
			fmt.Printf("Continuing with fallback brief derivation...\n")
		} else {
			defer func() { _ = llmClient.Close() }()
		}
	}

	// Step 1: Gather reference context
	refContext := ""
	if len(opts.ReferenceURLs) > 0 {
		fmt.Printf("Step 1/4: Fetching %d reference page(s)...\n", len(opts.ReferenceURLs))
		refContext = gatherReferenceContext(ctx, opts.ReferenceURLs, database, llmClient)
	}

	// Step 2: Derive the project brief
	fmt.Printf("Step 2/4: Deriving project brief...\n")
	projectBrief, err := deriveBrief(ctx, &opts, llmClient, refContext)
	if err != nil {
		return nil, fmt.Errorf("brief derivation failed: %w", err)
	}
	if opts.ProjectName != "" {
		projectBrief.Name = opts.ProjectName
		projectBrief.Slug = brief.Slugify(opts.ProjectName)
	}
	if opts.Verbose {
		printer.PrintBrief(projectBrief)
	}
	emitProgress(&opts, "brief", fmt.Sprintf("Derived brief for %s", projectBrief.Name), "", projectBrief)

	// Step 3: Initiate the remote run
	fmt.Printf("Step 3/4: Initiating pipeline run...\n")
	client := runtime.NewClient(opts.RuntimeURL, &runtime.ClientOptions{APIKey: opts.RuntimeAPIKey})

	runID, err := client.CreateRun(ctx, opts.Idea, projectBrief.Name)
	if err != nil {
		return nil, err
	}
	emitProgress(&opts, "initiate", "Run created", runID, nil)

	if err := client.StartAsync(ctx, runID, map[string]any{
		"idea":        opts.Idea,
		"projectName": projectBrief.Name,
		"summary":     projectBrief.Summary,
		"features":    projectBrief.Features,
	}); err != nil {
		return nil, err
	}

	// Record the run before monitoring so a crash still leaves a trace.
	var dbRunID uuid.UUID
	if database != nil {
		dbRunID, err = database.CreateRun(ctx, runID, opts.Idea, projectBrief.Name, projectBrief.Slug)
		if err != nil {
			fmt.Printf("Warning: Failed to create database run: %v\n", err)
		} else if opts.Verbose {
			fmt.Printf("[VERBOSE] Created database run: %s\n", dbRunID)
		}
	}

	// Step 4: Observe the run and reconcile its files
	fmt.Printf("Step 4/4: Monitoring run %s...\n", runID)

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = projectBrief.Slug
	}

	extractor := extract.New(client, extract.Options{
		OutputDir: outputDir,
		Logf:      verboseLogf(opts.Verbose),
	})

	monOpts := runtime.DefaultMonitorOptions()
	if opts.Monitor.PollInterval > 0 {
		monOpts.PollInterval = opts.Monitor.PollInterval
	}
	if opts.Monitor.MaxPollRetries > 0 {
		monOpts.MaxPollRetries = opts.Monitor.MaxPollRetries
	}
	if opts.Monitor.StreamConnectTimeout > 0 {
		monOpts.StreamConnectTimeout = opts.Monitor.StreamConnectTimeout
	}
	monOpts.OnProgress = opts.Monitor.OnProgress
	monOpts.OnStatus = opts.Monitor.OnStatus
	monOpts.Logf = opts.Monitor.Logf
	monOpts.Extractor = countingExtractor{extractor: extractor, written: new(int)}
	if monOpts.RenderOutput == nil {
		monOpts.RenderOutput = observability.RenderStepOutput
	}
	userProgress := monOpts.OnProgress
	monOpts.OnProgress = func(text string, files []runtime.FileRef) {
		if userProgress != nil {
			userProgress(text, files)
		}
		emitProgress(&opts, "monitor", lastLine(text), runID, nil)
	}
	if monOpts.Logf == nil {
		monOpts.Logf = verboseLogf(opts.Verbose)
	}

	session := client.Monitor(ctx, runID, monOpts)
	run := session.Wait()

	counter, _ := monOpts.Extractor.(countingExtractor)
	filesExtracted := 0
	if counter.written != nil {
		filesExtracted = *counter.written
	}

	if opts.Verbose {
		printer.PrintRunSummary(run)
		printer.PrintExtractionSummary(outputDir, filesExtracted)
	}

	// Persist the observed outcome
	if database != nil && dbRunID != uuid.Nil {
		for stepID, step := range run.Steps {
			if err := database.SaveStepResult(ctx, dbRunID, stepID, string(step.Status), step.Output); err != nil {
				fmt.Printf("Warning: Failed to save step %s: %v\n", stepID, err)
			}
		}
		status := db.RunStatusCompleted
		if run.Status == runtime.StatusFailed || run.Status == runtime.StatusError {
			status = db.RunStatusFailed
		}
		if err := database.CompleteRun(ctx, dbRunID, status, outputDir, filesExtracted); err != nil {
			fmt.Printf("Warning: Failed to complete database run: %v\n", err)
		}
	}

	emitProgress(&opts, "done", fmt.Sprintf("Run %s finished with status %s", runID, run.Status), runID, nil)

	return &RunResult{
		RunID:          runID,
		Brief:          projectBrief,
		Run:            run,
		OutputDir:      outputDir,
		FilesExtracted: filesExtracted,
	}, nil
}

// deriveBrief goes through the LLM when a client is available and falls back
// to the deterministic brief otherwise.
func deriveBrief(ctx context.Context, opts *RunOptions, client llm.Client, refContext string) (*brief.ProjectBrief, error) {
	if client == nil {
		if opts.Verbose {
			fmt.Printf("[VERBOSE] No LLM client; using fallback brief\n")
		}
		return brief.Fallback(opts.Idea), nil
	}

	b, err := brief.Derive(ctx, client, opts.Idea, refContext)
	if err != nil {
		// A brief failure should not sink the run; the fallback still works.
		fmt.Printf("Warning: Brief derivation failed (%v), using fallback\n", err)
		return brief.Fallback(opts.Idea), nil
	}
	return b, nil
}

// gatherReferenceContext fetches each reference URL and concatenates the
// extracted text, condensing oversized pages through the LLM. Failures are
// reported and skipped.
func gatherReferenceContext(ctx context.Context, urls []string, database *db.DB, client llm.Client) string {
	fetcher := fetch.NewCachedFetcher(database, nil)
	results, errs := fetcher.FetchMultiple(ctx, urls)

	var parts []string
	for i, result := range results {
		if errs[i] != nil {
			fmt.Printf("Warning: Failed to fetch %s: %v\n", urls[i], errs[i])
			continue
		}
		if result.Text != "" {
			parts = append(parts, brief.CondenseContext(ctx, client, result.Text))
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// countingExtractor wraps an extractor and accumulates the written count
// across invocations.
type countingExtractor struct {
	extractor *extract.Extractor
	written   *int
}

func (c countingExtractor) Extract(ctx context.Context, runID string) (int, error) {
	n, err := c.extractor.Extract(ctx, runID)
	if n > 0 {
		*c.written += n
	}
	return n, err
}

func verboseLogf(verbose bool) func(format string, args ...any) {
	if !verbose {
		return nil
	}
	return func(format string, args ...any) {
		fmt.Printf("[VERBOSE] "+format+"\n", args...)
	}
}

// lastLine returns the final line of accumulated progress text.
func lastLine(text string) string {
	text = strings.TrimRight(text, "\n")
	if idx := strings.LastIndex(text, "\n"); idx >= 0 {
		return text[idx+1:]
	}
	return text
}
