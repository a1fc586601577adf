package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/scaffold-agent/internal/extract"
	"github.com/jonathan/scaffold-agent/internal/observability"
	"github.com/jonathan/scaffold-agent/internal/runtime"
	"github.com/spf13/cobra"
)

var extractCommand = &cobra.Command{
	Use:   "extract <run-id>",
	Short: "Re-run artifact extraction for a completed run",
	Long: `Reconciles a run's produced files onto local disk without re-monitoring it: structured step output is tried first, then a scan of candidate project roots, then a lossy partial collection.

Safe to repeat; files are overwritten in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtractCmd,
}

var (
	extractOutputDir     string
	extractRuntimeURL    string
	extractRuntimeAPIKey string
	extractRoots         []string
	extractVerbose       bool
)

func init() {
	extractCommand.Flags().StringVarP(&extractOutputDir, "out", "o", "", "Output directory for extracted files (defaults to the run id)")
	extractCommand.Flags().StringVar(&extractRuntimeURL, "runtime-url", "", "Pipeline runtime base URL (optional, defaults to SCAFFOLD_RUNTIME_URL env var)")
	extractCommand.Flags().StringVar(&extractRuntimeAPIKey, "runtime-api-key", "", "Pipeline runtime API key (optional, defaults to SCAFFOLD_RUNTIME_API_KEY env var)")
	extractCommand.Flags().StringArrayVar(&extractRoots, "root", nil, "Candidate root directory for the filesystem fallback (repeatable, overrides defaults)")
	extractCommand.Flags().BoolVarP(&extractVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(extractCommand)
}

func runExtractCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	runID := args[0]

	runtimeURL := extractRuntimeURL
	if runtimeURL == "" {
		runtimeURL = os.Getenv("SCAFFOLD_RUNTIME_URL")
	}
	if runtimeURL == "" {
		return fmt.Errorf("SCAFFOLD_RUNTIME_URL environment variable or --runtime-url flag is required")
	}
	apiKey := extractRuntimeAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("SCAFFOLD_RUNTIME_API_KEY")
	}

	outputDir := extractOutputDir
	if outputDir == "" {
		outputDir = runID
	}

	client := runtime.NewClient(runtimeURL, &runtime.ClientOptions{APIKey: apiKey})
	extractor := extract.New(client, extract.Options{
		OutputDir:      outputDir,
		CandidateRoots: extractRoots,
		Logf:           verboseLogger(extractVerbose),
	})

	written, err := extractor.Extract(ctx, runID)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintExtractionSummary(outputDir, written)
	return nil
}
