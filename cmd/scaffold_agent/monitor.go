package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/scaffold-agent/internal/config"
	"github.com/jonathan/scaffold-agent/internal/extract"
	"github.com/jonathan/scaffold-agent/internal/observability"
	"github.com/jonathan/scaffold-agent/internal/runtime"
	"github.com/spf13/cobra"
)

var monitorCommand = &cobra.Command{
	Use:   "monitor <run-id>",
	Short: "Attach to an in-flight run and watch it to completion",
	Long: `Attaches the dual-channel observer to an already-initiated run: the event stream is consumed as the primary channel with polling as backup, and the run's files are reconciled onto disk when it completes.

Useful when a previous invocation was interrupted after initiation.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitorCmd,
}

var (
	monitorConfigPath    string
	monitorOutputDir     string
	monitorRuntimeURL    string
	monitorRuntimeAPIKey string
	monitorPollMS        int
	monitorMaxRetries    int
	monitorStreamMS      int
	monitorVerbose       bool
)

func init() {
	monitorCommand.Flags().StringVar(&monitorConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	monitorCommand.Flags().StringVarP(&monitorOutputDir, "out", "o", "", "Output directory for extracted files (defaults to the run id)")
	monitorCommand.Flags().StringVar(&monitorRuntimeURL, "runtime-url", "", "Pipeline runtime base URL (optional, defaults to SCAFFOLD_RUNTIME_URL env var)")
	monitorCommand.Flags().StringVar(&monitorRuntimeAPIKey, "runtime-api-key", "", "Pipeline runtime API key (optional, defaults to SCAFFOLD_RUNTIME_API_KEY env var)")
	monitorCommand.Flags().IntVar(&monitorPollMS, "poll-interval-ms", 0, "Poll channel interval in milliseconds")
	monitorCommand.Flags().IntVar(&monitorMaxRetries, "max-poll-retries", 0, "Consecutive poll failures tolerated before giving up")
	monitorCommand.Flags().IntVar(&monitorStreamMS, "stream-timeout-ms", 0, "Stream connect deadline in milliseconds")
	monitorCommand.Flags().BoolVarP(&monitorVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(monitorCommand)
}

func runMonitorCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	runID := args[0]

	var cfg config.Config
	if monitorConfigPath != "" {
		loadedCfg, err := config.LoadConfig(monitorConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
	}

	if cmd.Flags().Changed("out") {
		cfg.OutputDir = monitorOutputDir
	}
	if cmd.Flags().Changed("runtime-url") {
		cfg.RuntimeURL = monitorRuntimeURL
	}
	if cmd.Flags().Changed("runtime-api-key") {
		cfg.RuntimeAPIKey = monitorRuntimeAPIKey
	}
	if cmd.Flags().Changed("poll-interval-ms") {
		cfg.PollIntervalMS = monitorPollMS
	}
	if cmd.Flags().Changed("max-poll-retries") {
		cfg.MaxPollRetries = monitorMaxRetries
	}
	if cmd.Flags().Changed("stream-timeout-ms") {
		cfg.StreamConnectTimeout = monitorStreamMS
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = monitorVerbose
	}

	if cfg.RuntimeURL == "" {
		cfg.RuntimeURL = os.Getenv("SCAFFOLD_RUNTIME_URL")
	}
	if cfg.RuntimeURL == "" {
		return fmt.Errorf("SCAFFOLD_RUNTIME_URL environment variable or --runtime-url flag is required")
	}
	if cfg.RuntimeAPIKey == "" {
		cfg.RuntimeAPIKey = os.Getenv("SCAFFOLD_RUNTIME_API_KEY")
	}

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = runID
	}

	client := runtime.NewClient(cfg.RuntimeURL, &runtime.ClientOptions{APIKey: cfg.RuntimeAPIKey})
	extractor := extract.New(client, extract.Options{
		OutputDir: outputDir,
		Logf:      verboseLogger(cfg.Verbose),
	})

	written := 0
	opts := runtime.DefaultMonitorOptions()
	tuned := monitorOptionsFromConfig(cfg)
	if tuned.PollInterval > 0 {
		opts.PollInterval = tuned.PollInterval
	}
	if tuned.MaxPollRetries > 0 {
		opts.MaxPollRetries = tuned.MaxPollRetries
	}
	if tuned.StreamConnectTimeout > 0 {
		opts.StreamConnectTimeout = tuned.StreamConnectTimeout
	}
	opts.Extractor = countingExtractor{inner: extractor, written: &written}
	opts.RenderOutput = observability.RenderStepOutput
	opts.Logf = verboseLogger(cfg.Verbose)
	opts.OnStatus = func(snap runtime.WatchSnapshot) {
		if cfg.Verbose {
			fmt.Printf("poll: run %s is %s\n", runID, snap.Status)
		}
	}

	fmt.Printf("Attaching to run %s...\n", runID)
	session := client.Monitor(ctx, runID, opts)
	run := session.Wait()

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintRunSummary(run)
	printer.PrintExtractionSummary(outputDir, written)

	fmt.Printf("\nRun %s finished with status %s\n", runID, run.Status)
	return nil
}
