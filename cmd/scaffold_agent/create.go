package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/scaffold-agent/internal/config"
	"github.com/jonathan/scaffold-agent/internal/pipeline"
	"github.com/spf13/cobra"
)

var createCommand = &cobra.Command{
	Use:   "create",
	Short: "Create a project from an idea, end-to-end",
	Long: `Runs the full scaffolding flow: gather reference context -> derive a project brief -> initiate the remote run -> watch it over stream and poll channels -> reconcile the generated files into a local directory.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runCreateCmd,
}

var (
	createConfigPath    string
	createIdea          string
	createName          string
	createRefs          []string
	createOutputDir     string
	createRuntimeURL    string
	createRuntimeAPIKey string
	createAPIKey        string
	createDatabaseURL   string
	createPollMS        int
	createMaxRetries    int
	createStreamMS      int
	createVerbose       bool
)

func init() {
	// Config file flag (processed first)
	createCommand.Flags().StringVar(&createConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	createCommand.Flags().StringVarP(&createIdea, "idea", "i", "", "Freeform description of the project to build")
	createCommand.Flags().StringVarP(&createName, "name", "n", "", "Project name (optional, derived from the idea if not provided)")
	createCommand.Flags().StringArrayVar(&createRefs, "ref", nil, "Reference URL to fetch context from (repeatable)")
	createCommand.Flags().StringVarP(&createOutputDir, "out", "o", "", "Output directory for extracted files (defaults to the project slug)")
	createCommand.Flags().StringVar(&createRuntimeURL, "runtime-url", "", "Pipeline runtime base URL (optional, defaults to SCAFFOLD_RUNTIME_URL env var)")
	createCommand.Flags().StringVar(&createRuntimeAPIKey, "runtime-api-key", "", "Pipeline runtime API key (optional, defaults to SCAFFOLD_RUNTIME_API_KEY env var)")
	createCommand.Flags().IntVar(&createPollMS, "poll-interval-ms", 0, "Poll channel interval in milliseconds")
	createCommand.Flags().IntVar(&createMaxRetries, "max-poll-retries", 0, "Consecutive poll failures tolerated before giving up")
	createCommand.Flags().IntVar(&createStreamMS, "stream-timeout-ms", 0, "Stream connect deadline in milliseconds")
	createCommand.Flags().BoolVarP(&createVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	createCommand.Flags().StringVar(&createAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for run persistence
	createCommand.Flags().StringVar(&createDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(createCommand)
}

func runCreateCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if createConfigPath != "" {
		loadedCfg, err := config.LoadConfig(createConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Validate loaded config
		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if createVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", createConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("out") {
		cfg.OutputDir = createOutputDir
	}
	if cmd.Flags().Changed("runtime-url") {
		cfg.RuntimeURL = createRuntimeURL
	}
	if cmd.Flags().Changed("runtime-api-key") {
		cfg.RuntimeAPIKey = createRuntimeAPIKey
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = createAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = createDatabaseURL
	}
	if cmd.Flags().Changed("poll-interval-ms") {
		cfg.PollIntervalMS = createPollMS
	}
	if cmd.Flags().Changed("max-poll-retries") {
		cfg.MaxPollRetries = createMaxRetries
	}
	if cmd.Flags().Changed("stream-timeout-ms") {
		cfg.StreamConnectTimeout = createStreamMS
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = createVerbose
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(defaultConfig())

	// Step 4: Validate required fields
	if createIdea == "" {
		return fmt.Errorf("--idea is required")
	}

	// Step 5: API Key handling (optional; the brief falls back to a
	// heuristic derivation without one)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	// Step 6: Runtime and database handling
	if cfg.RuntimeURL == "" {
		cfg.RuntimeURL = os.Getenv("SCAFFOLD_RUNTIME_URL")
	}
	if cfg.RuntimeURL == "" {
		return fmt.Errorf("SCAFFOLD_RUNTIME_URL environment variable or --runtime-url flag is required")
	}
	if cfg.RuntimeAPIKey == "" {
		cfg.RuntimeAPIKey = os.Getenv("SCAFFOLD_RUNTIME_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	opts := pipeline.RunOptions{
		Idea:          createIdea,
		ProjectName:   createName,
		ReferenceURLs: createRefs,
		RuntimeURL:    cfg.RuntimeURL,
		RuntimeAPIKey: cfg.RuntimeAPIKey,
		APIKey:        cfg.APIKey,
		DatabaseURL:   cfg.DatabaseURL,
		OutputDir:     cfg.OutputDir,
		Monitor:       monitorOptionsFromConfig(cfg),
		Verbose:       cfg.Verbose,
		OnProgress: func(e pipeline.ProgressEvent) {
			if e.Step == "monitor" && e.Message != "" {
				fmt.Printf("  %s\n", e.Message)
			}
		},
	}

	result, err := pipeline.RunScaffold(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("\nRun %s finished with status %s\n", result.RunID, result.Run.Status)
	fmt.Printf("Extracted %d file(s) into %s\n", result.FilesExtracted, result.OutputDir)
	return nil
}

func defaultConfig() config.Config {
	return config.Config{
		PollIntervalMS:       2000,
		MaxPollRetries:       5,
		StreamConnectTimeout: 10000,
	}
}

func durationMS(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
