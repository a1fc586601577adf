package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jonathan/scaffold-agent/internal/pipeline"
	"github.com/jonathan/scaffold-agent/internal/runtime"
	"github.com/spf13/cobra"
)

var statusCommand = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Print a one-shot status snapshot for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatusCmd,
}

var (
	statusRuntimeURL    string
	statusRuntimeAPIKey string
)

func init() {
	statusCommand.Flags().StringVar(&statusRuntimeURL, "runtime-url", "", "Pipeline runtime base URL (optional, defaults to SCAFFOLD_RUNTIME_URL env var)")
	statusCommand.Flags().StringVar(&statusRuntimeAPIKey, "runtime-api-key", "", "Pipeline runtime API key (optional, defaults to SCAFFOLD_RUNTIME_API_KEY env var)")

	rootCmd.AddCommand(statusCommand)
}

func runStatusCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	runID := args[0]

	runtimeURL := statusRuntimeURL
	if runtimeURL == "" {
		runtimeURL = os.Getenv("SCAFFOLD_RUNTIME_URL")
	}
	if runtimeURL == "" {
		return fmt.Errorf("SCAFFOLD_RUNTIME_URL environment variable or --runtime-url flag is required")
	}
	apiKey := statusRuntimeAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("SCAFFOLD_RUNTIME_API_KEY")
	}

	client := runtime.NewClient(runtimeURL, &runtime.ClientOptions{APIKey: apiKey})
	snap, err := client.FetchSnapshot(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to fetch run status: %w", err)
	}

	fmt.Printf("Run:    %s\n", runID)
	fmt.Printf("Status: %s\n", snap.Status)

	if len(snap.ActivePaths) > 0 {
		stepIDs := make([]string, 0, len(snap.ActivePaths))
		for id := range snap.ActivePaths {
			stepIDs = append(stepIDs, id)
		}
		sort.Slice(stepIDs, func(i, j int) bool {
			return pipeline.DescribeStep(stepIDs[i]).Order < pipeline.DescribeStep(stepIDs[j]).Order
		})
		fmt.Println("Steps:")
		for _, id := range stepIDs {
			fmt.Printf("  %-20s %s\n", pipeline.DescribeStep(id).Label, snap.ActivePaths[id])
		}
	}
	return nil
}
