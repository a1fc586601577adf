package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/scaffold-agent/internal/publish"
	"github.com/spf13/cobra"
)

var publishCommand = &cobra.Command{
	Use:   "publish",
	Short: "Publish a project plan to the board service",
	Long:  `Creates a board for the project with a Backlog list and one card per feature, so the generated plan can be tracked as work items.`,
	RunE:  runPublishCmd,
}

var (
	publishName     string
	publishFeatures []string
	publishBoardURL string
	publishAPIKey   string
)

func init() {
	publishCommand.Flags().StringVarP(&publishName, "name", "n", "", "Project name (required)")
	publishCommand.Flags().StringArrayVar(&publishFeatures, "feature", nil, "Feature to add as a backlog card (repeatable)")
	publishCommand.Flags().StringVar(&publishBoardURL, "board-url", "", "Board service base URL (optional, defaults to BOARD_URL env var)")
	publishCommand.Flags().StringVar(&publishAPIKey, "board-api-key", "", "Board service API key (optional, defaults to BOARD_API_KEY env var)")

	rootCmd.AddCommand(publishCommand)
}

func runPublishCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	if publishName == "" {
		return fmt.Errorf("--name is required")
	}
	if len(publishFeatures) == 0 {
		return fmt.Errorf("at least one --feature is required")
	}

	boardURL := publishBoardURL
	if boardURL == "" {
		boardURL = os.Getenv("BOARD_URL")
	}
	if boardURL == "" {
		return fmt.Errorf("BOARD_URL environment variable or --board-url flag is required")
	}
	apiKey := publishAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("BOARD_API_KEY")
	}

	client := publish.NewBoardClient(boardURL, apiKey)
	board, err := client.PublishPlan(ctx, publishName, publishFeatures)
	if err != nil {
		if board != nil {
			fmt.Fprintf(os.Stderr, "Warning: board %s created but some cards failed: %v\n", board.ID, err)
			return nil
		}
		return fmt.Errorf("publishing plan: %w", err)
	}

	fmt.Printf("Published board %s (%q) with %d card(s)\n", board.ID, board.Name, len(publishFeatures))
	return nil
}
