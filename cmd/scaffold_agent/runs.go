package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/scaffold-agent/internal/db"
	"github.com/spf13/cobra"
)

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "List recent scaffold runs recorded in the database",
	RunE:  runRunsCmd,
}

var (
	runsDatabaseURL string
	runsLimit       int
)

func init() {
	runsCommand.Flags().StringVar(&runsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runsCommand.Flags().IntVar(&runsLimit, "limit", 10, "Maximum number of runs to list")

	rootCmd.AddCommand(runsCommand)
}

func runRunsCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	databaseURL := runsDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	runs, err := database.ListRecentRuns(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-38s %-22s %-10s %-6s %s\n", "REMOTE ID", "PROJECT", "STATUS", "FILES", "CREATED")
	for _, r := range runs {
		fmt.Printf("%-38s %-22s %-10s %-6d %s\n",
			r.RemoteID, r.ProjectName, r.Status, r.FilesExtracted,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
