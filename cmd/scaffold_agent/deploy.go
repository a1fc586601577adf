package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/scaffold-agent/internal/publish"
	"github.com/spf13/cobra"
)

var deployCommand = &cobra.Command{
	Use:   "deploy",
	Short: "Trigger a deployment for an extracted project",
	Long:  `Submits the extracted project directory to the deployment service under the project's slug. With --wait, polls until the deployment reaches a terminal state.`,
	RunE:  runDeployCmd,
}

var (
	deploySlug      string
	deployDir       string
	deployURL       string
	deployAPIKey    string
	deployWait      bool
	deployWaitLimit time.Duration
)

func init() {
	deployCommand.Flags().StringVar(&deploySlug, "slug", "", "Project slug to deploy under (required)")
	deployCommand.Flags().StringVarP(&deployDir, "dir", "d", "", "Extracted project directory (required)")
	deployCommand.Flags().StringVar(&deployURL, "deploy-url", "", "Deployment service base URL (optional, defaults to DEPLOY_URL env var)")
	deployCommand.Flags().StringVar(&deployAPIKey, "deploy-api-key", "", "Deployment service API key (optional, defaults to DEPLOY_API_KEY env var)")
	deployCommand.Flags().BoolVar(&deployWait, "wait", false, "Poll until the deployment is live or failed")
	deployCommand.Flags().DurationVar(&deployWaitLimit, "wait-timeout", 5*time.Minute, "Maximum time to wait with --wait")

	rootCmd.AddCommand(deployCommand)
}

func runDeployCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	if deploySlug == "" {
		return fmt.Errorf("--slug is required")
	}
	if deployDir == "" {
		return fmt.Errorf("--dir is required")
	}
	if _, err := os.Stat(deployDir); err != nil {
		return fmt.Errorf("project directory %s is not readable: %w", deployDir, err)
	}

	serviceURL := deployURL
	if serviceURL == "" {
		serviceURL = os.Getenv("DEPLOY_URL")
	}
	if serviceURL == "" {
		return fmt.Errorf("DEPLOY_URL environment variable or --deploy-url flag is required")
	}
	apiKey := deployAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("DEPLOY_API_KEY")
	}

	client := publish.NewDeployClient(serviceURL, apiKey)
	dep, err := client.TriggerDeployment(ctx, deploySlug, deployDir)
	if err != nil {
		return fmt.Errorf("triggering deployment: %w", err)
	}
	fmt.Printf("Deployment %s created with status %s\n", dep.ID, dep.Status)

	if !deployWait {
		return nil
	}

	deadline := time.Now().Add(deployWaitLimit)
	for dep.Status == publish.DeployPending {
		if time.Now().After(deadline) {
			return fmt.Errorf("deployment %s still pending after %s", dep.ID, deployWaitLimit)
		}
		time.Sleep(5 * time.Second)
		dep, err = client.GetDeployment(ctx, dep.ID)
		if err != nil {
			return fmt.Errorf("checking deployment: %w", err)
		}
	}

	if dep.Status == publish.DeployFailed {
		return fmt.Errorf("deployment %s failed", dep.ID)
	}
	fmt.Printf("Deployment %s is %s", dep.ID, dep.Status)
	if dep.URL != "" {
		fmt.Printf(" at %s", dep.URL)
	}
	fmt.Println()
	return nil
}
