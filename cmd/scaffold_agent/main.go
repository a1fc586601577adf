// Package main provides the entry point for the scaffold agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scaffold_agent",
	Short: "Project scaffolding assistant",
	Long:  "Scaffold Agent turns a freeform project idea into a generated project: it derives a brief, drives a remote scaffolding pipeline, watches the run over stream and poll channels, and reconciles the produced files onto local disk.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
