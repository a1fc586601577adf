// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Services
	RuntimeURL string `json:"runtime_url,omitempty" validate:"omitempty,url"` // Pipeline runtime base URL
	BoardURL   string `json:"board_url,omitempty" validate:"omitempty,url"`   // Project board service base URL
	DeployURL  string `json:"deploy_url,omitempty" validate:"omitempty,url"`  // Deployment service base URL

	// Credentials
	APIKey        string `json:"api_key,omitempty"`         // Gemini API key
	RuntimeAPIKey string `json:"runtime_api_key,omitempty"` // Pipeline runtime API key
	BoardAPIKey   string `json:"board_api_key,omitempty"`   // Board service API key
	DeployAPIKey  string `json:"deploy_api_key,omitempty"`  // Deploy service API key
	DatabaseURL   string `json:"database_url,omitempty"`    // PostgreSQL connection URL

	// Output
	OutputDir string `json:"output_dir,omitempty"` // Where extracted projects are written

	// Monitoring tuning
	PollIntervalMS       int `json:"poll_interval_ms,omitempty" validate:"gte=0"`        // Poll backup channel interval
	MaxPollRetries       int `json:"max_poll_retries,omitempty" validate:"gte=0"`        // Consecutive poll failures tolerated
	StreamConnectTimeout int `json:"stream_connect_timeout_ms,omitempty" validate:"gte=0"` // Stream connect deadline

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.RuntimeURL == "" {
		result.RuntimeURL = defaults.RuntimeURL
	}
	if result.BoardURL == "" {
		result.BoardURL = defaults.BoardURL
	}
	if result.DeployURL == "" {
		result.DeployURL = defaults.DeployURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.RuntimeAPIKey == "" {
		result.RuntimeAPIKey = defaults.RuntimeAPIKey
	}
	if result.BoardAPIKey == "" {
		result.BoardAPIKey = defaults.BoardAPIKey
	}
	if result.DeployAPIKey == "" {
		result.DeployAPIKey = defaults.DeployAPIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}

	// Int fields: use default if zero
	if result.PollIntervalMS == 0 {
		result.PollIntervalMS = defaults.PollIntervalMS
	}
	if result.MaxPollRetries == 0 {
		result.MaxPollRetries = defaults.MaxPollRetries
	}
	if result.StreamConnectTimeout == 0 {
		result.StreamConnectTimeout = defaults.StreamConnectTimeout
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
