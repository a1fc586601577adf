package main

import (
	"context"
	"fmt"

	"github.com/jonathan/scaffold-agent/internal/config"
	"github.com/jonathan/scaffold-agent/internal/extract"
	"github.com/jonathan/scaffold-agent/internal/runtime"
)

// monitorOptionsFromConfig maps the millisecond tuning knobs from the config
// onto monitor options. Zero values are left alone so downstream defaults
// still apply.
func monitorOptionsFromConfig(cfg config.Config) runtime.MonitorOptions {
	opts := runtime.MonitorOptions{
		MaxPollRetries: cfg.MaxPollRetries,
	}
	if cfg.PollIntervalMS > 0 {
		opts.PollInterval = durationMS(cfg.PollIntervalMS)
	}
	if cfg.StreamConnectTimeout > 0 {
		opts.StreamConnectTimeout = durationMS(cfg.StreamConnectTimeout)
	}
	return opts
}

// countingExtractor accumulates the file total across repeated extraction
// triggers within one monitoring session.
type countingExtractor struct {
	inner   *extract.Extractor
	written *int
}

func (c countingExtractor) Extract(ctx context.Context, runID string) (int, error) {
	n, err := c.inner.Extract(ctx, runID)
	*c.written += n
	return n, err
}

func verboseLogger(verbose bool) func(format string, args ...any) {
	if !verbose {
		return nil
	}
	return func(format string, args ...any) {
		fmt.Printf("  [debug] "+format+"\n", args...)
	}
}

