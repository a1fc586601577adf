package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/scaffold-agent/internal/config"
)

func TestMonitorOptionsFromConfig(t *testing.T) {
	opts := monitorOptionsFromConfig(config.Config{
		PollIntervalMS:       250,
		MaxPollRetries:       7,
		StreamConnectTimeout: 3000,
	})

	assert.Equal(t, 250*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 7, opts.MaxPollRetries)
	assert.Equal(t, 3*time.Second, opts.StreamConnectTimeout)
}

func TestMonitorOptionsFromConfig_ZeroLeavesDefaultsAlone(t *testing.T) {
	opts := monitorOptionsFromConfig(config.Config{})

	assert.Zero(t, opts.PollInterval)
	assert.Zero(t, opts.MaxPollRetries)
	assert.Zero(t, opts.StreamConnectTimeout)
}

func TestVerboseLogger(t *testing.T) {
	assert.Nil(t, verboseLogger(false))
	assert.NotNil(t, verboseLogger(true))
}
