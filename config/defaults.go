package config

import (
	"time"

	"github.com/csd-dev-tools/runcommands/common"
	"github.com/csd-dev-tools/runcommands/util"
)

const (
	// DefaultPromptTimeout matches the bound the handshake has always
	// used: a prompt that has not disabled echo within it is missing.
	DefaultPromptTimeout = Duration(3 * time.Second)
	// DefaultEchoPollInterval is the sleep between echo checks.
	DefaultEchoPollInterval = Duration(100 * time.Millisecond)
	// DefaultDrainPollInterval bounds each readiness wait in the drain
	// loop. A bounded wait, not a zero-timeout poll, so draining does
	// not spin.
	DefaultDrainPollInterval = Duration(50 * time.Millisecond)
	// DefaultDrainReadSize is the per-read buffer while draining.
	DefaultDrainReadSize = 512
	// DefaultMaxLineBytes caps a single streamed line.
	DefaultMaxLineBytes = 1024 * 1024
)

// SetDefaults fills in every unset field with its default, making a
// zero RunnerConfig fully usable without a config file.
func (c *RunnerConfig) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = util.GetenvOrDefault(common.EnvLogLevel, "info")
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = util.GetenvOrDefault(common.EnvLogDir, "")
	}
	if c.Elevation.SuPath == "" {
		c.Elevation.SuPath = common.DefaultSuPath
	}
	if c.Elevation.SudoPath == "" {
		c.Elevation.SudoPath = common.DefaultSudoPath
	}
	if c.Elevation.PromptTimeout == 0 {
		c.Elevation.PromptTimeout = DefaultPromptTimeout
	}
	if c.Elevation.EchoPollInterval == 0 {
		c.Elevation.EchoPollInterval = DefaultEchoPollInterval
	}
	if c.Elevation.DrainPollInterval == 0 {
		c.Elevation.DrainPollInterval = DefaultDrainPollInterval
	}
	if c.Elevation.DrainReadSize == 0 {
		c.Elevation.DrainReadSize = DefaultDrainReadSize
	}
	if c.Streaming.MaxLineBytes == 0 {
		c.Streaming.MaxLineBytes = DefaultMaxLineBytes
	}
}

// Default returns a RunnerConfig with every field set to its default.
func Default() *RunnerConfig {
	cfg := &RunnerConfig{}
	cfg.SetDefaults()
	return cfg
}
