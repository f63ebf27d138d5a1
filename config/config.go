package config

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "3s" or "100ms"
// parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return errors.Wrap(err, "duration must be a string like \"3s\"")
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RunnerConfig is the top-level configuration structure.
type RunnerConfig struct {
	Logging   LoggingSpec   `yaml:"logging"`
	Elevation ElevationSpec `yaml:"elevation"`
	Streaming StreamingSpec `yaml:"streaming"`
}

// LoggingSpec configures the global logger.
type LoggingSpec struct {
	// Dir is the log output directory. Empty means console only.
	Dir string `yaml:"dir,omitempty"`
	// Level is the logrus level name (trace, debug, info, warn, error).
	Level string `yaml:"level,omitempty"`
	// Verbose forces debug-level logging regardless of Level.
	Verbose bool `yaml:"verbose,omitempty"`
}

// ElevationSpec tunes the pseudo-terminal password handshake.
type ElevationSpec struct {
	// SuPath and SudoPath are the fixed binaries the elevation flows
	// shell out to.
	SuPath   string `yaml:"suPath,omitempty"`
	SudoPath string `yaml:"sudoPath,omitempty"`
	// PromptTimeout bounds how long to wait for the terminal's echo
	// attribute to go off before a prompt is declared missing.
	PromptTimeout Duration `yaml:"promptTimeout,omitempty"`
	// EchoPollInterval is the sleep between echo-attribute checks.
	EchoPollInterval Duration `yaml:"echoPollInterval,omitempty"`
	// DrainPollInterval bounds each readiness wait while draining
	// output after authentication.
	DrainPollInterval Duration `yaml:"drainPollInterval,omitempty"`
	// DrainReadSize is the per-read buffer size while draining.
	DrainReadSize int `yaml:"drainReadSize,omitempty"`
}

// StreamingSpec tunes the line-streaming runner.
type StreamingSpec struct {
	// MaxLineBytes caps the length of a single streamed line.
	MaxLineBytes int `yaml:"maxLineBytes,omitempty"`
}

// Validate checks the configuration for values that cannot work.
func (c *RunnerConfig) Validate() error {
	if c.Elevation.PromptTimeout < 0 {
		return errors.New("elevation.promptTimeout must not be negative")
	}
	if c.Elevation.EchoPollInterval < 0 {
		return errors.New("elevation.echoPollInterval must not be negative")
	}
	if c.Elevation.DrainPollInterval < 0 {
		return errors.New("elevation.drainPollInterval must not be negative")
	}
	if c.Elevation.DrainReadSize < 0 {
		return errors.New("elevation.drainReadSize must not be negative")
	}
	if c.Streaming.MaxLineBytes < 0 {
		return errors.New("streaming.maxLineBytes must not be negative")
	}
	return nil
}
