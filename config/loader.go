package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and initial parsing of a RunnerConfig from a file.
type Loader struct {
	filePath string
}

// NewLoader creates a new configuration loader for the given file path.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads the configuration file, unmarshals it, applies defaults to
// unset fields, and validates the result.
func (l *Loader) Load() (*RunnerConfig, error) {
	if l.filePath == "" {
		return nil, fmt.Errorf("configuration file path is empty")
	}
	content, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", l.filePath, err)
	}

	if len(content) == 0 {
		return nil, fmt.Errorf("configuration file '%s' is empty", l.filePath)
	}

	var cfg RunnerConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML from '%s': %w", l.filePath, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for '%s': %w", l.filePath, err)
	}

	return &cfg, nil
}
