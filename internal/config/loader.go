package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns a configuration with every default applied and no
// symbols selected. Callers overlay flags before validating.
func Default() *WatchConfig {
	var cfg WatchConfig
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*WatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg WatchConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values. An empty
// path yields the pure defaults.
func LoadWithDefaults(path string) (*WatchConfig, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}
