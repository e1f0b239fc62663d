package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML file at path, applies ${VAR} substitution,
// fills defaults, then applies NIGHTWATCH_* environment overrides. It does
// not validate; call Validate() on the result and treat any returned
// message as a configuration error (CLI exit code 2 per SPEC_FULL.md §6).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	substituted := substituteEnvVars(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	cfg.LoadEnvOverrides()

	return &cfg, nil
}

// Default returns a fully-defaulted configuration with no YAML source,
// used by `run --mock-sensors` when NIGHTWATCH_CONFIG is unset.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.LoadEnvOverrides()
	return &cfg
}
