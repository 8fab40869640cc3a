package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and returns a ready-to-use config: ${VAR}
// and ${VAR:-default} references are expanded from the environment, unknown
// keys are rejected, defaults are applied, and the result is validated.
func Load(path string) (*TraderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse runs the Load pipeline on raw YAML bytes.
func Parse(data []byte) (*TraderConfig, error) {
	expanded := os.Expand(string(data), expandVar)

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg TraderConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &cfg, nil
}

// expandVar resolves one ${...} reference, honoring the shell-style
// ${VAR:-default} fallback form for unset or empty variables.
func expandVar(ref string) string {
	name, fallback, hasFallback := strings.Cut(ref, ":-")
	if v := os.Getenv(name); v != "" {
		return v
	}
	if hasFallback {
		return fallback
	}
	return ""
}
