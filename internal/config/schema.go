// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for rollcall.
package config

import (
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Log configures the process logger. Command-line flags take precedence.
	Log LogConfig `yaml:"log,omitempty"`

	// DataDir overrides the directory modules persist data under.
	DataDir string `yaml:"data_dir,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "gateway.http").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level,omitempty"`
}

// DefaultModules lists the modules run when no configuration file exists,
// each with its built-in defaults.
var DefaultModules = []string{
	"telemetry.otel",
	"store.sqlite",
	"scheduler.cron",
	"gateway.http",
}

// Default returns the built-in configuration: every default module with an
// empty (all defaults) configuration block.
func Default() *Config {
	cfg := &Config{
		Version: "1",
		Modules: make(map[string]yaml.Node, len(DefaultModules)),
	}
	for _, id := range DefaultModules {
		cfg.Modules[id] = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	return cfg
}

// Resolve returns the configured module IDs, sorted. Start order is decided
// later by each module's stage.
func Resolve(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Modules))
}
