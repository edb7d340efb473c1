// Package config loads the crucible configuration file and applies
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultModel         = "claude-sonnet-4-5-20250929"
	DefaultMaxIterations = 5
	DefaultMaxTokens     = 4096
	DefaultMemorySize    = 5

	defaultTimeoutSeconds = 10
	defaultCPUSeconds     = 5
	defaultMemoryMB       = 256
	defaultFileSizeMB     = 10
)

// SandboxConfig holds the executor's ceilings.
type SandboxConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CPUSeconds     int    `yaml:"cpu_seconds"`
	MemoryBytes    int64  `yaml:"memory_bytes"`
	FileSizeBytes  int64  `yaml:"file_size_bytes"`
	Interpreter    string `yaml:"interpreter"`
}

// Timeout returns the wall-clock bound as a duration.
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Config is the full tool configuration.
type Config struct {
	Model         string        `yaml:"model"`
	MaxIterations int           `yaml:"max_iterations"`
	MaxTokens     int           `yaml:"max_tokens"`
	ScratchDir    string        `yaml:"scratch_dir"`
	StateDir      string        `yaml:"state_dir"`
	MemorySize    int           `yaml:"memory_size"`
	Sandbox       SandboxConfig `yaml:"sandbox"`
}

// Default returns the stock configuration, rooted under dir.
func Default(dir string) Config {
	return Config{
		Model:         DefaultModel,
		MaxIterations: DefaultMaxIterations,
		MaxTokens:     DefaultMaxTokens,
		ScratchDir:    filepath.Join(dir, "scratch"),
		StateDir:      filepath.Join(dir, "state"),
		MemorySize:    DefaultMemorySize,
		Sandbox: SandboxConfig{
			TimeoutSeconds: defaultTimeoutSeconds,
			CPUSeconds:     defaultCPUSeconds,
			MemoryBytes:    defaultMemoryMB << 20,
			FileSizeBytes:  defaultFileSizeMB << 20,
			Interpreter:    "python3",
		},
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
// A missing file yields the defaults without error; a malformed file is
// an error.
func Load(path, baseDir string) (Config, error) {
	cfg := Default(baseDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults(baseDir)
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults(baseDir string) {
	def := Default(baseDir)
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.ScratchDir == "" {
		c.ScratchDir = def.ScratchDir
	}
	if c.StateDir == "" {
		c.StateDir = def.StateDir
	}
	if c.MemorySize <= 0 {
		c.MemorySize = def.MemorySize
	}
	if c.Sandbox.TimeoutSeconds <= 0 {
		c.Sandbox.TimeoutSeconds = def.Sandbox.TimeoutSeconds
	}
	if c.Sandbox.CPUSeconds <= 0 {
		c.Sandbox.CPUSeconds = def.Sandbox.CPUSeconds
	}
	if c.Sandbox.MemoryBytes <= 0 {
		c.Sandbox.MemoryBytes = def.Sandbox.MemoryBytes
	}
	if c.Sandbox.FileSizeBytes <= 0 {
		c.Sandbox.FileSizeBytes = def.Sandbox.FileSizeBytes
	}
	if c.Sandbox.Interpreter == "" {
		c.Sandbox.Interpreter = def.Sandbox.Interpreter
	}
}

func (c *Config) validate() error {
	if c.Sandbox.TimeoutSeconds <= c.Sandbox.CPUSeconds {
		// The wall clock is the hard outer bound; a CPU ceiling at or
		// above it would never be the limit that fires first.
		return fmt.Errorf("sandbox timeout (%ds) must exceed cpu ceiling (%ds)",
			c.Sandbox.TimeoutSeconds, c.Sandbox.CPUSeconds)
	}
	return nil
}
