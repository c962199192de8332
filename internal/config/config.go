// Package config loads the optional .ohosbuild YAML file and the
// attachment task list that drives patching.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the optional configuration file at the engine root.
const FileName = ".ohosbuild"

// RunsDir is where stored runs live, relative to the engine root.
const RunsDir = ".ohosbuild-runs"

// Default values for runner and workflow configuration.
const (
	DefaultTimeout    = 5 * time.Minute
	DefaultMaxOutput  = 1 << 20 // 1 MB
	DefaultAttachment = "src/flutter/attachment"
	DefaultSyncDir    = "src/flutter"
	DefaultGclient    = "gclient sync --force"
	DefaultLogLevel   = "info"
)

// Config holds the parsed .ohosbuild configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int        `yaml:"version"`
	RawTimeout   string     `yaml:"timeout"`    // e.g. "5m", "30s"
	RawMaxOutput int        `yaml:"max_output"` // bytes
	RawLogLevel  string     `yaml:"log_level"`  // logrus level name
	Attachment   string     `yaml:"attachment"` // attachment root, relative to the engine root
	Tasks        string     `yaml:"tasks"`      // task list path, relative to the engine root
	Sync         SyncConfig `yaml:"sync"`
}

// SyncConfig controls branch synchronisation.
type SyncConfig struct {
	Dir     string `yaml:"dir"`     // repository to switch branches in
	Gclient string `yaml:"gclient"` // dependency sync command run afterwards
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// LogLevel returns the configured log level or the default.
func (c *Config) LogLevel() string {
	if c.RawLogLevel != "" {
		return c.RawLogLevel
	}
	return DefaultLogLevel
}

// AttachmentDir returns the attachment root relative to the engine root.
func (c *Config) AttachmentDir() string {
	if c.Attachment != "" {
		return c.Attachment
	}
	return DefaultAttachment
}

// ReposDir returns the directory holding the files copied by setup tasks.
func (c *Config) ReposDir() string {
	return filepath.Join(c.AttachmentDir(), "repos")
}

// TasksFile returns the task list path relative to the engine root.
func (c *Config) TasksFile() string {
	if c.Tasks != "" {
		return c.Tasks
	}
	return filepath.Join(c.AttachmentDir(), "scripts", "config.json")
}

// SyncDir returns the repository that branch sync operates on.
func (c *Config) SyncDir() string {
	if c.Sync.Dir != "" {
		return c.Sync.Dir
	}
	return DefaultSyncDir
}

// GclientCommand returns the dependency sync command.
func (c *Config) GclientCommand() string {
	if c.Sync.Gclient != "" {
		return c.Sync.Gclient
	}
	return DefaultGclient
}

// LoadResult holds the parsed config and the discovered engine root.
type LoadResult struct {
	Config *Config
	Root   string // directory containing src/flutter; falls back to workspace
}

// Load reads the .ohosbuild file from the engine root.
// The engine root is discovered by walking upward from workspace looking
// for a src/flutter directory. If no .ohosbuild file exists, a default
// Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findEngineRoot(workspace)
	if err != nil {
		// No engine checkout found; use workspace as root.
		root = workspace
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, Root: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findEngineRoot walks upward from dir looking for a directory that
// contains src/flutter.
func findEngineRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, "src", "flutter")); err == nil && fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("src/flutter not found")
		}
		dir = parent
	}
}
