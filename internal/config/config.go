// Package config loads sizecheck configuration from defaults, an optional
// YAML file and SIZECHECK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/manifest"
	"github.com/patina/sizecheck/pkg/sizecheck"
)

const (
	EngineDagger = "dagger"
	EngineDocker = "docker"
)

// ErrInvalidConfig indicates a configuration value failed validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the full service configuration
type Config struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Engine       string        `yaml:"engine"`
	Image        string        `yaml:"image"`
	WorkDir      string        `yaml:"work_dir"`
	ManifestPath string        `yaml:"manifest_path"`
	ManifestName string        `yaml:"manifest_name"`
	CacheVolume  string        `yaml:"cache_volume"`
	BootTimeout  time.Duration `yaml:"boot_timeout"`

	Installer         string        `yaml:"installer"`
	InstallArgs       []string      `yaml:"install_args"`
	DiskUsageTool     string        `yaml:"disk_usage_tool"`
	DiskUsageArgs     []string      `yaml:"disk_usage_args"`
	ModulesDir        string        `yaml:"modules_dir"`
	CommandTimeout    time.Duration `yaml:"command_timeout"`
	MaxOutputBytes    int64         `yaml:"max_output_bytes"`
	FailOnNonZeroExit bool          `yaml:"fail_on_nonzero_exit"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration
func Default() *Config {
	checker := sizecheck.DefaultConfig()
	return &Config{
		Addr:              ":8080",
		ShutdownTimeout:   30 * time.Second,
		Engine:            EngineDagger,
		Image:             "node:20-alpine",
		WorkDir:           "/app",
		ManifestPath:      "package.json",
		ManifestName:      manifest.DefaultName,
		CacheVolume:       "sizecheck-npm-cache",
		BootTimeout:       10 * time.Minute,
		Installer:         checker.Installer,
		InstallArgs:       checker.InstallArgs,
		DiskUsageTool:     checker.DiskUsageTool,
		DiskUsageArgs:     checker.DiskUsageArgs,
		ModulesDir:        checker.ModulesDir,
		CommandTimeout:    checker.CommandTimeout,
		MaxOutputBytes:    checker.MaxOutputBytes,
		FailOnNonZeroExit: checker.FailOnNonZeroExit,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load builds the configuration. path may be empty, in which case
// SIZECHECK_CONFIG is consulted.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SIZECHECK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Addr = String("SIZECHECK_ADDR", c.Addr)
	c.Engine = String("SIZECHECK_ENGINE", c.Engine)
	c.Image = String("SIZECHECK_IMAGE", c.Image)
	c.WorkDir = String("SIZECHECK_WORKDIR", c.WorkDir)
	c.ManifestPath = String("SIZECHECK_MANIFEST_PATH", c.ManifestPath)
	c.CacheVolume = String("SIZECHECK_CACHE_VOLUME", c.CacheVolume)
	c.Installer = String("SIZECHECK_INSTALLER", c.Installer)
	c.InstallArgs = Fields("SIZECHECK_INSTALL_ARGS", c.InstallArgs)
	c.DiskUsageTool = String("SIZECHECK_DISK_USAGE_TOOL", c.DiskUsageTool)
	c.DiskUsageArgs = Fields("SIZECHECK_DISK_USAGE_ARGS", c.DiskUsageArgs)
	c.ModulesDir = String("SIZECHECK_MODULES_DIR", c.ModulesDir)
	c.LogLevel = String("SIZECHECK_LOG_LEVEL", c.LogLevel)
	c.LogFormat = String("SIZECHECK_LOG_FORMAT", c.LogFormat)

	if c.ShutdownTimeout, err = Duration("SIZECHECK_SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	if c.BootTimeout, err = Duration("SIZECHECK_BOOT_TIMEOUT", c.BootTimeout); err != nil {
		return err
	}
	if c.CommandTimeout, err = Duration("SIZECHECK_COMMAND_TIMEOUT", c.CommandTimeout); err != nil {
		return err
	}
	if c.MaxOutputBytes, err = Int64("SIZECHECK_MAX_OUTPUT_BYTES", c.MaxOutputBytes); err != nil {
		return err
	}
	if c.FailOnNonZeroExit, err = Bool("SIZECHECK_FAIL_ON_NONZERO_EXIT", c.FailOnNonZeroExit); err != nil {
		return err
	}
	return nil
}

// Validate checks required fields and enumerations
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineDagger, EngineDocker:
	default:
		return fmt.Errorf("%w: engine must be %q or %q, got %q", ErrInvalidConfig, EngineDagger, EngineDocker, c.Engine)
	}
	if c.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidConfig)
	}
	if c.Installer == "" || c.DiskUsageTool == "" {
		return fmt.Errorf("%w: installer and disk_usage_tool are required", ErrInvalidConfig)
	}
	if c.CommandTimeout < 0 || c.BootTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.MaxOutputBytes < 0 {
		return fmt.Errorf("%w: max_output_bytes must not be negative", ErrInvalidConfig)
	}
	if _, err := c.level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// NewLogger builds the structured logger described by the configuration
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Environment returns the environment manager configuration
func (c *Config) Environment() *environment.Config {
	return &environment.Config{
		Image:        c.Image,
		WorkDir:      c.WorkDir,
		ManifestPath: c.ManifestPath,
		ManifestName: c.ManifestName,
		BootTimeout:  c.BootTimeout,
	}
}

// Checker returns the pipeline configuration
func (c *Config) Checker() *sizecheck.Config {
	return &sizecheck.Config{
		ManifestName:      c.ManifestName,
		Installer:         c.Installer,
		InstallArgs:       append([]string(nil), c.InstallArgs...),
		DiskUsageTool:     c.DiskUsageTool,
		DiskUsageArgs:     append([]string(nil), c.DiskUsageArgs...),
		ModulesDir:        c.ModulesDir,
		CommandTimeout:    c.CommandTimeout,
		MaxOutputBytes:    c.MaxOutputBytes,
		FailOnNonZeroExit: c.FailOnNonZeroExit,
	}
}
