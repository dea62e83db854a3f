package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (CBIND_*)
// 2. Config file (.cbind/config.yml or .cbind/config.yaml)
// 3. Default values
//
// Relative paths in the file are resolved against the root directory.
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, ".cbind"))

	// CBIND_OUTPUT_FORMAT overrides output.format
	v.SetEnvPrefix("CBIND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("module")
	v.BindEnv("snapshot.save")
	v.BindEnv("snapshot.keep")
	v.BindEnv("output.format")
	v.BindEnv("output.color")
	v.BindEnv("log.verbose")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.resolvePaths(l.rootDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("module", defaults.Module)
	v.SetDefault("frontend.include_paths", defaults.Frontend.IncludePaths)
	v.SetDefault("frontend.defines", defaults.Frontend.Defines)
	v.SetDefault("filter.include", defaults.Filter.Include)
	v.SetDefault("filter.exclude", defaults.Filter.Exclude)
	v.SetDefault("builtins.files", defaults.Builtins.Files)
	v.SetDefault("snapshot.load", defaults.Snapshot.Load)
	v.SetDefault("snapshot.save", defaults.Snapshot.Save)
	v.SetDefault("snapshot.keep", defaults.Snapshot.Keep)
	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.color", defaults.Output.Color)
	v.SetDefault("log.verbose", defaults.Log.Verbose)
}

func (c *Config) resolvePaths(rootDir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(rootDir, p)
	}
	for i, p := range c.Frontend.IncludePaths {
		c.Frontend.IncludePaths[i] = abs(p)
	}
	for i, p := range c.Builtins.Files {
		c.Builtins.Files[i] = abs(p)
	}
	for i, p := range c.Snapshot.Load {
		c.Snapshot.Load[i] = abs(p)
	}
	c.Snapshot.Save = abs(c.Snapshot.Save)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
