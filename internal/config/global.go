// Package config provides configuration loading for cbind.
//
// It supports two distinct configuration scopes:
//
// 1. Global Configuration (~/.cbind/config.yml)
//   - Machine-wide settings
//   - Worker count and result cache size for extraction sessions
//   - Watch debounce interval
//   - Loaded via LoadGlobalConfig()
//
// 2. Project Configuration (.cbind/config.yml)
//   - Binding module name, include paths and defines
//   - Filters, builtin override files, snapshot paths
//   - Output format
//   - Loaded via Load()
//
// Environment Variable Convention:
//   - Prefix: CBIND_
//   - Nested fields: Use underscores (CBIND_SESSION_WORKERS)
//   - Automatic mapping via Viper's SetEnvKeyReplacer
package config

// GlobalConfig holds machine-wide configuration.
// Loaded from ~/.cbind/config.yml (not project .cbind/config.yml).
type GlobalConfig struct {
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
}

// SessionConfig holds extraction session settings.
type SessionConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`       // parallel extractions, 0 for one per CPU
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"` // cached results
}

// WatchConfig holds file watching settings.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" mapstructure:"debounce_ms"` // quiet period before re-extracting
}
