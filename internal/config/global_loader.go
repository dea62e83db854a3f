package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadGlobalConfig loads global configuration from ~/.cbind/config.yml.
// Returns default values if file doesn't exist (not an error).
// Environment variables override file values (CBIND_* prefix).
func LoadGlobalConfig() (*GlobalConfig, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	// Look for ~/.cbind/config.yml (NOT project .cbind/config.yml)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(filepath.Join(home, ".cbind"))

	v.SetEnvPrefix("CBIND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("session.workers")
	v.BindEnv("session.cache_size")
	v.BindEnv("watch.debounce_ms")

	v.SetDefault("session.workers", 0)
	v.SetDefault("session.cache_size", 256)
	v.SetDefault("watch.debounce_ms", 300)

	// Read config (not an error if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &GlobalConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Session.Workers < 0 || cfg.Session.CacheSize < 0 || cfg.Watch.DebounceMs < 0 {
		return nil, fmt.Errorf("invalid global configuration: workers, cache_size and debounce_ms cannot be negative")
	}

	return cfg, nil
}
