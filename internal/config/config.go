package config

// Config represents the project configuration.
// It can be loaded from .cbind/config.yml with environment variable overrides.
type Config struct {
	Module   string         `yaml:"module" mapstructure:"module"`
	Frontend FrontendConfig `yaml:"frontend" mapstructure:"frontend"`
	Filter   FilterConfig   `yaml:"filter" mapstructure:"filter"`
	Builtins BuiltinsConfig `yaml:"builtins" mapstructure:"builtins"`
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// FrontendConfig configures preprocessing.
type FrontendConfig struct {
	IncludePaths []string `yaml:"include_paths" mapstructure:"include_paths"` // searched for <...> and "..." includes
	Defines      []string `yaml:"defines" mapstructure:"defines"`             // NAME or NAME=VALUE
}

// FilterConfig selects which top-level declarations are emitted.
type FilterConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns over names or file paths
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
}

// BuiltinsConfig lists hand-written builtin override files.
type BuiltinsConfig struct {
	Files []string `yaml:"files" mapstructure:"files"` // TOML files with [[builtin]] entries
}

// SnapshotConfig configures snapshot persistence.
type SnapshotConfig struct {
	Load []string `yaml:"load" mapstructure:"load"` // databases read as builtins, first wins
	Save string   `yaml:"save" mapstructure:"save"` // database written after each run
	Keep int      `yaml:"keep" mapstructure:"keep"` // runs kept in the save database, 0 keeps all
}

// OutputConfig configures rendering.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // json, yaml or text
	Color  bool   `yaml:"color" mapstructure:"color"`   // colored text output on terminals
}

// LogConfig configures logging.
type LogConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Module: "c",
		Frontend: FrontendConfig{
			IncludePaths: []string{},
			Defines:      []string{},
		},
		Filter: FilterConfig{
			Include: []string{},
			Exclude: []string{},
		},
		Builtins: BuiltinsConfig{
			Files: []string{},
		},
		Snapshot: SnapshotConfig{
			Load: []string{},
			Save: "",
			Keep: 10,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}
