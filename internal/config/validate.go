package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrEmptyModule indicates a missing binding module name
	ErrEmptyModule = errors.New("empty module name")

	// ErrInvalidModule indicates a module name that cannot prefix external names
	ErrInvalidModule = errors.New("invalid module name")

	// ErrInvalidDefine indicates a malformed NAME=VALUE define
	ErrInvalidDefine = errors.New("invalid define")

	// ErrInvalidPattern indicates a filter pattern that does not compile
	ErrInvalidPattern = errors.New("invalid filter pattern")

	// ErrInvalidFormat indicates an unsupported output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrInvalidSnapshotSettings indicates invalid snapshot configuration
	ErrInvalidSnapshotSettings = errors.New("invalid snapshot settings")
)

var (
	moduleRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	macroRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateModule(cfg.Module); err != nil {
		errs = append(errs, err)
	}

	if err := validateFrontend(&cfg.Frontend); err != nil {
		errs = append(errs, err)
	}

	if err := validateFilter(&cfg.Filter); err != nil {
		errs = append(errs, err)
	}

	if err := validateSnapshot(&cfg.Snapshot); err != nil {
		errs = append(errs, err)
	}

	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateModule(module string) error {
	if strings.TrimSpace(module) == "" {
		return fmt.Errorf("%w: module is required", ErrEmptyModule)
	}
	if !moduleRe.MatchString(module) {
		return fmt.Errorf("%w: %q must be dot-separated identifiers", ErrInvalidModule, module)
	}
	return nil
}

func validateFrontend(cfg *FrontendConfig) error {
	var errs []error

	for _, d := range cfg.Defines {
		name, _, _ := strings.Cut(d, "=")
		if !macroRe.MatchString(strings.TrimSpace(name)) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDefine, d))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateFilter(cfg *FilterConfig) error {
	var errs []error

	for _, list := range [][]string{cfg.Include, cfg.Exclude} {
		for _, p := range list {
			if _, err := glob.Compile(p, '/'); err != nil {
				errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p, err))
			}
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateSnapshot(cfg *SnapshotConfig) error {
	// Zero means keep every run
	if cfg.Keep < 0 {
		return fmt.Errorf("%w: keep cannot be negative, got %d", ErrInvalidSnapshotSettings, cfg.Keep)
	}
	return nil
}

func validateOutput(cfg *OutputConfig) error {
	switch strings.ToLower(cfg.Format) {
	case "json", "yaml", "text":
		return nil
	}
	return fmt.Errorf("%w: must be 'json', 'yaml' or 'text', got '%s'", ErrInvalidFormat, cfg.Format)
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
