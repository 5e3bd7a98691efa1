package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "md", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q (want auto, text, markdown or json)", c.OutputFormat))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Undo.Limit < 0 {
		errs = append(errs, fmt.Errorf("undo.limit must not be negative, got %d", c.Undo.Limit))
	}
	switch c.Diff.Policy {
	case "", DiffPolicyDefault, DiffPolicyAlter:
	default:
		errs = append(errs, fmt.Errorf("unknown diff policy %q (want %s or %s)", c.Diff.Policy, DiffPolicyDefault, DiffPolicyAlter))
	}
	return errors.Join(errs...)
}

// ValidateDirectories checks that configured schema and script directories exist.
func (c *Config) ValidateDirectories() error {
	var errs []error
	for _, dir := range c.SchemaDirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("schema directory does not exist: %s\nHint: create it or use --schema-dir to specify a different path", dir))
		}
	}
	if c.ScriptsDir != "" {
		if _, err := os.Stat(c.ScriptsDir); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("scripts directory does not exist: %s", c.ScriptsDir))
		}
	}
	return errors.Join(errs...)
}

// ParseLevel converts a level name. The empty name is the default level.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		s = DefaultLogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
