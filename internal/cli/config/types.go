// Package config provides configuration management for the leapgrt CLI.
package config

// Config holds all CLI configuration options.
type Config struct {
	ProjectRoot  string     `koanf:"-"`
	SchemaDirs   []string   `koanf:"schema_dirs"`
	ScriptsDir   string     `koanf:"scripts_dir"`
	StatePath    string     `koanf:"state_path"`
	Verbose      bool       `koanf:"verbose"`
	OutputFormat string     `koanf:"output"`
	LogLevel     string     `koanf:"log_level"`
	Undo         UndoConfig `koanf:"undo"`
	Diff         DiffConfig `koanf:"diff"`
}

// UndoConfig configures the undo manager of command runtimes.
type UndoConfig struct {
	Limit int `koanf:"limit"`
}

// DiffConfig configures the diff command.
type DiffConfig struct {
	// Policy is "default" (match by class and name) or "alter" (match by
	// old name, for comparing a model with a synchronized copy).
	Policy        string `koanf:"policy"`
	CaseSensitive bool   `koanf:"case_sensitive"`
	DontDiffMask  uint   `koanf:"dont_diff_mask"`
}

// Default configuration values.
const (
	DefaultStateFile  = ".leapgrt/state.db"
	DefaultOutput     = "auto" // TTY=text, non-TTY=markdown
	DefaultLogLevel   = "warn"
	DefaultUndoLimit  = 100
	DefaultDiffPolicy = "default"
	DefaultDontDiff   = 1
)

// Diff policies.
const (
	DiffPolicyDefault = "default"
	DiffPolicyAlter   = "alter"
)
