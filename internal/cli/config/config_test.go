package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringSlice("schema-dir", nil, "")
	flags.String("scripts-dir", "", "")
	flags.String("state", "", "")
	flags.String("output", "", "")
	flags.String("log-level", "", "")
	flags.BoolP("verbose", "v", false, "")
	return flags
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "leapgrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	root, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultUndoLimit, cfg.Undo.Limit)
	assert.Equal(t, DefaultDiffPolicy, cfg.Diff.Policy)
	assert.Equal(t, uint(DefaultDontDiff), cfg.Diff.DontDiffMask)
	assert.Empty(t, cfg.SchemaDirs)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileValues(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
schema_dirs:
  - schemas
scripts_dir: scripts
state_path: db/state.db
output: json
undo:
  limit: 5
diff:
  policy: alter
  case_sensitive: true
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, []string{filepath.Join(dir, "schemas")}, cfg.SchemaDirs)
	assert.Equal(t, filepath.Join(dir, "scripts"), cfg.ScriptsDir)
	assert.Equal(t, filepath.Join(dir, "db", "state.db"), cfg.StatePath)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, 5, cfg.Undo.Limit)
	assert.Equal(t, DiffPolicyAlter, cfg.Diff.Policy)
	assert.True(t, cfg.Diff.CaseSensitive)
}

func TestLoadConfig_DiscoversFileUpward(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	writeConfig(t, dir, "state_path: found.db\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "found.db", filepath.Base(cfg.StatePath))
	assert.Equal(t, filepath.Base(dir), filepath.Base(cfg.ProjectRoot))
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, "state_path: file.db\nundo:\n  limit: 5\n")
	t.Setenv("LEAPGRT_STATE_PATH", "env.db")
	t.Setenv("LEAPGRT_UNDO_LIMIT", "7")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "env.db"), cfg.StatePath)
	assert.Equal(t, 7, cfg.Undo.Limit)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, "state_path: file.db\noutput: text\n")
	t.Setenv("LEAPGRT_STATE_PATH", "env.db")

	flags := newFlagSet()
	require.NoError(t, flags.Set("state", ":memory:"))
	require.NoError(t, flags.Set("output", "markdown"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.StatePath)
	assert.Equal(t, "markdown", cfg.OutputFormat)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, "output: text\n")
	t.Setenv("LEAPGRT_OUTPUT", "json")

	cfg, err := LoadConfig(path, newFlagSet())
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadConfig_SchemaDirFlags(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)

	flags := newFlagSet()
	require.NoError(t, flags.Set("schema-dir", "one"))
	require.NoError(t, flags.Set("schema-dir", "two"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cwd, "one"), filepath.Join(cwd, "two")}, cfg.SchemaDirs)
}

func TestLoadConfig_SchemaDirsFromEnvList(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, "")
	t.Setenv("LEAPGRT_SCHEMA_DIRS", "a"+string(os.PathListSeparator)+"b")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a"), filepath.Join(dir, "b")}, cfg.SchemaDirs)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{"output", "output: html\n", "unknown output format"},
		{"log level", "log_level: loud\n", "invalid log level"},
		{"undo limit", "undo:\n  limit: -1\n", "undo.limit"},
		{"diff policy", "diff:\n  policy: fuzzy\n", "unknown diff policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, t.TempDir(), "schema_dirs: [unclosed\n")
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidateDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{SchemaDirs: []string{dir, filepath.Join(dir, "missing")}}
	err := cfg.ValidateDirectories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema directory does not exist")

	cfg = &Config{SchemaDirs: []string{dir}, ScriptsDir: dir}
	assert.NoError(t, cfg.ValidateDirectories())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_GRT_HOME", "/srv/grt")

	assert.Equal(t, "/srv/grt/state.db", expandEnvVars("${TEST_GRT_HOME}/state.db"))
	assert.Equal(t, "${TEST_GRT_UNSET}/x", expandEnvVars("${TEST_GRT_UNSET}/x"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "state_path", envKey("LEAPGRT_STATE_PATH"))
	assert.Equal(t, "undo.limit", envKey("LEAPGRT_UNDO_LIMIT"))
	assert.Equal(t, "diff.case_sensitive", envKey("LEAPGRT_DIFF_CASE_SENSITIVE"))
}

func TestGetLogger(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.NotNil(t, GetLogger(context.Background()))
}
