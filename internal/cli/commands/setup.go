package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapgrt/internal/cli/config"
	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	"github.com/leapstack-labs/leapgrt/internal/state"
	"github.com/leapstack-labs/leapgrt/pkg/diff"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/leapstack-labs/leapgrt/pkg/structs"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Env      *structs.Environment
	Store    *state.SQLiteStore
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a loaded environment and
// an open document store. Returns the context and a cleanup function that
// must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Store = store

	cleanup := func() {
		_ = store.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for commands that only inspect the registered classes.
func NewCommandContextWithoutStore(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	env, err := loadEnvironment(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Env:      env,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}, nil
}

// Runtime returns the runtime of the loaded environment.
func (c *CommandContext) Runtime() *grt.Runtime { return c.Env.Runtime }

// Omf returns the diff policy selected by the configuration.
func (c *CommandContext) Omf(policy string) diff.Omf {
	opts := diff.Options{
		CaseSensitive: c.Cfg.Diff.CaseSensitive,
		DontDiffMask:  c.Cfg.Diff.DontDiffMask,
	}
	if policy == "" {
		policy = c.Cfg.Diff.Policy
	}
	if policy == config.DiffPolicyAlter {
		return diff.NewAlterOmf(opts)
	}
	return diff.NewDefaultOmf(opts)
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		StatePath:    config.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
		LogLevel:     config.DefaultLogLevel,
		Undo:         config.UndoConfig{Limit: config.DefaultUndoLimit},
		Diff: config.DiffConfig{
			Policy:       config.DefaultDiffPolicy,
			DontDiffMask: config.DefaultDontDiff,
		},
	}
}

func loadEnvironment(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*structs.Environment, error) {
	var scriptDirs []string
	if cfg.ScriptsDir != "" {
		scriptDirs = append(scriptDirs, cfg.ScriptsDir)
	}
	env, err := structs.Load(ctx, structs.Config{
		SchemaDirs: cfg.SchemaDirs,
		ScriptDirs: scriptDirs,
		Options: []grt.Option{
			grt.WithLogger(logger),
			grt.WithUndoLimit(cfg.Undo.Limit),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load classes: %w", err)
	}
	return env, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	return state.OpenStore(ctx, cfg.StatePath, logger)
}
