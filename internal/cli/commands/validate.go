package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapgrt/internal/cli/config"
	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/leapstack-labs/leapgrt/pkg/tree"
	"github.com/spf13/cobra"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// Issue is a validation failure of one object.
type Issue struct {
	Document string `json:"document"`
	Node     string `json:"node"`
	Class    string `json:"class"`
	Message  string `json:"message"`
}

// ValidationReport is the JSON form of a validate run.
type ValidationReport struct {
	Classes   int      `json:"classes"`
	Documents []string `json:"documents,omitempty"`
	Objects   int      `json:"objects"`
	Issues    []Issue  `json:"issues"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [document...]",
		Short: "Check class descriptors, scripts and stored documents",
		Long: `Load the built-in model together with the configured schema and scripts
directories, reporting any descriptor or script binding error.

Documents named as arguments are loaded and every object they own is
checked with the validators of its class.

With --watch the class check is repeated whenever a descriptor or script
file changes.`,
		Example: `  leapgrt validate --schema-dir ./schemas --scripts-dir ./scripts
  leapgrt validate catalog
  leapgrt validate --watch --schema-dir ./schemas`,
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			if watch {
				return runValidateWatch(cmd)
			}
			return runValidate(cmd, args)
		},
	}
	cmd.Flags().Bool("watch", false, "Re-check when descriptor or script files change")
	return cmd
}

func runValidate(cmd *cobra.Command, docs []string) error {
	var (
		cmdCtx  *CommandContext
		cleanup = func() {}
		err     error
	)
	if len(docs) > 0 {
		cmdCtx, cleanup, err = NewCommandContext(cmd)
	} else {
		cmdCtx, err = NewCommandContextWithoutStore(cmd)
	}
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	report := ValidationReport{
		Classes:   len(cmdCtx.Runtime().Classes()),
		Documents: docs,
		Issues:    []Issue{},
	}
	for _, ref := range docs {
		root, err := cmdCtx.Store.LoadDocument(cmd.Context(), cmdCtx.Runtime(), ref)
		if err != nil {
			return err
		}
		n, issues := validateDocument(cmdCtx.Runtime(), ref, root)
		report.Objects += n
		report.Issues = append(report.Issues, issues...)
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(report); err != nil {
			return err
		}
	} else {
		r.Success(fmt.Sprintf("%d classes loaded", report.Classes))
		if len(docs) > 0 {
			r.StatusLine("Objects checked", fmt.Sprintf("%d", report.Objects))
		}
		if len(report.Issues) > 0 {
			rows := make([][]string, 0, len(report.Issues))
			for _, is := range report.Issues {
				rows = append(rows, []string{is.Document, is.Node, is.Class, is.Message})
			}
			r.Table([]string{"DOCUMENT", "NODE", "CLASS", "ISSUE"}, rows)
		}
	}

	if len(report.Issues) > 0 {
		return fmt.Errorf("validation failed: %d issue(s)", len(report.Issues))
	}
	return nil
}

// validateDocument runs the class validators of every object owned by
// root. It returns the number of objects checked.
func validateDocument(rt *grt.Runtime, doc string, root *grt.Object) (int, []Issue) {
	var (
		issues  []Issue
		checked int
	)
	for _, n := range walkTree(root, tree.NodeID{}, 0) {
		o, ok := n.value.(*grt.Object)
		if !ok || !n.expanded {
			continue
		}
		checked++
		if err := rt.Validate(o, ""); err != nil {
			for _, e := range unwrapJoined(err) {
				issues = append(issues, Issue{
					Document: doc,
					Node:     nodeLabel(n.ID),
					Class:    o.ClassName(),
					Message:  e.Error(),
				})
			}
		}
	}
	return checked, issues
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func runValidateWatch(cmd *cobra.Command) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	dirs := append([]string(nil), cfg.SchemaDirs...)
	if cfg.ScriptsDir != "" {
		dirs = append(dirs, cfg.ScriptsDir)
	}
	if len(dirs) == 0 {
		return errors.New("nothing to watch: configure schema_dirs or scripts_dir")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range dirs {
		if err := watchDir(watcher, dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	check := func() {
		env, err := loadEnvironment(ctx, cfg, logger)
		if err != nil {
			r.Warning(err.Error())
			return
		}
		r.Success(fmt.Sprintf("%d classes loaded", len(env.Runtime.Classes())))
	}

	check()
	r.Muted("Watching for changes. Press Ctrl+C to stop.")
	return watchLoop(ctx, watcher, logger, check)
}

// watchDir recursively adds a directory to the watcher.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && len(d.Name()) > 0 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// watchLoop calls onChange, debounced, for every write to a descriptor or
// script file until ctx is done.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, logger *slog.Logger, onChange func()) error {
	var debounce *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			onChange()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchDir(watcher, event.Name)
				}
			}
			switch filepath.Ext(event.Name) {
			case ".yaml", ".yml", ".xml", ".star":
			default:
				continue
			}
			logger.Debug("file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
