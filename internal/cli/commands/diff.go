package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrt/internal/cli/config"
	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	"github.com/leapstack-labs/leapgrt/pkg/diff"
	"github.com/spf13/cobra"
)

// DiffResult is the JSON form of a comparison.
type DiffResult struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Policy  string   `json:"policy"`
	Changes int      `json:"changes"`
	Lines   []string `json:"lines"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <source> <target>",
		Short: "Compare two stored documents",
		Long: `Load two documents and print the changes that turn source into target.

Elements of lists and dicts are matched by a policy:
  default  objects of the same class match by name
  alter    objects match by their old name, so renamed objects are
           reported as modified instead of removed and added`,
		Example: `  leapgrt diff catalog catalog-backup
  leapgrt diff catalog draft --policy alter --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, _ := cmd.Flags().GetString("policy")
			return runDiff(cmd, args[0], args[1], policy)
		},
	}
	cmd.Flags().String("policy", "", "Matching policy (default|alter), overrides diff.policy")
	_ = cmd.RegisterFlagCompletionFunc("policy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.DiffPolicyDefault, config.DiffPolicyAlter}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runDiff(cmd *cobra.Command, sourceRef, targetRef, policy string) error {
	switch policy {
	case "", config.DiffPolicyDefault, config.DiffPolicyAlter:
	default:
		return fmt.Errorf("unknown diff policy %q", policy)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	source, err := cmdCtx.Store.LoadDocument(cmd.Context(), cmdCtx.Runtime(), sourceRef)
	if err != nil {
		return err
	}

	// The target gets a runtime of its own: both documents may hold the
	// same GUIDs.
	targetEnv, err := loadEnvironment(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	target, err := cmdCtx.Store.LoadDocument(cmd.Context(), targetEnv.Runtime, targetRef)
	if err != nil {
		return err
	}

	omf := cmdCtx.Omf(policy)
	change := diff.Make(source, target, omf)

	result := DiffResult{
		Source: sourceRef,
		Target: targetRef,
		Policy: policy,
		Lines:  []string{},
	}
	if result.Policy == "" {
		result.Policy = cmdCtx.Cfg.Diff.Policy
	}
	if change != nil {
		result.Changes = change.Count()
		result.Lines = strings.Split(strings.TrimRight(diff.Format(change), "\n"), "\n")
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Diff %s -> %s", sourceRef, targetRef)))
		r.Println("")
		r.Println(output.FormatKeyValue("Policy", result.Policy))
		r.Println(output.FormatKeyValue("Changes", fmt.Sprintf("%d", result.Changes)))
		if change != nil {
			r.Println("")
			r.Println(output.FormatCodeBlock("diff", diff.Format(change)))
		}
	default:
		r.Header(1, fmt.Sprintf("Diff %s -> %s", sourceRef, targetRef))
		if change == nil {
			r.Success("No changes")
			return nil
		}
		s := r.Styles()
		for _, line := range result.Lines {
			switch {
			case strings.Contains(line, "_added"):
				r.Println(s.Added.Render(line))
			case strings.Contains(line, "_removed"):
				r.Println(s.Removed.Render(line))
			default:
				r.Println(line)
			}
		}
	}
	return nil
}
