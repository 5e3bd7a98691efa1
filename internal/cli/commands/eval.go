package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	starctx "github.com/leapstack-labs/leapgrt/internal/starlark"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/spf13/cobra"
	"go.starlark.net/starlark"
)

// EvalOutput is the JSON form of one evaluated expression.
type EvalOutput struct {
	Expr  string `json:"expr"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <expression>...",
		Short: "Evaluate Starlark expressions against the runtime",
		Long: `Evaluate Starlark expressions with the grt builtins and the loaded script
modules in scope.

With --document the root object of a stored document is bound as 'doc'.
Expressions run in order and may modify it; --save writes the result back.
With --jobs greater than one, read-only expressions are evaluated
concurrently.`,
		Example: `  leapgrt eval 'grt.classes()'
  leapgrt eval --document catalog 'doc.schemata[0].tables[0].name'
  leapgrt eval --document catalog --save 'doc.schemata[0].addNewTable("audit")'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _ := cmd.Flags().GetString("document")
			save, _ := cmd.Flags().GetBool("save")
			jobs, _ := cmd.Flags().GetInt("jobs")
			return runEval(cmd, args, doc, save, jobs)
		},
	}
	cmd.Flags().String("document", "", "Bind the root of this document as 'doc'")
	cmd.Flags().Bool("save", false, "Save the document after evaluation")
	cmd.Flags().Int("jobs", 1, "Number of expressions evaluated concurrently")
	return cmd
}

func runEval(cmd *cobra.Command, exprs []string, docRef string, save bool, jobs int) error {
	if save && docRef == "" {
		return fmt.Errorf("--save requires --document")
	}
	if save && jobs > 1 {
		return fmt.Errorf("--save cannot be combined with --jobs")
	}

	var (
		cmdCtx  *CommandContext
		cleanup = func() {}
		err     error
	)
	if docRef != "" {
		cmdCtx, cleanup, err = NewCommandContext(cmd)
	} else {
		cmdCtx, err = NewCommandContextWithoutStore(cmd)
	}
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer
	rt := cmdCtx.Runtime()

	sctx := starctx.NewContext(rt, starctx.WithModules(cmdCtx.Env.Modules))
	var root *grt.Object
	if docRef != "" {
		if root, err = cmdCtx.Store.LoadDocument(cmd.Context(), rt, docRef); err != nil {
			return err
		}
		if err := sctx.Bind("doc", root); err != nil {
			return err
		}
	}

	var results []starctx.EvalResult
	if jobs > 1 {
		tasks := make([]starctx.EvalTask, len(exprs))
		for i, e := range exprs {
			tasks[i] = starctx.EvalTask{Name: fmt.Sprintf("<expr %d>", i+1), Expr: e}
		}
		results = starctx.NewParallelExecutor(jobs, sctx.Globals()).Execute(cmd.Context(), tasks)
	} else {
		for i, e := range exprs {
			name := fmt.Sprintf("<expr %d>", i+1)
			v, evalErr := sctx.EvalExpr(e, name, 1)
			results = append(results, starctx.EvalResult{Name: name, Value: v, Error: evalErr})
		}
	}

	outputs := make([]EvalOutput, len(results))
	failed := 0
	for i, res := range results {
		outputs[i] = EvalOutput{Expr: exprs[i]}
		if res.Error != nil {
			outputs[i].Error = res.Error.Error()
			failed++
			continue
		}
		outputs[i].Value = goValue(res.Value)
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(outputs); err != nil {
			return err
		}
	} else {
		for i, out := range outputs {
			if out.Error != "" {
				r.Warning(out.Error)
				continue
			}
			r.Println(displayValue(results[i].Value))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d expression(s) failed", failed, len(exprs))
	}
	if save {
		if _, err := cmdCtx.Store.SaveDocument(cmd.Context(), docRef, root); err != nil {
			return err
		}
		if r.EffectiveMode() != output.ModeJSON {
			r.Muted("Saved " + docRef)
		}
	}
	return nil
}

// goValue converts a result for JSON output. Values without a runtime
// equivalent are rendered as strings.
func goValue(v starlark.Value) any {
	if v == nil {
		return nil
	}
	if gv, err := starctx.StarlarkToGo(v); err == nil {
		return gv
	}
	return v.String()
}

func displayValue(v starlark.Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case starlark.String:
		return string(x)
	}
	return v.String()
}
