package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	"github.com/leapstack-labs/leapgrt/internal/state"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/leapstack-labs/leapgrt/pkg/structs"
	"github.com/spf13/cobra"
)

// Sample graphs the sample command can build.
const (
	SampleCatalog   = "catalog"
	SamplePublisher = "publisher"
)

// NewSampleCommand creates the sample command.
func NewSampleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Store a sample object graph as a document",
		Long: `Build one of the built-in sample graphs and save it in the state database.

  catalog    catalog "def" with schema "shop", three tables and foreign keys
  publisher  a publisher owning two books that share one author`,
		Example: `  leapgrt sample
  leapgrt sample --kind publisher --name press`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			name, _ := cmd.Flags().GetString("name")
			return runSample(cmd, kind, name)
		},
	}
	cmd.Flags().String("kind", SampleCatalog, "Sample to build (catalog|publisher)")
	cmd.Flags().String("name", "", "Document name (default: the sample kind)")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{SampleCatalog, SamplePublisher}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runSample(cmd *cobra.Command, kind, name string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rt := cmdCtx.Runtime()
	var root *grt.Object
	switch kind {
	case SampleCatalog:
		catalog, err := structs.BuildSampleCatalog(rt)
		if err != nil {
			return err
		}
		root = catalog.Object
	case SamplePublisher:
		pub, err := structs.BuildSamplePublisher(rt)
		if err != nil {
			return err
		}
		root = pub.Object
	default:
		return fmt.Errorf("unknown sample %q (want %s or %s)", kind, SampleCatalog, SamplePublisher)
	}
	if name == "" {
		name = kind
	}

	doc, err := cmdCtx.Store.SaveDocument(cmd.Context(), name, root)
	if err != nil {
		return err
	}
	return renderSaved(cmdCtx.Renderer, doc)
}

func renderSaved(r *output.Renderer, doc *state.Document) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(doc)
	}
	r.Success(fmt.Sprintf("Saved %s (%s, %d objects)", doc.Name, doc.RootClass, doc.Objects))
	return nil
}

// NewDocumentsCommand creates the documents command.
func NewDocumentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs", "ls"},
		Short:   "List stored documents",
		Long: `List the documents of the state database with their root class and
object count.

Use --output to override: auto, text, markdown, json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDocuments(cmd)
		},
	}
}

func runDocuments(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	docs, err := cmdCtx.Store.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if docs == nil {
			docs = []*state.Document{}
		}
		return r.JSON(docs)
	}

	r.Header(1, fmt.Sprintf("Documents (%d total)", len(docs)))
	if len(docs) == 0 {
		r.Muted("No documents. Run 'leapgrt sample' to create one.")
		return nil
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{
			d.Name,
			d.RootClass,
			strconv.Itoa(d.Objects),
			d.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	r.Table([]string{"NAME", "ROOT", "OBJECTS", "UPDATED"}, rows)
	return nil
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document>...",
		Short: "Delete stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, ref := range args {
				if err := cmdCtx.Store.DeleteDocument(cmd.Context(), ref); err != nil {
					return err
				}
				cmdCtx.Renderer.Success("Deleted " + ref)
			}
			return nil
		},
	}
}

// NewCopyCommand creates the copy command.
func NewCopyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <document> <name>",
		Short: "Copy a document under a new name",
		Long: `Load a document, copy its root object and store the copy.

A deep copy duplicates every owned object and relinks references between
them to the copies; objects that are only referenced stay shared. A shallow
copy shares every member value with the original.`,
		Example: `  leapgrt copy catalog catalog-backup
  leapgrt copy catalog draft --skip schemata`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shallow, _ := cmd.Flags().GetBool("shallow")
			skip, _ := cmd.Flags().GetStringSlice("skip")
			return runCopy(cmd, args[0], args[1], shallow, skip)
		},
	}
	cmd.Flags().Bool("shallow", false, "Share member values instead of copying them")
	cmd.Flags().StringSlice("skip", nil, "Members of the root left at their defaults")
	return cmd
}

func runCopy(cmd *cobra.Command, ref, name string, shallow bool, skip []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	root, err := cmdCtx.Store.LoadDocument(cmd.Context(), cmdCtx.Runtime(), ref)
	if err != nil {
		return err
	}

	var dup *grt.Object
	if shallow {
		dup, err = grt.ShallowCopyObject(root, skip...)
	} else {
		dup, err = grt.CopyObject(root, skip...)
	}
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", ref, err)
	}

	doc, err := cmdCtx.Store.SaveDocument(cmd.Context(), name, dup)
	if err != nil {
		return err
	}
	return renderSaved(cmdCtx.Renderer, doc)
}
