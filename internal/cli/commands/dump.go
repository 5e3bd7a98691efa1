package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/leapstack-labs/leapgrt/pkg/tree"
	"github.com/spf13/cobra"
)

// Node is one line of a dumped tree.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Value string `json:"value"`
	Depth int    `json:"depth"`

	value    grt.Value
	expanded bool
}

// NewDumpCommand creates the dump command.
func NewDumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <document>",
		Short: "Print the tree of a stored document",
		Long: `Load a document and print its values as a tree. Every line carries the
node id that addresses it, so a subtree can be printed with --node.

Owned objects are expanded; referenced objects are shown by class and name.`,
		Example: `  leapgrt dump catalog
  leapgrt dump catalog --node 0.2
  leapgrt dump catalog --depth 2 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, _ := cmd.Flags().GetString("node")
			depth, _ := cmd.Flags().GetInt("depth")
			return runDump(cmd, args[0], node, depth)
		},
	}
	cmd.Flags().String("node", "", "Node id of the subtree to print (e.g. 0.2.1)")
	cmd.Flags().Int("depth", 0, "Maximum depth to print (0 for unlimited)")
	return cmd
}

func runDump(cmd *cobra.Command, ref, node string, depth int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	root, err := cmdCtx.Store.LoadDocument(cmd.Context(), cmdCtx.Runtime(), ref)
	if err != nil {
		return err
	}

	var (
		start grt.Value = root
		id    tree.NodeID
	)
	if node != "" {
		if id, err = tree.Parse(node); err != nil {
			return err
		}
		if start, err = tree.Resolve(root, id); err != nil {
			return err
		}
	}

	nodes := walkTree(start, id, depth)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(nodes)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, ref))
		r.Println("")
		var sb strings.Builder
		for _, n := range nodes {
			fmt.Fprintf(&sb, "%s%s %s: %s\n", strings.Repeat("  ", n.Depth), nodeLabel(n.ID), n.Label, n.Value)
		}
		r.Println(output.FormatCodeBlock("", sb.String()))
	default:
		r.Header(1, ref)
		for _, n := range nodes {
			r.Printf("%s%s %s: %s\n", strings.Repeat("  ", n.Depth),
				r.Styles().Muted.Render(nodeLabel(n.ID)), r.Styles().Bold.Render(n.Label), n.Value)
		}
	}
	return nil
}

func nodeLabel(id string) string {
	if id == "" {
		return "(root)"
	}
	return id
}

// walkTree lists the nodes below v in depth first order, starting with v
// itself at id. Objects are only expanded when reached through an owning
// member or container.
func walkTree(v grt.Value, id tree.NodeID, maxDepth int) []Node {
	var nodes []Node
	var walk func(v grt.Value, id tree.NodeID, label string, depth int, expand bool)
	walk = func(v grt.Value, id tree.NodeID, label string, depth int, expand bool) {
		nodes = append(nodes, Node{
			ID:    id.String(),
			Label: label,
			Type:  valueType(v),
			Value: summary(v),
			Depth: depth,

			value:    v,
			expanded: expand,
		})
		if !expand || (maxDepth > 0 && depth >= maxDepth) {
			return
		}

		owned := childOwnership(v)
		for i, child := range tree.Children(v) {
			cid, err := id.Append(i)
			if err != nil {
				return
			}
			walk(child, cid, tree.Label(v, i), depth+1, expandable(child, owned[i]))
		}
	}
	walk(v, id, "root", 0, true)
	return nodes
}

// childOwnership reports, per child of v, whether v owns it.
func childOwnership(v grt.Value) []bool {
	var out []bool
	switch x := v.(type) {
	case *grt.Object:
		for _, m := range x.Class().Layout() {
			if !m.Calculated {
				out = append(out, m.OwnedObject)
			}
		}
	case *grt.List:
		out = make([]bool, x.Count())
		for i := range out {
			out[i] = x.OwnsContents()
		}
	case *grt.Dict:
		out = make([]bool, x.Count())
		for i := range out {
			out[i] = x.OwnsContents()
		}
	}
	return out
}

// expandable reports whether child is walked into. Containers held in a
// member are part of the object; objects need an owning edge.
func expandable(child grt.Value, owned bool) bool {
	switch child.(type) {
	case *grt.Object:
		return owned
	case *grt.List, *grt.Dict:
		return true
	}
	return false
}

func valueType(v grt.Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *grt.Object:
		return x.ClassName()
	case *grt.List:
		return "list<" + x.ContentType().String() + ">"
	case *grt.Dict:
		return "dict<" + x.ContentType().String() + ">"
	}
	return v.Type().String()
}

func summary(v grt.Value) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case *grt.Object:
		if x.HasMember("name") {
			return fmt.Sprintf("%s '%s'", x.ClassName(), x.StringMember("name"))
		}
		return fmt.Sprintf("%s <%s>", x.ClassName(), x.ID())
	case *grt.List:
		return fmt.Sprintf("%s [%d]", valueType(v), x.Count())
	case *grt.Dict:
		return fmt.Sprintf("%s {%d}", valueType(v), x.Count())
	case grt.String:
		return fmt.Sprintf("%q", string(x))
	}
	return v.String()
}
