package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/spf13/cobra"
)

// ClassInfo is the JSON form of a registered class.
type ClassInfo struct {
	Name     string       `json:"name"`
	Parent   string       `json:"parent,omitempty"`
	Caption  string       `json:"caption,omitempty"`
	Source   string       `json:"source,omitempty"`
	Abstract bool         `json:"abstract,omitempty"`
	Members  []MemberInfo `json:"members,omitempty"`
	Methods  []MethodInfo `json:"methods,omitempty"`
}

// MemberInfo is the JSON form of a member declaration.
type MemberInfo struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Owner string   `json:"declared_by"`
	Flags []string `json:"flags,omitempty"`
}

// MethodInfo is the JSON form of a method declaration.
type MethodInfo struct {
	Name    string   `json:"name"`
	Args    []string `json:"args,omitempty"`
	Returns string   `json:"returns,omitempty"`
	Doc     string   `json:"doc,omitempty"`
}

// NewClassesCommand creates the classes command.
func NewClassesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List registered classes",
		Long: `List every class registered from the built-in model and the configured
schema directories.

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all classes
  leapgrt classes

  # List the classes derived from db.Table
  leapgrt classes --parent db.Table

  # Load extra descriptors
  leapgrt classes --schema-dir ./schemas`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent, _ := cmd.Flags().GetString("parent")
			return runClasses(cmd, parent)
		},
	}
	cmd.Flags().String("parent", "", "Only list classes derived from this class")
	return cmd
}

func runClasses(cmd *cobra.Command, parent string) error {
	cmdCtx, err := NewCommandContextWithoutStore(cmd)
	if err != nil {
		return err
	}
	rt := cmdCtx.Runtime()
	r := cmdCtx.Renderer

	if parent != "" && rt.Class(parent) == nil {
		return fmt.Errorf("unknown class %s", parent)
	}

	var infos []ClassInfo
	for _, mc := range rt.Classes() {
		if parent != "" && !mc.IsA(parent) {
			continue
		}
		infos = append(infos, classSummary(mc))
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	r.Header(1, fmt.Sprintf("Classes (%d total)", len(infos)))
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.Parent,
			strconv.Itoa(len(info.Members)),
			strconv.Itoa(len(info.Methods)),
			info.Caption,
		})
	}
	r.Table([]string{"CLASS", "PARENT", "MEMBERS", "METHODS", "CAPTION"}, rows)
	return nil
}

// NewClassCommand creates the class command.
func NewClassCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "class <name>",
		Short: "Show the members and methods of a class",
		Long: `Show the complete member layout of a class, including inherited members,
and every method it can call.`,
		Example: `  leapgrt class db.Table
  leapgrt class db.Column --output json`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			cmdCtx, err := NewCommandContextWithoutStore(cmd)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			var names []string
			for _, mc := range cmdCtx.Runtime().Classes() {
				names = append(names, mc.Name())
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClass(cmd, args[0])
		},
	}
}

func runClass(cmd *cobra.Command, name string) error {
	cmdCtx, err := NewCommandContextWithoutStore(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	mc := cmdCtx.Runtime().Class(name)
	if mc == nil {
		return fmt.Errorf("unknown class %s", name)
	}
	info := classSummary(mc)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	r.Header(1, info.Name)
	if info.Parent != "" {
		r.StatusLine("Parent", info.Parent)
	}
	if info.Caption != "" {
		r.StatusLine("Caption", info.Caption)
	}
	if info.Source != "" {
		r.StatusLine("Source", info.Source)
	}
	r.Println("")

	r.Header(2, "Members")
	rows := make([][]string, 0, len(info.Members))
	for _, m := range info.Members {
		rows = append(rows, []string{m.Name, m.Type, m.Owner, strings.Join(m.Flags, ",")})
	}
	r.Table([]string{"MEMBER", "TYPE", "DECLARED BY", "FLAGS"}, rows)

	if len(info.Methods) > 0 {
		r.Println("")
		r.Header(2, "Methods")
		rows = rows[:0]
		for _, m := range info.Methods {
			rows = append(rows, []string{m.Name, strings.Join(m.Args, ", "), m.Returns, m.Doc})
		}
		r.Table([]string{"METHOD", "ARGS", "RETURNS", "DOC"}, rows)
	}
	return nil
}

func classSummary(mc *grt.MetaClass) ClassInfo {
	info := ClassInfo{
		Name:     mc.Name(),
		Parent:   mc.ParentName(),
		Caption:  mc.Attribute("caption"),
		Source:   mc.Source(),
		Abstract: mc.IsAbstract(),
	}

	declaredBy := make(map[string]string)
	for c := mc; c != nil; c = c.Parent() {
		for _, m := range c.Members() {
			if _, ok := declaredBy[m.Name]; !ok {
				declaredBy[m.Name] = c.Name()
			}
		}
	}
	for _, m := range mc.Layout() {
		info.Members = append(info.Members, MemberInfo{
			Name:  m.Name,
			Type:  m.Type.String(),
			Owner: declaredBy[m.Name],
			Flags: memberFlags(m),
		})
	}

	mc.ForEachMethod(func(m *grt.Method) bool {
		mi := MethodInfo{Name: m.Name, Doc: m.Doc}
		for _, a := range m.Args {
			mi.Args = append(mi.Args, a.Name+" "+a.Type.String())
		}
		if m.Returns.Base.Type != grt.UnknownType {
			mi.Returns = m.Returns.String()
		}
		info.Methods = append(info.Methods, mi)
		return true
	})
	return info
}

func memberFlags(m *grt.Member) []string {
	var flags []string
	add := func(set bool, name string) {
		if set {
			flags = append(flags, name)
		}
	}
	add(m.ReadOnly, "readonly")
	add(m.OwnedObject, "owned")
	add(m.Calculated, "calculated")
	add(m.DelegateGet, "getter")
	add(m.DelegateSet, "setter")
	add(m.Private, "private")
	add(m.NullContentAllowed, "nullable")
	return flags
}
