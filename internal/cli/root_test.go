package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapgrt/internal/cli/commands"
	"github.com/leapstack-labs/leapgrt/internal/cli/config"
	"github.com/leapstack-labs/leapgrt/internal/cli/testutil"
	"github.com/leapstack-labs/leapgrt/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupProject(t *testing.T) *testutil.Project {
	t.Helper()
	p := testutil.SetupTestProject(t)
	t.Chdir(p.Root)
	return p
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestRootCommandMetadata(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "leapgrt", cmd.Use)
	for _, flag := range []string{"config", "schema-dir", "scripts-dir", "state", "verbose", "output", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"classes", "class", "validate", "sample", "documents", "delete", "dump", "copy", "diff", "eval", "version", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestClassesCommand(t *testing.T) {
	p := setupProject(t)

	out, err := execute(t, p.Args("classes", "-o", "json")...)
	require.NoError(t, err)

	infos := decode[[]commands.ClassInfo](t, out)
	byName := make(map[string]commands.ClassInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	require.Contains(t, byName, "db.Table")
	require.Contains(t, byName, "app.Note")
	assert.Equal(t, "GrtNamedObject", byName["app.Note"].Parent)
	assert.Equal(t, "shout", byName["app.Note"].Methods[0].Name)
}

func TestClassesCommandParentFilter(t *testing.T) {
	p := setupProject(t)

	out, err := execute(t, p.Args("classes", "--parent", "GrtNamedObject", "-o", "json")...)
	require.NoError(t, err)
	for _, info := range decode[[]commands.ClassInfo](t, out) {
		assert.NotEqual(t, "GrtObject", info.Name)
	}

	_, err = execute(t, p.Args("classes", "--parent", "nope")...)
	assert.ErrorContains(t, err, "unknown class nope")
}

func TestClassCommandMarkdown(t *testing.T) {
	p := setupProject(t)

	out, err := execute(t, p.Args("class", "db.Table", "-o", "markdown")...)
	require.NoError(t, err)

	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# db.Table")
	assert.Contains(t, out, "## Members")
	assert.Contains(t, out, "| columns |")
	assert.Contains(t, out, "addPrimaryKeyColumn")

	_, err = execute(t, p.Args("class", "db.Missing")...)
	assert.ErrorContains(t, err, "unknown class db.Missing")
}

func TestSampleAndDocuments(t *testing.T) {
	p := setupProject(t)

	out, err := execute(t, p.Args("sample", "-o", "json")...)
	require.NoError(t, err)
	saved := decode[state.Document](t, out)
	assert.Equal(t, "catalog", saved.Name)
	assert.Equal(t, "db.Catalog", saved.RootClass)

	_, err = execute(t, p.Args("sample", "--kind", "publisher", "--name", "press")...)
	require.NoError(t, err)

	out, err = execute(t, p.Args("documents", "-o", "json")...)
	require.NoError(t, err)
	docs := decode[[]state.Document](t, out)
	require.Len(t, docs, 2)
	assert.Equal(t, "catalog", docs[0].Name)
	assert.Equal(t, "press", docs[1].Name)
	assert.Equal(t, "test.Publisher", docs[1].RootClass)

	_, err = execute(t, p.Args("sample", "--kind", "zoo")...)
	assert.ErrorContains(t, err, "unknown sample")
}

func TestDocumentsEmptyMarkdown(t *testing.T) {
	p := setupProject(t)

	out, err := execute(t, p.Args("documents")...)
	require.NoError(t, err)
	assert.Contains(t, out, "# Documents (0 total)")
	assert.Contains(t, out, "leapgrt sample")
}

func TestDeleteCommand(t *testing.T) {
	p := setupProject(t)

	_, err := execute(t, p.Args("sample")...)
	require.NoError(t, err)
	_, err = execute(t, p.Args("delete", "catalog")...)
	require.NoError(t, err)

	out, err := execute(t, p.Args("documents", "-o", "json")...)
	require.NoError(t, err)
	assert.Empty(t, decode[[]state.Document](t, out))

	_, err = execute(t, p.Args("delete", "catalog")...)
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestDumpCommand(t *testing.T) {
	p := setupProject(t)
	_, err := execute(t, p.Args("sample")...)
	require.NoError(t, err)

	out, err := execute(t, p.Args("dump", "catalog", "-o", "json")...)
	require.NoError(t, err)
	nodes := decode[[]commands.Node](t, out)
	require.NotEmpty(t, nodes)
	assert.Equal(t, "db.Catalog 'def'", nodes[0].Value)
	assert.Equal(t, "", nodes[0].ID)

	var orders *commands.Node
	for i := range nodes {
		if nodes[i].Value == "db.Table 'orders'" && nodes[i].Label == "[2]" {
			orders = &nodes[i]
		}
	}
	require.NotNil(t, orders, "orders table should be dumped")

	out, err = execute(t, p.Args("dump", "catalog", "--node", orders.ID, "--depth", "1", "-o", "json")...)
	require.NoError(t, err)
	sub := decode[[]commands.Node](t, out)
	assert.Equal(t, "db.Table 'orders'", sub[0].Value)
	assert.Equal(t, orders.ID, sub[0].ID)
	for _, n := range sub[1:] {
		assert.Equal(t, 1, n.Depth)
		assert.True(t, strings.HasPrefix(n.ID, orders.ID+"."))
	}

	out, err = execute(t, p.Args("dump", "catalog", "--depth", "1")...)
	require.NoError(t, err)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "(root) root: db.Catalog 'def'")

	_, err = execute(t, p.Args("dump", "catalog", "--node", "99.1")...)
	assert.Error(t, err)
}

func TestCopyEvalAndDiff(t *testing.T) {
	p := setupProject(t)
	_, err := execute(t, p.Args("sample")...)
	require.NoError(t, err)

	_, err = execute(t, p.Args("copy", "catalog", "draft")...)
	require.NoError(t, err)

	out, err := execute(t, p.Args("eval", "--document", "draft", "--save",
		`doc.schemata[0].addNewTable("audit").name`)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "audit\n"), out)

	out, err = execute(t, p.Args("diff", "catalog", "draft", "-o", "json")...)
	require.NoError(t, err)
	result := decode[commands.DiffResult](t, out)
	assert.Equal(t, config.DiffPolicyDefault, result.Policy)
	assert.Positive(t, result.Changes)
	assert.Contains(t, strings.Join(result.Lines, "\n"), "db.Table 'audit'")

	out, err = execute(t, p.Args("diff", "catalog", "catalog", "-o", "json")...)
	require.NoError(t, err)
	assert.Zero(t, decode[commands.DiffResult](t, out).Changes)

	_, err = execute(t, p.Args("diff", "catalog", "draft", "--policy", "fuzzy")...)
	assert.ErrorContains(t, err, "unknown diff policy")
}

func TestShallowCopy(t *testing.T) {
	p := setupProject(t)
	_, err := execute(t, p.Args("sample", "--kind", "publisher")...)
	require.NoError(t, err)

	out, err := execute(t, p.Args("copy", "publisher", "flat", "--shallow", "-o", "json")...)
	require.NoError(t, err)
	doc := decode[state.Document](t, out)
	assert.Equal(t, "test.Publisher", doc.RootClass)
}

func TestEvalCommand(t *testing.T) {
	p := setupProject(t)

	out, err := execute(t, p.Args("eval", "--jobs", "2", "-o", "json", "1 + 2", `"app.Note" in grt.classes()`)...)
	require.NoError(t, err)
	results := decode[[]commands.EvalOutput](t, out)
	require.Len(t, results, 2)
	assert.InDelta(t, 3, results[0].Value, 0)
	// booleans become integers in the runtime
	assert.InDelta(t, 1, results[1].Value, 0)

	out, err = execute(t, p.Args("eval", `grt.create("app.Note").shout()`)...)
	require.NoError(t, err)
	assert.Equal(t, "!\n", out)

	_, err = execute(t, p.Args("eval", "undefined_name")...)
	assert.ErrorContains(t, err, "1 of 1 expression(s) failed")

	_, err = execute(t, p.Args("eval", "--save", "1")...)
	assert.ErrorContains(t, err, "--save requires --document")
}

func TestValidateCommand(t *testing.T) {
	p := setupProject(t)

	out, err := execute(t, p.Args("validate")...)
	require.NoError(t, err)
	assert.Contains(t, out, "classes loaded")

	_, err = execute(t, p.Args("sample")...)
	require.NoError(t, err)
	out, err = execute(t, p.Args("validate", "catalog", "-o", "json")...)
	require.NoError(t, err)
	report := decode[commands.ValidationReport](t, out)
	assert.Equal(t, []string{"catalog"}, report.Documents)
	assert.Greater(t, report.Objects, 3)
	assert.Empty(t, report.Issues)
}

func TestValidateReportsBrokenDescriptor(t *testing.T) {
	p := setupProject(t)
	p.WriteFile(t, "schemas/broken.yaml", "classes:\n  - name: app.Broken\n    parent: app.Missing\n")

	_, err := execute(t, p.Args("validate")...)
	assert.Error(t, err)
}

func TestConfigFileSelectsDirectories(t *testing.T) {
	p := setupProject(t)
	p.WriteFile(t, "leapgrt.yaml", "schema_dirs:\n  - schemas\nscripts_dir: scripts\nstate_path: db/state.db\n")

	out, err := execute(t, "classes", "-o", "json")
	require.NoError(t, err)
	var found bool
	for _, info := range decode[[]commands.ClassInfo](t, out) {
		found = found || info.Name == "app.Note"
	}
	assert.True(t, found, "app.Note should be loaded from the configured schema dir")
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapgrt "+Version)
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := execute(t, "version", "-o", "json")
	require.NoError(t, err)

	info := decode[commands.VersionInfo](t, out)
	assert.Equal(t, Version, info.Version)
	assert.True(t, strings.HasPrefix(info.Go, "go"), "go version %q", info.Go)
	assert.Contains(t, info.Platform, "/")
}
