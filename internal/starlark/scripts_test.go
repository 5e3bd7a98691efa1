package starlark

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestLoaderLoad(t *testing.T) {
	rt := newRuntime(t)
	fsys := fstest.MapFS{
		"table.star":    {Data: []byte(tableScript)},
		"util.star":     {Data: []byte("def upper(s):\n    return s.upper()\n\nKIND = grt.class_name(grt.create(\"Column\"))\n")},
		"README.md":     {Data: []byte("not a script")},
		"nested/x.star": {Data: []byte("x = 1\n")},
	}

	modules, err := NewFSLoader(fsys, "embedded", rt).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 2, "only top-level .star files are loaded")

	assert.Equal(t, "table", modules[0].Namespace)
	assert.Equal(t, "table.star", modules[0].Path)
	assert.Contains(t, modules[0].Exports, "describe")
	assert.Contains(t, modules[0].Exports, "rename")
	assert.NotContains(t, modules[0].Exports, "_helper", "private names are not exported")

	assert.Equal(t, "util", modules[1].Namespace)
	assert.Equal(t, starlark.String("Column"), modules[1].Exports["KIND"])
}

func TestLoaderMissingDirectory(t *testing.T) {
	rt := newRuntime(t)
	modules, err := NewLoader(filepath.Join(t.TempDir(), "missing"), rt).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "syntax error", file: "broken.star", content: "def f(:\n", wantErr: "scripts/broken.star: Starlark execution error"},
		{name: "runtime error", file: "fails.star", content: "x = 1 // 0\n", wantErr: "scripts/fails.star: Starlark execution error"},
		{name: "bad namespace", file: "my-mod.star", content: "x = 1\n", wantErr: "namespace contains invalid character"},
		{name: "leading digit", file: "1mod.star", content: "x = 1\n", wantErr: "namespace must start with letter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0o600))

			_, err := NewLoader(dir, rt).Load(context.Background())
			require.Error(t, err)
			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAndBind(t *testing.T) {
	rt := newRuntime(t)
	table := newTable(t, rt)

	loader := NewFSLoader(fstest.MapFS{"table.star": {Data: []byte(tableScript)}}, "embedded", rt)
	_, err := loader.LoadAndBind(context.Background())
	require.NoError(t, err)

	got, err := table.Call("describe")
	require.NoError(t, err)
	assert.Equal(t, grt.String("customers(2)"), got)

	got, err = table.Call("rename", grt.String("clients"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "clients", table.StringMember("name"))

	_, err = table.Call("rename", grt.Integer(1))
	assert.ErrorIs(t, err, grt.ErrType, "arguments are checked before the script runs")

	assert.Positive(t, loader.Pool().Size(), "threads are returned to the pool")
}

func TestScriptMethodUndo(t *testing.T) {
	rt := newRuntime(t)
	table := newTable(t, rt)
	table.MarkGlobal()

	_, err := NewFSLoader(fstest.MapFS{"table.star": {Data: []byte(tableScript)}}, "embedded", rt).LoadAndBind(context.Background())
	require.NoError(t, err)

	au := rt.NewAutoUndo()
	_, err = table.Call("rename", grt.String("clients"))
	require.NoError(t, err)
	require.NoError(t, au.End("Rename table"))

	require.NoError(t, rt.UndoManager().Undo())
	assert.Equal(t, "customers", table.StringMember("name"))
}

func TestScriptMethodError(t *testing.T) {
	rt := newRuntime(t)
	table := newTable(t, rt)

	script := "def describe(table):\n    return table.nosuch\n\ndef rename(table, name):\n    pass\n"
	_, err := NewFSLoader(fstest.MapFS{"table.star": {Data: []byte(script)}}, "embedded", rt).LoadAndBind(context.Background())
	require.NoError(t, err)

	_, err = table.Call("describe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Table::describe")
}

func TestBindScriptsErrors(t *testing.T) {
	tests := []struct {
		name    string
		modules []*LoadedModule
		wantErr string
	}{
		{
			name:    "module not loaded",
			wantErr: "Table::describe: script table.star is not loaded",
		},
		{
			name:    "function missing",
			modules: []*LoadedModule{{Namespace: "table", Path: "table.star"}},
			wantErr: "does not export a function describe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			_, err := BindScripts(rt, tt.modules, NewThreadPool(1, nil))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBindScriptsInvalidReference(t *testing.T) {
	rt := newRuntime(t)
	rt.Class("Table").SetMemberAttribute("describe", "script", "table.star")

	_, err := BindScripts(rt, nil, NewThreadPool(1, nil))
	assert.ErrorContains(t, err, `invalid script reference "table.star"`)
}
