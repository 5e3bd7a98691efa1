package starlark

import (
	"testing"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestNewContext(t *testing.T) {
	rt := newRuntime(t)
	ctx := NewContext(rt)

	globals := ctx.Globals()
	for _, key := range []string{"grt", "struct"} {
		_, ok := globals[key]
		assert.True(t, ok, "global %q not found", key)
	}
}

func TestContextBind(t *testing.T) {
	rt := newRuntime(t)
	table := newTable(t, rt)
	ctx := NewContext(rt, WithModules([]*LoadedModule{{
		Namespace: "helpers",
		Exports:   starlark.StringDict{"answer": starlark.MakeInt(42)},
	}}))

	require.NoError(t, ctx.Bind("table", table))
	require.NoError(t, ctx.Bind("limit", grt.Integer(3)))

	assert.Error(t, ctx.Bind("grt", table), "builtin names are reserved")
	assert.Error(t, ctx.Bind("helpers", table), "module names are reserved")

	got, err := ctx.EvalExprString("table.name + str(limit) + str(helpers.answer)", "test.star", 1)
	require.NoError(t, err)
	assert.Equal(t, "customers342", got)
}

func TestContextEvalExprWithLocals(t *testing.T) {
	_, _, ctx := evalContext(t)

	got, err := ctx.EvalExprWithLocals("prefix + table.name", "test.star", 1, starlark.StringDict{
		"prefix": starlark.String("t_"),
	})
	require.NoError(t, err)
	assert.Equal(t, starlark.String("t_customers"), got)

	// locals shadow globals
	got, err = ctx.EvalExprWithLocals("table", "test.star", 1, starlark.StringDict{
		"table": starlark.String("shadowed"),
	})
	require.NoError(t, err)
	assert.Equal(t, starlark.String("shadowed"), got)
}

func TestContextEvalValue(t *testing.T) {
	_, table, ctx := evalContext(t)

	v, err := ctx.EvalValue("table.primary", "test.star")
	require.NoError(t, err)
	assert.Same(t, table.ListMember("columns").ObjectAt(0), v)

	v, err = ctx.EvalValue("[1, 2]", "test.star")
	require.NoError(t, err)
	l, ok := v.(*grt.List)
	require.True(t, ok)
	assert.Equal(t, 2, l.Count())

	_, err = ctx.EvalValue("set([1])", "test.star")
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "set([1])", evalErr.Expr)
}

func TestContextEvalExprString(t *testing.T) {
	_, _, ctx := evalContext(t)

	tests := []struct {
		name    string
		expr    string
		want    string
		wantErr bool
	}{
		{name: "string", expr: `"hello"`, want: "hello"},
		{name: "none", expr: "None", want: ""},
		{name: "int", expr: "1 + 2", want: "3"},
		{name: "undefined", expr: "undefined_var", wantErr: true},
		{name: "syntax", expr: "table.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.EvalExprString(tt.expr, "test.star", 1)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *EvalError
		want string
	}{
		{
			name: "with line",
			err:  &EvalError{File: "model.star", Line: 10, Expr: "x + y", Message: "undefined: x"},
			want: `model.star:10: error evaluating "x + y": undefined: x`,
		},
		{
			name: "without line",
			err:  &EvalError{File: "model.star", Expr: "foo()", Message: "not callable"},
			want: `model.star: error evaluating "foo()": not callable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
