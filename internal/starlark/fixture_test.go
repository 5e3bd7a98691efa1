package starlark

import (
	"testing"

	"github.com/leapstack-labs/leapgrt/internal/schema"
	"github.com/leapstack-labs/leapgrt/internal/testutil"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/stretchr/testify/require"
)

// newRuntime registers:
//
//	Column { name, datatype }
//	Table { name, columns [Column] owned, options {string} owned,
//	        primary -> Column, columnCount (calculated) }
//
// Table::describe and Table::rename are script methods in table.star,
// Table::width is implemented in Go.
func newRuntime(t *testing.T) *grt.Runtime {
	t.Helper()

	rt := grt.New(grt.WithLogger(testutil.NewTestLogger(t)))

	column := grt.NewMetaClass("Column", "")
	require.NoError(t, column.AddMember(grt.Member{Name: "name", Type: grt.Simple(grt.StringType)}))
	require.NoError(t, column.AddMember(grt.Member{Name: "datatype", Type: grt.Simple(grt.StringType), DefaultValue: "INT"}))

	table := grt.NewMetaClass("Table", "")
	for _, m := range []grt.Member{
		{Name: "name", Type: grt.Simple(grt.StringType)},
		{Name: "columns", Type: grt.ListOf(grt.SimpleTypeSpec{Type: grt.ObjectType, ObjectClass: "Column"}), OwnedObject: true},
		{Name: "options", Type: grt.DictOf(grt.SimpleTypeSpec{Type: grt.StringType}), OwnedObject: true},
		{Name: "primary", Type: grt.ObjectOf("Column")},
		{Name: "columnCount", Type: grt.Simple(grt.IntegerType), Calculated: true, ReadOnly: true},
	} {
		require.NoError(t, table.AddMember(m))
	}
	require.NoError(t, table.BindMember("columnCount", grt.Property{
		Get: func(o *grt.Object) grt.Value { return grt.Integer(o.ListMember("columns").Count()) },
	}))

	require.NoError(t, table.AddMethod(grt.Method{Name: "describe", Returns: grt.Simple(grt.StringType)}))
	table.SetMemberAttribute("describe", schema.ScriptAttribute, "table.star:describe")
	require.NoError(t, table.AddMethod(grt.Method{
		Name: "rename",
		Args: []grt.ArgSpec{{Name: "name", Type: grt.Simple(grt.StringType)}},
	}))
	table.SetMemberAttribute("rename", schema.ScriptAttribute, "table.star:rename")
	require.NoError(t, table.AddMethod(grt.Method{
		Name:    "width",
		Args:    []grt.ArgSpec{{Name: "per", Type: grt.Simple(grt.IntegerType)}},
		Returns: grt.Simple(grt.IntegerType),
	}))
	require.NoError(t, table.BindMethod("width", func(o *grt.Object, args []grt.Value) (grt.Value, error) {
		per, err := grt.AsInteger(args[0])
		if err != nil {
			return nil, err
		}
		return grt.Integer(per * int64(o.ListMember("columns").Count())), nil
	}))

	require.NoError(t, rt.RegisterClass(column))
	require.NoError(t, rt.RegisterClass(table))
	require.NoError(t, rt.EndRegistration())
	return rt
}

// newTable builds "customers" with columns id and name; id is the primary
// column and options holds engine=InnoDB.
func newTable(t *testing.T, rt *grt.Runtime) *grt.Object {
	t.Helper()

	table, err := rt.Create("Table")
	require.NoError(t, err)
	require.NoError(t, table.Set("name", grt.String("customers")))
	for _, n := range []string{"id", "name"} {
		col, err := rt.Create("Column")
		require.NoError(t, err)
		require.NoError(t, col.Set("name", grt.String(n)))
		require.NoError(t, table.ListMember("columns").Append(col))
	}
	require.NoError(t, table.Set("primary", table.ListMember("columns").ObjectAt(0)))
	require.NoError(t, table.DictMember("options").Set("engine", grt.String("InnoDB")))
	return table
}

const tableScript = `
def describe(table):
    return "%s(%d)" % (table.name, len(table.columns))

def rename(table, name):
    table.name = name

def _helper():
    pass
`
