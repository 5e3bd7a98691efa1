package grt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestRuntime registers a small catalog model:
//
//	GrtObject { name }
//	Column : GrtObject { datatype, length, precision }
//	IndexColumn : GrtObject { referencedColumn -> Column }
//	Index : GrtObject { columns [IndexColumn] owned, isPrimary }
//	Table : GrtObject { columns [Column] owned, indices [Index] owned,
//	                    primaryKey -> Index, options {string}, tags [string],
//	                    comment, createDate (read-only), columnCount (calculated) }
//	Schema : GrtObject { tables [Table] owned, defaultTable -> Table }
func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()

	rt := New()
	for _, mc := range testClasses(t) {
		require.NoError(t, rt.RegisterClass(mc))
	}
	require.NoError(t, rt.EndRegistration())
	return rt
}

func testClasses(t *testing.T) []*MetaClass {
	t.Helper()

	add := func(mc *MetaClass, members ...Member) *MetaClass {
		for _, m := range members {
			require.NoError(t, mc.AddMember(m))
		}
		return mc
	}

	base := add(NewMetaClass("GrtObject", ""),
		Member{Name: "name", Type: Simple(StringType)},
	)
	base.SetAttribute("caption", "Object")

	column := add(NewMetaClass("Column", "GrtObject"),
		Member{Name: "datatype", Type: Simple(StringType), DefaultValue: "INT"},
		Member{Name: "length", Type: Simple(IntegerType), DefaultValue: "-1"},
		Member{Name: "precision", Type: Simple(DoubleType)},
	)

	indexColumn := add(NewMetaClass("IndexColumn", "GrtObject"),
		Member{Name: "referencedColumn", Type: ObjectOf("Column")},
	)

	index := add(NewMetaClass("Index", "GrtObject"),
		Member{Name: "columns", Type: ListOf(SimpleTypeSpec{Type: ObjectType, ObjectClass: "IndexColumn"}), OwnedObject: true},
		Member{Name: "isPrimary", Type: Simple(IntegerType)},
	)

	table := add(NewMetaClass("Table", "GrtObject"),
		Member{Name: "columns", Type: ListOf(SimpleTypeSpec{Type: ObjectType, ObjectClass: "Column"}), OwnedObject: true},
		Member{Name: "indices", Type: ListOf(SimpleTypeSpec{Type: ObjectType, ObjectClass: "Index"}), OwnedObject: true},
		Member{Name: "primaryKey", Type: ObjectOf("Index")},
		Member{Name: "options", Type: DictOf(SimpleTypeSpec{Type: StringType}), OwnedObject: true},
		Member{Name: "tags", Type: ListOf(SimpleTypeSpec{Type: StringType}), OwnedObject: true},
		Member{Name: "comment", Type: Simple(StringType)},
		Member{Name: "createDate", Type: Simple(StringType), ReadOnly: true},
		Member{Name: "columnCount", Type: Simple(IntegerType), Calculated: true, ReadOnly: true},
	)
	table.SetMemberAttribute("comment", "dontdiff", "1")
	require.NoError(t, table.BindMember("columnCount", Property{
		Get: func(o *Object) Value { return Integer(o.ListMember("columns").Count()) },
	}))
	require.NoError(t, table.AddMethod(Method{
		Name:    "addColumn",
		Args:    []ArgSpec{{Name: "column", Type: ObjectOf("Column")}},
		Returns: Simple(IntegerType),
	}))
	require.NoError(t, table.BindMethod("addColumn", func(o *Object, args []Value) (Value, error) {
		cols := o.ListMember("columns")
		if err := cols.Append(args[0]); err != nil {
			return nil, err
		}
		return Integer(cols.Count()), nil
	}))

	schema := add(NewMetaClass("Schema", "GrtObject"),
		Member{Name: "tables", Type: ListOf(SimpleTypeSpec{Type: ObjectType, ObjectClass: "Table"}), OwnedObject: true},
		Member{Name: "defaultTable", Type: ObjectOf("Table")},
	)

	return []*MetaClass{table, column, base, index, indexColumn, schema}
}

func mustCreate(t *testing.T, rt *Runtime, class, name string) *Object {
	t.Helper()

	o, err := rt.Create(class)
	require.NoError(t, err)
	if name != "" {
		require.NoError(t, o.Set("name", String(name)))
	}
	return o
}

// newTestTable builds a table with columns id and name and a primary key
// on id.
func newTestTable(t *testing.T, rt *Runtime) *Object {
	t.Helper()

	table := mustCreate(t, rt, "Table", "customers")
	for _, n := range []string{"id", "name"} {
		col := mustCreate(t, rt, "Column", n)
		require.NoError(t, table.ListMember("columns").Append(col))
	}

	pk := mustCreate(t, rt, "Index", "PRIMARY")
	require.NoError(t, pk.Set("isPrimary", Integer(1)))
	ic := mustCreate(t, rt, "IndexColumn", "id")
	require.NoError(t, ic.Set("referencedColumn", table.ListMember("columns").ObjectAt(0)))
	require.NoError(t, pk.ListMember("columns").Append(ic))
	require.NoError(t, table.ListMember("indices").Append(pk))
	require.NoError(t, table.Set("primaryKey", pk))
	return table
}
