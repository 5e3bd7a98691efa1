package grt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectDefaults(t *testing.T) {
	rt := newTestRuntime(t)
	col := mustCreate(t, rt, "Column", "")

	assert.Equal(t, "INT", col.StringMember("datatype"))
	assert.Equal(t, int64(-1), col.IntegerMember("length"))
	assert.Equal(t, 0.0, col.DoubleMember("precision"))
	assert.Equal(t, "", col.StringMember("name"))
	assert.Len(t, col.ID(), 36)
	assert.Equal(t, strings.ToLower(col.ID()), col.ID())

	table := mustCreate(t, rt, "Table", "")
	assert.NotNil(t, table.ListMember("columns"))
	assert.NotNil(t, table.DictMember("options"))
	assert.Nil(t, table.ObjectMember("primaryKey"))
	assert.Same(t, table, table.ListMember("columns").Owner())
	assert.Equal(t, "columns", table.ListMember("columns").OwnerMember())
}

func TestObjectSetErrors(t *testing.T) {
	rt := newTestRuntime(t)
	table := mustCreate(t, rt, "Table", "t")
	col := mustCreate(t, rt, "Column", "c")

	tests := []struct {
		name    string
		member  string
		value   Value
		wantErr error
	}{
		{"wrong scalar type", "name", Integer(1), ErrType},
		{"null scalar", "comment", nil, ErrNullValue},
		{"read-only", "createDate", String("2024"), ErrReadOnly},
		{"list members are read-only", "columns", NewObjectList("Column", false), ErrReadOnly},
		{"calculated", "columnCount", Integer(3), ErrReadOnly},
		{"wrong object class", "primaryKey", col, ErrType},
		{"unknown member", "nope", String("x"), ErrLogic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.Set(tt.member, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, "t", table.StringMember("name"), "failed sets leave storage untouched")

	_, err := table.Get("nope")
	assert.ErrorIs(t, err, ErrLogic)

	require.NoError(t, table.Set("primaryKey", nil), "object members accept null")
}

func TestObjectChangedSignal(t *testing.T) {
	rt := newTestRuntime(t)
	col := mustCreate(t, rt, "Column", "id")

	var got []MemberChange
	disconnect := col.Changed().Connect(func(c MemberChange) { got = append(got, c) })

	require.NoError(t, col.Set("name", String("code")))
	require.Len(t, got, 1)
	assert.Equal(t, "name", got[0].Member)
	assert.Equal(t, String("id"), got[0].Old)
	assert.Same(t, col, got[0].Object)

	disconnect()
	require.NoError(t, col.Set("name", String("other")))
	assert.Len(t, got, 1)
}

func TestObjectCalculatedMember(t *testing.T) {
	rt := newTestRuntime(t)
	table := newTestTable(t, rt)

	v, err := table.Get("columnCount")
	require.NoError(t, err)
	assert.Equal(t, Integer(2), v)
}

func TestObjectCallMethod(t *testing.T) {
	rt := newTestRuntime(t)
	table := mustCreate(t, rt, "Table", "t")
	col := mustCreate(t, rt, "Column", "c")

	v, err := table.Call("addColumn", col)
	require.NoError(t, err)
	assert.Equal(t, Integer(1), v)
	assert.Same(t, table, col.Owner())

	_, err = table.Call("addColumn")
	assert.ErrorIs(t, err, ErrType, "argument count mismatch")

	_, err = table.Call("addColumn", String("c"))
	assert.ErrorIs(t, err, ErrType)

	_, err = table.Call("dropColumn")
	assert.ErrorIs(t, err, ErrLogic)
}

func TestObjectString(t *testing.T) {
	rt := newTestRuntime(t)
	table := newTestTable(t, rt)
	pk := table.ObjectMember("primaryKey")

	s := table.String()
	assert.True(t, strings.HasPrefix(s, "{<Table> ("+table.ID()+")\n"))
	assert.Contains(t, s, "name = customers")
	assert.Contains(t, s, "primaryKey = PRIMARY: Index  ("+pk.ID()+")")
	assert.Contains(t, s, "columnCount = 2")

	require.NoError(t, table.Set("primaryKey", nil))
	assert.Contains(t, table.String(), "primaryKey = null")

	dbg := table.DebugDescription("")
	assert.Contains(t, dbg, "  name = 'customers'")
}

func TestObjectIsInstance(t *testing.T) {
	rt := newTestRuntime(t)
	col := mustCreate(t, rt, "Column", "c")

	assert.True(t, col.IsInstance("Column"))
	assert.True(t, col.IsInstance("GrtObject"))
	assert.False(t, col.IsInstance("Table"))
	assert.True(t, col.HasMember("name"))
	assert.False(t, col.HasMethod("addColumn"))
}

func TestObjectResetReferences(t *testing.T) {
	rt := newTestRuntime(t)
	table := newTestTable(t, rt)
	calls := 0
	table.Changed().Connect(func(MemberChange) { calls++ })

	table.ResetReferences()

	assert.Nil(t, table.ListMember("columns"))
	assert.Nil(t, table.ObjectMember("primaryKey"))
	assert.Equal(t, "customers", table.StringMember("name"), "scalars survive")
	assert.Equal(t, 0, table.Changed().Len())
	assert.Equal(t, 0, calls)
}

func TestNewObjectWithoutClassPanics(t *testing.T) {
	assert.Panics(t, func() { newObject(nil, NewGUID()) })
}

func TestLogicErrorMessage(t *testing.T) {
	rt := newTestRuntime(t)
	col := mustCreate(t, rt, "Column", "c")

	err := col.Set("missing", Integer(1))
	var logicErr *LogicError
	require.True(t, errors.As(err, &logicErr))
	assert.Equal(t, "set member: Column has no member missing", err.Error())
}
