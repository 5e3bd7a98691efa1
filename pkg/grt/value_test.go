package grt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"int", IntegerType, false},
		{"integer", IntegerType, false},
		{"real", DoubleType, false},
		{"double", DoubleType, false},
		{"string", StringType, false},
		{"list", ListType, false},
		{"dict", DictType, false},
		{"object", ObjectType, false},
		{"", AnyType, false},
		{"any", AnyType, false},
		{"blob", AnyType, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeSpecString(t *testing.T) {
	assert.Equal(t, "int", Simple(IntegerType).String())
	assert.Equal(t, "object<Column>", ObjectOf("Column").String())
	assert.Equal(t, "list<object<Column>>", ListOf(SimpleTypeSpec{Type: ObjectType, ObjectClass: "Column"}).String())
	assert.Equal(t, "dict<string>", DictOf(SimpleTypeSpec{Type: StringType}).String())
	assert.Equal(t, "list<any>", ListOf(SimpleTypeSpec{}).String())
}

func TestScalarComparison(t *testing.T) {
	assert.True(t, Equal(Integer(3), Integer(3)))
	assert.False(t, Equal(Integer(3), Double(3)), "different types are never equal")
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, String("")))

	assert.True(t, Less(Integer(1), Integer(2)))
	assert.True(t, Less(nil, Integer(0)), "null sorts first")
	assert.False(t, Less(Integer(0), nil))
	assert.True(t, Less(Integer(100), Double(1)), "types order by enum")
	assert.True(t, Less(String("a"), String("b")))
}

func TestContainerIdentity(t *testing.T) {
	a := NewList(SimpleTypeSpec{Type: IntegerType}, false)
	b := NewList(SimpleTypeSpec{Type: IntegerType}, false)
	require.NoError(t, a.Append(Integer(1)))
	require.NoError(t, b.Append(Integer(1)))

	assert.True(t, Equal(a, a))
	assert.False(t, Equal(a, b), "lists compare by identity")
	assert.True(t, a.LessThan(b), "allocation order")
	assert.False(t, b.LessThan(a))
}

func TestValueStrings(t *testing.T) {
	assert.Equal(t, "42", Integer(42).String())
	assert.Equal(t, "1.500000", Double(1.5).String())
	assert.Equal(t, "abc", String("abc").String())
	assert.Equal(t, "'abc'", String("abc").DebugDescription(""))
	assert.Equal(t, "NULL", ToString(nil))

	l := NewList(SimpleTypeSpec{}, true)
	require.NoError(t, l.Append(Integer(1)))
	require.NoError(t, l.Append(String("x")))
	require.NoError(t, l.Append(nil))
	assert.Equal(t, "[1, x, NULL]", l.String())

	d := NewDict(SimpleTypeSpec{}, false)
	require.NoError(t, d.Set("b", Integer(2)))
	require.NoError(t, d.Set("a", String("one")))
	assert.Equal(t, "{a = one, b = 2}", d.String())
}

func TestCasts(t *testing.T) {
	i, err := AsInteger(Integer(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	_, err = AsInteger(String("7"))
	var typeErr *TypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "int", typeErr.Expected)
	assert.Equal(t, "string", typeErr.Got)
	assert.ErrorIs(t, err, ErrType)

	_, err = AsDouble(Integer(1))
	assert.ErrorIs(t, err, ErrType)

	s, err := AsString(String("v"))
	require.NoError(t, err)
	assert.Equal(t, "v", s)

	l, err := AsList(nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = AsDict(Integer(1))
	assert.ErrorIs(t, err, ErrType)

	_, err = AsObject(NewDict(SimpleTypeSpec{}, false))
	assert.ErrorIs(t, err, ErrType)
}

func TestTypedNilIsNull(t *testing.T) {
	l := NewList(SimpleTypeSpec{Type: ObjectType}, false)
	var o *Object
	err := l.Append(o)
	assert.ErrorIs(t, err, ErrNullValue)
	assert.Equal(t, 0, l.Count())
}
