package state

import (
	"testing"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContent(t *testing.T) {
	tests := []struct {
		in      string
		want    grt.SimpleTypeSpec
		wantErr bool
	}{
		{in: "any", want: grt.SimpleTypeSpec{}},
		{in: "int", want: grt.SimpleTypeSpec{Type: grt.IntegerType}},
		{in: "string", want: grt.SimpleTypeSpec{Type: grt.StringType}},
		{in: "object", want: grt.SimpleTypeSpec{Type: grt.ObjectType}},
		{in: "object<db.Column>", want: grt.SimpleTypeSpec{Type: grt.ObjectType, ObjectClass: "db.Column"}},
		{in: "blob", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseContent(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestEncodeNestedContainers(t *testing.T) {
	inner := grt.NewList(grt.SimpleTypeSpec{Type: grt.IntegerType}, false)
	require.NoError(t, inner.Append(grt.Integer(1)))
	require.NoError(t, inner.Append(grt.Integer(2)))
	outer := grt.NewDict(grt.SimpleTypeSpec{}, true)
	require.NoError(t, outer.Set("numbers", inner))
	require.NoError(t, outer.Set("label", grt.String("x")))
	require.NoError(t, outer.Set("empty", nil))

	sv, err := encode(outer, false, func(*grt.Object) { t.Fatal("no objects expected") })
	require.NoError(t, err)
	assert.Equal(t, kindDict, sv.Kind)
	assert.Equal(t, kindNull, sv.Entries["empty"].Kind)

	dec := &decoder{rt: grt.New(), loaded: map[string]*grt.Object{}}
	v, err := dec.decode(sv)
	require.NoError(t, err)
	d, ok := v.(*grt.Dict)
	require.True(t, ok)
	assert.Equal(t, "x", d.GetString("label", ""))
	l, ok := d.Get("numbers").(*grt.List)
	require.True(t, ok)
	assert.Equal(t, []grt.Value{grt.Integer(1), grt.Integer(2)}, l.Items())
	assert.Equal(t, grt.IntegerType, l.ContentType().Type)
}
