package grt

import (
	"fmt"
	"strconv"
)

// Value is implemented by every runtime value. A nil Value is null.
type Value interface {
	Type() Type
	// Equals reports value equality for scalars and identity for
	// lists, dicts and objects.
	Equals(other Value) bool
	LessThan(other Value) bool
	String() string
	DebugDescription(indent string) string

	MarkGlobal()
	UnmarkGlobal()
	GlobalCount() int
	ResetReferences()

	attach(rt *Runtime)
}

// Integer is an immutable integer value.
type Integer int64

// Double is an immutable floating point value.
type Double float64

// String is an immutable string value.
type String string

func (Integer) Type() Type { return IntegerType }
func (Double) Type() Type  { return DoubleType }
func (String) Type() Type  { return StringType }

func (v Integer) Equals(other Value) bool {
	o, ok := other.(Integer)
	return ok && v == o
}

func (v Double) Equals(other Value) bool {
	o, ok := other.(Double)
	return ok && v == o
}

func (v String) Equals(other Value) bool {
	o, ok := other.(String)
	return ok && v == o
}

func (v Integer) LessThan(other Value) bool {
	if o, ok := other.(Integer); ok {
		return v < o
	}
	return Less(v, other)
}

func (v Double) LessThan(other Value) bool {
	if o, ok := other.(Double); ok {
		return v < o
	}
	return Less(v, other)
}

func (v String) LessThan(other Value) bool {
	if o, ok := other.(String); ok {
		return v < o
	}
	return Less(v, other)
}

func (v Integer) String() string { return strconv.FormatInt(int64(v), 10) }
func (v Double) String() string  { return fmt.Sprintf("%f", float64(v)) }
func (v String) String() string  { return string(v) }

func (v Integer) DebugDescription(string) string { return v.String() }
func (v Double) DebugDescription(string) string  { return v.String() }
func (v String) DebugDescription(string) string  { return "'" + string(v) + "'" }

func (Integer) MarkGlobal()      {}
func (Integer) UnmarkGlobal()    {}
func (Integer) GlobalCount() int { return 0 }
func (Integer) ResetReferences() {}
func (Integer) attach(*Runtime)  {}

func (Double) MarkGlobal()      {}
func (Double) UnmarkGlobal()    {}
func (Double) GlobalCount() int { return 0 }
func (Double) ResetReferences() {}
func (Double) attach(*Runtime)  {}

func (String) MarkGlobal()      {}
func (String) UnmarkGlobal()    {}
func (String) GlobalCount() int { return 0 }
func (String) ResetReferences() {}
func (String) attach(*Runtime)  {}

// TypeOf returns the type of v, or UnknownType for null.
func TypeOf(v Value) Type {
	if v == nil {
		return UnknownType
	}
	return v.Type()
}

// Equal compares two possibly null values. Values of different types are
// never equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	return a.Equals(b)
}

// Less orders two possibly null values. Null sorts first and values of
// different types are ordered by type.
func Less(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	if a.Type() != b.Type() {
		return a.Type() < b.Type()
	}
	return a.LessThan(b)
}

// ToString renders v for display, using NULL for null.
func ToString(v Value) string {
	if v == nil {
		return "NULL"
	}
	return v.String()
}

// DebugString renders the structural dump of v.
func DebugString(v Value, indent string) string {
	if v == nil {
		return "NULL"
	}
	return v.DebugDescription(indent)
}

// AsInteger casts v to an int64.
func AsInteger(v Value) (int64, error) {
	i, ok := v.(Integer)
	if !ok {
		return 0, NewTypeError("cast", IntegerType.String(), TypeOf(v).String())
	}
	return int64(i), nil
}

// AsDouble casts v to a float64.
func AsDouble(v Value) (float64, error) {
	d, ok := v.(Double)
	if !ok {
		return 0, NewTypeError("cast", DoubleType.String(), TypeOf(v).String())
	}
	return float64(d), nil
}

// AsString casts v to a string.
func AsString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", NewTypeError("cast", StringType.String(), TypeOf(v).String())
	}
	return string(s), nil
}

// AsList casts v to a list. Null casts to a nil list.
func AsList(v Value) (*List, error) {
	if v == nil {
		return nil, nil
	}
	l, ok := v.(*List)
	if !ok {
		return nil, NewTypeError("cast", ListType.String(), TypeOf(v).String())
	}
	return l, nil
}

// AsDict casts v to a dict. Null casts to a nil dict.
func AsDict(v Value) (*Dict, error) {
	if v == nil {
		return nil, nil
	}
	d, ok := v.(*Dict)
	if !ok {
		return nil, NewTypeError("cast", DictType.String(), TypeOf(v).String())
	}
	return d, nil
}

// AsObject casts v to an object. Null casts to a nil object.
func AsObject(v Value) (*Object, error) {
	if v == nil {
		return nil, nil
	}
	o, ok := v.(*Object)
	if !ok {
		return nil, NewTypeError("cast", ObjectType.String(), TypeOf(v).String())
	}
	return o, nil
}

// valueOrNull converts typed nil pointers into a null Value.
func valueOrNull(v Value) Value {
	switch x := v.(type) {
	case *Object:
		if x == nil {
			return nil
		}
	case *List:
		if x == nil {
			return nil
		}
	case *Dict:
		if x == nil {
			return nil
		}
	}
	return v
}
