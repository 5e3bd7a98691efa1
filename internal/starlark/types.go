// Package starlark bridges runtime values to Starlark so class methods can
// be implemented in scripts and expressions can be evaluated against an
// object graph.
package starlark

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"go.starlark.net/starlark"
)

// ToStarlark converts a runtime value to a Starlark value.
// Containers and objects are wrapped, so changes made by a script are
// applied to the runtime value and recorded for undo like any other.
func ToStarlark(v grt.Value) starlark.Value {
	switch val := v.(type) {
	case nil:
		return starlark.None
	case grt.Integer:
		return starlark.MakeInt64(int64(val))
	case grt.Double:
		return starlark.Float(float64(val))
	case grt.String:
		return starlark.String(string(val))
	case *grt.List:
		return NewList(val)
	case *grt.Dict:
		return NewDict(val)
	case *grt.Object:
		return NewObject(val)
	}
	return starlark.None
}

// FromStarlark converts a Starlark value to a runtime value.
// Native Starlark lists and dicts become new untyped containers.
func FromStarlark(v starlark.Value) (grt.Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		if val {
			return grt.Integer(1), nil
		}
		return grt.Integer(0), nil
	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", val.String())
		}
		return grt.Integer(i64), nil
	case starlark.Float:
		return grt.Double(float64(val)), nil
	case starlark.String:
		return grt.String(string(val)), nil
	case *Object:
		return val.obj, nil
	case *List:
		return val.list, nil
	case *Dict:
		return val.dict, nil

	case *starlark.List:
		return sequenceToList(val)
	case starlark.Tuple:
		return sequenceToList(val)

	case *starlark.Dict:
		dict := grt.NewDict(grt.SimpleTypeSpec{}, true)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := FromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", string(key), err)
			}
			if err := dict.Set(string(key), gv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
}

func sequenceToList(seq starlark.Indexable) (grt.Value, error) {
	list := grt.NewList(grt.SimpleTypeSpec{}, true)
	for i := 0; i < seq.Len(); i++ {
		gv, err := FromStarlark(seq.Index(i))
		if err != nil {
			return nil, fmt.Errorf("list index %d: %w", i, err)
		}
		if err := list.Append(gv); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// ToGo converts a runtime value to plain Go values for encoding.
// Objects become maps of their stored members; references to other
// objects are rendered as their id so cycles terminate.
//
// Returns: string, int64, float64, []any, map[string]any, or nil
func ToGo(v grt.Value) any {
	return toGo(v, true)
}

func toGo(v grt.Value, expand bool) any {
	switch val := v.(type) {
	case nil:
		return nil
	case grt.Integer:
		return int64(val)
	case grt.Double:
		return float64(val)
	case grt.String:
		return string(val)
	case *grt.List:
		result := make([]any, val.Count())
		for i, item := range val.Items() {
			result[i] = toGo(item, expand && val.OwnsContents())
		}
		return result
	case *grt.Dict:
		result := make(map[string]any, val.Count())
		val.Range(func(k string, item grt.Value) bool {
			result[k] = toGo(item, expand)
			return true
		})
		return result
	case *grt.Object:
		if !expand {
			return val.ID()
		}
		result := map[string]any{
			"_id":    val.ID(),
			"_class": val.ClassName(),
		}
		val.Class().ForEachMember(func(m *grt.Member) bool {
			if m.Calculated {
				return true
			}
			mv, _ := val.Get(m.Name)
			result[m.Name] = toGo(mv, m.OwnedObject)
			return true
		})
		return result
	}
	return nil
}

// StarlarkToGo converts a Starlark value to a Go value through the
// runtime conversion.
func StarlarkToGo(v starlark.Value) (any, error) {
	gv, err := FromStarlark(v)
	if err != nil {
		return nil, err
	}
	return ToGo(gv), nil
}

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, float64, bool, []string, []any, map[string]any
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case bool:
		return starlark.Bool(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
