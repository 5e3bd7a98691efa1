package starlark

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Object exposes a runtime object to Starlark. Members are attributes and
// methods are callable attributes. Equality is identity.
type Object struct {
	obj *grt.Object
}

var (
	_ starlark.HasAttrs    = (*Object)(nil)
	_ starlark.HasSetField = (*Object)(nil)
	_ starlark.Comparable  = (*Object)(nil)
)

// NewObject wraps o.
func NewObject(o *grt.Object) *Object { return &Object{obj: o} }

// Unwrap returns the wrapped object.
func (o *Object) Unwrap() *grt.Object { return o.obj }

func (o *Object) String() string {
	if name := o.obj.StringMember("name"); name != "" {
		return fmt.Sprintf("<%s %q>", o.obj.ClassName(), name)
	}
	return fmt.Sprintf("<%s %s>", o.obj.ClassName(), o.obj.ID())
}

func (o *Object) Type() string { return o.obj.ClassName() }
func (o *Object) Freeze()               {}
func (o *Object) Truth() starlark.Bool  { return starlark.True }
func (o *Object) Hash() (uint32, error) { return starlark.String(o.obj.ID()).Hash() }

func (o *Object) Attr(name string) (starlark.Value, error) {
	if o.obj.HasMember(name) {
		v, err := o.obj.Get(name)
		if err != nil {
			return nil, err
		}
		return ToStarlark(v), nil
	}
	if o.obj.HasMethod(name) {
		return starlark.NewBuiltin(name, o.call), nil
	}
	return nil, nil
}

func (o *Object) AttrNames() []string {
	var names []string
	for _, m := range o.obj.Class().Layout() {
		if !m.Private {
			names = append(names, m.Name)
		}
	}
	for _, m := range o.obj.Class().Methods() {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

func (o *Object) SetField(name string, v starlark.Value) error {
	if !o.obj.HasMember(name) {
		return starlark.NoSuchAttrError(fmt.Sprintf("%s has no member %q", o.obj.ClassName(), name))
	}
	gv, err := FromStarlark(v)
	if err != nil {
		return err
	}
	return o.obj.Set(name, gv)
}

func (o *Object) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	other := y.(*Object)
	switch op {
	case syntax.EQL:
		return o.obj == other.obj, nil
	case syntax.NEQ:
		return o.obj != other.obj, nil
	}
	return false, fmt.Errorf("%s %s %s not supported", o.Type(), op, y.Type())
}

func (o *Object) call(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: keyword arguments are not supported", b.Name())
	}
	gargs, err := convertArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	result, err := o.obj.Call(b.Name(), gargs...)
	if err != nil {
		return nil, err
	}
	return ToStarlark(result), nil
}

func convertArgs(args starlark.Tuple) ([]grt.Value, error) {
	out := make([]grt.Value, len(args))
	for i, a := range args {
		v, err := FromStarlark(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// List exposes a runtime list to Starlark.
type List struct {
	list *grt.List
}

var (
	_ starlark.Indexable   = (*List)(nil)
	_ starlark.HasSetIndex = (*List)(nil)
	_ starlark.Iterable    = (*List)(nil)
	_ starlark.HasAttrs    = (*List)(nil)
)

// NewList wraps l.
func NewList(l *grt.List) *List { return &List{list: l} }

func (l *List) String() string { return l.list.String() }
func (l *List) Type() string   { return "grt.list" }
func (l *List) Freeze()               {}
func (l *List) Truth() starlark.Bool  { return l.list.Count() > 0 }
func (l *List) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", l.Type()) }
func (l *List) Len() int              { return l.list.Count() }

func (l *List) Index(i int) starlark.Value {
	v, _ := l.list.Get(i)
	return ToStarlark(v)
}

func (l *List) SetIndex(i int, v starlark.Value) error {
	gv, err := FromStarlark(v)
	if err != nil {
		return err
	}
	return l.list.Set(i, gv)
}

func (l *List) Iterate() starlark.Iterator {
	return &listIterator{items: l.list.Items()}
}

var listMethods = map[string]func(l *List, args starlark.Tuple) (starlark.Value, error){
	"append": func(l *List, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("append: got %d arguments, want 1", len(args))
		}
		v, err := FromStarlark(args[0])
		if err != nil {
			return nil, err
		}
		return starlark.None, l.list.Append(v)
	},
	"insert": func(l *List, args starlark.Tuple) (starlark.Value, error) {
		var index int
		var value starlark.Value
		if err := starlark.UnpackPositionalArgs("insert", args, nil, 2, &index, &value); err != nil {
			return nil, err
		}
		v, err := FromStarlark(value)
		if err != nil {
			return nil, err
		}
		return starlark.None, l.list.Insert(v, index)
	},
	"pop": func(l *List, args starlark.Tuple) (starlark.Value, error) {
		index := l.list.Count() - 1
		if err := starlark.UnpackPositionalArgs("pop", args, nil, 0, &index); err != nil {
			return nil, err
		}
		v, err := l.list.Get(index)
		if err != nil {
			return nil, err
		}
		if err := l.list.RemoveAt(index); err != nil {
			return nil, err
		}
		return ToStarlark(v), nil
	},
	"index": func(l *List, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("index: got %d arguments, want 1", len(args))
		}
		v, err := FromStarlark(args[0])
		if err != nil {
			return nil, err
		}
		return starlark.MakeInt(l.list.Index(v)), nil
	},
	"reorder": func(l *List, args starlark.Tuple) (starlark.Value, error) {
		var from, to int
		if err := starlark.UnpackPositionalArgs("reorder", args, nil, 2, &from, &to); err != nil {
			return nil, err
		}
		return starlark.None, l.list.Reorder(from, to)
	},
}

func (l *List) Attr(name string) (starlark.Value, error) {
	fn, ok := listMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: keyword arguments are not supported", name)
		}
		return fn(l, args)
	}), nil
}

func (l *List) AttrNames() []string { return sortedNames(listMethods) }

type listIterator struct {
	items []grt.Value
	i     int
}

func (it *listIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.items) {
		return false
	}
	*p = ToStarlark(it.items[it.i])
	it.i++
	return true
}

func (it *listIterator) Done() {}

// Dict exposes a runtime dict to Starlark. Iteration yields the sorted keys.
type Dict struct {
	dict *grt.Dict
}

var (
	_ starlark.Mapping   = (*Dict)(nil)
	_ starlark.HasSetKey = (*Dict)(nil)
	_ starlark.Iterable  = (*Dict)(nil)
	_ starlark.HasAttrs  = (*Dict)(nil)
)

// NewDict wraps d.
func NewDict(d *grt.Dict) *Dict { return &Dict{dict: d} }

func (d *Dict) String() string { return d.dict.String() }
func (d *Dict) Type() string   { return "grt.dict" }
func (d *Dict) Freeze()               {}
func (d *Dict) Truth() starlark.Bool  { return d.dict.Count() > 0 }
func (d *Dict) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", d.Type()) }
func (d *Dict) Len() int              { return d.dict.Count() }

func (d *Dict) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, ok := k.(starlark.String)
	if !ok {
		return nil, false, fmt.Errorf("dict key must be string, got %s", k.Type())
	}
	v, found := d.dict.Lookup(string(key))
	if !found {
		return nil, false, nil
	}
	return ToStarlark(v), true, nil
}

func (d *Dict) SetKey(k, v starlark.Value) error {
	key, ok := k.(starlark.String)
	if !ok {
		return fmt.Errorf("dict key must be string, got %s", k.Type())
	}
	gv, err := FromStarlark(v)
	if err != nil {
		return err
	}
	return d.dict.Set(string(key), gv)
}

func (d *Dict) Iterate() starlark.Iterator {
	keys := d.dict.Keys()
	items := make([]grt.Value, len(keys))
	for i, k := range keys {
		items[i] = grt.String(k)
	}
	return &listIterator{items: items}
}

var dictMethods = map[string]func(d *Dict, args starlark.Tuple) (starlark.Value, error){
	"keys": func(d *Dict, args starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs("keys", args, nil, 0); err != nil {
			return nil, err
		}
		keys := d.dict.Keys()
		out := make([]starlark.Value, len(keys))
		for i, k := range keys {
			out[i] = starlark.String(k)
		}
		return starlark.NewList(out), nil
	},
	"items": func(d *Dict, args starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs("items", args, nil, 0); err != nil {
			return nil, err
		}
		keys := d.dict.Keys()
		out := make([]starlark.Value, len(keys))
		for i, k := range keys {
			out[i] = starlark.Tuple{starlark.String(k), ToStarlark(d.dict.Get(k))}
		}
		return starlark.NewList(out), nil
	},
	"get": func(d *Dict, args starlark.Tuple) (starlark.Value, error) {
		var key string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackPositionalArgs("get", args, nil, 1, &key, &def); err != nil {
			return nil, err
		}
		v, ok := d.dict.Lookup(key)
		if !ok {
			return def, nil
		}
		return ToStarlark(v), nil
	},
	"pop": func(d *Dict, args starlark.Tuple) (starlark.Value, error) {
		var key string
		if err := starlark.UnpackPositionalArgs("pop", args, nil, 1, &key); err != nil {
			return nil, err
		}
		v, ok := d.dict.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("pop: key %q not found", key)
		}
		d.dict.Remove(key)
		return ToStarlark(v), nil
	},
}

func (d *Dict) Attr(name string) (starlark.Value, error) {
	fn, ok := dictMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: keyword arguments are not supported", name)
		}
		return fn(d, args)
	}), nil
}

func (d *Dict) AttrNames() []string { return sortedNames(dictMethods) }

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
