package grt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewGUID returns a time-based UUID in canonical lowercase form.
func NewGUID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// GetValueByPath walks a "/"-separated path from root through dict keys,
// list indexes and object members. "/" returns root. It returns nil when a
// component does not resolve.
func GetValueByPath(root Value, path string) Value {
	if path == "" || path == "/" {
		return root
	}
	value := root
	for _, part := range splitPath(path) {
		if value == nil {
			return nil
		}
		value = step(value, part)
	}
	return value
}

// SetValueByPath assigns v to the element addressed by path. The parent of
// the last component must resolve to a dict, list or object.
func SetValueByPath(root Value, path string, v Value) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return NewLogicError("set value by path", "path %q addresses the root", path)
	}
	parent := root
	for _, part := range parts[:len(parts)-1] {
		if parent = step(parent, part); parent == nil {
			return &BadItemError{Op: "set value by path", Key: path}
		}
	}

	last := parts[len(parts)-1]
	switch p := parent.(type) {
	case *Dict:
		return p.Set(last, v)
	case *List:
		i, err := strconv.Atoi(last)
		if err != nil {
			return &BadItemError{Op: "set value by path", Key: last}
		}
		return p.Set(i, v)
	case *Object:
		return p.Set(last, v)
	}
	return NewTypeError("set value by path", "dict, list or object", TypeOf(parent).String())
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func step(v Value, part string) Value {
	switch c := v.(type) {
	case *Dict:
		return c.Get(part)
	case *List:
		i, err := strconv.Atoi(part)
		if err != nil {
			return nil
		}
		item, err := c.Get(i)
		if err != nil {
			return nil
		}
		return item
	case *Object:
		if !c.HasMember(part) {
			return nil
		}
		item, _ := c.Get(part)
		return item
	}
	return nil
}

// FindChildObject searches a container for the object with id. Members
// named owner are not followed; lists and dicts of simple values are
// skipped. Without recursive only direct children are inspected.
func FindChildObject(container Value, id string, recursive bool) *Object {
	return findChild(container, id, recursive, make(map[Value]bool))
}

func findChild(v Value, id string, recursive bool, visited map[Value]bool) *Object {
	if v == nil || visited[v] {
		return nil
	}
	visited[v] = true

	var children []Value
	switch c := v.(type) {
	case *List:
		if IsSimpleType(c.content.Type) {
			return nil
		}
		children = c.items
	case *Dict:
		if IsSimpleType(c.content.Type) {
			return nil
		}
		for _, k := range c.Keys() {
			children = append(children, c.entries[k])
		}
	case *Object:
		c.class.ForEachMember(func(m *Member) bool {
			if m.Name == "owner" || IsSimpleType(m.Type.Base.Type) {
				return true
			}
			if child, _ := c.Get(m.Name); child != nil {
				children = append(children, child)
			}
			return true
		})
	default:
		return nil
	}

	for _, child := range children {
		if o, ok := child.(*Object); ok && o.id == id {
			return o
		}
	}
	if !recursive {
		return nil
	}
	for _, child := range children {
		if found := findChild(child, id, true, visited); found != nil {
			return found
		}
	}
	return nil
}

// FindNamedObject returns the first object in l whose name member equals
// name.
func FindNamedObject(l *List, name string, caseSensitive bool) *Object {
	for _, item := range l.items {
		o, ok := item.(*Object)
		if !ok || !o.HasMember("name") {
			continue
		}
		n := o.StringMember("name")
		if n == name || (!caseSensitive && strings.EqualFold(n, name)) {
			return o
		}
	}
	return nil
}

// NameSuggestion returns prefix, or prefix followed by the lowest number
// starting at 1, that no object in l is named. With serial a number is
// always appended.
func NameSuggestion(l *List, prefix string, serial bool) string {
	if !serial && FindNamedObject(l, prefix, true) == nil {
		return prefix
	}
	for i := 1; ; i++ {
		name := prefix + strconv.Itoa(i)
		if FindNamedObject(l, name, true) == nil {
			return name
		}
	}
}

// AppendContents appends every element of src to dst.
func AppendContents(dst, src *List) error {
	for _, v := range src.Items() {
		if err := dst.Insert(v, End); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceContents replaces the elements of dst by those of src.
func ReplaceContents(dst, src *List) error {
	dst.Clear()
	return AppendContents(dst, src)
}

// ReplaceDictContents replaces the entries of dst by those of src.
func ReplaceDictContents(dst, src *Dict) error {
	for _, k := range dst.Keys() {
		dst.Remove(k)
	}
	return MergeContents(dst, src, true)
}

// MergeContents copies the entries of src into dst. Existing keys are
// replaced only with overwrite.
func MergeContents(dst, src *Dict, overwrite bool) error {
	for _, k := range src.Keys() {
		if !overwrite && dst.Has(k) {
			continue
		}
		if err := dst.Set(k, src.entries[k]); err != nil {
			return err
		}
	}
	return nil
}

// MergeObjectContents copies the writable members of src into dst.
// Overriding members are left to the member they override.
func MergeObjectContents(dst, src *Object) error {
	var err error
	src.class.ForEachMember(func(m *Member) bool {
		if m.ReadOnly || m.Overrides || m.Calculated || !dst.HasMember(m.Name) {
			return true
		}
		v, _ := src.Get(m.Name)
		err = dst.Set(m.Name, v)
		return err == nil
	})
	return err
}

// MergeContentsByName inserts the objects of src whose name is not in dst.
// Objects with a known name replace the match when replace is set.
func MergeContentsByName(dst, src *List, replace bool) error {
	return mergeBy(dst, src, replace, func(o *Object) string { return o.StringMember("name") })
}

// MergeContentsByID is MergeContentsByName keyed by GUID.
func MergeContentsByID(dst, src *List, replace bool) error {
	return mergeBy(dst, src, replace, (*Object).ID)
}

func mergeBy(dst, src *List, replace bool, key func(*Object) string) error {
	known := make(map[string]int)
	for i, item := range dst.items {
		if o, ok := item.(*Object); ok {
			known[key(o)] = i
		}
	}
	for _, item := range src.Items() {
		o, ok := item.(*Object)
		if !ok {
			continue
		}
		if i, found := known[key(o)]; found {
			if replace {
				if err := dst.Set(i, o); err != nil {
					return err
				}
			}
			continue
		}
		if err := dst.Insert(o, End); err != nil {
			return err
		}
	}
	return nil
}

// CompareListContents reports whether two object lists hold the same
// objects, by GUID, in the same order.
func CompareListContents(a, b *List) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Count() != b.Count() {
		return false
	}
	for i := range a.items {
		oa, _ := a.items[i].(*Object)
		ob, _ := b.items[i].(*Object)
		if (oa == nil) != (ob == nil) {
			return false
		}
		if oa != nil && oa.id != ob.id {
			return false
		}
	}
	return true
}

// RemoveListItemsMatching removes every object for which match is true.
func RemoveListItemsMatching(l *List, match func(*Object) bool) {
	for i := l.Count() - 1; i >= 0; i-- {
		if o, ok := l.items[i].(*Object); ok && match(o) {
			_ = l.RemoveAt(i)
		}
	}
}

// UpdateIDs gives o and every object it owns a fresh GUID. Members named
// in skip are not followed.
func UpdateIDs(o *Object, skip ...string) {
	updateIDs(o, toSet(skip))
}

func updateIDs(o *Object, skip map[string]bool) {
	if o == nil {
		return
	}
	o.class.ForEachMember(func(m *Member) bool {
		if skip[m.Name] || m.Overrides || m.Calculated || !m.OwnedObject {
			return true
		}
		v, _ := o.Get(m.Name)
		switch x := v.(type) {
		case *List:
			for _, item := range x.items {
				if child, ok := item.(*Object); ok {
					updateIDs(child, skip)
				}
			}
		case *Object:
			updateIDs(x, skip)
		}
		return true
	})

	old := o.id
	o.id = NewGUID()
	if o.rt != nil {
		o.rt.arena.rekey(o, old)
	}
}

// DumpValue writes an indented rendering of v. Reference object members
// are rendered by name.
func DumpValue(w io.Writer, v Value) {
	dumpValue(w, v, 0)
	fmt.Fprintln(w)
}

func dumpValue(w io.Writer, v Value, level int) {
	indent := strings.Repeat("  ", level)
	switch x := v.(type) {
	case *List:
		fmt.Fprintln(w, "[")
		for i, item := range x.items {
			if i > 0 {
				fmt.Fprintln(w, ",")
			}
			fmt.Fprint(w, indent+"  ")
			dumpValue(w, item, level+1)
		}
		fmt.Fprint(w, "\n"+indent+"]")
	case *Dict:
		fmt.Fprintln(w, "{")
		for i, k := range x.Keys() {
			if i > 0 {
				fmt.Fprintln(w, ",")
			}
			fmt.Fprint(w, indent+"  "+k+": ")
			dumpValue(w, x.entries[k], level+1)
		}
		fmt.Fprint(w, "\n"+indent+"}")
	case *Object:
		fmt.Fprintln(w, "{")
		x.class.ForEachMember(func(m *Member) bool {
			fmt.Fprint(w, indent+"  "+m.Name+" = ")
			mv, _ := x.Get(m.Name)
			switch ref, ok := mv.(*Object); {
			case mv == nil:
				fmt.Fprint(w, "NULL")
			case ok && !m.OwnedObject:
				fmt.Fprint(w, "<<"+ref.StringMember("name")+">>")
			default:
				dumpValue(w, mv, level+1)
			}
			fmt.Fprintln(w, ";")
			return true
		})
		fmt.Fprint(w, indent+"}")
	default:
		fmt.Fprint(w, DebugString(v, indent))
	}
}
