package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// Value kinds of the stored member encoding.
const (
	kindNull   = "null"
	kindInt    = "int"
	kindReal   = "real"
	kindString = "string"
	kindObject = "object"
	kindList   = "list"
	kindDict   = "dict"
)

// storedValue is the JSON form of a member value. Objects are always
// stored as references; the objects a document owns get rows of their own.
type storedValue struct {
	Kind    string                  `json:"kind"`
	Int     int64                   `json:"int,omitempty"`
	Real    float64                 `json:"real,omitempty"`
	Str     string                  `json:"str,omitempty"`
	Ref     string                  `json:"ref,omitempty"`
	Content string                  `json:"content,omitempty"`
	Items   []*storedValue          `json:"items,omitempty"`
	Entries map[string]*storedValue `json:"entries,omitempty"`
}

// record is one object row of a document.
type record struct {
	obj      *grt.Object
	ownerID  string
	position int
	members  []byte
}

// collect walks the ownership tree under root and encodes every object.
// Objects reached only through references are not part of the document.
func collect(root *grt.Object) ([]record, error) {
	var (
		out  []record
		seen = make(map[*grt.Object]bool)
	)

	var walk func(o *grt.Object, ownerID string) error
	walk = func(o *grt.Object, ownerID string) error {
		if seen[o] {
			return nil
		}
		seen[o] = true

		var children []*grt.Object
		members := make(map[string]*storedValue)
		var encErr error
		o.Class().ForEachMember(func(m *grt.Member) bool {
			if m.Calculated {
				return true
			}
			v, err := o.Get(m.Name)
			if err != nil {
				encErr = err
				return false
			}
			sv, err := encode(v, m.OwnedObject, func(child *grt.Object) {
				children = append(children, child)
			})
			if err != nil {
				encErr = fmt.Errorf("%s::%s: %w", o.ClassName(), m.Name, err)
				return false
			}
			members[m.Name] = sv
			return true
		})
		if encErr != nil {
			return encErr
		}

		data, err := json.Marshal(members)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", o.ID(), err)
		}
		out = append(out, record{obj: o, ownerID: ownerID, position: len(out), members: data})

		for _, child := range children {
			if err := walk(child, o.ID()); err != nil {
				return err
			}
		}
		return nil
	}

	ownerID := ""
	if owner := root.Owner(); owner != nil {
		ownerID = owner.ID()
	}
	if err := walk(root, ownerID); err != nil {
		return nil, err
	}
	return out, nil
}

// encode converts v. Objects found in an owned position are passed to
// child so the caller can store them as rows.
func encode(v grt.Value, owned bool, child func(*grt.Object)) (*storedValue, error) {
	switch x := v.(type) {
	case nil:
		return &storedValue{Kind: kindNull}, nil
	case grt.Integer:
		return &storedValue{Kind: kindInt, Int: int64(x)}, nil
	case grt.Double:
		return &storedValue{Kind: kindReal, Real: float64(x)}, nil
	case grt.String:
		return &storedValue{Kind: kindString, Str: string(x)}, nil
	case *grt.Object:
		if owned {
			child(x)
		}
		return &storedValue{Kind: kindObject, Ref: x.ID()}, nil
	case *grt.List:
		sv := &storedValue{Kind: kindList, Content: x.ContentType().String()}
		for _, item := range x.Items() {
			enc, err := encode(item, owned, child)
			if err != nil {
				return nil, err
			}
			sv.Items = append(sv.Items, enc)
		}
		return sv, nil
	case *grt.Dict:
		sv := &storedValue{Kind: kindDict, Content: x.ContentType().String(), Entries: make(map[string]*storedValue)}
		for _, k := range x.Keys() {
			enc, err := encode(x.Get(k), owned, child)
			if err != nil {
				return nil, err
			}
			sv.Entries[k] = enc
		}
		return sv, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

// parseContent reads the content type written by SimpleTypeSpec.String.
func parseContent(s string) (grt.SimpleTypeSpec, error) {
	if class, ok := strings.CutPrefix(s, "object<"); ok {
		return grt.SimpleTypeSpec{Type: grt.ObjectType, ObjectClass: strings.TrimSuffix(class, ">")}, nil
	}
	t, err := grt.ParseType(s)
	if err != nil {
		return grt.SimpleTypeSpec{}, err
	}
	return grt.SimpleTypeSpec{Type: t}, nil
}

// decoder rebuilds values, resolving references against the objects of
// the document first and the runtime arena second.
type decoder struct {
	rt       *grt.Runtime
	loaded   map[string]*grt.Object
	dangling []string
}

func (d *decoder) resolve(id string) *grt.Object {
	if o, ok := d.loaded[id]; ok {
		return o
	}
	if o := d.rt.FindObject(id); o != nil {
		return o
	}
	d.dangling = append(d.dangling, id)
	return nil
}

func (d *decoder) decode(sv *storedValue) (grt.Value, error) {
	if sv == nil {
		return nil, nil
	}
	switch sv.Kind {
	case kindNull:
		return nil, nil
	case kindInt:
		return grt.Integer(sv.Int), nil
	case kindReal:
		return grt.Double(sv.Real), nil
	case kindString:
		return grt.String(sv.Str), nil
	case kindObject:
		if o := d.resolve(sv.Ref); o != nil {
			return o, nil
		}
		return nil, nil
	case kindList:
		content, err := parseContent(sv.Content)
		if err != nil {
			return nil, err
		}
		l := grt.NewList(content, true)
		return l, d.fillList(l, sv)
	case kindDict:
		content, err := parseContent(sv.Content)
		if err != nil {
			return nil, err
		}
		dict := grt.NewDict(content, true)
		return dict, d.fillDict(dict, sv)
	}
	return nil, fmt.Errorf("unknown value kind %q", sv.Kind)
}

func (d *decoder) fillList(l *grt.List, sv *storedValue) error {
	for _, item := range sv.Items {
		v, err := d.decode(item)
		if err != nil {
			return err
		}
		if v == nil && item.Kind == kindObject && !l.AllowNull() {
			continue
		}
		if err := l.Append(v); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) fillDict(dict *grt.Dict, sv *storedValue) error {
	for k, entry := range sv.Entries {
		v, err := d.decode(entry)
		if err != nil {
			return err
		}
		if err := dict.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// restore assigns the stored members of o.
func (d *decoder) restore(o *grt.Object, data []byte) error {
	var members map[string]*storedValue
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("failed to decode %s: %w", o.ID(), err)
	}

	var err error
	o.Class().ForEachMember(func(m *grt.Member) bool {
		sv, ok := members[m.Name]
		if !ok || m.Calculated {
			return true
		}
		switch m.Type.Base.Type {
		case grt.ListType:
			if sv.Kind != kindList {
				err = fmt.Errorf("%s::%s: stored %s, want list", o.ClassName(), m.Name, sv.Kind)
				return false
			}
			l := o.ListMember(m.Name)
			l.Clear()
			err = d.fillList(l, sv)
		case grt.DictType:
			if sv.Kind != kindDict {
				err = fmt.Errorf("%s::%s: stored %s, want dict", o.ClassName(), m.Name, sv.Kind)
				return false
			}
			dict := o.DictMember(m.Name)
			dict.ResetEntries()
			err = d.fillDict(dict, sv)
		default:
			var v grt.Value
			if v, err = d.decode(sv); err == nil {
				err = o.Restore(m.Name, v)
			}
		}
		if err != nil {
			err = fmt.Errorf("%s::%s: %w", o.ClassName(), m.Name, err)
		}
		return err == nil
	})
	return err
}
