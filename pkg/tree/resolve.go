package tree

import (
	"fmt"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// Children returns the children of v in node order: list elements, dict
// values by sorted key, and the stored members of an object in slot order.
// Scalars and null have no children.
func Children(v grt.Value) []grt.Value {
	switch x := v.(type) {
	case *grt.List:
		return x.Items()
	case *grt.Dict:
		keys := x.Keys()
		out := make([]grt.Value, len(keys))
		for i, k := range keys {
			out[i] = x.Get(k)
		}
		return out
	case *grt.Object:
		var out []grt.Value
		for _, m := range members(x) {
			mv, _ := x.Get(m.Name)
			out = append(out, mv)
		}
		return out
	}
	return nil
}

// Label names child i of v: the list index, the dict key or the member name.
func Label(v grt.Value, i int) string {
	switch x := v.(type) {
	case *grt.Dict:
		if keys := x.Keys(); i >= 0 && i < len(keys) {
			return keys[i]
		}
	case *grt.Object:
		if ms := members(x); i >= 0 && i < len(ms) {
			return ms[i].Name
		}
	}
	return fmt.Sprintf("[%d]", i)
}

func members(o *grt.Object) []*grt.Member {
	var out []*grt.Member
	for _, m := range o.Class().Layout() {
		if !m.Calculated {
			out = append(out, m)
		}
	}
	return out
}

// Resolve returns the value addressed by id below root. The empty id
// addresses root itself.
func Resolve(root grt.Value, id NodeID) (grt.Value, error) {
	v := root
	for depth, i := range id.index {
		if v == nil || !grt.IsContainerType(v.Type()) {
			return nil, grt.NewTypeError("resolve "+id.String(), "container", grt.TypeOf(v).String())
		}
		children := Children(v)
		if i >= len(children) {
			return nil, &grt.BadItemError{Op: fmt.Sprintf("resolve %s at depth %d", id, depth), Index: i}
		}
		v = children[i]
	}
	return v, nil
}

// Locate returns the id of target below root, searching depth first along
// owned members. References are not followed.
func Locate(root, target grt.Value) (NodeID, bool) {
	if root == target {
		return NodeID{}, true
	}
	return locate(root, target, nil, make(map[grt.Value]bool))
}

func locate(v, target grt.Value, path []int, seen map[grt.Value]bool) (NodeID, bool) {
	if v == nil || seen[v] {
		return NodeID{}, false
	}
	seen[v] = true

	var owned []bool
	if o, ok := v.(*grt.Object); ok {
		for _, m := range members(o) {
			owned = append(owned, m.OwnedObject)
		}
	}

	for i, child := range Children(v) {
		if owned != nil && !owned[i] && child != nil && grt.IsContainerType(child.Type()) {
			continue
		}
		p := append(append([]int(nil), path...), i)
		if child == target {
			return NodeID{index: p}, true
		}
		if child != nil && grt.IsContainerType(child.Type()) {
			if id, ok := locate(child, target, p, seen); ok {
				return id, true
			}
		}
	}
	return NodeID{}, false
}
