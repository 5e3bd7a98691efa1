// Package diff compares two value graphs and produces a change tree.
//
// Elements of lists and dicts are matched with a pluggable Omf policy.
// DefaultOmf matches objects by their name member, AlterOmf prefers the
// oldName member so renamed objects are reported as modified rather than
// removed and re-added.
package diff

import (
	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// Kind identifies the kind of a Change.
type Kind int

// Change kinds.
const (
	SimpleValue Kind = iota
	ValueAdded
	ValueRemoved
	ObjectModified
	ObjectAttrModified
	ListModified
	ListItemAdded
	ListItemRemoved
	ListItemModified
	ListItemOrderChanged
	DictModified
	DictItemAdded
	DictItemModified
	DictItemRemoved
)

var kindNames = [...]string{
	SimpleValue:          "simple_value",
	ValueAdded:           "value_added",
	ValueRemoved:         "value_removed",
	ObjectModified:       "object_modified",
	ObjectAttrModified:   "object_attr_modified",
	ListModified:         "list_modified",
	ListItemAdded:        "list_item_added",
	ListItemRemoved:      "list_item_removed",
	ListItemModified:     "list_item_modified",
	ListItemOrderChanged: "list_item_order_changed",
	DictModified:         "dict_modified",
	DictItemAdded:        "dict_item_added",
	DictItemModified:     "dict_item_modified",
	DictItemRemoved:      "dict_item_removed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Change is a node of the change tree.
//
// Old and New hold the compared values; added items only carry New and
// removed items only carry Old. Children hold the nested changes of
// modified objects, containers and items.
type Change struct {
	kind Kind

	// Attr is the member name of an ObjectAttrModified change.
	Attr string
	// Key is the dict key of a DictItem change.
	Key string
	// Index is the target index of a list item, or the source index of a
	// removed item.
	Index int
	// OldIndex is the source index of a reordered item.
	OldIndex int
	// Prev is the item preceding an added or reordered item in the
	// target list, nil when it is first.
	Prev grt.Value

	Old grt.Value
	New grt.Value

	Children []*Change
}

// Kind returns the kind of the change.
func (c *Change) Kind() Kind { return c.kind }

// Subchange returns the single nested change of an attribute or item change.
func (c *Change) Subchange() *Change {
	if len(c.Children) == 0 {
		return nil
	}
	return c.Children[0]
}

// Find returns the ObjectAttrModified child for member, or nil.
func (c *Change) Find(member string) *Change {
	for _, ch := range c.Children {
		if ch.kind == ObjectAttrModified && ch.Attr == member {
			return ch
		}
	}
	return nil
}

// Filter returns the direct children of the given kind.
func (c *Change) Filter(kind Kind) []*Change {
	var out []*Change
	for _, ch := range c.Children {
		if ch.kind == kind {
			out = append(out, ch)
		}
	}
	return out
}

// Walk visits c and its descendants depth first. Returning false from fn
// skips the children of that change.
func (c *Change) Walk(fn func(ch *Change, depth int) bool) {
	c.walk(fn, 0)
}

func (c *Change) walk(fn func(*Change, int) bool, depth int) {
	if !fn(c, depth) {
		return
	}
	for _, ch := range c.Children {
		ch.walk(fn, depth+1)
	}
}

// Count returns the number of leaf changes below c, or 1 for a leaf.
func (c *Change) Count() int {
	if len(c.Children) == 0 {
		return 1
	}
	n := 0
	for _, ch := range c.Children {
		n += ch.Count()
	}
	return n
}
