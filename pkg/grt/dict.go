package grt

import (
	"fmt"
	"sort"
	"strings"
	"weak"
)

// Dict maps string keys to values with a declared content type.
type Dict struct {
	rt        *Runtime
	seq       uint64
	entries   map[string]Value
	content   SimpleTypeSpec
	allowNull bool
	global    int

	owner  weak.Pointer[Object]
	member string
	owning bool
}

// NewDict creates an unowned dict.
func NewDict(content SimpleTypeSpec, allowNull bool) *Dict {
	return &Dict{
		seq:       seq.Add(1),
		entries:   make(map[string]Value),
		content:   content,
		allowNull: allowNull,
		owning:    true,
	}
}

func newOwnedDict(owner *Object, m *Member) *Dict {
	d := NewDict(m.Type.Content, m.NullContentAllowed)
	d.rt = owner.rt
	d.owner = weak.Make(owner)
	d.member = m.Name
	d.owning = m.OwnedObject
	return d
}

func (d *Dict) Type() Type { return DictType }

// ContentType returns the declared content type.
func (d *Dict) ContentType() SimpleTypeSpec { return d.content }

// AllowNull reports whether null values are accepted.
func (d *Dict) AllowNull() bool { return d.allowNull }

// Owner returns the owning object of an owned dict, or nil.
func (d *Dict) Owner() *Object { return d.owner.Value() }

// OwnerMember returns the member name under which the owner holds the dict.
func (d *Dict) OwnerMember() string { return d.member }

// OwnsContents reports whether the entries belong to the dict rather than
// being references.
func (d *Dict) OwnsContents() bool { return d.owning }

func (d *Dict) Count() int { return len(d.entries) }

// Has reports whether key is present.
func (d *Dict) Has(key string) bool {
	_, ok := d.entries[key]
	return ok
}

// Get returns the value for key, or null when absent.
func (d *Dict) Get(key string) Value { return d.entries[key] }

// Lookup returns the value for key and whether it was present.
func (d *Dict) Lookup(key string) (Value, bool) {
	v, ok := d.entries[key]
	return v, ok
}

// Keys returns the keys in sorted order.
func (d *Dict) Keys() []string {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Range calls fn for each entry in key order until fn returns false.
func (d *Dict) Range(fn func(key string, v Value) bool) {
	for _, k := range d.Keys() {
		if !fn(k, d.entries[k]) {
			return
		}
	}
}

// GetString returns the string stored under key, or def.
func (d *Dict) GetString(key, def string) string {
	if s, ok := d.entries[key].(String); ok {
		return string(s)
	}
	return def
}

// GetInteger returns the integer stored under key, or def.
func (d *Dict) GetInteger(key string, def int64) int64 {
	if i, ok := d.entries[key].(Integer); ok {
		return int64(i)
	}
	return def
}

// GetDouble returns the double stored under key, or def.
func (d *Dict) GetDouble(key string, def float64) float64 {
	if f, ok := d.entries[key].(Double); ok {
		return float64(f)
	}
	return def
}

func (d *Dict) tracking() bool {
	return d.global > 0 && d.rt != nil && d.rt.TrackingChanges()
}

func (d *Dict) marksContents() bool {
	return d.owning && (d.content.Type == AnyType || IsContainerType(d.content.Type))
}

// Set stores v under key.
func (d *Dict) Set(key string, v Value) error {
	v = valueOrNull(v)
	if err := checkAssignable("dict set", d.content, d.allowNull, v); err != nil {
		return err
	}

	old, had := d.entries[key]
	if d.tracking() {
		d.rt.undo.AddUndo(&DictSetAction{Dict: d, Key: key, Value: old, HadValue: had})
	}
	if v != nil && d.rt != nil {
		v.attach(d.rt)
	}
	if d.global > 0 && d.marksContents() {
		if v != nil {
			v.MarkGlobal()
		}
		if had && old != nil {
			old.UnmarkGlobal()
		}
	}
	d.entries[key] = v

	if owner := d.Owner(); owner != nil {
		owner.ownedDictItemSet(d, key)
	}
	return nil
}

// Remove deletes key and reports whether it was present.
func (d *Dict) Remove(key string) bool {
	old, had := d.entries[key]
	if !had {
		return false
	}
	if d.tracking() {
		d.rt.undo.AddUndo(&DictRemoveAction{Dict: d, Key: key, Value: old, HadValue: true})
	}
	if d.global > 0 && old != nil && d.marksContents() {
		old.UnmarkGlobal()
	}
	delete(d.entries, key)

	if owner := d.Owner(); owner != nil {
		owner.ownedDictItemRemoved(d, key)
	}
	return true
}

// ResetEntries removes every entry without recording undo actions.
func (d *Dict) ResetEntries() {
	if owner := d.Owner(); owner != nil {
		for _, k := range d.Keys() {
			owner.ownedDictItemRemoved(d, k)
		}
	}
	if d.global > 0 && d.marksContents() {
		for _, v := range d.entries {
			if v != nil {
				v.UnmarkGlobal()
			}
		}
	}
	d.entries = make(map[string]Value)
}

func (d *Dict) Equals(other Value) bool {
	o, ok := other.(*Dict)
	return ok && o == d
}

func (d *Dict) LessThan(other Value) bool {
	if o, ok := other.(*Dict); ok {
		return d.seq < o.seq
	}
	return Less(d, other)
}

func (d *Dict) String() string {
	keys := d.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " = " + ToString(d.entries[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (d *Dict) DebugDescription(indent string) string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, k := range d.Keys() {
		b.WriteString(indent + "  " + k + " = ")
		b.WriteString(debugElement(d.entries[k], indent+"  ", d.owning))
		b.WriteString("\n")
	}
	b.WriteString(indent + "}")
	return b.String()
}

func (d *Dict) MarkGlobal() {
	d.global++
	if d.global == 1 && d.marksContents() {
		for _, v := range d.entries {
			if v != nil {
				v.MarkGlobal()
			}
		}
	}
}

func (d *Dict) UnmarkGlobal() {
	if d.global == 0 {
		return
	}
	d.global--
	if d.global == 0 && d.marksContents() {
		for _, v := range d.entries {
			if v != nil {
				v.UnmarkGlobal()
			}
		}
	}
}

func (d *Dict) GlobalCount() int { return d.global }

func (d *Dict) ResetReferences() {
	if !d.owning {
		return
	}
	for _, v := range d.entries {
		if v != nil {
			v.ResetReferences()
		}
	}
}

func (d *Dict) attach(rt *Runtime) {
	if d.rt != nil || rt == nil {
		return
	}
	d.rt = rt
	for _, v := range d.entries {
		if v != nil {
			v.attach(rt)
		}
	}
}

func (d *Dict) describe(sep string) string {
	if owner := d.Owner(); owner != nil {
		return owner.ClassName() + sep + d.member
	}
	return fmt.Sprintf("<unowned dict>%p", d)
}
