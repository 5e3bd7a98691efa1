package grt

import (
	"fmt"
	"strings"
	"sync/atomic"
	"weak"
)

// End is the insert position that appends to a list.
const End = -1

// seq orders containers by allocation for LessThan.
var seq atomic.Uint64

// List is an ordered sequence of values with a declared content type.
//
// Lists created by an object for one of its list members are owned: they
// report every mutation back to the owning object. Lists hold no lock and
// must not be mutated concurrently.
type List struct {
	rt        *Runtime
	seq       uint64
	items     []Value
	content   SimpleTypeSpec
	allowNull bool
	global    int

	owner  weak.Pointer[Object]
	member string
	// owning is false for lists of references. Global marks do not
	// propagate into the elements of such lists.
	owning bool
}

// NewList creates an unowned list.
func NewList(content SimpleTypeSpec, allowNull bool) *List {
	return &List{
		seq:       seq.Add(1),
		content:   content,
		allowNull: allowNull,
		owning:    true,
	}
}

// NewObjectList creates an unowned list of objects of the given class.
func NewObjectList(class string, allowNull bool) *List {
	return NewList(SimpleTypeSpec{Type: ObjectType, ObjectClass: class}, allowNull)
}

func newOwnedList(owner *Object, m *Member) *List {
	l := NewList(m.Type.Content, m.NullContentAllowed)
	l.rt = owner.rt
	l.owner = weak.Make(owner)
	l.member = m.Name
	l.owning = m.OwnedObject
	return l
}

func (l *List) Type() Type { return ListType }

// ContentType returns the declared content type.
func (l *List) ContentType() SimpleTypeSpec { return l.content }

// AllowNull reports whether null elements are accepted.
func (l *List) AllowNull() bool { return l.allowNull }

// Owner returns the owning object of an owned list, or nil.
func (l *List) Owner() *Object { return l.owner.Value() }

// OwnerMember returns the member name under which the owner holds the list.
func (l *List) OwnerMember() string { return l.member }

// OwnsContents reports whether the elements belong to the list rather than
// being references.
func (l *List) OwnsContents() bool { return l.owning }

func (l *List) Count() int { return len(l.items) }

// Get returns the element at index i.
func (l *List) Get(i int) (Value, error) {
	if i < 0 || i >= len(l.items) {
		return nil, &BadItemError{Op: "list get", Index: i}
	}
	return l.items[i], nil
}

// ObjectAt returns the element at index i as an object, or nil.
func (l *List) ObjectAt(i int) *Object {
	v, err := l.Get(i)
	if err != nil {
		return nil
	}
	o, _ := v.(*Object)
	return o
}

// Items returns a copy of the elements.
func (l *List) Items() []Value {
	out := make([]Value, len(l.items))
	copy(out, l.items)
	return out
}

// Index returns the position of the first element equal to v, or -1.
func (l *List) Index(v Value) int {
	v = valueOrNull(v)
	for i, item := range l.items {
		if Equal(item, v) {
			return i
		}
	}
	return -1
}

// Contains reports whether an element equal to v is present.
func (l *List) Contains(v Value) bool { return l.Index(v) >= 0 }

// CheckAssignable validates v against the content type without mutating.
func (l *List) CheckAssignable(v Value) error {
	return checkAssignable("list insert", l.content, l.allowNull, valueOrNull(v))
}

func (l *List) tracking() bool {
	return l.global > 0 && l.rt != nil && l.rt.TrackingChanges()
}

func (l *List) marksContents() bool {
	return l.owning && (l.content.Type == AnyType || IsContainerType(l.content.Type))
}

// Append inserts v at the end.
func (l *List) Append(v Value) error { return l.Insert(v, End) }

// Insert inserts v before index, or appends when index is End.
func (l *List) Insert(v Value, index int) error {
	v = valueOrNull(v)
	if index != End && (index < 0 || index > len(l.items)) {
		return &BadItemError{Op: "list insert", Index: index}
	}
	if err := l.CheckAssignable(v); err != nil {
		return err
	}

	if l.tracking() {
		l.rt.undo.AddUndo(&ListInsertAction{List: l, Index: index})
	}
	if v != nil && l.rt != nil {
		v.attach(l.rt)
	}
	if l.global > 0 && v != nil && l.marksContents() {
		v.MarkGlobal()
	}

	if index == End {
		l.items = append(l.items, v)
	} else {
		l.items = append(l.items, nil)
		copy(l.items[index+1:], l.items[index:])
		l.items[index] = v
	}

	if owner := l.Owner(); owner != nil {
		owner.ownedListItemAdded(l, v)
	}
	return nil
}

// Set replaces the element at index.
func (l *List) Set(index int, v Value) error {
	v = valueOrNull(v)
	if index < 0 || index >= len(l.items) {
		return &BadItemError{Op: "list set", Index: index}
	}
	if err := checkAssignable("list set", l.content, l.allowNull, v); err != nil {
		return err
	}

	old := l.items[index]
	if l.tracking() {
		l.rt.undo.AddUndo(&ListSetAction{List: l, Index: index, Value: old})
	}
	if v != nil && l.rt != nil {
		v.attach(l.rt)
	}
	if l.global > 0 && l.marksContents() {
		if old != nil {
			old.UnmarkGlobal()
		}
		if v != nil {
			v.MarkGlobal()
		}
	}
	l.items[index] = v

	if owner := l.Owner(); owner != nil {
		owner.ownedListItemRemoved(l, old)
		owner.ownedListItemAdded(l, v)
	}
	return nil
}

// Remove removes every element equal to v. Removing an absent value is a
// no-op.
func (l *List) Remove(v Value) {
	v = valueOrNull(v)
	for i := len(l.items) - 1; i >= 0; i-- {
		if Equal(l.items[i], v) {
			_ = l.RemoveAt(i)
		}
	}
}

// RemoveAt removes the element at index.
func (l *List) RemoveAt(index int) error {
	if index < 0 || index >= len(l.items) {
		return &BadItemError{Op: "list remove", Index: index}
	}

	old := l.items[index]
	if l.tracking() {
		l.rt.undo.AddUndo(&ListRemoveAction{List: l, Index: index, Value: old})
	}
	if l.global > 0 && old != nil && l.marksContents() {
		old.UnmarkGlobal()
	}
	l.items = append(l.items[:index], l.items[index+1:]...)

	if owner := l.Owner(); owner != nil {
		owner.ownedListItemRemoved(l, old)
	}
	return nil
}

// Reorder moves the element at oi so it ends up at ni. Moving past the end
// appends. Reordering an element onto itself records nothing.
func (l *List) Reorder(oi, ni int) error {
	if oi == ni {
		return nil
	}
	if oi < 0 || oi >= len(l.items) {
		return &BadItemError{Op: "list reorder", Index: oi}
	}
	if ni < 0 {
		return &BadItemError{Op: "list reorder", Index: ni}
	}

	final := ni
	if final > len(l.items)-1 {
		final = len(l.items) - 1
	}
	if oi == final {
		return nil
	}
	if l.tracking() {
		l.rt.undo.AddUndo(&ListReorderAction{List: l, OldIndex: oi, NewIndex: final})
	}

	v := l.items[oi]
	l.items = append(l.items[:oi], l.items[oi+1:]...)
	if ni >= len(l.items) {
		l.items = append(l.items, v)
	} else {
		l.items = append(l.items, nil)
		copy(l.items[ni+1:], l.items[ni:])
		l.items[ni] = v
	}
	return nil
}

// Clear removes all elements, last to first.
func (l *List) Clear() {
	for i := len(l.items) - 1; i >= 0; i-- {
		_ = l.RemoveAt(i)
	}
}

func (l *List) Equals(other Value) bool {
	o, ok := other.(*List)
	return ok && o == l
}

func (l *List) LessThan(other Value) bool {
	if o, ok := other.(*List); ok {
		return l.seq < o.seq
	}
	return Less(l, other)
}

func (l *List) String() string {
	parts := make([]string, len(l.items))
	for i, item := range l.items {
		parts[i] = ToString(item)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (l *List) DebugDescription(indent string) string {
	var b strings.Builder
	b.WriteString("[\n")
	for _, item := range l.items {
		b.WriteString(indent + "  ")
		b.WriteString(debugElement(item, indent+"  ", l.owning))
		b.WriteString("\n")
	}
	b.WriteString(indent + "]")
	return b.String()
}

func (l *List) MarkGlobal() {
	l.global++
	if l.global == 1 && l.marksContents() {
		for _, item := range l.items {
			if item != nil {
				item.MarkGlobal()
			}
		}
	}
}

func (l *List) UnmarkGlobal() {
	if l.global == 0 {
		return
	}
	l.global--
	if l.global == 0 && l.marksContents() {
		for _, item := range l.items {
			if item != nil {
				item.UnmarkGlobal()
			}
		}
	}
}

func (l *List) GlobalCount() int { return l.global }

func (l *List) ResetReferences() {
	if !l.owning {
		return
	}
	for _, item := range l.items {
		if item != nil {
			item.ResetReferences()
		}
	}
}

func (l *List) attach(rt *Runtime) {
	if l.rt != nil || rt == nil {
		return
	}
	l.rt = rt
	for _, item := range l.items {
		if item != nil {
			item.attach(rt)
		}
	}
}

// checkAssignable validates v against a content spec.
func checkAssignable(op string, spec SimpleTypeSpec, allowNull bool, v Value) error {
	if v == nil {
		if !allowNull {
			return &NullValueError{Op: op}
		}
		return nil
	}
	if spec.Type == AnyType {
		return nil
	}
	if v.Type() != spec.Type {
		return NewTypeError(op, spec.String(), v.Type().String())
	}
	if spec.Type == ObjectType && spec.ObjectClass != "" {
		o := v.(*Object)
		if !o.IsInstance(spec.ObjectClass) {
			return NewTypeError(op, spec.ObjectClass, o.ClassName())
		}
	}
	return nil
}

// debugElement renders a container element. Objects that are only
// referenced are rendered by identity to keep cyclic graphs finite.
func debugElement(v Value, indent string, owned bool) string {
	if o, ok := v.(*Object); ok && !owned {
		return o.shortRef()
	}
	return DebugString(v, indent)
}

// describe names the list for undo dumps, joining class and member with sep.
func (l *List) describe(sep string) string {
	if owner := l.Owner(); owner != nil {
		return owner.ClassName() + sep + l.member
	}
	return fmt.Sprintf("<unowned list>%p", l)
}
