package grt

import (
	"strings"
	"weak"
)

// MemberChange is emitted after a member of an object changed.
type MemberChange struct {
	Object *Object
	Member string
	Old    Value
}

// ListChange is emitted after an owned list gained or lost an element.
type ListChange struct {
	List  *List
	Added bool
	Value Value
}

// DictChange is emitted after an owned dict entry was set or removed.
type DictChange struct {
	Dict  *Dict
	Added bool
	Key   string
}

// Object is an instance of a MetaClass. Members are stored in slots laid
// out by the class and accessed by name through the class.
type Object struct {
	id     string
	class  *MetaClass
	rt     *Runtime
	slots  []Value
	global int
	owner  weak.Pointer[Object]

	changed     Signal[MemberChange]
	listChanged Signal[ListChange]
	dictChanged Signal[DictChange]
}

func newObject(mc *MetaClass, id string) *Object {
	if mc == nil {
		panic("grt: object allocated without a metaclass")
	}

	o := &Object{
		id:    id,
		class: mc,
		rt:    mc.rt,
		slots: make([]Value, len(mc.layout)),
	}
	for i, m := range mc.layout {
		if m.Calculated {
			continue
		}
		switch m.Type.Base.Type {
		case IntegerType, DoubleType, StringType:
			o.slots[i] = m.defaultValue()
		case ListType:
			o.slots[i] = newOwnedList(o, m)
		case DictType:
			o.slots[i] = newOwnedDict(o, m)
		}
	}
	if o.rt != nil {
		o.rt.arena.add(o)
	}
	return o
}

// ID returns the GUID of the object.
func (o *Object) ID() string { return o.id }

// Class returns the metaclass of the object.
func (o *Object) Class() *MetaClass { return o.class }

// ClassName returns the name of the object's class.
func (o *Object) ClassName() string { return o.class.Name() }

// Runtime returns the runtime the object's class is registered in.
func (o *Object) Runtime() *Runtime { return o.rt }

// IsInstance reports whether the object's class is, or derives from, class.
func (o *Object) IsInstance(class string) bool { return o.class.IsA(class) }

// Owner returns the structural parent, or nil for roots.
func (o *Object) Owner() *Object { return o.owner.Value() }

// SetOwner sets the structural parent. The owner is held weakly.
func (o *Object) SetOwner(owner *Object) {
	if owner == nil {
		o.owner = weak.Pointer[Object]{}
		return
	}
	o.owner = weak.Make(owner)
}

// Get returns the value of a member.
func (o *Object) Get(member string) (Value, error) {
	return o.class.GetMemberValue(o, member)
}

// Set assigns a member through its property binding.
func (o *Object) Set(member string, v Value) error {
	return o.class.SetMemberValue(o, member, v)
}

// Restore assigns a member without the read-only check. Loaders use it to
// rebuild a stored graph.
func (o *Object) Restore(member string, v Value) error {
	return o.class.setMember(o, member, v, true)
}

// HasMember reports whether the class declares member.
func (o *Object) HasMember(member string) bool { return o.class.HasMember(member) }

// HasMethod reports whether the class declares method.
func (o *Object) HasMethod(method string) bool { return o.class.HasMethod(method) }

// Call invokes a bound method of the object's class.
func (o *Object) Call(method string, args ...Value) (Value, error) {
	return o.class.CallMethod(o, method, args)
}

// StringMember returns a string member, or "" when unset or of another type.
func (o *Object) StringMember(member string) string {
	v, _ := o.Get(member)
	s, _ := v.(String)
	return string(s)
}

// IntegerMember returns an integer member, or 0.
func (o *Object) IntegerMember(member string) int64 {
	v, _ := o.Get(member)
	i, _ := v.(Integer)
	return int64(i)
}

// DoubleMember returns a double member, or 0.
func (o *Object) DoubleMember(member string) float64 {
	v, _ := o.Get(member)
	d, _ := v.(Double)
	return float64(d)
}

// ObjectMember returns an object member, or nil.
func (o *Object) ObjectMember(member string) *Object {
	v, _ := o.Get(member)
	obj, _ := v.(*Object)
	return obj
}

// ListMember returns a list member, or nil.
func (o *Object) ListMember(member string) *List {
	v, _ := o.Get(member)
	l, _ := v.(*List)
	return l
}

// DictMember returns a dict member, or nil.
func (o *Object) DictMember(member string) *Dict {
	v, _ := o.Get(member)
	d, _ := v.(*Dict)
	return d
}

// Changed is emitted with the old value after a member changes.
func (o *Object) Changed() *Signal[MemberChange] { return &o.changed }

// ListChanged is emitted after an owned list member changes.
func (o *Object) ListChanged() *Signal[ListChange] { return &o.listChanged }

// DictChanged is emitted after an owned dict member changes.
func (o *Object) DictChanged() *Signal[DictChange] { return &o.dictChanged }

func (o *Object) tracking() bool {
	return o.global > 0 && o.rt != nil && o.rt.TrackingChanges()
}

// MemberChanged records an undo action for a tracked object and notifies
// observers. Property setters call it after storing the new value.
func (o *Object) MemberChanged(member string, old Value) {
	if o.tracking() {
		o.rt.undo.AddUndo(&ObjectChangeAction{Object: o, Member: member, Value: old})
	}
	o.changed.Emit(MemberChange{Object: o, Member: member, Old: old})
}

// OwnedMemberChanged is MemberChanged for members that own their value.
// The global mark moves from the old value to the new one.
func (o *Object) OwnedMemberChanged(member string, old, nv Value) {
	old, nv = valueOrNull(old), valueOrNull(nv)
	if nv != nil && o.rt != nil {
		nv.attach(o.rt)
	}
	if o.global > 0 && old != nv {
		if old != nil {
			old.UnmarkGlobal()
		}
		if nv != nil {
			nv.MarkGlobal()
		}
	}
	if child, ok := nv.(*Object); ok && child.Owner() == nil {
		child.SetOwner(o)
	}
	o.MemberChanged(member, old)
}

func (o *Object) ownedListItemAdded(l *List, v Value) {
	if child, ok := v.(*Object); ok && l.owning && child.Owner() == nil {
		child.SetOwner(o)
	}
	o.listChanged.Emit(ListChange{List: l, Added: true, Value: v})
}

func (o *Object) ownedListItemRemoved(l *List, v Value) {
	o.listChanged.Emit(ListChange{List: l, Added: false, Value: v})
}

func (o *Object) ownedDictItemSet(d *Dict, key string) {
	o.dictChanged.Emit(DictChange{Dict: d, Added: true, Key: key})
}

func (o *Object) ownedDictItemRemoved(d *Dict, key string) {
	o.dictChanged.Emit(DictChange{Dict: d, Added: false, Key: key})
}

func (o *Object) Type() Type { return ObjectType }

// Equals is identity.
func (o *Object) Equals(other Value) bool {
	x, ok := other.(*Object)
	return ok && x == o
}

// LessThan orders objects by id.
func (o *Object) LessThan(other Value) bool {
	if x, ok := other.(*Object); ok {
		return o.id < x.id
	}
	return Less(o, other)
}

func (o *Object) String() string {
	var b strings.Builder
	b.WriteString("{<" + o.ClassName() + "> (" + o.id + ")\n")
	for i, m := range o.class.layout {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.Name + " = ")
		v := o.memberAt(i)
		if child, ok := v.(*Object); ok {
			b.WriteString(child.shortRef())
			continue
		}
		if v == nil && m.Type.Base.Type == ObjectType {
			b.WriteString("null")
			continue
		}
		b.WriteString(ToString(v))
	}
	b.WriteString("}")
	return b.String()
}

func (o *Object) DebugDescription(indent string) string {
	var b strings.Builder
	b.WriteString("{<" + o.ClassName() + "> (" + o.id + ")\n")
	for i, m := range o.class.layout {
		v := o.memberAt(i)
		b.WriteString(indent + "  " + m.Name + " = ")
		if m.Type.Base.Type == ObjectType && !m.OwnedObject {
			if child, ok := v.(*Object); ok {
				b.WriteString(child.shortRef())
			} else {
				b.WriteString("null")
			}
		} else {
			b.WriteString(DebugString(v, indent+"  "))
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "}")
	return b.String()
}

// shortRef renders an object by name, class and id.
func (o *Object) shortRef() string {
	if o.class.HasMember("name") {
		return o.StringMember("name") + ": " + o.ClassName() + "  (" + o.id + ")"
	}
	return o.ClassName() + " (" + o.id + ")"
}

// memberAt reads a slot through its property so calculated members render.
func (o *Object) memberAt(i int) Value {
	if p := o.class.props[i]; p.Get != nil {
		return p.Get(o)
	}
	return o.slots[i]
}

// MarkGlobal increments the global count. The first mark propagates along
// ownership edges: owned object members and list/dict members.
func (o *Object) MarkGlobal() {
	o.global++
	if o.global == 1 {
		o.forEachOwnedValue(func(v Value) { v.MarkGlobal() })
	}
}

// UnmarkGlobal reverses MarkGlobal.
func (o *Object) UnmarkGlobal() {
	if o.global == 0 {
		return
	}
	o.global--
	if o.global == 0 {
		o.forEachOwnedValue(func(v Value) { v.UnmarkGlobal() })
	}
}

func (o *Object) GlobalCount() int { return o.global }

func (o *Object) forEachOwnedValue(fn func(Value)) {
	for i, m := range o.class.layout {
		if m.Calculated {
			continue
		}
		v := o.slots[i]
		if v == nil {
			continue
		}
		switch m.Type.Base.Type {
		case ListType, DictType:
			fn(v)
		case ObjectType:
			if m.OwnedObject {
				fn(v)
			}
		}
	}
}

// ResetReferences clears every container and object member, recursing
// into owned values, and disconnects all observers. No undo is recorded.
func (o *Object) ResetReferences() {
	for i, m := range o.class.layout {
		if m.Calculated || IsSimpleType(m.Type.Base.Type) {
			continue
		}
		v := o.slots[i]
		if v == nil {
			continue
		}
		if m.OwnedObject || m.Type.Base.Type != ObjectType {
			v.ResetReferences()
		}
		o.slots[i] = nil
	}
	o.changed.DisconnectAll()
	o.listChanged.DisconnectAll()
	o.dictChanged.DisconnectAll()
}

func (o *Object) attach(*Runtime) {}
