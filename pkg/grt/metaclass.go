package grt

import (
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"strings"
)

// Member describes a member of a class.
type Member struct {
	Name string
	Type TypeSpec

	ReadOnly    bool
	DelegateGet bool
	DelegateSet bool
	Private     bool
	// Calculated members have no storage; they are served by a bound Property.
	Calculated bool
	// OwnedObject members own their value: it is marked global with the
	// owner and copied deeply.
	OwnedObject        bool
	Overrides          bool
	NullContentAllowed bool
	DefaultValue       string
}

func (m *Member) defaultValue() Value {
	switch m.Type.Base.Type {
	case IntegerType:
		i, _ := strconv.ParseInt(m.DefaultValue, 10, 64)
		return Integer(i)
	case DoubleType:
		d, _ := strconv.ParseFloat(m.DefaultValue, 64)
		return Double(d)
	case StringType:
		return String(m.DefaultValue)
	}
	return nil
}

// CheckDefault reports a default that does not parse as the member type.
// An empty default is the zero value.
func (m *Member) CheckDefault() error {
	if m.DefaultValue == "" {
		return nil
	}
	var err error
	switch m.Type.Base.Type {
	case IntegerType:
		_, err = strconv.ParseInt(m.DefaultValue, 10, 64)
	case DoubleType:
		_, err = strconv.ParseFloat(m.DefaultValue, 64)
	}
	return err
}

// ArgSpec describes a method argument.
type ArgSpec struct {
	Name string
	Type TypeSpec
}

// MethodFunc implements a method. Arguments are positional.
type MethodFunc func(o *Object, args []Value) (Value, error)

// Method describes a method of a class.
type Method struct {
	Name        string
	Doc         string
	Args        []ArgSpec
	Returns     TypeSpec
	Constructor bool
	Abstract    bool
	Call        MethodFunc
}

// SignalArg describes an argument of a signal.
type SignalArg struct {
	Name        string
	Type        Type
	ObjectClass string
}

// SignalSpec describes a signal declared by a class.
type SignalSpec struct {
	Name string
	Args []SignalArg
}

// Property binds a member to accessor functions. A nil Get or Set falls
// back to slot storage.
type Property struct {
	Get func(o *Object) Value
	Set func(o *Object, v Value)
}

// Allocator initializes a freshly allocated object.
type Allocator func(o *Object) error

// Validator checks an object; tag selects the kind of validation.
type Validator func(o *Object, tag string) error

// MetaClass is the reflective descriptor of a class.
type MetaClass struct {
	name       string
	parentName string
	parent     *MetaClass
	rt         *Runtime
	source     string

	placeholder bool
	abstract    bool
	resolved    bool

	members     map[string]*Member
	memberOrder []string
	methods     map[string]*Method
	methodOrder []string
	signals     []SignalSpec
	attributes  map[string]string

	allocator  Allocator
	validators []Validator
	bindings   map[string]Property

	// Flattened member layout, base members first. An overriding member
	// replaces its base member in place.
	layout []*Member
	index  map[string]int
	props  []Property
	crc    uint32
}

// NewMetaClass creates an unregistered class.
func NewMetaClass(name, parent string) *MetaClass {
	return &MetaClass{
		name:       name,
		parentName: parent,
		members:    make(map[string]*Member),
		methods:    make(map[string]*Method),
		attributes: make(map[string]string),
		bindings:   make(map[string]Property),
	}
}

func newPlaceholder(name string) *MetaClass {
	mc := NewMetaClass(name, "")
	mc.placeholder = true
	return mc
}

// Name returns the class name.
func (mc *MetaClass) Name() string { return mc.name }

// ParentName returns the declared parent class name.
func (mc *MetaClass) ParentName() string { return mc.parentName }

// Parent returns the resolved parent class.
func (mc *MetaClass) Parent() *MetaClass { return mc.parent }

// Source returns where the class was loaded from.
func (mc *MetaClass) Source() string { return mc.source }

// SetSource records where the class was loaded from.
func (mc *MetaClass) SetSource(source string) { mc.source = source }

// IsAbstract reports whether the class cannot be instantiated.
func (mc *MetaClass) IsAbstract() bool { return mc.abstract }

// SetAbstract marks the class abstract.
func (mc *MetaClass) SetAbstract(abstract bool) { mc.abstract = abstract }

// IsPlaceholder reports whether the class was only referenced as a parent.
func (mc *MetaClass) IsPlaceholder() bool { return mc.placeholder }

// Checksum returns the CRC-32 of the class definition.
func (mc *MetaClass) Checksum() uint32 { return mc.crc }

// AddMember declares a member. List and dict members are always read-only.
func (mc *MetaClass) AddMember(m Member) error {
	if m.Name == "" {
		return NewLogicError("add member", "class %s: member without name", mc.name)
	}
	if _, exists := mc.members[m.Name]; exists {
		return NewLogicError("add member", "class %s: duplicate member %s", mc.name, m.Name)
	}
	if err := m.CheckDefault(); err != nil {
		return NewLogicError("add member", "class %s: member %s: invalid default %q", mc.name, m.Name, m.DefaultValue)
	}
	if m.Type.Base.Type == ListType || m.Type.Base.Type == DictType {
		m.ReadOnly = true
	}
	mc.members[m.Name] = &m
	mc.memberOrder = append(mc.memberOrder, m.Name)
	return nil
}

// AddMethod declares a method.
func (mc *MetaClass) AddMethod(m Method) error {
	if m.Name == "" {
		return NewLogicError("add method", "class %s: method without name", mc.name)
	}
	if _, exists := mc.methods[m.Name]; exists {
		return NewLogicError("add method", "class %s: duplicate method %s", mc.name, m.Name)
	}
	mc.methods[m.Name] = &m
	mc.methodOrder = append(mc.methodOrder, m.Name)
	return nil
}

// AddSignal declares a signal.
func (mc *MetaClass) AddSignal(s SignalSpec) { mc.signals = append(mc.signals, s) }

// SetAttribute sets a class attribute. Member attributes use the key
// "member:attr".
func (mc *MetaClass) SetAttribute(key, value string) { mc.attributes[key] = value }

// SetMemberAttribute sets attr on member.
func (mc *MetaClass) SetMemberAttribute(member, attr, value string) {
	mc.attributes[member+":"+attr] = value
}

// Attribute returns a class attribute, searching parent classes.
func (mc *MetaClass) Attribute(key string) string {
	for c := mc; c != nil; c = c.parent {
		if v, ok := c.attributes[key]; ok {
			return v
		}
	}
	return ""
}

// MemberAttribute returns attr of member.
func (mc *MetaClass) MemberAttribute(member, attr string, searchParents bool) string {
	key := member + ":" + attr
	if !searchParents {
		return mc.attributes[key]
	}
	return mc.Attribute(key)
}

// Attributes returns the class's own attributes.
func (mc *MetaClass) Attributes() map[string]string {
	out := make(map[string]string, len(mc.attributes))
	for k, v := range mc.attributes {
		out[k] = v
	}
	return out
}

// IsA reports whether the class is name or derives from it.
func (mc *MetaClass) IsA(name string) bool {
	for c := mc; c != nil; c = c.parentClass() {
		if c.name == name {
			return true
		}
	}
	return false
}

// parentClass resolves the parent before registration is finished.
func (mc *MetaClass) parentClass() *MetaClass {
	if mc.parent != nil || mc.parentName == "" || mc.rt == nil {
		return mc.parent
	}
	return mc.rt.Class(mc.parentName)
}

// HasMember reports whether the class or a parent declares member.
func (mc *MetaClass) HasMember(name string) bool { return mc.Member(name) != nil }

// Member returns the most derived declaration of a member.
func (mc *MetaClass) Member(name string) *Member {
	for c := mc; c != nil; c = c.parentClass() {
		if m, ok := c.members[name]; ok {
			return m
		}
	}
	return nil
}

// Members returns the members declared by this class, in declaration order.
func (mc *MetaClass) Members() []*Member {
	out := make([]*Member, len(mc.memberOrder))
	for i, n := range mc.memberOrder {
		out[i] = mc.members[n]
	}
	return out
}

// Layout returns every member in slot order, base members first.
func (mc *MetaClass) Layout() []*Member { return append([]*Member(nil), mc.layout...) }

// ForEachMember visits every member once, most derived class first.
// It returns false if fn stopped the iteration.
func (mc *MetaClass) ForEachMember(fn func(*Member) bool) bool {
	seen := make(map[string]bool)
	for c := mc; c != nil; c = c.parentClass() {
		for _, n := range c.memberOrder {
			if seen[n] {
				continue
			}
			seen[n] = true
			if !fn(c.members[n]) {
				return false
			}
		}
	}
	return true
}

// HasMethod reports whether the class or a parent declares method.
func (mc *MetaClass) HasMethod(name string) bool { return mc.Method(name) != nil }

// Method returns the most derived declaration of a method.
func (mc *MetaClass) Method(name string) *Method {
	for c := mc; c != nil; c = c.parentClass() {
		if m, ok := c.methods[name]; ok {
			return m
		}
	}
	return nil
}

// Methods returns the methods declared by this class.
func (mc *MetaClass) Methods() []*Method {
	out := make([]*Method, len(mc.methodOrder))
	for i, n := range mc.methodOrder {
		out[i] = mc.methods[n]
	}
	return out
}

// ForEachMethod visits every method once, most derived class first.
func (mc *MetaClass) ForEachMethod(fn func(*Method) bool) bool {
	seen := make(map[string]bool)
	for c := mc; c != nil; c = c.parentClass() {
		for _, n := range c.methodOrder {
			if seen[n] {
				continue
			}
			seen[n] = true
			if !fn(c.methods[n]) {
				return false
			}
		}
	}
	return true
}

// ForEachSignal visits the signals of the class and its parents.
func (mc *MetaClass) ForEachSignal(fn func(SignalSpec) bool) bool {
	for c := mc; c != nil; c = c.parentClass() {
		for _, s := range c.signals {
			if !fn(s) {
				return false
			}
		}
	}
	return true
}

// BindAllocator installs the initializer run for every new instance.
func (mc *MetaClass) BindAllocator(fn Allocator) { mc.allocator = fn }

// BindMember overrides the accessors of a member.
func (mc *MetaClass) BindMember(name string, p Property) error {
	if _, ok := mc.members[name]; !ok {
		return NewLogicError("bind member", "%s has no member %s", mc.name, name)
	}
	mc.bindings[name] = p
	if mc.resolved && mc.rt != nil {
		mc.rt.rebuildProperties()
	}
	return nil
}

// BindMethod installs the implementation of a declared method.
func (mc *MetaClass) BindMethod(name string, fn MethodFunc) error {
	m, ok := mc.methods[name]
	if !ok {
		return NewLogicError("bind method", "%s has no method %s", mc.name, name)
	}
	m.Call = fn
	return nil
}

// AddValidator registers a validator for instances of this class and its
// subclasses.
func (mc *MetaClass) AddValidator(v Validator) { mc.validators = append(mc.validators, v) }

// RunValidators runs the validators of the class chain, base first.
func (mc *MetaClass) RunValidators(o *Object, tag string) error {
	var chain []*MetaClass
	for c := mc; c != nil; c = c.parent {
		chain = append([]*MetaClass{c}, chain...)
	}
	var errs []error
	for _, c := range chain {
		for _, v := range c.validators {
			if err := v(o, tag); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Create allocates a new instance with a fresh GUID.
func (mc *MetaClass) Create() (*Object, error) {
	return mc.CreateWithID(NewGUID())
}

// CreateWithID allocates an instance with a given GUID. Loaders use it to
// keep identities stable across a round-trip.
func (mc *MetaClass) CreateWithID(id string) (*Object, error) {
	switch {
	case mc.placeholder:
		return nil, NewLogicError("create", "class %s was referenced but never defined", mc.name)
	case !mc.resolved:
		return nil, NewLogicError("create", "class %s is not registered", mc.name)
	case mc.abstract:
		return nil, NewLogicError("create", "class %s is abstract", mc.name)
	}

	o := newObject(mc, id)
	var chain []*MetaClass
	for c := mc; c != nil; c = c.parent {
		chain = append([]*MetaClass{c}, chain...)
	}
	for _, c := range chain {
		if c.allocator == nil {
			continue
		}
		if err := c.allocator(o); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", mc.name, err)
		}
	}
	return o, nil
}

// MemberIndex returns the slot index of member, or -1.
func (mc *MetaClass) MemberIndex(name string) int {
	if i, ok := mc.index[name]; ok {
		return i
	}
	return -1
}

// GetMemberValue reads a member of o.
func (mc *MetaClass) GetMemberValue(o *Object, name string) (Value, error) {
	i, ok := mc.index[name]
	if !ok {
		return nil, NewLogicError("get member", "%s has no member %s", mc.name, name)
	}
	return mc.GetMemberAt(o, i), nil
}

// GetMemberAt reads the member in slot i.
func (mc *MetaClass) GetMemberAt(o *Object, i int) Value {
	if p := mc.props[i]; p.Get != nil {
		return p.Get(o)
	}
	return o.slots[i]
}

// SetMemberValue assigns a member of o. Read-only members are rejected.
func (mc *MetaClass) SetMemberValue(o *Object, name string, v Value) error {
	return mc.setMember(o, name, v, false)
}

// SetMemberAt assigns the member in slot i.
func (mc *MetaClass) SetMemberAt(o *Object, i int, v Value) error {
	if i < 0 || i >= len(mc.layout) {
		return &BadItemError{Op: "set member", Index: i}
	}
	return mc.setMemberAt(o, i, v, false)
}

func (mc *MetaClass) setMember(o *Object, name string, v Value, force bool) error {
	i, ok := mc.index[name]
	if !ok {
		return NewLogicError("set member", "%s has no member %s", mc.name, name)
	}
	return mc.setMemberAt(o, i, v, force)
}

func (mc *MetaClass) setMemberAt(o *Object, i int, v Value, force bool) error {
	m := mc.layout[i]
	if m.ReadOnly && !force {
		return &ReadOnlyError{Class: mc.name, Member: m.Name}
	}
	v = valueOrNull(v)
	if err := checkMemberValue(mc.name, m, v); err != nil {
		return err
	}

	p := mc.props[i]
	if p.Set == nil {
		return NewLogicError("set member", "%s::%s has no setter", mc.name, m.Name)
	}
	p.Set(o, v)
	return nil
}

func checkMemberValue(class string, m *Member, v Value) error {
	op := "set " + class + "::" + m.Name
	base := m.Type.Base
	switch base.Type {
	case AnyType:
		return nil
	case ObjectType, ListType, DictType:
		return checkAssignable(op, base, true, v)
	default:
		return checkAssignable(op, base, false, v)
	}
}

// CallMethod invokes method on o with positional arguments.
func (mc *MetaClass) CallMethod(o *Object, name string, args []Value) (Value, error) {
	decl := mc.Method(name)
	if decl == nil {
		return nil, NewLogicError("call", "%s has no method %s", mc.name, name)
	}

	var fn MethodFunc
	for c := mc; c != nil && fn == nil; c = c.parentClass() {
		if m, ok := c.methods[name]; ok {
			fn = m.Call
		}
	}
	if fn == nil {
		return nil, NewLogicError("call", "%s::%s is not implemented", mc.name, name)
	}
	if len(args) != len(decl.Args) {
		return nil, NewTypeError("call "+mc.name+"::"+name,
			fmt.Sprintf("%d arguments", len(decl.Args)), fmt.Sprintf("%d", len(args)))
	}
	for i, a := range decl.Args {
		if a.Type.Base.Type == AnyType {
			continue
		}
		if err := checkAssignable("call "+mc.name+"::"+name+" argument "+a.Name, a.Type.Base, true, valueOrNull(args[i])); err != nil {
			return nil, err
		}
	}
	return fn(o, args)
}

// resolve computes the slot layout from the parent layout and validates
// overriding members. Parents must be resolved first.
func (mc *MetaClass) resolve() error {
	var layout []*Member
	index := make(map[string]int)
	if mc.parent != nil {
		layout = append(layout, mc.parent.layout...)
		for k, v := range mc.parent.index {
			index[k] = v
		}
	}

	for _, n := range mc.memberOrder {
		m := mc.members[n]
		if err := mc.checkMemberClass(m); err != nil {
			return err
		}
		if i, ok := index[n]; ok {
			if err := mc.checkOverride(layout[i], m); err != nil {
				return err
			}
			m.Overrides = true
			layout[i] = m
			continue
		}
		index[n] = len(layout)
		layout = append(layout, m)
	}

	mc.layout = layout
	mc.index = index
	mc.resolved = true
	mc.buildProperties()
	mc.crc = mc.computeChecksum()
	return nil
}

func (mc *MetaClass) checkMemberClass(m *Member) error {
	for _, spec := range []SimpleTypeSpec{m.Type.Base, m.Type.Content} {
		if spec.Type != ObjectType || spec.ObjectClass == "" {
			continue
		}
		if c := mc.rt.Class(spec.ObjectClass); c == nil || c.placeholder {
			return NewLogicError("register", "%s::%s refers to unknown class %s", mc.name, m.Name, spec.ObjectClass)
		}
	}
	return nil
}

func (mc *MetaClass) checkOverride(base, m *Member) error {
	if base.Type.Base.Type != m.Type.Base.Type {
		return NewTypeError("override "+mc.name+"::"+m.Name, base.Type.String(), m.Type.String())
	}
	compatible := func(b, d SimpleTypeSpec) bool {
		if b.Type != d.Type {
			return false
		}
		if b.Type != ObjectType || b.ObjectClass == "" || b.ObjectClass == d.ObjectClass {
			return true
		}
		c := mc.rt.Class(d.ObjectClass)
		return c != nil && c.IsA(b.ObjectClass)
	}
	if !compatible(base.Type.Base, m.Type.Base) {
		return NewTypeError("override "+mc.name+"::"+m.Name, base.Type.String(), m.Type.String())
	}
	if (m.Type.Base.Type == ListType || m.Type.Base.Type == DictType) && !compatible(base.Type.Content, m.Type.Content) {
		return NewTypeError("override "+mc.name+"::"+m.Name, base.Type.String(), m.Type.String())
	}
	return nil
}

func (mc *MetaClass) buildProperties() {
	mc.props = make([]Property, len(mc.layout))
	for i, m := range mc.layout {
		p := mc.bindingFor(m.Name)
		if p.Get == nil && !m.Calculated {
			p.Get = slotGetter(i)
		}
		if p.Set == nil && !m.Calculated {
			p.Set = slotSetter(i, m)
		}
		mc.props[i] = p
	}
}

func (mc *MetaClass) bindingFor(name string) Property {
	var p Property
	for c := mc; c != nil; c = c.parent {
		b, ok := c.bindings[name]
		if !ok {
			continue
		}
		if p.Get == nil {
			p.Get = b.Get
		}
		if p.Set == nil {
			p.Set = b.Set
		}
	}
	return p
}

func slotGetter(i int) func(*Object) Value {
	return func(o *Object) Value { return o.slots[i] }
}

func slotSetter(i int, m *Member) func(*Object, Value) {
	name, owned := m.Name, m.OwnedObject
	return func(o *Object, v Value) {
		old := o.slots[i]
		o.slots[i] = v
		if owned {
			o.OwnedMemberChanged(name, old, v)
		} else {
			o.MemberChanged(name, old)
		}
	}
}

func (mc *MetaClass) computeChecksum() uint32 {
	lines := []string{mc.name + " : " + mc.parentName}
	for _, n := range mc.memberOrder {
		m := mc.members[n]
		lines = append(lines, fmt.Sprintf("member %s %s ro=%t owned=%t calc=%t",
			m.Name, m.Type, m.ReadOnly, m.OwnedObject, m.Calculated))
	}
	for _, n := range mc.methodOrder {
		m := mc.methods[n]
		args := make([]string, len(m.Args))
		for i, a := range m.Args {
			args[i] = a.Name + " " + a.Type.String()
		}
		lines = append(lines, fmt.Sprintf("method %s %s (%s)", m.Name, m.Returns, strings.Join(args, ", ")))
	}
	for _, s := range mc.signals {
		lines = append(lines, "signal "+s.Name)
	}
	sort.Strings(lines)
	return crc32.ChecksumIEEE([]byte(strings.Join(lines, "\n")))
}
