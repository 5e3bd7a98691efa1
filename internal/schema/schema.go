// Package schema loads class descriptors and registers them as metaclasses.
// Descriptors are YAML documents or XML gstruct files; both decode into
// the same ClassDef shape.
package schema

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// Descriptor is one parsed schema file.
type Descriptor struct {
	// File is the path the descriptor was read from
	File    string     `yaml:"-"`
	Classes []ClassDef `yaml:"classes"`
}

// ClassDef describes a class.
type ClassDef struct {
	Name       string            `yaml:"name"`
	Parent     string            `yaml:"parent,omitempty"`
	Abstract   bool              `yaml:"abstract,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Members    []MemberDef       `yaml:"members,omitempty"`
	Methods    []MethodDef       `yaml:"methods,omitempty"`
	Signals    []SignalDef       `yaml:"signals,omitempty"`
}

// MemberDef describes a member. Type uses the notation of ParseTypeSpec.
type MemberDef struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Default     string            `yaml:"default,omitempty"`
	ReadOnly    bool              `yaml:"readonly,omitempty"`
	Private     bool              `yaml:"private,omitempty"`
	Calculated  bool              `yaml:"calculated,omitempty"`
	Owned       bool              `yaml:"owned,omitempty"`
	Overrides   bool              `yaml:"overrides,omitempty"`
	AllowNull   bool              `yaml:"allow_null,omitempty"`
	DelegateGet bool              `yaml:"delegate_get,omitempty"`
	DelegateSet bool              `yaml:"delegate_set,omitempty"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
}

// MethodDef describes a method. Script names a Starlark function as
// "file.star:function" that implements the method.
type MethodDef struct {
	Name        string            `yaml:"name"`
	Doc         string            `yaml:"doc,omitempty"`
	Args        []ArgDef          `yaml:"args,omitempty"`
	Returns     string            `yaml:"returns,omitempty"`
	Constructor bool              `yaml:"constructor,omitempty"`
	Abstract    bool              `yaml:"abstract,omitempty"`
	Script      string            `yaml:"script,omitempty"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
}

// ArgDef describes a method or signal argument.
type ArgDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// SignalDef describes a signal.
type SignalDef struct {
	Name string   `yaml:"name"`
	Args []ArgDef `yaml:"args,omitempty"`
}

// ScriptAttribute is the method attribute that carries a script binding.
const ScriptAttribute = "script"

// LoadError represents an error loading a schema file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("schema/%s: %s", filepath.Base(e.File), e.Message)
}

// Build converts the descriptor into unregistered metaclasses. Suspicious
// but accepted definitions are reported on logger.
func (d *Descriptor) Build(logger *slog.Logger) ([]*grt.MetaClass, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	out := make([]*grt.MetaClass, 0, len(d.Classes))
	for i := range d.Classes {
		mc, err := d.buildClass(&d.Classes[i], logger)
		if err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, nil
}

func (d *Descriptor) buildClass(def *ClassDef, logger *slog.Logger) (*grt.MetaClass, error) {
	if def.Name == "" {
		return nil, &LoadError{File: d.File, Message: "class without a name"}
	}

	mc := grt.NewMetaClass(def.Name, def.Parent)
	mc.SetSource(d.File)
	mc.SetAbstract(def.Abstract)
	for _, k := range sortedKeys(def.Attributes) {
		mc.SetAttribute(k, def.Attributes[k])
	}

	for _, md := range def.Members {
		m, err := d.buildMember(def.Name, md, logger)
		if err != nil {
			return nil, err
		}
		if err := mc.AddMember(m); err != nil {
			return nil, &LoadError{File: d.File, Message: err.Error()}
		}
		for _, k := range sortedKeys(md.Attributes) {
			mc.SetMemberAttribute(md.Name, k, md.Attributes[k])
		}
	}

	for _, meth := range def.Methods {
		m, err := d.buildMethod(mc.Name(), meth, logger)
		if err != nil {
			return nil, err
		}
		if err := mc.AddMethod(m); err != nil {
			return nil, &LoadError{File: d.File, Message: err.Error()}
		}
		for _, k := range sortedKeys(meth.Attributes) {
			mc.SetMemberAttribute(meth.Name, k, meth.Attributes[k])
		}
		if meth.Script != "" {
			mc.SetMemberAttribute(meth.Name, ScriptAttribute, meth.Script)
		}
	}

	for _, sd := range def.Signals {
		sig := grt.SignalSpec{Name: sd.Name}
		for _, a := range sd.Args {
			spec, err := ParseTypeSpec(a.Type)
			if err != nil {
				return nil, d.typeError(def.Name, sd.Name+":"+a.Name, err)
			}
			sig.Args = append(sig.Args, grt.SignalArg{Name: a.Name, Type: spec.Base.Type, ObjectClass: spec.Base.ObjectClass})
		}
		mc.AddSignal(sig)
	}
	return mc, nil
}

func (d *Descriptor) buildMember(class string, md MemberDef, logger *slog.Logger) (grt.Member, error) {
	if md.Name == "" {
		return grt.Member{}, &LoadError{File: d.File, Message: fmt.Sprintf("%s: member without a name", class)}
	}
	spec, err := ParseTypeSpec(md.Type)
	if err != nil {
		return grt.Member{}, d.typeError(class, md.Name, err)
	}
	if spec.Base.Type == grt.ObjectType && spec.Base.ObjectClass == "" {
		return grt.Member{}, d.typeError(class, md.Name, fmt.Errorf("object member without a class"))
	}

	m := grt.Member{
		Name:               md.Name,
		Type:               spec,
		DefaultValue:       md.Default,
		ReadOnly:           md.ReadOnly,
		Private:            md.Private,
		Calculated:         md.Calculated,
		OwnedObject:        md.Owned,
		Overrides:          md.Overrides,
		NullContentAllowed: md.AllowNull,
		DelegateGet:        md.DelegateGet || md.Calculated,
		DelegateSet:        md.DelegateSet,
	}
	if err := m.CheckDefault(); err != nil {
		return grt.Member{}, &LoadError{File: d.File, Message: fmt.Sprintf("%s::%s: invalid default %q for %s", class, md.Name, md.Default, md.Type)}
	}

	log := logger.With("file", d.File, "member", class+"::"+md.Name)
	if m.OwnedObject && !grt.IsContainerType(spec.Base.Type) {
		log.Warn("member marked as owned, but is not an object or container")
	}
	if m.Calculated && m.Private {
		log.Warn("member marked as private and calculated")
	}
	if m.Calculated && m.OwnedObject {
		log.Warn("member marked as owned and calculated")
	}
	// list and dict members are replaced through their contents only
	if spec.Base.Type == grt.ListType || spec.Base.Type == grt.DictType {
		m.ReadOnly = true
	}
	return m, nil
}

func (d *Descriptor) buildMethod(class string, def MethodDef, logger *slog.Logger) (grt.Method, error) {
	m := grt.Method{
		Name:        def.Name,
		Doc:         def.Doc,
		Constructor: def.Constructor,
		Abstract:    def.Abstract,
	}
	if def.Constructor && def.Abstract {
		logger.Warn("method cannot be both abstract and constructor", "file", d.File, "method", class+"::"+def.Name)
	}

	for _, a := range def.Args {
		spec, err := ParseTypeSpec(a.Type)
		if err != nil {
			return grt.Method{}, d.typeError(class, def.Name+":"+a.Name, err)
		}
		m.Args = append(m.Args, grt.ArgSpec{Name: a.Name, Type: spec})
	}
	if def.Returns != "" {
		spec, err := ParseTypeSpec(def.Returns)
		if err != nil {
			return grt.Method{}, d.typeError(class, def.Name+":return", err)
		}
		m.Returns = spec
	}
	return m, nil
}

func (d *Descriptor) typeError(class, what string, err error) error {
	return &LoadError{File: d.File, Message: fmt.Sprintf("%s::%s: invalid type specification: %v", class, what, err)}
}

// Register builds every descriptor and registers the classes with rt.
// It does not end registration, so further classes can still be added.
func Register(rt *grt.Runtime, descs []*Descriptor) error {
	for _, d := range descs {
		classes, err := d.Build(rt.Logger())
		if err != nil {
			return err
		}
		for _, mc := range classes {
			if err := rt.RegisterClass(mc); err != nil {
				return &LoadError{File: d.File, Message: err.Error()}
			}
		}
		rt.Logger().Debug("registered schema", "file", d.File, "classes", len(classes))
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
