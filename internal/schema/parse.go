package schema

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AttributeNamespace is the XML namespace of free-form class, member and
// method attributes. The bare prefix "attr" is accepted as well.
const AttributeNamespace = "http://www.mysql.com/grt/struct-attribute"

// Parse decodes a descriptor, choosing the format from the file extension.
func Parse(file string, data []byte) (*Descriptor, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return ParseYAML(file, data)
	case ".xml":
		return ParseXML(file, data)
	}
	return nil, &LoadError{File: file, Message: "unsupported descriptor format"}
}

// ParseYAML decodes a YAML descriptor. Unknown fields are rejected.
func ParseYAML(file string, data []byte) (*Descriptor, error) {
	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}
	d.File = file
	return &d, nil
}

type xmlStructs struct {
	XMLName xml.Name    `xml:"gstructs"`
	Structs []xmlStruct `xml:"gstruct"`
}

type xmlStruct struct {
	Name     string     `xml:"name,attr"`
	Parent   string     `xml:"parent,attr"`
	Abstract string     `xml:"abstract,attr"`
	Attrs    []xml.Attr `xml:",any,attr"`
	Members  xmlMembers `xml:"members"`
}

type xmlMembers struct {
	Members      []xmlMember `xml:"member"`
	Methods      []xmlMethod `xml:"method"`
	Constructors []xmlMethod `xml:"constructor"`
	Signals      []xmlSignal `xml:"signal"`
}

type xmlTyped struct {
	Type              string `xml:"type,attr"`
	StructName        string `xml:"struct-name,attr"`
	ContentType       string `xml:"content-type,attr"`
	ContentStructName string `xml:"content-struct-name,attr"`
}

// spec renders the XML type attributes in ParseTypeSpec notation.
func (t xmlTyped) spec() string {
	switch t.Type {
	case "object":
		if t.StructName == "" {
			return "object"
		}
		return "object<" + t.StructName + ">"
	case "list", "dict":
		content := t.ContentType
		if content == "object" && t.ContentStructName != "" {
			content = "object<" + t.ContentStructName + ">"
		}
		if content == "" {
			return t.Type
		}
		return t.Type + "<" + content + ">"
	}
	return t.Type
}

type xmlMember struct {
	Name string `xml:"name,attr"`
	xmlTyped
	Default     string     `xml:"default,attr"`
	ReadOnly    string     `xml:"read-only,attr"`
	Private     string     `xml:"private,attr"`
	DelegateGet string     `xml:"delegate-get,attr"`
	DelegateSet string     `xml:"delegate-set,attr"`
	Calculated  string     `xml:"calculated,attr"`
	Owned       string     `xml:"owned,attr"`
	Overrides   string     `xml:"overrides,attr"`
	AllowNull   string     `xml:"allow-null,attr"`
	Attrs       []xml.Attr `xml:",any,attr"`
}

type xmlMethod struct {
	Name        string        `xml:"name,attr"`
	Constructor string        `xml:"constructor,attr"`
	Abstract    string        `xml:"abstract,attr"`
	Attrs       []xml.Attr    `xml:",any,attr"`
	Args        []xmlArgument `xml:"argument"`
	Returns     []xmlTyped    `xml:"return"`
}

type xmlArgument struct {
	Name string `xml:"name,attr"`
	xmlTyped
}

type xmlSignal struct {
	Name string        `xml:"name,attr"`
	Args []xmlArgument `xml:"argument"`
}

// ParseXML decodes a gstructs document.
func ParseXML(file string, data []byte) (*Descriptor, error) {
	var doc xmlStructs
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("failed to parse XML: %v", err)}
	}

	d := &Descriptor{File: file}
	for _, s := range doc.Structs {
		if s.Name == "" {
			return nil, &LoadError{File: file, Message: "gstruct without a name"}
		}
		class := ClassDef{
			Name:       s.Name,
			Parent:     s.Parent,
			Abstract:   flag(s.Abstract),
			Attributes: attributes(s.Attrs),
		}

		for _, m := range s.Members.Members {
			class.Members = append(class.Members, MemberDef{
				Name:        m.Name,
				Type:        m.spec(),
				Default:     m.Default,
				ReadOnly:    flag(m.ReadOnly),
				Private:     flag(m.Private),
				Calculated:  flag(m.Calculated),
				Owned:       flag(m.Owned),
				Overrides:   m.Overrides != "" && m.Overrides != "0",
				AllowNull:   flag(m.AllowNull),
				DelegateGet: flag(m.DelegateGet),
				DelegateSet: flag(m.DelegateSet),
				Attributes:  attributes(m.Attrs),
			})
		}

		for _, m := range s.Members.Methods {
			method, err := xmlMethodDef(file, s.Name, m, flag(m.Constructor))
			if err != nil {
				return nil, err
			}
			class.Methods = append(class.Methods, method)
		}
		for _, m := range s.Members.Constructors {
			method, err := xmlMethodDef(file, s.Name, m, true)
			if err != nil {
				return nil, err
			}
			class.Methods = append(class.Methods, method)
		}

		for _, sig := range s.Members.Signals {
			def := SignalDef{Name: sig.Name}
			for _, a := range sig.Args {
				def.Args = append(def.Args, ArgDef{Name: a.Name, Type: signalType(a)})
			}
			class.Signals = append(class.Signals, def)
		}
		d.Classes = append(d.Classes, class)
	}
	return d, nil
}

func xmlMethodDef(file, class string, m xmlMethod, constructor bool) (MethodDef, error) {
	def := MethodDef{
		Name:        m.Name,
		Constructor: constructor,
		Abstract:    flag(m.Abstract),
	}
	attrs := attributes(m.Attrs)
	if script, ok := attrs[ScriptAttribute]; ok {
		def.Script = script
		delete(attrs, ScriptAttribute)
	}
	if doc, ok := attrs["desc"]; ok {
		def.Doc = doc
	}
	if len(attrs) > 0 {
		def.Attributes = attrs
	}

	for _, a := range m.Args {
		def.Args = append(def.Args, ArgDef{Name: a.Name, Type: a.spec()})
	}
	if !constructor && len(m.Returns) != 1 {
		return MethodDef{}, &LoadError{
			File:    file,
			Message: fmt.Sprintf("%s::%s has %d return value specifications", class, m.Name, len(m.Returns)),
		}
	}
	if len(m.Returns) == 1 && m.Returns[0].Type != "void" {
		def.Returns = m.Returns[0].spec()
	}
	return def, nil
}

// signalType maps the signal argument types, which include bool, onto
// runtime types.
func signalType(a xmlArgument) string {
	if a.Type == "bool" {
		return "int"
	}
	return a.spec()
}

func attributes(attrs []xml.Attr) map[string]string {
	var out map[string]string
	for _, a := range attrs {
		if a.Name.Space != "attr" && a.Name.Space != AttributeNamespace {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[a.Name.Local] = a.Value
	}
	return out
}

func flag(s string) bool { return s == "1" }
