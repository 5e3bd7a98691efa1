package grt

import (
	"fmt"
	"strings"
)

// Type discriminates the kinds of Value.
type Type int

// Value types.
const (
	UnknownType Type = iota
	IntegerType
	DoubleType
	StringType
	ListType
	DictType
	ObjectType
)

// AnyType accepts every value in a container content spec.
const AnyType = UnknownType

func (t Type) String() string {
	switch t {
	case IntegerType:
		return "int"
	case DoubleType:
		return "real"
	case StringType:
		return "string"
	case ListType:
		return "list"
	case DictType:
		return "dict"
	case ObjectType:
		return "object"
	default:
		return "any"
	}
}

// ParseType converts a type name into a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "void":
		return AnyType, nil
	case "int", "integer":
		return IntegerType, nil
	case "real", "double":
		return DoubleType, nil
	case "string":
		return StringType, nil
	case "list":
		return ListType, nil
	case "dict":
		return DictType, nil
	case "object":
		return ObjectType, nil
	}
	return AnyType, fmt.Errorf("unknown type name %q", s)
}

// IsSimpleType reports whether t is int, real or string.
func IsSimpleType(t Type) bool {
	return t == IntegerType || t == DoubleType || t == StringType
}

// IsContainerType reports whether t is list, dict or object.
func IsContainerType(t Type) bool {
	return t == ListType || t == DictType || t == ObjectType
}

// SimpleTypeSpec is a type plus the required class for object types.
type SimpleTypeSpec struct {
	Type        Type
	ObjectClass string
}

func (s SimpleTypeSpec) String() string {
	if s.Type == ObjectType && s.ObjectClass != "" {
		return "object<" + s.ObjectClass + ">"
	}
	return s.Type.String()
}

// TypeSpec describes a member, argument or return type. Content is only
// meaningful when Base is a list or dict.
type TypeSpec struct {
	Base    SimpleTypeSpec
	Content SimpleTypeSpec
}

// Simple builds a TypeSpec for a scalar type.
func Simple(t Type) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: t}}
}

// ObjectOf builds a TypeSpec for an object of the given class.
func ObjectOf(class string) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: ObjectType, ObjectClass: class}}
}

// ListOf builds a TypeSpec for a list with the given content.
func ListOf(content SimpleTypeSpec) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: ListType}, Content: content}
}

// DictOf builds a TypeSpec for a dict with the given content.
func DictOf(content SimpleTypeSpec) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: DictType}, Content: content}
}

func (s TypeSpec) String() string {
	switch s.Base.Type {
	case ListType, DictType:
		return s.Base.Type.String() + "<" + s.Content.String() + ">"
	default:
		return s.Base.String()
	}
}
