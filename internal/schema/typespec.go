package schema

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// ParseTypeSpec reads a type in the notation used by YAML descriptors:
//
//	int | real | string | object<Class> | list<content> | dict<content>
//
// where content is a scalar type name, object or object<Class>. A bare list
// or dict accepts any content.
func ParseTypeSpec(s string) (grt.TypeSpec, error) {
	base, inner, err := splitGeneric(strings.TrimSpace(s))
	if err != nil {
		return grt.TypeSpec{}, err
	}
	t, err := grt.ParseType(base)
	if err != nil {
		return grt.TypeSpec{}, err
	}

	switch t {
	case grt.ListType, grt.DictType:
		spec := grt.TypeSpec{Base: grt.SimpleTypeSpec{Type: t}}
		if inner != "" {
			content, err := parseContent(inner)
			if err != nil {
				return grt.TypeSpec{}, err
			}
			spec.Content = content
		}
		return spec, nil
	case grt.ObjectType:
		return grt.ObjectOf(inner), nil
	default:
		if inner != "" {
			return grt.TypeSpec{}, fmt.Errorf("type %s takes no parameter", base)
		}
		return grt.Simple(t), nil
	}
}

func parseContent(s string) (grt.SimpleTypeSpec, error) {
	base, inner, err := splitGeneric(s)
	if err != nil {
		return grt.SimpleTypeSpec{}, err
	}
	t, err := grt.ParseType(base)
	if err != nil {
		return grt.SimpleTypeSpec{}, err
	}
	if t == grt.ListType || t == grt.DictType {
		return grt.SimpleTypeSpec{}, fmt.Errorf("nested container content %q is not supported", s)
	}
	if inner != "" && t != grt.ObjectType {
		return grt.SimpleTypeSpec{}, fmt.Errorf("type %s takes no parameter", base)
	}
	return grt.SimpleTypeSpec{Type: t, ObjectClass: inner}, nil
}

// splitGeneric splits "base<inner>" into its parts.
func splitGeneric(s string) (base, inner string, err error) {
	open := strings.IndexByte(s, '<')
	if open < 0 {
		if strings.IndexByte(s, '>') >= 0 {
			return "", "", fmt.Errorf("unbalanced type %q", s)
		}
		return s, "", nil
	}
	if !strings.HasSuffix(s, ">") {
		return "", "", fmt.Errorf("unbalanced type %q", s)
	}
	inner = strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return "", "", fmt.Errorf("empty type parameter in %q", s)
	}
	return strings.TrimSpace(s[:open]), inner, nil
}

// FormatTypeSpec renders spec in the notation read by ParseTypeSpec.
func FormatTypeSpec(spec grt.TypeSpec) string {
	switch spec.Base.Type {
	case grt.ListType, grt.DictType:
		if spec.Content.Type == grt.AnyType && spec.Content.ObjectClass == "" {
			return spec.Base.Type.String()
		}
	}
	return spec.String()
}
