package diff

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"golang.org/x/text/cases"
)

// Bits of the dontdiff member attribute. A member is skipped when its
// dontdiff value intersects Options.DontDiffMask.
const (
	DontDiffAlways uint = 1 << iota
	DontDiffLiveDB
	DontDiffModel
)

// Options tune a comparison.
type Options struct {
	CaseSensitive bool
	DontDiffMask  uint
}

// Omf is the ordering and matching policy used to align the elements of
// two containers.
type Omf interface {
	Less(a, b grt.Value) bool
	Equal(a, b grt.Value) bool
	Options() Options
}

// DefaultOmf matches objects of the same class by their name member and
// falls back to identity for objects without one. Other values are
// compared by value.
type DefaultOmf struct {
	opts Options
}

// NewDefaultOmf creates the default policy.
func NewDefaultOmf(opts Options) *DefaultOmf {
	return &DefaultOmf{opts: opts}
}

func (m *DefaultOmf) Options() Options { return m.opts }

func (m *DefaultOmf) Equal(a, b grt.Value) bool {
	return compareBy(a, b, m.key) == 0
}

func (m *DefaultOmf) Less(a, b grt.Value) bool {
	return compareBy(a, b, m.key) < 0
}

func (m *DefaultOmf) key(o *grt.Object) string {
	if !o.HasMember("name") {
		return "#" + o.ID()
	}
	return fold(o.StringMember("name"), m.opts.CaseSensitive)
}

// AlterOmf matches objects the way a schema alter does: an object that
// was renamed still carries its previous name in oldName, so oldName is
// preferred over name. Names are qualified with the owner's key. Objects
// with a referencedColumn member are matched by the column they point at.
type AlterOmf struct {
	opts Options
}

// NewAlterOmf creates the alter policy.
func NewAlterOmf(opts Options) *AlterOmf {
	return &AlterOmf{opts: opts}
}

func (m *AlterOmf) Options() Options { return m.opts }

func (m *AlterOmf) Equal(a, b grt.Value) bool {
	return compareBy(a, b, m.key) == 0
}

func (m *AlterOmf) Less(a, b grt.Value) bool {
	return compareBy(a, b, m.key) < 0
}

func (m *AlterOmf) key(o *grt.Object) string {
	if o.HasMember("referencedColumn") {
		if col := o.ObjectMember("referencedColumn"); col != nil {
			return "->" + m.key(col)
		}
	}
	if !o.HasMember("name") {
		return "#" + o.ID()
	}

	name := o.StringMember("name")
	if o.HasMember("oldName") {
		if old := o.StringMember("oldName"); old != "" {
			name = old
		}
	}
	name = "`" + fold(name, m.opts.CaseSensitive) + "`"
	if owner := o.Owner(); owner != nil && owner.HasMember("name") {
		name = "`" + fold(owner.StringMember("name"), m.opts.CaseSensitive) + "`." + name
	}
	return name
}

// compareBy orders two values. Objects of different classes are ordered by
// class name and objects of the same class by key. Everything else uses
// the value ordering of grt.
func compareBy(a, b grt.Value, key func(*grt.Object) string) int {
	oa, aok := a.(*grt.Object)
	ob, bok := b.(*grt.Object)
	if !aok || !bok {
		switch {
		case grt.Equal(a, b):
			return 0
		case grt.Less(a, b):
			return -1
		default:
			return 1
		}
	}
	if oa == ob {
		return 0
	}
	if c := strings.Compare(oa.ClassName(), ob.ClassName()); c != 0 {
		return c
	}
	return strings.Compare(key(oa), key(ob))
}

func fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return cases.Fold().String(s)
}

// dontDiff reports whether the member is excluded from comparison under mask.
func dontDiff(mc *grt.MetaClass, member string, mask uint) bool {
	if mask == 0 {
		return false
	}
	attr := mc.MemberAttribute(member, "dontdiff", true)
	if attr == "" {
		return false
	}
	bits, err := strconv.ParseUint(attr, 10, 32)
	if err != nil {
		return false
	}
	return uint(bits)&mask != 0
}
