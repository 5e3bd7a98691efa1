package diff

import (
	"sort"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// Make compares source with target and returns the change tree that turns
// source into target, or nil when they are equal under omf.
//
// Objects reached through owned members are compared member by member.
// Objects reached through references are only matched with omf.Equal.
func Make(source, target grt.Value, omf Omf) *Change {
	if omf == nil {
		omf = NewDefaultOmf(Options{})
	}
	d := &differ{omf: omf, opts: omf.Options()}
	return d.value(source, target, true)
}

type differ struct {
	omf  Omf
	opts Options
}

// value compares two values. When owned is false objects are references
// and are not descended into.
func (d *differ) value(source, target grt.Value, owned bool) *Change {
	switch {
	case source == nil && target == nil:
		return nil
	case source == nil:
		return &Change{kind: ValueAdded, New: target}
	case target == nil:
		return &Change{kind: ValueRemoved, Old: source}
	case source.Type() != target.Type():
		return simple(source, target)
	}

	switch s := source.(type) {
	case *grt.Object:
		t := target.(*grt.Object)
		if !owned {
			if d.omf.Equal(s, t) {
				return nil
			}
			return simple(s, t)
		}
		return d.object(s, t)
	case *grt.List:
		return d.list(s, target.(*grt.List), owned)
	case *grt.Dict:
		return d.dict(s, target.(*grt.Dict), owned)
	}

	if grt.Equal(source, target) {
		return nil
	}
	return simple(source, target)
}

func simple(source, target grt.Value) *Change {
	return &Change{kind: SimpleValue, Old: source, New: target}
}

func (d *differ) object(source, target *grt.Object) *Change {
	if source == target {
		return nil
	}
	if source.Class() != target.Class() {
		return simple(source, target)
	}

	mc := source.Class()
	var children []*Change
	mc.ForEachMember(func(m *grt.Member) bool {
		if m.Calculated || dontDiff(mc, m.Name, d.opts.DontDiffMask) {
			return true
		}
		a, _ := source.Get(m.Name)
		b, _ := target.Get(m.Name)
		if sub := d.value(a, b, m.OwnedObject); sub != nil {
			children = append(children, &Change{
				kind:     ObjectAttrModified,
				Attr:     m.Name,
				Old:      a,
				New:      b,
				Children: []*Change{sub},
			})
		}
		return true
	})

	if len(children) == 0 {
		return nil
	}
	return &Change{kind: ObjectModified, Old: source, New: target, Children: children}
}

// list aligns the two lists. Elements are paired with omf.Equal; the pairs
// that keep their relative order form the longest increasing subsequence of
// source indexes, every other pair is reported as reordered.
func (d *differ) list(source, target *grt.List, owned bool) *Change {
	src, tgt := source.Items(), target.Items()

	matchOf := make([]int, len(tgt))
	used := make([]bool, len(src))
	for j, tv := range tgt {
		matchOf[j] = -1
		for i, sv := range src {
			if !used[i] && d.omf.Equal(sv, tv) {
				matchOf[j] = i
				used[i] = true
				break
			}
		}
	}

	var seq []int
	for _, i := range matchOf {
		if i >= 0 {
			seq = append(seq, i)
		}
	}
	inOrder := longestIncreasing(seq)

	var children []*Change
	for i, sv := range src {
		if !used[i] {
			children = append(children, &Change{kind: ListItemRemoved, Index: i, Old: sv})
		}
	}

	for j, tv := range tgt {
		var prev grt.Value
		if j > 0 {
			prev = tgt[j-1]
		}

		i := matchOf[j]
		if i < 0 {
			children = append(children, &Change{kind: ListItemAdded, Index: j, New: tv, Prev: prev})
			continue
		}

		sub := d.item(src[i], tv, owned)
		if !inOrder[i] {
			ch := &Change{kind: ListItemOrderChanged, Index: j, OldIndex: i, Old: src[i], New: tv, Prev: prev}
			if sub != nil {
				ch.Children = []*Change{sub}
			}
			children = append(children, ch)
			continue
		}
		if sub != nil {
			children = append(children, &Change{
				kind:     ListItemModified,
				Index:    j,
				OldIndex: i,
				Old:      src[i],
				New:      tv,
				Children: []*Change{sub},
			})
		}
	}

	if len(children) == 0 {
		return nil
	}
	return &Change{kind: ListModified, Old: source, New: target, Children: children}
}

// item compares two matched elements. Matched scalars are equal by
// definition; matched references are the same under omf.
func (d *differ) item(source, target grt.Value, owned bool) *Change {
	if _, ok := source.(*grt.Object); ok && !owned {
		return nil
	}
	return d.value(source, target, owned)
}

func (d *differ) dict(source, target *grt.Dict, owned bool) *Change {
	keys := source.Keys()
	for _, k := range target.Keys() {
		if !source.Has(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var children []*Change
	for _, k := range keys {
		a, inSource := source.Lookup(k)
		b, inTarget := target.Lookup(k)
		switch {
		case !inTarget:
			children = append(children, &Change{kind: DictItemRemoved, Key: k, Old: a})
		case !inSource:
			children = append(children, &Change{kind: DictItemAdded, Key: k, New: b})
		default:
			if sub := d.value(a, b, owned); sub != nil {
				children = append(children, &Change{
					kind:     DictItemModified,
					Key:      k,
					Old:      a,
					New:      b,
					Children: []*Change{sub},
				})
			}
		}
	}

	if len(children) == 0 {
		return nil
	}
	return &Change{kind: DictModified, Old: source, New: target, Children: children}
}

// longestIncreasing returns the members of one longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) map[int]bool {
	out := make(map[int]bool, len(seq))
	if len(seq) == 0 {
		return out
	}

	// tails[k] is the position in seq of the smallest tail of an increasing
	// run of length k+1.
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for p, v := range seq {
		k := sort.Search(len(tails), func(k int) bool { return seq[tails[k]] >= v })
		if k > 0 {
			prev[p] = tails[k-1]
		} else {
			prev[p] = -1
		}
		if k == len(tails) {
			tails = append(tails, p)
		} else {
			tails[k] = p
		}
	}

	for p := tails[len(tails)-1]; p >= 0; p = prev[p] {
		out[seq[p]] = true
	}
	return out
}
