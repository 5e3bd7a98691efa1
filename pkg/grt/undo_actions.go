package grt

import (
	"fmt"
	"io"
	"strings"
)

// UndoAction is a reversible change.
type UndoAction interface {
	// Undo reverts the change. While the manager is undoing, the changes
	// made here are recorded on the redo stack.
	Undo(um *UndoManager) error
	Description() string
	SetDescription(desc string)
	Dump(w io.Writer, indent int)
}

type actionDescription struct {
	description string
}

func (a *actionDescription) Description() string        { return a.description }
func (a *actionDescription) SetDescription(desc string) { a.description = desc }

func pad(indent int) string { return strings.Repeat(" ", indent) }

// replay applies fn with change tracking forced on, then hands the
// description of the replayed action to the manager.
func replay(rt *Runtime, um *UndoManager, desc string, fn func() error) error {
	if rt != nil {
		rt.StartTrackingChanges()
		defer rt.StopTrackingChanges()
	}
	if err := fn(); err != nil {
		return err
	}
	um.SetActionDescription(desc)
	return nil
}

// ObjectChangeAction restores a member to Value.
type ObjectChangeAction struct {
	actionDescription
	Object *Object
	Member string
	Value  Value
}

func (a *ObjectChangeAction) Undo(um *UndoManager) error {
	return replay(a.Object.rt, um, a.description, func() error {
		return a.Object.class.setMember(a.Object, a.Member, a.Value, true)
	})
}

func (a *ObjectChangeAction) Dump(w io.Writer, indent int) {
	var current string
	v, _ := a.Object.Get(a.Member)
	if m := a.Object.class.Member(a.Member); m != nil && m.Type.Base.Type == ObjectType {
		if o, ok := v.(*Object); ok {
			current = o.ID()
		}
	} else {
		current = DebugString(v, "")
	}
	fmt.Fprintf(w, "%s change_object %s::%s <%s> ->%s: %s\n",
		pad(indent), a.Object.ClassName(), a.Member, a.Object.ID(), current, a.description)
}

// ListInsertAction removes an inserted element. Index End removes the
// last element.
type ListInsertAction struct {
	actionDescription
	List  *List
	Index int
}

func (a *ListInsertAction) Undo(um *UndoManager) error {
	return replay(a.List.rt, um, a.description, func() error {
		if a.Index == End {
			return a.List.RemoveAt(a.List.Count() - 1)
		}
		return a.List.RemoveAt(a.Index)
	})
}

func (a *ListInsertAction) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s insert_list %s[%d]%s: %s\n",
		pad(indent), a.List.describe("::"), a.Index, ownerTag(a.List.Owner()), a.description)
}

// ListSetAction restores the element at Index.
type ListSetAction struct {
	actionDescription
	List  *List
	Index int
	Value Value
}

func (a *ListSetAction) Undo(um *UndoManager) error {
	return replay(a.List.rt, um, a.description, func() error {
		return a.List.Set(a.Index, a.Value)
	})
}

func (a *ListSetAction) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s set_list %s[%d]%s: %s\n",
		pad(indent), a.List.describe("."), a.Index, ownerTag(a.List.Owner()), a.description)
}

// ListRemoveAction reinserts a removed element.
type ListRemoveAction struct {
	actionDescription
	List  *List
	Index int
	Value Value
}

func (a *ListRemoveAction) Undo(um *UndoManager) error {
	return replay(a.List.rt, um, a.description, func() error {
		return a.List.Insert(a.Value, a.Index)
	})
}

func (a *ListRemoveAction) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s remove_list %s[%d]%s: %s\n",
		pad(indent), a.List.describe("."), a.Index, ownerTag(a.List.Owner()), a.description)
}

// ListReorderAction moves an element back. NewIndex is the position the
// element ended up at.
type ListReorderAction struct {
	actionDescription
	List     *List
	OldIndex int
	NewIndex int
}

func (a *ListReorderAction) Undo(um *UndoManager) error {
	return replay(a.List.rt, um, a.description, func() error {
		return a.List.Reorder(a.NewIndex, a.OldIndex)
	})
}

func (a *ListReorderAction) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s reorder_list %s[%d]->[%d]%s: %s\n",
		pad(indent), a.List.describe("."), a.OldIndex, a.NewIndex, ownerTag(a.List.Owner()), a.description)
}

// DictSetAction restores the previous entry of Key, or removes it when
// there was none.
type DictSetAction struct {
	actionDescription
	Dict     *Dict
	Key      string
	Value    Value
	HadValue bool
}

func (a *DictSetAction) Undo(um *UndoManager) error {
	return replay(a.Dict.rt, um, a.description, func() error {
		if a.HadValue {
			return a.Dict.Set(a.Key, a.Value)
		}
		a.Dict.Remove(a.Key)
		return nil
	})
}

func (a *DictSetAction) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s set_dict %s[%s]%s: %s\n",
		pad(indent), a.Dict.describe("."), a.Key, ownerTag(a.Dict.Owner()), a.description)
}

// DictRemoveAction restores a removed entry.
type DictRemoveAction struct {
	actionDescription
	Dict     *Dict
	Key      string
	Value    Value
	HadValue bool
}

func (a *DictRemoveAction) Undo(um *UndoManager) error {
	return replay(a.Dict.rt, um, a.description, func() error {
		if a.HadValue {
			return a.Dict.Set(a.Key, a.Value)
		}
		// keep the redo stack symmetric
		um.AddUndo(&DictRemoveAction{Dict: a.Dict, Key: a.Key})
		return nil
	})
}

func (a *DictRemoveAction) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s remove_dict %s[%s]%s: %s\n",
		pad(indent), a.Dict.describe("."), a.Key, ownerTag(a.Dict.Owner()), a.description)
}

// SimpleAction runs an arbitrary function on undo.
type SimpleAction struct {
	actionDescription
	Fn func()
}

func (a *SimpleAction) Undo(*UndoManager) error {
	if a.Fn != nil {
		a.Fn()
	}
	return nil
}

func (a *SimpleAction) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s custom_action : %s\n", pad(indent), a.description)
}

func ownerTag(owner *Object) string {
	if owner == nil {
		return ""
	}
	return " <" + owner.ID() + ">"
}

// UndoGroup is a nestable batch of actions undone as one step.
type UndoGroup struct {
	actionDescription
	actions []UndoAction
	open    bool
}

// NewUndoGroup creates an open group.
func NewUndoGroup() *UndoGroup { return &UndoGroup{open: true} }

// IsOpen reports whether actions can still be added.
func (g *UndoGroup) IsOpen() bool { return g.open }

// Empty reports whether the group holds no actions.
func (g *UndoGroup) Empty() bool { return len(g.actions) == 0 }

// Actions returns the child actions in recording order.
func (g *UndoGroup) Actions() []UndoAction { return append([]UndoAction(nil), g.actions...) }

// DeepestOpenSubgroup returns the innermost open group and its parent.
// The parent is nil when g itself is the innermost open group.
func (g *UndoGroup) DeepestOpenSubgroup() (deepest, parent *UndoGroup) {
	if !g.open {
		return nil, nil
	}
	deepest = g
	for {
		if len(deepest.actions) == 0 {
			return deepest, parent
		}
		sub, ok := deepest.actions[len(deepest.actions)-1].(*UndoGroup)
		if !ok || !sub.open {
			return deepest, parent
		}
		parent, deepest = deepest, sub
	}
}

// Add appends a to the innermost open group.
func (g *UndoGroup) Add(a UndoAction) error {
	deepest, _ := g.DeepestOpenSubgroup()
	if deepest == nil {
		return NewLogicError("undo group", "cannot add to a closed group")
	}
	deepest.actions = append(deepest.actions, a)
	return nil
}

// close closes the innermost open group and reports whether one was open.
// Once the group itself is closed its subgroups are trimmed.
func (g *UndoGroup) close() bool {
	deepest, _ := g.DeepestOpenSubgroup()
	if deepest == nil {
		return false
	}
	deepest.open = false
	if !g.open {
		g.Trim()
	}
	return true
}

// Trim replaces closed single-action subgroups by their action and drops
// closed empty subgroups, recursively.
func (g *UndoGroup) Trim() {
	out := g.actions[:0]
	for _, a := range g.actions {
		sub, ok := a.(*UndoGroup)
		if !ok || sub.open {
			out = append(out, a)
			continue
		}
		sub.Trim()
		switch len(sub.actions) {
		case 0:
		case 1:
			out = append(out, sub.actions[0])
		default:
			out = append(out, a)
		}
	}
	for i := len(out); i < len(g.actions); i++ {
		g.actions[i] = nil
	}
	g.actions = out
}

// SetDescription describes the newest action while the group is open, and
// the group itself once it is closed.
func (g *UndoGroup) SetDescription(desc string) {
	if n := len(g.actions); n > 0 && g.open {
		g.actions[n-1].SetDescription(desc)
		return
	}
	if !g.open {
		g.description = desc
	}
}

// Description returns the description of an open subgroup on top, or the
// group's own description.
func (g *UndoGroup) Description() string {
	if n := len(g.actions); n > 0 && g.open {
		if sub, ok := g.actions[n-1].(*UndoGroup); ok && sub.open {
			return sub.Description()
		}
	}
	return g.description
}

// Undo reverts the children in reverse order inside a new group, so the
// redo stack receives a single step.
func (g *UndoGroup) Undo(um *UndoManager) error {
	um.BeginUndoGroup(nil)
	var firstErr error
	for i := len(g.actions) - 1; i >= 0; i-- {
		if err := g.actions[i].Undo(um); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if _, err := um.EndUndoGroup(""); err != nil && firstErr == nil {
		firstErr = err
	}
	um.SetActionDescription(g.description)
	return firstErr
}

func (g *UndoGroup) Dump(w io.Writer, indent int) {
	state := ""
	if g.open {
		state = "(open)"
	}
	fmt.Fprintf(w, "%s group%s { \n", pad(indent), state)
	for _, a := range g.actions {
		a.Dump(w, indent+2)
	}
	fmt.Fprintf(w, "%s }: %s\n", pad(indent), g.Description())
}
