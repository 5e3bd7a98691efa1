package grt

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
)

// cancelledDescription marks groups closed by CancelUndoGroup.
const cancelledDescription = "cancelled"

// UndoManager keeps the undo and redo stacks.
//
// The stacks are guarded by a mutex that is never held while an action is
// replayed or a signal is emitted, so handlers may call back into the
// manager.
type UndoManager struct {
	mu        sync.Mutex
	undoStack []UndoAction
	redoStack []UndoAction
	undoing   bool
	redoing   bool
	limit     int
	blocks    int
	logger    *slog.Logger

	changed Signal[struct{}]
	undone  Signal[UndoAction]
	redone  Signal[UndoAction]
}

// NewUndoManager creates an unlimited undo manager.
func NewUndoManager(logger *slog.Logger) *UndoManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UndoManager{logger: logger}
}

// Changed is emitted when the stacks change in a user visible way.
func (um *UndoManager) Changed() *Signal[struct{}] { return &um.changed }

// Undone is emitted after an action was undone.
func (um *UndoManager) Undone() *Signal[UndoAction] { return &um.undone }

// Redone is emitted after an action was redone.
func (um *UndoManager) Redone() *Signal[UndoAction] { return &um.redone }

// Disable drops every action added until the matching Enable.
func (um *UndoManager) Disable() {
	um.mu.Lock()
	um.blocks++
	um.mu.Unlock()
}

// Enable reverses Disable.
func (um *UndoManager) Enable() {
	um.mu.Lock()
	if um.blocks > 0 {
		um.blocks--
	}
	um.mu.Unlock()
}

// IsEnabled reports whether actions are recorded.
func (um *UndoManager) IsEnabled() bool {
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.blocks == 0
}

// SetUndoLimit caps the undo stack. Zero means unlimited.
func (um *UndoManager) SetUndoLimit(limit int) {
	um.mu.Lock()
	um.limit = limit
	um.trimLocked()
	um.mu.Unlock()
}

// UndoLimit returns the undo stack cap.
func (um *UndoManager) UndoLimit() int {
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.limit
}

func (um *UndoManager) trimLocked() {
	if um.limit > 0 && len(um.undoStack) > um.limit {
		drop := len(um.undoStack) - um.limit
		um.undoStack = append([]UndoAction(nil), um.undoStack[drop:]...)
	}
}

// IsUndoing reports whether an undo is running.
func (um *UndoManager) IsUndoing() bool {
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.undoing
}

// IsRedoing reports whether a redo is running.
func (um *UndoManager) IsRedoing() bool {
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.redoing
}

func (um *UndoManager) CanUndo() bool {
	um.mu.Lock()
	defer um.mu.Unlock()
	return len(um.undoStack) > 0
}

func (um *UndoManager) CanRedo() bool {
	um.mu.Lock()
	defer um.mu.Unlock()
	return len(um.redoStack) > 0
}

// UndoDescription describes the step Undo would revert.
func (um *UndoManager) UndoDescription() string {
	um.mu.Lock()
	defer um.mu.Unlock()
	if len(um.undoStack) == 0 {
		return ""
	}
	return um.undoStack[len(um.undoStack)-1].Description()
}

// RedoDescription describes the step Redo would reapply.
func (um *UndoManager) RedoDescription() string {
	um.mu.Lock()
	defer um.mu.Unlock()
	if len(um.redoStack) == 0 {
		return ""
	}
	return um.redoStack[len(um.redoStack)-1].Description()
}

// UndoStack returns a snapshot of the undo stack, oldest first.
func (um *UndoManager) UndoStack() []UndoAction {
	um.mu.Lock()
	defer um.mu.Unlock()
	return append([]UndoAction(nil), um.undoStack...)
}

// RedoStack returns a snapshot of the redo stack, oldest first.
func (um *UndoManager) RedoStack() []UndoAction {
	um.mu.Lock()
	defer um.mu.Unlock()
	return append([]UndoAction(nil), um.redoStack...)
}

// Empty reports whether both stacks are empty.
func (um *UndoManager) Empty() bool {
	um.mu.Lock()
	defer um.mu.Unlock()
	return len(um.undoStack) == 0 && len(um.redoStack) == 0
}

// Reset clears both stacks.
func (um *UndoManager) Reset() {
	um.mu.Lock()
	um.undoStack = nil
	um.redoStack = nil
	um.mu.Unlock()
	um.changed.Emit(struct{}{})
}

// LatestClosedUndoAction returns the newest undo step that is not an open group.
func (um *UndoManager) LatestClosedUndoAction() UndoAction {
	um.mu.Lock()
	defer um.mu.Unlock()
	for i := len(um.undoStack) - 1; i >= 0; i-- {
		if g, ok := um.undoStack[i].(*UndoGroup); !ok || !g.open {
			return um.undoStack[i]
		}
	}
	return nil
}

// LatestUndoAction returns the newest recorded action, looking inside
// open groups.
func (um *UndoManager) LatestUndoAction() UndoAction {
	um.mu.Lock()
	defer um.mu.Unlock()
	if len(um.undoStack) == 0 {
		return nil
	}
	a := um.undoStack[len(um.undoStack)-1]
	for {
		g, ok := a.(*UndoGroup)
		if !ok || !g.open || len(g.actions) == 0 {
			return a
		}
		a = g.actions[len(g.actions)-1]
	}
}

// stackLocked returns the stack new actions go to.
func (um *UndoManager) stackLocked() *[]UndoAction {
	if um.undoing {
		return &um.redoStack
	}
	return &um.undoStack
}

// AddUndo records an action. While undoing it goes to the redo stack;
// otherwise it goes to the undo stack and clears the redo stack unless a
// redo is running. Actions land in the open group on top, if any.
func (um *UndoManager) AddUndo(a UndoAction) {
	um.mu.Lock()
	if um.blocks > 0 {
		um.mu.Unlock()
		return
	}

	stack := um.stackLocked()
	added := false
	if n := len(*stack); n > 0 {
		if g, ok := (*stack)[n-1].(*UndoGroup); ok && g.open {
			added = g.Add(a) == nil
		}
	}
	if !added {
		*stack = append(*stack, a)
		if !um.undoing {
			um.trimLocked()
		}
	}
	if !um.undoing && !um.redoing {
		um.redoStack = nil
	}
	um.mu.Unlock()

	if g, ok := a.(*UndoGroup); ok && !g.open {
		um.changed.Emit(struct{}{})
	}
}

// AddSimpleUndo records a function to run on undo.
func (um *UndoManager) AddSimpleUndo(fn func()) {
	um.AddUndo(&SimpleAction{Fn: fn})
}

// BeginUndoGroup opens a group, nested in the open group on top if any.
// It returns nil when the manager is disabled.
func (um *UndoManager) BeginUndoGroup(g *UndoGroup) *UndoGroup {
	if !um.IsEnabled() {
		return nil
	}
	if g == nil {
		g = NewUndoGroup()
	}
	g.open = true
	um.AddUndo(g)
	return g
}

// EndUndoGroup closes the innermost open group. It returns false when the
// group was empty and has been discarded. Ending a group that was never
// begun, or one that is already closed, is a LogicError.
func (um *UndoManager) EndUndoGroup(description string) (bool, error) {
	um.mu.Lock()
	if um.blocks > 0 {
		um.mu.Unlock()
		return false, nil
	}

	stack := um.stackLocked()
	n := len(*stack)
	if n == 0 {
		um.mu.Unlock()
		return false, NewLogicError("end undo group", "unmatched undo group (undo stack is empty)")
	}
	g, ok := (*stack)[n-1].(*UndoGroup)
	if !ok {
		um.mu.Unlock()
		return false, NewLogicError("end undo group", "unmatched undo group")
	}

	if len(g.actions) == 0 {
		*stack = (*stack)[:n-1]
		um.mu.Unlock()
		um.logger.Debug("empty undo group discarded", slog.String("description", description))
		return false, nil
	}

	if !g.close() {
		um.mu.Unlock()
		return false, NewLogicError("end undo group", "undo group already closed")
	}
	if description != "" {
		g.SetDescription(description)
	}
	closed := !g.open
	um.mu.Unlock()

	if closed && um.logger.Enabled(context.Background(), slog.LevelDebug) {
		var buf bytes.Buffer
		g.Dump(&buf, 0)
		um.logger.Debug("undo group closed", slog.String("actions", buf.String()))
	}
	if description != cancelledDescription {
		um.changed.Emit(struct{}{})
	}
	return true, nil
}

// CancelUndoGroup closes the innermost open group and reverts it.
func (um *UndoManager) CancelUndoGroup() error {
	um.mu.Lock()
	stack := um.stackLocked()
	var top, subgroup, parent *UndoGroup
	if n := len(*stack); n > 0 {
		if g, ok := (*stack)[n-1].(*UndoGroup); ok {
			top = g
			subgroup, parent = g.DeepestOpenSubgroup()
			if subgroup == nil {
				subgroup = g
			}
		}
	}
	um.mu.Unlock()

	ended, err := um.EndUndoGroup(cancelledDescription)
	if err != nil || !ended {
		return err
	}

	um.Disable()
	defer um.Enable()

	if top == nil {
		return nil
	}
	undoErr := subgroup.Undo(um)

	um.mu.Lock()
	stack = um.stackLocked()
	if subgroup == top {
		if n := len(*stack); n > 0 && (*stack)[n-1] == top {
			*stack = (*stack)[:n-1]
		}
	} else if parent != nil {
		if n := len(parent.actions); n > 0 && parent.actions[n-1] == subgroup {
			parent.actions = parent.actions[:n-1]
		}
	}
	um.mu.Unlock()

	return undoErr
}

// SetActionDescription describes the newest step on the active stack.
func (um *UndoManager) SetActionDescription(desc string) {
	um.mu.Lock()
	if um.blocks > 0 {
		um.mu.Unlock()
		return
	}
	stack := um.stackLocked()
	if n := len(*stack); n > 0 {
		(*stack)[n-1].SetDescription(desc)
	}
	um.mu.Unlock()
	um.changed.Emit(struct{}{})
}

// ActionDescription returns the description of the newest step on the
// active stack.
func (um *UndoManager) ActionDescription() string {
	um.mu.Lock()
	defer um.mu.Unlock()
	stack := um.stackLocked()
	if n := len(*stack); n > 0 {
		return (*stack)[n-1].Description()
	}
	return ""
}

// Undo reverts the newest step. Calling Undo from inside an undo is a
// LogicError.
func (um *UndoManager) Undo() error {
	um.mu.Lock()
	if um.undoing {
		um.mu.Unlock()
		return NewLogicError("undo", "unexpected nested undo")
	}
	if len(um.undoStack) == 0 {
		um.mu.Unlock()
		return nil
	}
	cmd := um.undoStack[len(um.undoStack)-1]
	um.undoing = true
	um.mu.Unlock()

	err := cmd.Undo(um)

	um.mu.Lock()
	um.undoing = false
	um.removeLocked(&um.undoStack, cmd)
	um.mu.Unlock()

	um.undone.Emit(cmd)
	return err
}

// Redo reapplies the newest undone step.
func (um *UndoManager) Redo() error {
	um.mu.Lock()
	if um.redoing {
		um.mu.Unlock()
		return NewLogicError("redo", "unexpected nested redo")
	}
	if len(um.redoStack) == 0 {
		um.mu.Unlock()
		return nil
	}
	cmd := um.redoStack[len(um.redoStack)-1]
	um.redoing = true
	um.mu.Unlock()

	err := cmd.Undo(um)

	um.mu.Lock()
	um.redoing = false
	um.removeLocked(&um.redoStack, cmd)
	um.mu.Unlock()

	um.redone.Emit(cmd)
	return err
}

// removeLocked drops cmd from the stack. It is normally on top.
func (um *UndoManager) removeLocked(stack *[]UndoAction, cmd UndoAction) {
	for i := len(*stack) - 1; i >= 0; i-- {
		if (*stack)[i] == cmd {
			*stack = append((*stack)[:i:i], (*stack)[i+1:]...)
			return
		}
	}
}

// DumpUndoStack writes the undo stack, oldest first.
func (um *UndoManager) DumpUndoStack(w io.Writer) {
	for _, a := range um.UndoStack() {
		a.Dump(w, 0)
	}
}

// DumpRedoStack writes the redo stack, oldest first.
func (um *UndoManager) DumpRedoStack(w io.Writer) {
	for _, a := range um.RedoStack() {
		a.Dump(w, 0)
	}
}
