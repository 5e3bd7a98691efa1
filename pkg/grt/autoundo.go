package grt

// AutoUndo groups the changes made between its creation and End into one
// undo step. Use it with defer Close so a failed operation is reverted:
//
//	au := rt.NewAutoUndo()
//	defer au.Close()
//	... mutate ...
//	au.End("Add column")
type AutoUndo struct {
	rt    *Runtime
	group *UndoGroup
}

// NewAutoUndo starts an undoable action. When the undo manager is
// disabled the AutoUndo is inert.
func (rt *Runtime) NewAutoUndo() *AutoUndo {
	au := &AutoUndo{rt: rt}
	if rt.undo.IsEnabled() {
		au.group = rt.BeginUndoableAction()
	}
	return au
}

// Active reports whether the action has not been ended or cancelled.
func (au *AutoUndo) Active() bool { return au.group != nil }

// End closes the action with a description.
func (au *AutoUndo) End(description string) error {
	if au.group == nil {
		if au.rt.undo.IsEnabled() {
			return NewLogicError("auto undo", "action already ended")
		}
		return nil
	}
	au.group = nil
	_, err := au.rt.EndUndoableAction(description)
	return err
}

// EndOrCancelIfEmpty ends the action, or cancels it when nothing was recorded.
func (au *AutoUndo) EndOrCancelIfEmpty(description string) error {
	if au.group != nil && au.group.Empty() {
		return au.Cancel()
	}
	return au.End(description)
}

// Cancel reverts every change recorded by the action.
func (au *AutoUndo) Cancel() error {
	if au.group == nil {
		if au.rt.undo.IsEnabled() {
			return NewLogicError("auto undo", "action already ended")
		}
		return nil
	}
	au.group = nil
	return au.rt.CancelUndoableAction()
}

// SetDescriptionForLastAction describes the newest recorded change.
func (au *AutoUndo) SetDescriptionForLastAction(description string) {
	if au.group != nil {
		au.rt.undo.SetActionDescription(description)
	}
}

// Close cancels the action if it is still active.
func (au *AutoUndo) Close() {
	if au.group == nil {
		return
	}
	au.rt.logger.Warn("undoable action was not ended, cancelling")
	_ = au.Cancel()
}
