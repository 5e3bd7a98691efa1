package grt

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/leapgrt/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackedTable returns a global table from a runtime that logs to t.
func trackedTable(t *testing.T) (*Runtime, *Object) {
	t.Helper()

	rt := New(WithLogger(testutil.NewTestLogger(t)))
	for _, mc := range testClasses(t) {
		require.NoError(t, rt.RegisterClass(mc))
	}
	require.NoError(t, rt.EndRegistration())

	table := newTestTable(t, rt)
	table.MarkGlobal()
	return rt, table
}

func undoable(t *testing.T, rt *Runtime, desc string, fn func()) {
	t.Helper()

	rt.BeginUndoableAction()
	fn()
	ok, err := rt.EndUndoableAction(desc)
	require.NoError(t, err)
	require.True(t, ok, "action recorded nothing")
}

func TestUndoMemberSet(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	undoable(t, rt, "Rename table", func() {
		require.NoError(t, table.Set("name", String("clients")))
	})
	assert.Equal(t, "Rename table", um.UndoDescription())

	require.NoError(t, um.Undo())
	assert.Equal(t, "customers", table.StringMember("name"))
	assert.False(t, um.CanUndo())
	assert.True(t, um.CanRedo())
	assert.Equal(t, "Rename table", um.RedoDescription())

	require.NoError(t, um.Redo())
	assert.Equal(t, "clients", table.StringMember("name"))
	assert.True(t, um.CanUndo())
	assert.False(t, um.CanRedo())
}

func TestUndoListInsert(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()
	cols := table.ListMember("columns")
	col := mustCreate(t, rt, "Column", "email")

	undoable(t, rt, "Add column", func() {
		require.NoError(t, cols.Append(col))
	})
	assert.Equal(t, 3, cols.Count())
	assert.Equal(t, 1, col.GlobalCount(), "inserting into a global list marks the value")

	require.NoError(t, um.Undo())
	assert.Equal(t, 2, cols.Count())
	assert.False(t, cols.Contains(col))
	assert.Equal(t, 0, col.GlobalCount())

	require.NoError(t, um.Redo())
	assert.Equal(t, 3, cols.Count())
	assert.Same(t, col, cols.ObjectAt(2))
}

func TestReorderOntoClampedPositionRecordsNothing(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()
	tags := table.ListMember("tags")
	require.NoError(t, tags.Append(String("a")))
	require.NoError(t, tags.Append(String("b")))
	um.Reset()

	require.NoError(t, tags.Reorder(1, 10))
	assert.Equal(t, "[a, b]", tags.String())
	assert.Empty(t, um.UndoStack())
}

func TestUndoListSetRemoveReorder(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()
	tags := table.ListMember("tags")
	require.NoError(t, tags.Append(String("a")))
	require.NoError(t, tags.Append(String("b")))
	require.NoError(t, tags.Append(String("c")))

	undoable(t, rt, "Edit tags", func() {
		require.NoError(t, tags.Set(0, String("x")))
		require.NoError(t, tags.RemoveAt(1))
		require.NoError(t, tags.Reorder(0, 5))
	})
	assert.Equal(t, "[c, x]", tags.String())

	require.NoError(t, um.Undo())
	assert.Equal(t, "[a, b, c]", tags.String())

	require.NoError(t, um.Redo())
	assert.Equal(t, "[c, x]", tags.String())
}

func TestUndoDictSet(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()
	opts := table.DictMember("options")
	require.NoError(t, opts.Set("engine", String("MyISAM")))

	undoable(t, rt, "Set options", func() {
		require.NoError(t, opts.Set("engine", String("InnoDB")))
		require.NoError(t, opts.Set("charset", String("utf8")))
	})

	require.NoError(t, um.Undo())
	assert.Equal(t, "MyISAM", opts.GetString("engine", ""))
	assert.False(t, opts.Has("charset"), "new keys are removed on undo")

	require.NoError(t, um.Redo())
	assert.Equal(t, "InnoDB", opts.GetString("engine", ""))
	assert.Equal(t, "utf8", opts.GetString("charset", ""))

	undoable(t, rt, "Drop option", func() {
		assert.True(t, opts.Remove("charset"))
	})
	require.NoError(t, um.Undo())
	assert.Equal(t, "utf8", opts.GetString("charset", ""))
}

func TestUntrackedChangesAreNotRecorded(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	require.NoError(t, table.Set("comment", String("outside an action")))
	assert.False(t, um.CanUndo(), "tracking is off")

	loose := mustCreate(t, rt, "Table", "loose")
	rt.BeginUndoableAction()
	require.NoError(t, loose.Set("name", String("renamed")))
	ok, err := rt.EndUndoableAction("ignored")
	require.NoError(t, err)
	assert.False(t, ok, "objects that are not global are not tracked")
	assert.False(t, um.CanUndo())
}

func TestUndoNestedGroups(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()
	col := table.ListMember("columns").ObjectAt(0)

	rt.BeginUndoableAction()
	require.NoError(t, table.Set("name", String("outer")))
	rt.BeginUndoableAction()
	require.NoError(t, col.Set("name", String("inner")))
	_, err := rt.EndUndoableAction("inner change")
	require.NoError(t, err)
	assert.True(t, rt.TrackingChanges(), "outer action still tracking")
	_, err = rt.EndUndoableAction("outer change")
	require.NoError(t, err)

	stack := um.UndoStack()
	require.Len(t, stack, 1)
	group, ok := stack[0].(*UndoGroup)
	require.True(t, ok)
	assert.False(t, group.IsOpen())
	assert.Len(t, group.Actions(), 2, "single-action subgroup is trimmed to its action")
	assert.Equal(t, "outer change", um.UndoDescription())

	require.NoError(t, um.Undo())
	assert.Equal(t, "customers", table.StringMember("name"))
	assert.Equal(t, "id", col.StringMember("name"))
}

func TestCancelNestedGroupKeepsOuter(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()
	col := table.ListMember("columns").ObjectAt(0)

	rt.BeginUndoableAction()
	require.NoError(t, table.Set("name", String("outer")))
	rt.BeginUndoableAction()
	require.NoError(t, col.Set("name", String("inner")))
	require.NoError(t, rt.CancelUndoableAction())

	assert.Equal(t, "id", col.StringMember("name"), "inner change reverted")
	assert.Equal(t, "outer", table.StringMember("name"), "outer change kept")

	_, err := rt.EndUndoableAction("outer")
	require.NoError(t, err)
	require.Len(t, um.UndoStack(), 1)
	group := um.UndoStack()[0].(*UndoGroup)
	assert.Len(t, group.Actions(), 1)
}

func TestEndUndoGroupErrors(t *testing.T) {
	um := NewUndoManager(nil)

	_, err := um.EndUndoGroup("nothing open")
	assert.ErrorIs(t, err, ErrLogic)

	um.AddSimpleUndo(func() {})
	_, err = um.EndUndoGroup("top is not a group")
	assert.ErrorIs(t, err, ErrLogic)

	um.BeginUndoGroup(nil)
	ok, err := um.EndUndoGroup("empty")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, um.UndoStack(), 1, "empty group is discarded")

	um.BeginUndoGroup(nil)
	um.AddSimpleUndo(func() {})
	ok, err = um.EndUndoGroup("first")
	require.NoError(t, err)
	require.True(t, ok)

	changed := 0
	um.Changed().Connect(func(struct{}) { changed++ })
	ok, err = um.EndUndoGroup("second")
	assert.ErrorIs(t, err, ErrLogic, "closing a closed group")
	assert.False(t, ok)
	assert.Equal(t, "first", um.UndoDescription())
	assert.Zero(t, changed)
}

func TestNestedUndoIsLogicError(t *testing.T) {
	um := NewUndoManager(nil)

	var nested error
	um.AddSimpleUndo(func() { nested = um.Undo() })
	require.NoError(t, um.Undo())
	assert.ErrorIs(t, nested, ErrLogic)
}

func TestUndoLimit(t *testing.T) {
	um := NewUndoManager(nil)
	um.SetUndoLimit(2)

	var ran []int
	for i := range 3 {
		um.AddSimpleUndo(func() { ran = append(ran, i) })
	}
	assert.Len(t, um.UndoStack(), 2)

	require.NoError(t, um.Undo())
	require.NoError(t, um.Undo())
	require.NoError(t, um.Undo())
	assert.Equal(t, []int{2, 1}, ran, "the oldest action was dropped")
}

func TestNewActionClearsRedo(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	undoable(t, rt, "first", func() { require.NoError(t, table.Set("name", String("a"))) })
	require.NoError(t, um.Undo())
	assert.True(t, um.CanRedo())

	undoable(t, rt, "second", func() { require.NoError(t, table.Set("name", String("b"))) })
	assert.False(t, um.CanRedo())
}

func TestDisabledManagerDropsActions(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	um.Disable()
	assert.Nil(t, rt.BeginUndoableAction())
	require.NoError(t, table.Set("name", String("x")))
	ok, err := rt.EndUndoableAction("ignored")
	require.NoError(t, err)
	assert.False(t, ok)
	um.Enable()

	assert.True(t, um.Empty())
	assert.True(t, um.IsEnabled())
}

func TestUndoSignals(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	changed, undone, redone := 0, 0, 0
	um.Changed().Connect(func(struct{}) { changed++ })
	um.Undone().Connect(func(UndoAction) { undone++ })
	um.Redone().Connect(func(UndoAction) { redone++ })

	undoable(t, rt, "rename", func() { require.NoError(t, table.Set("name", String("x"))) })
	assert.Positive(t, changed)

	require.NoError(t, um.Undo())
	require.NoError(t, um.Redo())
	assert.Equal(t, 1, undone)
	assert.Equal(t, 1, redone)
}

func TestUndoReentryFromSignal(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	var desc string
	um.Undone().Connect(func(UndoAction) { desc = um.RedoDescription() })

	undoable(t, rt, "rename", func() { require.NoError(t, table.Set("name", String("x"))) })
	require.NoError(t, um.Undo())
	assert.Equal(t, "rename", desc)
}

func TestLatestActions(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	undoable(t, rt, "closed", func() { require.NoError(t, table.Set("name", String("a"))) })
	rt.BeginUndoableAction()
	require.NoError(t, table.Set("comment", String("c")))

	latest := um.LatestUndoAction()
	change, ok := latest.(*ObjectChangeAction)
	require.True(t, ok)
	assert.Equal(t, "comment", change.Member)

	closed := um.LatestClosedUndoAction()
	assert.Equal(t, "closed", closed.Description())

	_, err := rt.EndUndoableAction("open")
	require.NoError(t, err)
}

func TestUndoDump(t *testing.T) {
	rt, table := trackedTable(t)
	um := rt.UndoManager()

	undoable(t, rt, "rename", func() {
		require.NoError(t, table.Set("name", String("clients")))
		require.NoError(t, table.ListMember("tags").Append(String("x")))
	})

	var buf bytes.Buffer
	um.DumpUndoStack(&buf)
	out := buf.String()
	assert.Contains(t, out, " group { \n")
	assert.Contains(t, out, "change_object Table::name <"+table.ID()+"> ->'clients'")
	assert.Contains(t, out, "insert_list Table::tags[-1] <"+table.ID()+">")
	assert.Contains(t, out, " }: rename\n")
}

func TestAutoUndo(t *testing.T) {
	t.Run("end", func(t *testing.T) {
		rt, table := trackedTable(t)
		au := rt.NewAutoUndo()
		require.NoError(t, table.Set("name", String("x")))
		require.NoError(t, au.End("rename"))
		assert.False(t, au.Active())
		assert.ErrorIs(t, au.End("again"), ErrLogic)
		assert.Equal(t, "rename", rt.UndoManager().UndoDescription())
	})

	t.Run("close cancels", func(t *testing.T) {
		rt, table := trackedTable(t)
		func() {
			au := rt.NewAutoUndo()
			defer au.Close()
			require.NoError(t, table.Set("name", String("x")))
		}()
		assert.Equal(t, "customers", table.StringMember("name"))
		assert.False(t, rt.UndoManager().CanUndo())
		assert.False(t, rt.TrackingChanges())
	})

	t.Run("end or cancel if empty", func(t *testing.T) {
		rt, _ := trackedTable(t)
		au := rt.NewAutoUndo()
		require.NoError(t, au.EndOrCancelIfEmpty("nothing"))
		assert.True(t, rt.UndoManager().Empty())
	})

	t.Run("description for last action", func(t *testing.T) {
		rt, table := trackedTable(t)
		au := rt.NewAutoUndo()
		require.NoError(t, table.Set("name", String("x")))
		au.SetDescriptionForLastAction("set name")
		require.NoError(t, table.Set("comment", String("y")))
		require.NoError(t, au.End("edit"))

		group := rt.UndoManager().UndoStack()[0].(*UndoGroup)
		assert.Equal(t, "set name", group.Actions()[0].Description())
	})
}

func TestInjectedUndoManager(t *testing.T) {
	um := NewUndoManager(nil)
	rt := New(WithUndoManager(um), WithUndoLimit(5))
	assert.Same(t, um, rt.UndoManager())
	assert.Equal(t, 5, um.UndoLimit())
}
