package starlark

import (
	"fmt"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ModuleName is the name of the predeclared runtime module.
const ModuleName = "grt"

// Predeclared returns the globals available to every script and
// expression: the grt module and the struct constructor.
func Predeclared(rt *grt.Runtime) starlark.StringDict {
	return starlark.StringDict{
		ModuleName: Module(rt),
		"struct":   starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

// Module builds the grt module bound to rt.
//
//	grt.create(class)           new instance of class
//	grt.classes()               registered class names
//	grt.find(id)                object by id, or None
//	grt.copy(obj, deep=True)    copy of obj
//	grt.guid()                  new identifier
//	grt.id(obj), grt.class_name(obj), grt.is_instance(obj, class)
//	grt.undo(), grt.redo(), grt.can_undo(), grt.can_redo()
func Module(rt *grt.Runtime) *starlarkstruct.Module {
	b := &builtins{rt: rt}
	return &starlarkstruct.Module{
		Name: ModuleName,
		Members: starlark.StringDict{
			"create":      starlark.NewBuiltin("create", b.create),
			"classes":     starlark.NewBuiltin("classes", b.classes),
			"find":        starlark.NewBuiltin("find", b.find),
			"copy":        starlark.NewBuiltin("copy", b.copy),
			"guid":        starlark.NewBuiltin("guid", b.guid),
			"id":          starlark.NewBuiltin("id", b.id),
			"class_name":  starlark.NewBuiltin("class_name", b.className),
			"is_instance": starlark.NewBuiltin("is_instance", b.isInstance),
			"undo":        starlark.NewBuiltin("undo", b.undo),
			"redo":        starlark.NewBuiltin("redo", b.redo),
			"can_undo":    starlark.NewBuiltin("can_undo", b.canUndo),
			"can_redo":    starlark.NewBuiltin("can_redo", b.canRedo),
		},
	}
}

type builtins struct {
	rt *grt.Runtime
}

func (b *builtins) create(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var class string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &class); err != nil {
		return nil, err
	}
	o, err := b.rt.Create(class)
	if err != nil {
		return nil, err
	}
	return NewObject(o), nil
}

func (b *builtins) classes(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	classes := b.rt.Classes()
	names := make([]starlark.Value, len(classes))
	for i, mc := range classes {
		names[i] = starlark.String(mc.Name())
	}
	return starlark.NewList(names), nil
}

func (b *builtins) find(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &id); err != nil {
		return nil, err
	}
	if o := b.rt.FindObject(id); o != nil {
		return NewObject(o), nil
	}
	return starlark.None, nil
}

func (b *builtins) copy(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var obj *Object
	deep := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "obj", &obj, "deep?", &deep); err != nil {
		return nil, err
	}
	copyFn := grt.CopyObject
	if !deep {
		copyFn = grt.ShallowCopyObject
	}
	c, err := copyFn(obj.obj)
	if err != nil {
		return nil, err
	}
	return NewObject(c), nil
}

func (b *builtins) guid(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.String(grt.NewGUID()), nil
}

func (b *builtins) id(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var obj *Object
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &obj); err != nil {
		return nil, err
	}
	return starlark.String(obj.obj.ID()), nil
}

func (b *builtins) className(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var obj *Object
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &obj); err != nil {
		return nil, err
	}
	return starlark.String(obj.obj.ClassName()), nil
}

func (b *builtins) isInstance(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var obj *Object
	var class string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &obj, &class); err != nil {
		return nil, err
	}
	return starlark.Bool(obj.obj.IsInstance(class)), nil
}

func (b *builtins) undo(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	um := b.rt.UndoManager()
	if !um.CanUndo() {
		return nil, fmt.Errorf("%s: nothing to undo", fn.Name())
	}
	return starlark.None, um.Undo()
}

func (b *builtins) redo(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	um := b.rt.UndoManager()
	if !um.CanRedo() {
		return nil, fmt.Errorf("%s: nothing to redo", fn.Name())
	}
	return starlark.None, um.Redo()
}

func (b *builtins) canUndo(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.Bool(b.rt.UndoManager().CanUndo()), nil
}

func (b *builtins) canRedo(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.Bool(b.rt.UndoManager().CanRedo()), nil
}
