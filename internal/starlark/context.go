package starlark

import (
	"fmt"
	"maps"
	"sync"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"go.starlark.net/starlark"
)

// Context holds the globals for evaluating expressions against a runtime.
// Objects bound with Bind are visible by name.
type Context struct {
	rt *grt.Runtime

	// Modules contains loaded script namespaces.
	Modules starlark.StringDict

	bound   starlark.StringDict
	globals starlark.StringDict

	// mu protects globals
	mu sync.RWMutex
}

// ContextOption is a functional option for configuring Context.
type ContextOption func(*Context)

// WithModules exposes loaded script modules by namespace.
func WithModules(modules []*LoadedModule) ContextOption {
	return func(ctx *Context) {
		for _, m := range modules {
			ctx.Modules[m.Namespace] = m.Struct()
		}
	}
}

// NewContext creates an evaluation context for rt.
func NewContext(rt *grt.Runtime, opts ...ContextOption) *Context {
	ctx := &Context{
		rt:      rt,
		Modules: make(starlark.StringDict),
		bound:   make(starlark.StringDict),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.buildGlobals()
	return ctx
}

func (ctx *Context) buildGlobals() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	globals := Predeclared(ctx.rt)
	maps.Copy(globals, ctx.Modules)
	maps.Copy(globals, ctx.bound)
	ctx.globals = globals
}

// Globals returns the combined globals dictionary.
func (ctx *Context) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// Bind makes v visible to expressions as name.
// Returns error if name conflicts with a predeclared global or a module.
func (ctx *Context) Bind(name string, v grt.Value) error {
	if _, ok := Predeclared(ctx.rt)[name]; ok {
		return fmt.Errorf("global %q conflicts with builtin", name)
	}
	if _, ok := ctx.Modules[name]; ok {
		return fmt.Errorf("global %q conflicts with script module", name)
	}

	ctx.mu.Lock()
	ctx.bound[name] = ToStarlark(v)
	ctx.mu.Unlock()

	ctx.buildGlobals()
	return nil
}

// EvalExpr evaluates a single Starlark expression.
func (ctx *Context) EvalExpr(expr, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with additional local
// variables. Locals take precedence over globals.
func (ctx *Context) EvalExprWithLocals(expr, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := newThread(filename)

	globals := ctx.Globals()
	if len(locals) > 0 {
		combined := make(starlark.StringDict, len(globals)+len(locals))
		maps.Copy(combined, globals)
		maps.Copy(combined, locals)
		globals = combined
	}

	result, err := starlark.EvalOptions(evalOptions, thread, filename, expr, globals)
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
		}
	}
	return result, nil
}

// EvalValue evaluates expr and converts the result to a runtime value.
func (ctx *Context) EvalValue(expr, filename string) (grt.Value, error) {
	result, err := ctx.EvalExpr(expr, filename, 0)
	if err != nil {
		return nil, err
	}
	v, err := FromStarlark(result)
	if err != nil {
		return nil, &EvalError{File: filename, Expr: expr, Message: err.Error()}
	}
	return v, nil
}

// EvalExprString evaluates a Starlark expression and returns its string form.
func (ctx *Context) EvalExprString(expr, filename string, line int) (string, error) {
	result, err := ctx.EvalExpr(expr, filename, line)
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		return result.String(), nil
	}
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, _ string) {},
	}
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}
