package starlark

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/leapstack-labs/leapgrt/internal/schema"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"golang.org/x/sync/errgroup"
)

// LoadedModule is an executed script file.
type LoadedModule struct {
	// Namespace is derived from the file name ("table" for "table.star").
	Namespace string

	// Path is the file name within the script tree.
	Path string

	// Exports contains the module globals not starting with _.
	Exports starlark.StringDict
}

// Struct exposes the module exports as a Starlark module value.
func (m *LoadedModule) Struct() *starlarkstruct.Module {
	return &starlarkstruct.Module{Name: m.Namespace, Members: m.Exports}
}

// Loader executes the .star files of a directory with the grt module
// predeclared.
type Loader struct {
	fsys   fs.FS
	name   string
	rt     *grt.Runtime
	pool   *ThreadPool
	logger *slog.Logger
}

// NewLoader creates a loader for a directory on disk.
func NewLoader(dir string, rt *grt.Runtime) *Loader {
	return NewFSLoader(os.DirFS(dir), dir, rt)
}

// NewFSLoader creates a loader over fsys. name prefixes reported paths.
func NewFSLoader(fsys fs.FS, name string, rt *grt.Runtime) *Loader {
	logger := rt.Logger()
	return &Loader{
		fsys:   fsys,
		name:   name,
		rt:     rt,
		pool:   NewThreadPool(runtime.GOMAXPROCS(0), logger),
		logger: logger,
	}
}

// Pool returns the threads used to run script methods.
func (l *Loader) Pool() *ThreadPool { return l.pool }

// Load executes every script in parallel. A missing directory has no
// scripts. Modules are returned in file name order.
func (l *Loader) Load(ctx context.Context) ([]*LoadedModule, error) {
	files, err := fs.Glob(l.fsys, "*.star")
	if err != nil {
		return nil, fmt.Errorf("failed to scan scripts directory: %w", err)
	}

	predeclared := Predeclared(l.rt)
	modules := make([]*LoadedModule, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := l.loadFile(file, predeclared)
			if err != nil {
				return err
			}
			modules[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Debug("loaded scripts", "dir", l.name, "files", len(files))
	return modules, nil
}

func (l *Loader) loadFile(file string, predeclared starlark.StringDict) (*LoadedModule, error) {
	content, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	namespace := strings.TrimSuffix(path.Base(file), ".star")
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: file, Message: err.Error()}
	}

	thread := l.pool.Get("load:" + namespace)
	defer l.pool.Put(thread)

	globals, err := starlark.ExecFileOptions(evalOptions, thread, path.Join(l.name, file), content, predeclared)
	if err != nil {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}

	exports := make(starlark.StringDict)
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = value
		}
	}

	return &LoadedModule{
		Namespace: namespace,
		Path:      file,
		Exports:   exports,
	}, nil
}

// LoadAndBind loads the scripts and binds them to the script methods of
// the registered classes.
func (l *Loader) LoadAndBind(ctx context.Context) ([]*LoadedModule, error) {
	modules, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := BindScripts(l.rt, modules, l.pool); err != nil {
		return nil, err
	}
	return modules, nil
}

// BindScripts installs script implementations for every method carrying a
// script attribute of the form "file.star:function". The script function
// receives the object followed by the method arguments. Returns the
// number of bound methods.
func BindScripts(rt *grt.Runtime, modules []*LoadedModule, pool *ThreadPool) (int, error) {
	byFile := make(map[string]*LoadedModule, len(modules))
	for _, m := range modules {
		byFile[path.Base(m.Path)] = m
	}

	bound := 0
	for _, mc := range rt.Classes() {
		for _, m := range mc.Methods() {
			ref := mc.MemberAttribute(m.Name, schema.ScriptAttribute, false)
			if ref == "" {
				continue
			}
			qualified := mc.Name() + "::" + m.Name

			file, fnName, ok := strings.Cut(ref, ":")
			if !ok || file == "" || fnName == "" {
				return bound, fmt.Errorf("%s: invalid script reference %q", qualified, ref)
			}
			module, ok := byFile[file]
			if !ok {
				return bound, fmt.Errorf("%s: script %s is not loaded", qualified, file)
			}
			fn, ok := module.Exports[fnName].(starlark.Callable)
			if !ok {
				return bound, fmt.Errorf("%s: %s does not export a function %s", qualified, file, fnName)
			}
			if err := mc.BindMethod(m.Name, scriptMethod(pool, qualified, fn)); err != nil {
				return bound, err
			}
			bound++
		}
	}
	rt.Logger().Debug("bound script methods", "count", bound)
	return bound, nil
}

func scriptMethod(pool *ThreadPool, name string, fn starlark.Callable) grt.MethodFunc {
	return func(o *grt.Object, args []grt.Value) (grt.Value, error) {
		thread := pool.Get(name)
		defer pool.Put(thread)

		sargs := make(starlark.Tuple, 0, len(args)+1)
		sargs = append(sargs, NewObject(o))
		for _, a := range args {
			sargs = append(sargs, ToStarlark(a))
		}
		result, err := starlark.Call(thread, fn, sargs, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v, err := FromStarlark(result)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}
}

// validateNamespace checks that a module name is a valid identifier.
func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}

	for i, r := range name {
		if i == 0 {
			if !isLetter(r) && r != '_' {
				return fmt.Errorf("namespace must start with letter or underscore: %s", name)
			}
		} else {
			if !isLetter(r) && !isDigit(r) && r != '_' {
				return fmt.Errorf("namespace contains invalid character: %s", name)
			}
		}
	}
	return nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError represents an error loading a script file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("scripts/%s: %s", path.Base(e.File), e.Message)
}
