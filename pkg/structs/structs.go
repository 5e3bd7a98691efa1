// Package structs provides the built-in object model: the base classes,
// the relational catalog classes (db.*) and a small test model (test.*).
// The classes are declared by embedded descriptors; member accessors and
// methods are bound here or in the embedded Starlark scripts.
package structs

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/leapstack-labs/leapgrt/internal/schema"
	starctx "github.com/leapstack-labs/leapgrt/internal/starlark"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

//go:embed schemas/*
var schemaFS embed.FS

//go:embed scripts/*.star
var scriptFS embed.FS

// Class names of the built-in model.
const (
	ClassObject      = "GrtObject"
	ClassNamedObject = "GrtNamedObject"

	ClassCatalog     = "db.Catalog"
	ClassSchema      = "db.Schema"
	ClassTable       = "db.Table"
	ClassColumn      = "db.Column"
	ClassIndex       = "db.Index"
	ClassIndexColumn = "db.IndexColumn"
	ClassForeignKey  = "db.ForeignKey"

	ClassPublisher = "test.Publisher"
	ClassBook      = "test.Book"
	ClassAuthor    = "test.Author"
)

// Schemas returns the embedded class descriptors.
func Schemas() fs.FS {
	sub, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		panic(err)
	}
	return sub
}

// Scripts returns the embedded Starlark method implementations.
func Scripts() fs.FS {
	sub, err := fs.Sub(scriptFS, "scripts")
	if err != nil {
		panic(err)
	}
	return sub
}

// Register loads the embedded descriptors into rt and binds the Go
// implementations of their members and methods. Registration is left
// open so callers can add classes of their own.
func Register(ctx context.Context, rt *grt.Runtime) error {
	if _, err := schema.NewFSLoader(Schemas(), "structs", rt.Logger()).LoadInto(ctx, rt); err != nil {
		return err
	}
	return bind(rt)
}

// Config selects additional descriptor and script directories.
type Config struct {
	SchemaDirs []string
	ScriptDirs []string
	Options    []grt.Option
}

// Environment is a runtime with the built-in model and any configured
// classes registered, and all script methods bound.
type Environment struct {
	Runtime *grt.Runtime
	Modules []*starctx.LoadedModule
}

// Load builds an Environment.
func Load(ctx context.Context, cfg Config) (*Environment, error) {
	rt := grt.New(cfg.Options...)
	if err := Register(ctx, rt); err != nil {
		return nil, err
	}
	for _, dir := range cfg.SchemaDirs {
		if _, err := schema.NewLoader(dir, rt.Logger()).LoadInto(ctx, rt); err != nil {
			return nil, err
		}
	}
	if err := rt.EndRegistration(); err != nil {
		return nil, fmt.Errorf("failed to finish class registration: %w", err)
	}

	loaders := []*starctx.Loader{starctx.NewFSLoader(Scripts(), "structs/scripts", rt)}
	for _, dir := range cfg.ScriptDirs {
		loaders = append(loaders, starctx.NewLoader(dir, rt))
	}
	var modules []*starctx.LoadedModule
	for _, l := range loaders {
		mods, err := l.Load(ctx)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mods...)
	}
	if _, err := starctx.BindScripts(rt, modules, loaders[0].Pool()); err != nil {
		return nil, err
	}

	return &Environment{Runtime: rt, Modules: modules}, nil
}

// NewRuntime returns a runtime with only the built-in model.
func NewRuntime(ctx context.Context, opts ...grt.Option) (*grt.Runtime, error) {
	env, err := Load(ctx, Config{Options: opts})
	if err != nil {
		return nil, err
	}
	return env.Runtime, nil
}
