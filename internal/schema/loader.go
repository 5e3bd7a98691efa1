package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"golang.org/x/sync/errgroup"
)

// Loader reads every descriptor below a directory tree.
type Loader struct {
	fsys   fs.FS
	name   string
	logger *slog.Logger
}

// NewLoader creates a loader for a directory on disk.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	return &Loader{fsys: os.DirFS(dir), name: dir, logger: orDiscard(logger)}
}

// NewFSLoader creates a loader over fsys, e.g. an embedded file system.
// name prefixes the file names reported in errors.
func NewFSLoader(fsys fs.FS, name string, logger *slog.Logger) *Loader {
	return &Loader{fsys: fsys, name: name, logger: orDiscard(logger)}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// IsDescriptor reports whether the file name has a descriptor extension.
func IsDescriptor(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".xml":
		return true
	}
	return false
}

// Files returns the descriptor files of the tree in lexical order.
// A missing directory has no files.
func (l *Loader) Files() ([]string, error) {
	var files []string
	err := fs.WalkDir(l.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsDescriptor(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan schema directory %s: %w", l.name, err)
	}
	sort.Strings(files)
	return files, nil
}

// Load parses every descriptor in parallel. The result is ordered by file
// name so registration does not depend on scheduling.
func (l *Loader) Load(ctx context.Context) ([]*Descriptor, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}

	descs := make([]*Descriptor, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(l.fsys, file)
			if err != nil {
				return &LoadError{File: path.Join(l.name, file), Message: fmt.Sprintf("failed to read file: %v", err)}
			}
			d, err := Parse(path.Join(l.name, file), data)
			if err != nil {
				return err
			}
			descs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Debug("loaded schema descriptors", "dir", l.name, "files", len(files))
	return descs, nil
}

// LoadInto loads the tree and registers its classes with rt.
func (l *Loader) LoadInto(ctx context.Context, rt *grt.Runtime) ([]*Descriptor, error) {
	descs, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := Register(rt, descs); err != nil {
		return nil, err
	}
	return descs, nil
}
