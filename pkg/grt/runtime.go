package grt

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leapgrt/internal/dag"
)

// Runtime owns the class registry, change tracking state, the undo manager
// and the object arena. Object graphs are single-writer: mutations of the
// same graph must not run concurrently.
type Runtime struct {
	mu      sync.RWMutex
	classes map[string]*MetaClass
	sealed  bool

	undo     *UndoManager
	tracking atomic.Int32
	logger   *slog.Logger
	arena    *Arena
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used by the runtime and its default undo manager.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// WithUndoManager injects the undo manager that records changes.
func WithUndoManager(um *UndoManager) Option {
	return func(rt *Runtime) { rt.undo = um }
}

// WithUndoLimit caps the number of undo steps kept.
func WithUndoLimit(limit int) Option {
	return func(rt *Runtime) {
		if rt.undo == nil {
			rt.undo = NewUndoManager(rt.logger)
		}
		rt.undo.SetUndoLimit(limit)
	}
}

// New creates a runtime with an empty class registry.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		classes: make(map[string]*MetaClass),
		logger:  slog.New(slog.DiscardHandler),
		arena:   newArena(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.undo == nil {
		rt.undo = NewUndoManager(rt.logger)
	}
	return rt
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// UndoManager returns the undo manager changes are recorded in.
func (rt *Runtime) UndoManager() *UndoManager { return rt.undo }

// Arena returns the GUID index of live objects.
func (rt *Runtime) Arena() *Arena { return rt.arena }

// FindObject returns the live object with the given GUID, or nil.
func (rt *Runtime) FindObject(id string) *Object { return rt.arena.Lookup(id) }

// RegisterClass adds a class to the registry. A parent that is not yet
// known is registered as a placeholder until its definition arrives.
func (rt *Runtime) RegisterClass(mc *MetaClass) error {
	if mc == nil || mc.name == "" {
		return NewLogicError("register", "class without name")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.sealed {
		return NewLogicError("register", "registration finished, cannot add %s", mc.name)
	}
	if existing, ok := rt.classes[mc.name]; ok && !existing.placeholder {
		return NewLogicError("register", "duplicate class %s", mc.name)
	}

	mc.rt = rt
	rt.classes[mc.name] = mc
	if mc.parentName != "" {
		if _, ok := rt.classes[mc.parentName]; !ok {
			p := newPlaceholder(mc.parentName)
			p.rt = rt
			rt.classes[mc.parentName] = p
		}
	}
	return nil
}

// Class returns a registered class, or nil.
func (rt *Runtime) Class(name string) *MetaClass {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.classes[name]
}

// Classes returns all registered classes sorted by name.
func (rt *Runtime) Classes() []*MetaClass {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	out := make([]*MetaClass, 0, len(rt.classes))
	for _, mc := range rt.classes {
		out = append(out, mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Registered reports whether EndRegistration completed.
func (rt *Runtime) Registered() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.sealed
}

// Hierarchy returns the inheritance graph of the registered classes.
func (rt *Runtime) Hierarchy() *dag.Graph[*MetaClass] {
	classes := rt.Classes()
	g := dag.NewGraph[*MetaClass]()
	for _, mc := range classes {
		g.AddNode(mc.name, mc)
	}
	for _, mc := range classes {
		if mc.parentName != "" {
			// both ends are registered: a missing parent becomes a placeholder
			_ = g.AddEdge(mc.parentName, mc.name)
		}
	}
	return g
}

// Subclasses returns the names of every class deriving from name.
func (rt *Runtime) Subclasses(name string) []string {
	return rt.Hierarchy().Descendants(name)
}

// EndRegistration resolves parents and member layouts of every class. It
// fails when a parent was never defined or the hierarchy has a cycle.
// No object can be created before registration has ended.
func (rt *Runtime) EndRegistration() error {
	var errs []error
	for _, mc := range rt.Classes() {
		if mc.placeholder {
			errs = append(errs, NewLogicError("register", "class %s is used as a parent but never defined", mc.name))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	g := rt.Hierarchy()
	if has, cycle := g.HasCycle(); has {
		return NewLogicError("register", "inheritance cycle: %v", cycle)
	}
	nodes, err := g.TopologicalSort()
	if err != nil {
		return fmt.Errorf("order classes: %w", err)
	}

	for _, n := range nodes {
		mc := n.Data
		if mc.parentName != "" {
			mc.parent = rt.Class(mc.parentName)
		}
		if err := mc.resolve(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	rt.mu.Lock()
	rt.sealed = true
	rt.mu.Unlock()

	rt.logger.Debug("class registration finished", slog.Int("classes", len(nodes)))
	return nil
}

func (rt *Runtime) rebuildProperties() {
	nodes, err := rt.Hierarchy().TopologicalSort()
	if err != nil {
		return
	}
	for _, n := range nodes {
		if n.Data.resolved {
			n.Data.buildProperties()
		}
	}
}

// Create allocates a new object of the named class.
func (rt *Runtime) Create(class string) (*Object, error) {
	mc := rt.Class(class)
	if mc == nil {
		return nil, NewLogicError("create", "unknown class %s", class)
	}
	return mc.Create()
}

// Validate runs the validators of o's class chain.
func (rt *Runtime) Validate(o *Object, tag string) error {
	return o.class.RunValidators(o, tag)
}

// StartTrackingChanges enables undo recording. Calls nest.
func (rt *Runtime) StartTrackingChanges() { rt.tracking.Add(1) }

// StopTrackingChanges reverses StartTrackingChanges.
func (rt *Runtime) StopTrackingChanges() {
	for {
		cur := rt.tracking.Load()
		if cur == 0 || rt.tracking.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// TrackingChanges reports whether changes of global objects are recorded.
func (rt *Runtime) TrackingChanges() bool { return rt.tracking.Load() > 0 }

// BeginUndoableAction starts tracking changes and opens an undo group.
func (rt *Runtime) BeginUndoableAction() *UndoGroup {
	rt.StartTrackingChanges()
	return rt.undo.BeginUndoGroup(nil)
}

// EndUndoableAction stops tracking and closes the open undo group.
func (rt *Runtime) EndUndoableAction(description string) (bool, error) {
	rt.StopTrackingChanges()
	return rt.undo.EndUndoGroup(description)
}

// CancelUndoableAction stops tracking and reverts the open undo group.
func (rt *Runtime) CancelUndoableAction() error {
	rt.StopTrackingChanges()
	return rt.undo.CancelUndoGroup()
}
