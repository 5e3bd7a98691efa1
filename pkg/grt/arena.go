package grt

import (
	"runtime"
	"sort"
	"sync"
	"weak"
)

// Arena indexes live objects by GUID. Entries are weak: the arena never
// keeps an object alive, and entries of collected objects are removed.
type Arena struct {
	mu      sync.Mutex
	objects map[string]weak.Pointer[Object]
}

func newArena() *Arena {
	return &Arena{objects: make(map[string]weak.Pointer[Object])}
}

func (a *Arena) add(o *Object) {
	a.mu.Lock()
	a.objects[o.id] = weak.Make(o)
	a.mu.Unlock()

	runtime.AddCleanup(o, a.forget, o.id)
}

func (a *Arena) forget(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if wp, ok := a.objects[id]; ok && wp.Value() == nil {
		delete(a.objects, id)
	}
}

// rekey moves o from oldID to its current id.
func (a *Arena) rekey(o *Object, oldID string) {
	a.mu.Lock()
	if wp, ok := a.objects[oldID]; ok && wp.Value() == o {
		delete(a.objects, oldID)
	}
	a.objects[o.id] = weak.Make(o)
	a.mu.Unlock()

	runtime.AddCleanup(o, a.forget, o.id)
}

// Lookup returns the live object with id, or nil.
func (a *Arena) Lookup(id string) *Object {
	a.mu.Lock()
	defer a.mu.Unlock()

	wp, ok := a.objects[id]
	if !ok {
		return nil
	}
	return wp.Value()
}

// Len returns the number of live objects.
func (a *Arena) Len() int {
	return len(a.Objects())
}

// Objects returns the live objects ordered by id.
func (a *Arena) Objects() []*Object {
	a.mu.Lock()
	out := make([]*Object, 0, len(a.objects))
	for _, wp := range a.objects {
		if o := wp.Value(); o != nil {
			out = append(out, o)
		}
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Drop tears down every live object: references are reset and the index
// is cleared. Objects must not be used afterwards.
func (a *Arena) Drop() {
	objects := a.Objects()

	a.mu.Lock()
	a.objects = make(map[string]weak.Pointer[Object])
	a.mu.Unlock()

	for _, o := range objects {
		o.ResetReferences()
	}
}
