package grt

// CopyContext clones object graphs. Copy duplicates an object with its
// owned subgraph; references to objects outside that subgraph are kept.
// UpdateReferences then redirects references to objects that were copied
// in the same context to their clones.
type CopyContext struct {
	copies map[string]*Object // original id -> clone
	roots  []*Object
}

// NewCopyContext creates an empty copy context.
func NewCopyContext() *CopyContext {
	return &CopyContext{copies: make(map[string]*Object)}
}

// Copy deep-copies o, skipping the named members.
func (c *CopyContext) Copy(o *Object, skip ...string) (*Object, error) {
	return c.copyRoot(o, skip, false)
}

// ShallowCopy copies the scalar members of o. Object, list and dict
// members of the clone alias the values of the original.
func (c *CopyContext) ShallowCopy(o *Object, skip ...string) (*Object, error) {
	return c.copyRoot(o, skip, true)
}

func (c *CopyContext) copyRoot(o *Object, skip []string, shallow bool) (*Object, error) {
	if o == nil {
		return nil, nil
	}
	clone, err := c.duplicate(o, toSet(skip), shallow)
	if err != nil {
		return nil, err
	}
	if clone.Owner() == nil {
		clone.SetOwner(o.Owner())
	}
	c.roots = append(c.roots, clone)
	return clone, nil
}

// CopyFor returns the clone made of orig in this context, or nil.
func (c *CopyContext) CopyFor(orig *Object) *Object {
	if orig == nil {
		return nil
	}
	return c.copies[orig.id]
}

// Copies returns the objects passed to Copy and ShallowCopy, as clones.
func (c *CopyContext) Copies() []*Object { return append([]*Object(nil), c.roots...) }

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func (c *CopyContext) duplicate(o *Object, skip map[string]bool, shallow bool) (*Object, error) {
	clone, err := o.class.Create()
	if err != nil {
		return nil, err
	}
	c.copies[o.id] = clone

	var copyErr error
	o.class.ForEachMember(func(m *Member) bool {
		if skip[m.Name] || m.Calculated {
			return true
		}
		i := o.class.index[m.Name]
		v := o.class.GetMemberAt(o, i)
		dontFollow := shallow || !m.OwnedObject

		switch t := m.Type.Base.Type; {
		case IsSimpleType(t) || t == AnyType:
			copyErr = o.class.setMemberAt(clone, i, v, true)
		case t == ListType:
			src, _ := v.(*List)
			dst, _ := clone.class.GetMemberAt(clone, i).(*List)
			if src != nil && dst != nil {
				copyErr = c.copyList(dst, src, dontFollow)
			}
		case t == DictType:
			src, _ := v.(*Dict)
			dst, _ := clone.class.GetMemberAt(clone, i).(*Dict)
			if src != nil && dst != nil {
				copyErr = c.copyDict(dst, src, dontFollow)
			}
		case t == ObjectType:
			child, _ := v.(*Object)
			if child == nil {
				return true
			}
			if dontFollow {
				if cc, ok := c.copies[child.id]; ok {
					copyErr = o.class.setMemberAt(clone, i, cc, true)
				} else {
					copyErr = o.class.setMemberAt(clone, i, child, true)
				}
				return copyErr == nil
			}
			var cc *Object
			if cc, copyErr = c.duplicate(child, map[string]bool{}, false); copyErr == nil {
				copyErr = o.class.setMemberAt(clone, i, cc, true)
			}
		}
		return copyErr == nil
	})
	if copyErr != nil {
		return nil, copyErr
	}
	return clone, nil
}

func (c *CopyContext) copyValue(v Value, dontFollow bool) (Value, error) {
	if dontFollow {
		return v, nil
	}
	switch x := v.(type) {
	case *List:
		l := NewList(x.content, x.allowNull)
		if err := c.copyList(l, x, false); err != nil {
			return nil, err
		}
		return l, nil
	case *Dict:
		d := NewDict(x.content, x.allowNull)
		if err := c.copyDict(d, x, false); err != nil {
			return nil, err
		}
		return d, nil
	case *Object:
		return c.Copy(x)
	}
	return v, nil
}

func (c *CopyContext) copyList(dst, src *List, dontFollow bool) error {
	for _, item := range src.items {
		v, err := c.copyValue(item, dontFollow)
		if err != nil {
			return err
		}
		if err := dst.Insert(v, End); err != nil {
			return err
		}
	}
	return nil
}

func (c *CopyContext) copyDict(dst, src *Dict, dontFollow bool) error {
	for _, k := range src.Keys() {
		v, err := c.copyValue(src.entries[k], dontFollow)
		if err != nil {
			return err
		}
		if err := dst.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReferences redirects references held by the clones to the clones
// of their targets, where the target was copied in this context. Owners
// are relinked the same way.
func (c *CopyContext) UpdateReferences() error {
	for _, clone := range c.roots {
		if err := c.fixup(clone); err != nil {
			return err
		}
	}
	return nil
}

func (c *CopyContext) fixup(clone *Object) error {
	if owner := clone.Owner(); owner != nil {
		if cc, ok := c.copies[owner.id]; ok && cc != clone {
			clone.SetOwner(cc)
		}
	}

	mc := clone.class
	for i, m := range mc.layout {
		if m.Calculated {
			continue
		}
		v := mc.GetMemberAt(clone, i)
		if v == nil {
			continue
		}
		dontFollow := !m.OwnedObject

		switch m.Type.Base.Type {
		case ListType:
			l := v.(*List)
			for j, item := range l.Items() {
				obj, ok := item.(*Object)
				if !ok {
					continue
				}
				if !dontFollow {
					if err := c.fixup(obj); err != nil {
						return err
					}
					continue
				}
				if cc, ok := c.copies[obj.id]; ok {
					if err := l.Set(j, cc); err != nil {
						return err
					}
				}
			}
		case DictType:
			d := v.(*Dict)
			for _, k := range d.Keys() {
				obj, ok := d.entries[k].(*Object)
				if !ok {
					continue
				}
				if !dontFollow {
					if err := c.fixup(obj); err != nil {
						return err
					}
					continue
				}
				if cc, ok := c.copies[obj.id]; ok {
					if err := d.Set(k, cc); err != nil {
						return err
					}
				}
			}
		case ObjectType:
			obj, ok := v.(*Object)
			if !ok {
				continue
			}
			if !dontFollow {
				if err := c.fixup(obj); err != nil {
					return err
				}
				continue
			}
			if cc, ok := c.copies[obj.id]; ok {
				if err := mc.setMemberAt(clone, i, cc, true); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// CopyObject deep-copies o and relinks internal references.
func CopyObject(o *Object, skip ...string) (*Object, error) {
	ctx := NewCopyContext()
	clone, err := ctx.Copy(o, skip...)
	if err != nil {
		return nil, err
	}
	if err := ctx.UpdateReferences(); err != nil {
		return nil, err
	}
	return clone, nil
}

// ShallowCopyObject copies the scalar members of o. References are not
// relinked, so objects referring to o keep referring to it.
func ShallowCopyObject(o *Object, skip ...string) (*Object, error) {
	return NewCopyContext().ShallowCopy(o, skip...)
}

// CopyValue copies a value. Scalars are returned as is; lists and dicts
// are copied with their elements copied too when deep is set; objects are
// deep-copied.
func CopyValue(v Value, deep bool) (Value, error) {
	switch x := v.(type) {
	case *List:
		l := NewList(x.content, x.allowNull)
		for _, item := range x.items {
			if deep {
				var err error
				if item, err = CopyValue(item, true); err != nil {
					return nil, err
				}
			}
			if err := l.Insert(item, End); err != nil {
				return nil, err
			}
		}
		return l, nil
	case *Dict:
		d := NewDict(x.content, x.allowNull)
		for _, k := range x.Keys() {
			item := x.entries[k]
			if deep {
				var err error
				if item, err = CopyValue(item, true); err != nil {
					return nil, err
				}
			}
			if err := d.Set(k, item); err != nil {
				return nil, err
			}
		}
		return d, nil
	case *Object:
		if x == nil {
			return nil, nil
		}
		return CopyObject(x)
	}
	return v, nil
}
