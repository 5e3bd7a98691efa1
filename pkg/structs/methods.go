package structs

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"golang.org/x/text/cases"
)

// bind installs the Go implementations of the built-in model.
func bind(rt *grt.Runtime) error {
	object := rt.Class(ClassObject)
	table := rt.Class(ClassTable)
	schema := rt.Class(ClassSchema)
	if object == nil || table == nil || schema == nil {
		return fmt.Errorf("built-in model is incomplete")
	}

	if err := object.BindMember("owner", grt.Property{Get: ownerOf}); err != nil {
		return err
	}
	if err := table.BindMember("columnCount", grt.Property{
		Get: func(o *grt.Object) grt.Value { return grt.Integer(o.ListMember("columns").Count()) },
	}); err != nil {
		return err
	}

	table.BindAllocator(func(o *grt.Object) error {
		now := grt.String(time.Now().UTC().Format(time.DateTime))
		if err := o.Set("createDate", now); err != nil {
			return err
		}
		return o.Set("lastChangeDate", now)
	})
	table.AddValidator(validateTable)

	for name, fn := range map[string]grt.MethodFunc{
		"addColumn":              tableAddColumn,
		"removeColumn":           tableRemoveColumn,
		"addPrimaryKeyColumn":    tableAddPrimaryKeyColumn,
		"removePrimaryKeyColumn": tableRemovePrimaryKeyColumn,
		"isPrimaryKeyColumn":     tableIsPrimaryKeyColumn,
		"isForeignKeyColumn":     tableIsForeignKeyColumn,
	} {
		if err := table.BindMethod(name, fn); err != nil {
			return err
		}
	}
	return schema.BindMethod("addNewTable", schemaAddNewTable)
}

// ownerOf returns the owner as a Value; an object without owner yields nil
// rather than a typed nil pointer.
func ownerOf(o *grt.Object) grt.Value {
	if owner := o.Owner(); owner != nil {
		return owner
	}
	return nil
}

func columnArg(args []grt.Value) (*grt.Object, error) {
	col, err := grt.AsObject(args[0])
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, &grt.NullValueError{Op: "column argument"}
	}
	return col, nil
}

// undoable runs fn as one undo step. A failed fn is reverted and a step
// that recorded nothing is dropped.
func undoable(o *grt.Object, description string, fn func() error) error {
	au := o.Runtime().NewAutoUndo()
	defer au.Close()
	if err := fn(); err != nil {
		return errors.Join(err, au.Cancel())
	}
	return au.EndOrCancelIfEmpty(description)
}

func touch(table *grt.Object) error {
	return table.Set("lastChangeDate", grt.String(time.Now().UTC().Format(time.DateTime)))
}

func tableAddColumn(o *grt.Object, args []grt.Value) (grt.Value, error) {
	col, err := columnArg(args)
	if err != nil {
		return nil, err
	}
	return nil, undoable(o, fmt.Sprintf("Add column '%s'", col.StringMember("name")), func() error {
		if err := o.ListMember("columns").Append(col); err != nil {
			return err
		}
		return touch(o)
	})
}

// tableRemoveColumn removes the column together with every index column
// and foreign key column that refers to it. Indices and foreign keys left
// without columns are removed too.
func tableRemoveColumn(o *grt.Object, args []grt.Value) (grt.Value, error) {
	col, err := columnArg(args)
	if err != nil {
		return nil, err
	}
	columns := o.ListMember("columns")
	if !columns.Contains(col) {
		return nil, grt.NewLogicError("remove column", "%s is not a column of %s", col.StringMember("name"), o.StringMember("name"))
	}

	return nil, undoable(o, fmt.Sprintf("Remove column '%s'", col.StringMember("name")), func() error {
		indices := o.ListMember("indices")
		for _, idx := range objectsOf(indices) {
			grt.RemoveListItemsMatching(idx.ListMember("columns"), func(ic *grt.Object) bool {
				return ic.ObjectMember("referencedColumn") == col
			})
		}
		for _, fk := range objectsOf(o.ListMember("foreignKeys")) {
			fkCols := fk.ListMember("columns")
			for i := fkCols.Count() - 1; i >= 0; i-- {
				if fkCols.ObjectAt(i) != col {
					continue
				}
				if err := fkCols.RemoveAt(i); err != nil {
					return err
				}
				if refs := fk.ListMember("referencedColumns"); i < refs.Count() {
					if err := refs.RemoveAt(i); err != nil {
						return err
					}
				}
			}
		}
		grt.RemoveListItemsMatching(o.ListMember("foreignKeys"), func(fk *grt.Object) bool {
			return fk.ListMember("columns").Count() == 0
		})

		if pk := o.ObjectMember("primaryKey"); pk != nil && pk.ListMember("columns").Count() == 0 {
			if err := o.Set("primaryKey", nil); err != nil {
				return err
			}
		}
		grt.RemoveListItemsMatching(indices, func(idx *grt.Object) bool {
			return idx.ListMember("columns").Count() == 0
		})

		columns.Remove(col)
		return touch(o)
	})
}

func objectsOf(l *grt.List) []*grt.Object {
	out := make([]*grt.Object, 0, l.Count())
	for i := range l.Count() {
		if obj := l.ObjectAt(i); obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// tableAddPrimaryKeyColumn adds the column to the primary index, creating
// the index if the table has none. Primary key columns are NOT NULL.
func tableAddPrimaryKeyColumn(o *grt.Object, args []grt.Value) (grt.Value, error) {
	col, err := columnArg(args)
	if err != nil {
		return nil, err
	}
	if !o.ListMember("columns").Contains(col) {
		return nil, grt.NewLogicError("add primary key column", "%s is not a column of %s", col.StringMember("name"), o.StringMember("name"))
	}
	if isPrimaryKeyColumn(o, col) {
		return nil, nil
	}

	rt := o.Runtime()
	return nil, undoable(o, fmt.Sprintf("Add '%s' to primary key", col.StringMember("name")), func() error {
		pk := o.ObjectMember("primaryKey")
		if pk == nil {
			var err error
			if pk, err = rt.Create(ClassIndex); err != nil {
				return err
			}
			for member, v := range map[string]grt.Value{
				"name":      grt.String("PRIMARY"),
				"isPrimary": grt.Integer(1),
				"unique":    grt.Integer(1),
				"indexType": grt.String("PRIMARY"),
			} {
				if err := pk.Set(member, v); err != nil {
					return err
				}
			}
			if err := o.ListMember("indices").Append(pk); err != nil {
				return err
			}
			if err := o.Set("primaryKey", pk); err != nil {
				return err
			}
		}

		ic, err := rt.Create(ClassIndexColumn)
		if err != nil {
			return err
		}
		if err := ic.Set("name", grt.String(col.StringMember("name"))); err != nil {
			return err
		}
		if err := ic.Set("referencedColumn", col); err != nil {
			return err
		}
		if err := pk.ListMember("columns").Append(ic); err != nil {
			return err
		}
		if err := col.Set("isNotNull", grt.Integer(1)); err != nil {
			return err
		}
		return touch(o)
	})
}

func tableRemovePrimaryKeyColumn(o *grt.Object, args []grt.Value) (grt.Value, error) {
	col, err := columnArg(args)
	if err != nil {
		return nil, err
	}
	pk := o.ObjectMember("primaryKey")
	if pk == nil || !isPrimaryKeyColumn(o, col) {
		return nil, nil
	}

	return nil, undoable(o, fmt.Sprintf("Remove '%s' from primary key", col.StringMember("name")), func() error {
		grt.RemoveListItemsMatching(pk.ListMember("columns"), func(ic *grt.Object) bool {
			return ic.ObjectMember("referencedColumn") == col
		})
		if pk.ListMember("columns").Count() == 0 {
			if err := o.Set("primaryKey", nil); err != nil {
				return err
			}
			o.ListMember("indices").Remove(pk)
		}
		return touch(o)
	})
}

func isPrimaryKeyColumn(table, col *grt.Object) bool {
	pk := table.ObjectMember("primaryKey")
	if pk == nil {
		return false
	}
	for _, ic := range objectsOf(pk.ListMember("columns")) {
		if ic.ObjectMember("referencedColumn") == col {
			return true
		}
	}
	return false
}

func tableIsPrimaryKeyColumn(o *grt.Object, args []grt.Value) (grt.Value, error) {
	col, err := columnArg(args)
	if err != nil {
		return nil, err
	}
	return flag(isPrimaryKeyColumn(o, col)), nil
}

func tableIsForeignKeyColumn(o *grt.Object, args []grt.Value) (grt.Value, error) {
	col, err := columnArg(args)
	if err != nil {
		return nil, err
	}
	for _, fk := range objectsOf(o.ListMember("foreignKeys")) {
		if fk.ListMember("columns").Contains(col) {
			return grt.Integer(1), nil
		}
	}
	return grt.Integer(0), nil
}

func schemaAddNewTable(o *grt.Object, args []grt.Value) (grt.Value, error) {
	prefix, err := grt.AsString(args[0])
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "table"
	}
	tables := o.ListMember("tables")

	table, err := o.Runtime().Create(ClassTable)
	if err != nil {
		return nil, err
	}
	name := grt.NameSuggestion(tables, prefix, false)
	if err := table.Set("name", grt.String(name)); err != nil {
		return nil, err
	}
	err = undoable(o, fmt.Sprintf("Add table '%s'", name), func() error {
		return tables.Append(table)
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// validateTable checks that the table is named, that column names are
// unique ignoring case and that the primary key is one of its indices.
func validateTable(o *grt.Object, _ string) error {
	var errs []error
	name := o.StringMember("name")
	if name == "" {
		errs = append(errs, fmt.Errorf("table %s has no name", o.ID()))
	}

	fold := cases.Fold()
	seen := make(map[string]bool)
	for _, col := range objectsOf(o.ListMember("columns")) {
		colName := col.StringMember("name")
		if colName == "" {
			errs = append(errs, fmt.Errorf("table %s: column %s has no name", name, col.ID()))
			continue
		}
		key := fold.String(colName)
		if seen[key] {
			errs = append(errs, fmt.Errorf("table %s: duplicate column %s", name, colName))
		}
		seen[key] = true
	}

	if pk := o.ObjectMember("primaryKey"); pk != nil && !o.ListMember("indices").Contains(pk) {
		errs = append(errs, fmt.Errorf("table %s: primary key %s is not an index of the table", name, pk.StringMember("name")))
	}
	return errors.Join(errs...)
}
