package structs

import (
	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// Named wraps an object deriving from GrtNamedObject.
type Named struct {
	*grt.Object
}

func (n Named) Name() string              { return n.StringMember("name") }
func (n Named) SetName(name string) error { return n.Set("name", grt.String(name)) }
func (n Named) Comment() string           { return n.StringMember("comment") }
func (n Named) SetComment(c string) error { return n.Set("comment", grt.String(c)) }

// OldName is the name the object had when it was last synchronized.
func (n Named) OldName() string { return n.StringMember("oldName") }

// CustomData holds free-form annotations that are never diffed.
func (n Named) CustomData() *grt.Dict { return n.DictMember("customData") }

func create[T any](rt *grt.Runtime, class, name string, wrap func(*grt.Object) T) (T, error) {
	var zero T
	o, err := rt.Create(class)
	if err != nil {
		return zero, err
	}
	if name != "" {
		if err := o.Set("name", grt.String(name)); err != nil {
			return zero, err
		}
	}
	return wrap(o), nil
}

func as[T any](o *grt.Object, class string, wrap func(*grt.Object) T) (T, bool) {
	var zero T
	if o == nil || !o.IsInstance(class) {
		return zero, false
	}
	return wrap(o), true
}

func objects[T any](l *grt.List, wrap func(*grt.Object) T) []T {
	out := make([]T, 0, l.Count())
	for i := range l.Count() {
		if o := l.ObjectAt(i); o != nil {
			out = append(out, wrap(o))
		}
	}
	return out
}

func flag(b bool) grt.Integer {
	if b {
		return 1
	}
	return 0
}

// Catalog is a db.Catalog.
type Catalog struct{ Named }

func wrapCatalog(o *grt.Object) Catalog { return Catalog{Named{o}} }

// NewCatalog creates a catalog.
func NewCatalog(rt *grt.Runtime, name string) (Catalog, error) {
	return create(rt, ClassCatalog, name, wrapCatalog)
}

// AsCatalog wraps o if it is a db.Catalog.
func AsCatalog(o *grt.Object) (Catalog, bool) { return as(o, ClassCatalog, wrapCatalog) }

func (c Catalog) Schemata() []Schema       { return objects(c.ListMember("schemata"), wrapSchema) }
func (c Catalog) AddSchema(s Schema) error { return c.ListMember("schemata").Append(s.Object) }
func (c Catalog) Version() string          { return c.StringMember("version") }

// DefaultSchema returns the default schema, if set.
func (c Catalog) DefaultSchema() (Schema, bool) {
	return AsSchema(c.ObjectMember("defaultSchema"))
}

// Schema is a db.Schema.
type Schema struct{ Named }

func wrapSchema(o *grt.Object) Schema { return Schema{Named{o}} }

// NewSchema creates a schema.
func NewSchema(rt *grt.Runtime, name string) (Schema, error) {
	return create(rt, ClassSchema, name, wrapSchema)
}

// AsSchema wraps o if it is a db.Schema.
func AsSchema(o *grt.Object) (Schema, bool) { return as(o, ClassSchema, wrapSchema) }

func (s Schema) Tables() []Table { return objects(s.ListMember("tables"), wrapTable) }

// Table returns the table named name, compared case-insensitively.
func (s Schema) Table(name string) (Table, bool) {
	return AsTable(grt.FindNamedObject(s.ListMember("tables"), name, false))
}

// AddNewTable creates a table named after prefix and appends it.
func (s Schema) AddNewTable(prefix string) (Table, error) {
	v, err := s.Call("addNewTable", grt.String(prefix))
	if err != nil {
		return Table{}, err
	}
	o, err := grt.AsObject(v)
	if err != nil {
		return Table{}, err
	}
	return wrapTable(o), nil
}

// Table is a db.Table.
type Table struct{ Named }

func wrapTable(o *grt.Object) Table { return Table{Named{o}} }

// NewTable creates a table.
func NewTable(rt *grt.Runtime, name string) (Table, error) {
	return create(rt, ClassTable, name, wrapTable)
}

// AsTable wraps o if it is a db.Table.
func AsTable(o *grt.Object) (Table, bool) { return as(o, ClassTable, wrapTable) }

func (t Table) Columns() []Column         { return objects(t.ListMember("columns"), wrapColumn) }
func (t Table) Indices() []Index          { return objects(t.ListMember("indices"), wrapIndex) }
func (t Table) ForeignKeys() []ForeignKey { return objects(t.ListMember("foreignKeys"), wrapForeignKey) }
func (t Table) Engine() string            { return t.StringMember("tableEngine") }
func (t Table) CreateDate() string        { return t.StringMember("createDate") }

// Column returns the column named name, compared case-insensitively.
func (t Table) Column(name string) (Column, bool) {
	return AsColumn(grt.FindNamedObject(t.ListMember("columns"), name, false))
}

// PrimaryKey returns the primary index, if the table has one.
func (t Table) PrimaryKey() (Index, bool) { return AsIndex(t.ObjectMember("primaryKey")) }

func (t Table) AddColumn(c Column) error {
	_, err := t.Call("addColumn", c.Object)
	return err
}

func (t Table) RemoveColumn(c Column) error {
	_, err := t.Call("removeColumn", c.Object)
	return err
}

func (t Table) AddPrimaryKeyColumn(c Column) error {
	_, err := t.Call("addPrimaryKeyColumn", c.Object)
	return err
}

func (t Table) RemovePrimaryKeyColumn(c Column) error {
	_, err := t.Call("removePrimaryKeyColumn", c.Object)
	return err
}

func (t Table) IsPrimaryKeyColumn(c Column) bool {
	v, err := t.Call("isPrimaryKeyColumn", c.Object)
	return err == nil && grt.Equal(v, grt.Integer(1))
}

func (t Table) IsForeignKeyColumn(c Column) bool {
	v, err := t.Call("isForeignKeyColumn", c.Object)
	return err == nil && grt.Equal(v, grt.Integer(1))
}

// Describe returns the one line summary produced by the table script.
func (t Table) Describe() (string, error) {
	v, err := t.Call("describe")
	if err != nil {
		return "", err
	}
	return grt.AsString(v)
}

// Column is a db.Column.
type Column struct{ Named }

func wrapColumn(o *grt.Object) Column { return Column{Named{o}} }

// NewColumn creates a column of the given type.
func NewColumn(rt *grt.Runtime, name, datatype string) (Column, error) {
	c, err := create(rt, ClassColumn, name, wrapColumn)
	if err != nil {
		return Column{}, err
	}
	if datatype != "" {
		if err := c.Set("datatype", grt.String(datatype)); err != nil {
			return Column{}, err
		}
	}
	return c, nil
}

// AsColumn wraps o if it is a db.Column.
func AsColumn(o *grt.Object) (Column, bool) { return as(o, ClassColumn, wrapColumn) }

func (c Column) Datatype() string { return c.StringMember("datatype") }
func (c Column) Length() int64    { return c.IntegerMember("length") }
func (c Column) NotNull() bool    { return c.IntegerMember("isNotNull") != 0 }

func (c Column) SetLength(n int64) error       { return c.Set("length", grt.Integer(n)) }
func (c Column) SetNotNull(b bool) error       { return c.Set("isNotNull", flag(b)) }
func (c Column) SetAutoIncrement(b bool) error { return c.Set("autoIncrement", flag(b)) }

// FormattedType returns the type as written in a definition.
func (c Column) FormattedType() (string, error) {
	v, err := c.Call("formattedType")
	if err != nil {
		return "", err
	}
	return grt.AsString(v)
}

// Index is a db.Index.
type Index struct{ Named }

func wrapIndex(o *grt.Object) Index { return Index{Named{o}} }

// NewIndex creates an index.
func NewIndex(rt *grt.Runtime, name string) (Index, error) {
	return create(rt, ClassIndex, name, wrapIndex)
}

// AsIndex wraps o if it is a db.Index.
func AsIndex(o *grt.Object) (Index, bool) { return as(o, ClassIndex, wrapIndex) }

func (i Index) Columns() []IndexColumn { return objects(i.ListMember("columns"), wrapIndexColumn) }
func (i Index) IsPrimary() bool        { return i.IntegerMember("isPrimary") != 0 }
func (i Index) Unique() bool           { return i.IntegerMember("unique") != 0 }

// IndexColumn is a db.IndexColumn.
type IndexColumn struct{ Named }

func wrapIndexColumn(o *grt.Object) IndexColumn { return IndexColumn{Named{o}} }

// AsIndexColumn wraps o if it is a db.IndexColumn.
func AsIndexColumn(o *grt.Object) (IndexColumn, bool) {
	return as(o, ClassIndexColumn, wrapIndexColumn)
}

// ReferencedColumn returns the indexed column.
func (ic IndexColumn) ReferencedColumn() (Column, bool) {
	return AsColumn(ic.ObjectMember("referencedColumn"))
}

// ForeignKey is a db.ForeignKey.
type ForeignKey struct{ Named }

func wrapForeignKey(o *grt.Object) ForeignKey { return ForeignKey{Named{o}} }

// NewForeignKey creates a foreign key.
func NewForeignKey(rt *grt.Runtime, name string) (ForeignKey, error) {
	return create(rt, ClassForeignKey, name, wrapForeignKey)
}

// AsForeignKey wraps o if it is a db.ForeignKey.
func AsForeignKey(o *grt.Object) (ForeignKey, bool) { return as(o, ClassForeignKey, wrapForeignKey) }

func (fk ForeignKey) Columns() []Column { return objects(fk.ListMember("columns"), wrapColumn) }
func (fk ForeignKey) ReferencedColumns() []Column {
	return objects(fk.ListMember("referencedColumns"), wrapColumn)
}

// ReferencedTable returns the table the key points to.
func (fk ForeignKey) ReferencedTable() (Table, bool) {
	return AsTable(fk.ObjectMember("referencedTable"))
}

// Publisher is a test.Publisher.
type Publisher struct{ Named }

func wrapPublisher(o *grt.Object) Publisher { return Publisher{Named{o}} }

// NewPublisher creates a publisher.
func NewPublisher(rt *grt.Runtime, name string) (Publisher, error) {
	return create(rt, ClassPublisher, name, wrapPublisher)
}

func (p Publisher) Books() []Book { return objects(p.ListMember("books"), wrapBook) }

// Book is a test.Book.
type Book struct{ Named }

func wrapBook(o *grt.Object) Book { return Book{Named{o}} }

// NewBook creates a book with a title.
func NewBook(rt *grt.Runtime, title string) (Book, error) {
	b, err := create(rt, ClassBook, "", wrapBook)
	if err != nil {
		return Book{}, err
	}
	if err := b.Set("title", grt.String(title)); err != nil {
		return Book{}, err
	}
	return b, nil
}

func (b Book) Title() string { return b.StringMember("title") }

// Publisher returns the publisher reference, if set.
func (b Book) Publisher() (Publisher, bool) {
	return as(b.ObjectMember("publisher"), ClassPublisher, wrapPublisher)
}

func (b Book) Authors() []Author { return objects(b.ListMember("authors"), wrapAuthor) }

// Author is a test.Author.
type Author struct{ Named }

func wrapAuthor(o *grt.Object) Author { return Author{Named{o}} }

// NewAuthor creates an author.
func NewAuthor(rt *grt.Runtime, name string) (Author, error) {
	return create(rt, ClassAuthor, name, wrapAuthor)
}

func (a Author) Books() []Book { return objects(a.ListMember("books"), wrapBook) }
