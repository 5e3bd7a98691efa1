package structs

import (
	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

type sampleColumn struct {
	name     string
	datatype string
	length   int64
	notNull  bool
	autoInc  bool
	pk       bool
}

var sampleTables = []struct {
	name    string
	columns []sampleColumn
}{
	{name: "customers", columns: []sampleColumn{
		{name: "id", datatype: "INT", length: -1, autoInc: true, pk: true},
		{name: "name", datatype: "VARCHAR", length: 45, notNull: true},
		{name: "email", datatype: "VARCHAR", length: 120},
		{name: "country_id", datatype: "INT", length: -1},
		{name: "created_at", datatype: "DATETIME", length: -1},
	}},
	{name: "countries", columns: []sampleColumn{
		{name: "id", datatype: "INT", length: -1, pk: true},
		{name: "name", datatype: "VARCHAR", length: 60, notNull: true},
	}},
	{name: "orders", columns: []sampleColumn{
		{name: "id", datatype: "INT", length: -1, autoInc: true, pk: true},
		{name: "customer_id", datatype: "INT", length: -1, notNull: true},
		{name: "total", datatype: "DECIMAL", length: -1},
	}},
}

// BuildSampleCatalog builds catalog "def" with schema "shop" holding the
// tables customers, countries and orders. orders.customer_id references
// customers.id and customers.country_id references countries.id.
func BuildSampleCatalog(rt *grt.Runtime) (Catalog, error) {
	catalog, err := NewCatalog(rt, "def")
	if err != nil {
		return Catalog{}, err
	}
	schema, err := NewSchema(rt, "shop")
	if err != nil {
		return Catalog{}, err
	}
	if err := catalog.AddSchema(schema); err != nil {
		return Catalog{}, err
	}
	if err := catalog.Set("defaultSchema", schema.Object); err != nil {
		return Catalog{}, err
	}

	for _, st := range sampleTables {
		table, err := schema.AddNewTable(st.name)
		if err != nil {
			return Catalog{}, err
		}
		for _, sc := range st.columns {
			col, err := NewColumn(rt, sc.name, sc.datatype)
			if err != nil {
				return Catalog{}, err
			}
			if err := col.SetLength(sc.length); err != nil {
				return Catalog{}, err
			}
			if err := col.SetNotNull(sc.notNull); err != nil {
				return Catalog{}, err
			}
			if err := col.SetAutoIncrement(sc.autoInc); err != nil {
				return Catalog{}, err
			}
			if err := table.AddColumn(col); err != nil {
				return Catalog{}, err
			}
			if sc.pk {
				if err := table.AddPrimaryKeyColumn(col); err != nil {
					return Catalog{}, err
				}
			}
		}
	}
	if total, ok := mustTable(schema, "orders").Column("total"); ok {
		if err := total.Set("precision", grt.Integer(10)); err != nil {
			return Catalog{}, err
		}
		if err := total.Set("scale", grt.Integer(2)); err != nil {
			return Catalog{}, err
		}
	}

	for _, ref := range []struct{ name, from, column, to, target string }{
		{name: "fk_orders_customer", from: "orders", column: "customer_id", to: "customers", target: "id"},
		{name: "fk_customers_country", from: "customers", column: "country_id", to: "countries", target: "id"},
	} {
		if err := addForeignKey(rt, schema, ref.name, ref.from, ref.column, ref.to, ref.target); err != nil {
			return Catalog{}, err
		}
	}
	return catalog, nil
}

func mustTable(s Schema, name string) Table {
	t, _ := s.Table(name)
	return t
}

func addForeignKey(rt *grt.Runtime, s Schema, name, from, column, to, target string) error {
	src, dst := mustTable(s, from), mustTable(s, to)
	col, _ := src.Column(column)
	ref, _ := dst.Column(target)

	fk, err := NewForeignKey(rt, name)
	if err != nil {
		return err
	}
	if err := fk.ListMember("columns").Append(col.Object); err != nil {
		return err
	}
	if err := fk.ListMember("referencedColumns").Append(ref.Object); err != nil {
		return err
	}
	if err := fk.Set("referencedTable", dst.Object); err != nil {
		return err
	}
	return src.ListMember("foreignKeys").Append(fk.Object)
}

// BuildSamplePublisher builds a publisher owning two books written by one
// author. Books refer back to the publisher and the author lists both
// books, so the graph has reference cycles.
func BuildSamplePublisher(rt *grt.Runtime) (Publisher, error) {
	pub, err := NewPublisher(rt, "Leap Press")
	if err != nil {
		return Publisher{}, err
	}
	if err := pub.Set("phone", grt.String("555-0100")); err != nil {
		return Publisher{}, err
	}
	author, err := NewAuthor(rt, "Ada Writer")
	if err != nil {
		return Publisher{}, err
	}

	for i, title := range []string{"Graphs in Practice", "Undo for Everyone"} {
		book, err := NewBook(rt, title)
		if err != nil {
			return Publisher{}, err
		}
		if err := book.Set("price", grt.Double(19.5+float64(i)*10)); err != nil {
			return Publisher{}, err
		}
		if err := book.Set("publisher", pub.Object); err != nil {
			return Publisher{}, err
		}
		if err := book.ListMember("authors").Append(author.Object); err != nil {
			return Publisher{}, err
		}
		if err := pub.ListMember("books").Append(book.Object); err != nil {
			return Publisher{}, err
		}
		if err := author.ListMember("books").Append(book.Object); err != nil {
			return Publisher{}, err
		}
	}
	return pub, nil
}
