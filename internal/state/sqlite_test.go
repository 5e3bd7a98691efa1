package state

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapgrt/internal/testutil"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	"github.com/leapstack-labs/leapgrt/pkg/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRuntime(t *testing.T) *grt.Runtime {
	t.Helper()
	rt, err := structs.NewRuntime(context.Background(), grt.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	return rt
}

func sampleCatalog(t *testing.T, rt *grt.Runtime) structs.Catalog {
	t.Helper()
	catalog, err := structs.BuildSampleCatalog(rt)
	require.NoError(t, err)
	return catalog
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, store.Migrate(context.Background()), "migrating twice is a no-op")
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.ListDocuments(ctx)
	assert.ErrorContains(t, err, "database not opened")
	_, err = store.GetDocument(ctx, "x")
	assert.ErrorContains(t, err, "database not opened")
	assert.ErrorContains(t, store.DeleteDocument(ctx, "x"), "database not opened")
	assert.ErrorContains(t, store.Migrate(ctx), "database not opened")
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	src := newRuntime(t)
	catalog := sampleCatalog(t, src)
	doc, err := store.SaveDocument(ctx, "shop", catalog.Object)
	require.NoError(t, err)
	assert.Equal(t, "shop", doc.Name)
	assert.Equal(t, catalog.ID(), doc.RootID)
	assert.Equal(t, structs.ClassCatalog, doc.RootClass)
	assert.Positive(t, doc.Objects)

	dst := newRuntime(t)
	root, err := store.LoadDocument(ctx, dst, "shop")
	require.NoError(t, err)
	assert.Equal(t, catalog.ID(), root.ID(), "GUIDs survive the round-trip")
	assert.Same(t, dst, root.Runtime())

	loaded, ok := structs.AsCatalog(root)
	require.True(t, ok)
	schema, ok := loaded.DefaultSchema()
	require.True(t, ok)
	require.Len(t, schema.Tables(), 3)

	owner, err := schema.Get("owner")
	require.NoError(t, err)
	assert.Same(t, root, owner)

	origSchema, _ := catalog.DefaultSchema()
	for i, table := range schema.Tables() {
		orig := origSchema.Tables()[i]
		assert.Equal(t, orig.ID(), table.ID())
		assert.Equal(t, orig.CreateDate(), table.CreateDate())

		want, err := orig.Describe()
		require.NoError(t, err)
		got, err := table.Describe()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	customers, _ := schema.Table("customers")
	pk, ok := customers.PrimaryKey()
	require.True(t, ok)
	ref, ok := pk.Columns()[0].ReferencedColumn()
	require.True(t, ok)
	assert.Same(t, customers.Columns()[0].Object, ref.Object, "references point into the loaded graph")

	orders, _ := schema.Table("orders")
	target, ok := orders.ForeignKeys()[0].ReferencedTable()
	require.True(t, ok)
	assert.Same(t, customers.Object, target.Object)
	assert.True(t, orders.IsForeignKeyColumn(orders.Columns()[1]))
}

func TestSQLiteStore_SaveReplacesDocument(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rt := newRuntime(t)
	catalog := sampleCatalog(t, rt)

	first, err := store.SaveDocument(ctx, "shop", catalog.Object)
	require.NoError(t, err)

	schema, _ := catalog.DefaultSchema()
	_, err = schema.AddNewTable("invoices")
	require.NoError(t, err)

	second, err := store.SaveDocument(ctx, "shop", catalog.Object)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Objects+1, second.Objects)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, second.Objects, docs[0].Objects)
	assert.True(t, docs[0].CreatedAt.Equal(first.CreatedAt))
}

func TestSQLiteStore_ExternalReferences(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rt := newRuntime(t)
	catalog := sampleCatalog(t, rt)
	schema, _ := catalog.DefaultSchema()
	orders, _ := schema.Table("orders")
	customers, _ := schema.Table("customers")

	_, err := store.SaveDocument(ctx, "orders", orders.Object)
	require.NoError(t, err)

	t.Run("resolved against live objects", func(t *testing.T) {
		root, err := store.LoadDocument(ctx, rt, "orders")
		require.NoError(t, err)
		table, ok := structs.AsTable(root)
		require.True(t, ok)

		target, ok := table.ForeignKeys()[0].ReferencedTable()
		require.True(t, ok)
		assert.Same(t, customers.Object, target.Object)

		owner, err := table.Get("owner")
		require.NoError(t, err)
		assert.Same(t, schema.Object, owner, "the stored owner is restored when alive")
	})

	t.Run("left null when unknown", func(t *testing.T) {
		logger, logs := testutil.CaptureLogger(t)
		root, err := NewSQLiteStoreWithDB(store.db, logger).LoadDocument(ctx, newRuntime(t), "orders")
		require.NoError(t, err)
		table, _ := structs.AsTable(root)

		fk := table.ForeignKeys()[0]
		_, ok := fk.ReferencedTable()
		assert.False(t, ok)
		assert.Contains(t, logs.String(), "unresolved reference")
		assert.Contains(t, logs.String(), customers.ID())
		require.Len(t, fk.Columns(), 1, "columns inside the document resolve")
		assert.Same(t, table.Columns()[1].Object, fk.Columns()[0].Object)
	})
}

func TestSQLiteStore_PublisherGraph(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rt := newRuntime(t)
	pub, err := structs.BuildSamplePublisher(rt)
	require.NoError(t, err)
	require.NoError(t, pub.CustomData().Set("rating", grt.Double(4.5)))

	doc, err := store.SaveDocument(ctx, "press", pub.Object)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Objects, "the author is referenced, not owned")

	root, err := store.LoadDocument(ctx, newRuntime(t), doc.ID)
	require.NoError(t, err)
	loaded := structs.Publisher{Named: structs.Named{Object: root}}

	assert.Equal(t, "555-0100", loaded.StringMember("phone"))
	assert.Equal(t, 4.5, loaded.CustomData().GetDouble("rating", 0))
	require.Len(t, loaded.Books(), 2)
	for _, book := range loaded.Books() {
		p, ok := book.Publisher()
		require.True(t, ok)
		assert.Same(t, root, p.Object)
		assert.Empty(t, book.Authors(), "authors live outside the document")
	}
}

func TestSQLiteStore_Documents(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rt := newRuntime(t)

	for _, name := range []string{"b", "a"} {
		table, err := structs.NewTable(rt, name)
		require.NoError(t, err)
		_, err = store.SaveDocument(ctx, name, table.Object)
		require.NoError(t, err)
	}

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Name)
	assert.Equal(t, 1, docs[0].Objects)

	byID, err := store.GetDocument(ctx, docs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "b", byID.Name)

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadDocument(ctx, rt, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteDocument(ctx, "a"))
	assert.ErrorIs(t, store.DeleteDocument(ctx, "a"), ErrNotFound)

	docs, err = store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].Name)
}

func TestSQLiteStore_UnknownClass(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rt := newRuntime(t)
	table, err := structs.NewTable(rt, "t")
	require.NoError(t, err)
	_, err = store.SaveDocument(ctx, "t", table.Object)
	require.NoError(t, err)

	bare := grt.New(grt.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, bare.EndRegistration())
	_, err = store.LoadDocument(ctx, bare, "t")
	assert.ErrorContains(t, err, "unknown class db.Table")
}
