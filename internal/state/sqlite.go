package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapgrt/pkg/grt"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewSQLiteStoreWithDB wraps an open connection. The schema is expected
// to be migrated already.
func NewSQLiteStoreWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// OpenStore opens the database at path and applies pending migrations.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path given to Open.
func (s *SQLiteStore) Path() string { return s.path }

func generateID() string {
	return uuid.New().String()
}

// SaveDocument stores the graph owned by root under name, replacing a
// document of the same name.
func (s *SQLiteStore) SaveDocument(ctx context.Context, name string, root *grt.Object) (*Document, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if root == nil {
		return nil, &grt.NullValueError{Op: "save document"}
	}

	records, err := collect(root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	doc := &Document{
		Name:      name,
		RootID:    root.ID(),
		RootClass: root.ClassName(),
		Objects:   len(records),
		UpdatedAt: now,
	}

	err = tx.QueryRowContext(ctx, `SELECT id, created_at FROM documents WHERE name = ?`, name).
		Scan(&doc.ID, &doc.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		doc.ID = generateID()
		doc.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, name, root_id, root_class, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			doc.ID, doc.Name, doc.RootID, doc.RootClass, doc.CreatedAt, doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up document: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET root_id = ?, root_class = ?, updated_at = ? WHERE id = ?`,
			doc.RootID, doc.RootClass, doc.UpdatedAt, doc.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to update document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE document_id = ?`, doc.ID); err != nil {
			return nil, fmt.Errorf("failed to clear document objects: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO objects (id, document_id, class_name, owner_id, position, members) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare object insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var owner *string
		if r.ownerID != "" {
			owner = &r.ownerID
		}
		if _, err := stmt.ExecContext(ctx, r.obj.ID(), doc.ID, r.obj.ClassName(), owner, r.position, string(r.members)); err != nil {
			return nil, fmt.Errorf("failed to insert object %s: %w", r.obj.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit document: %w", err)
	}

	s.logger.Debug("document saved",
		slog.String("document", doc.Name),
		slog.String("id", doc.ID),
		slog.Int("objects", doc.Objects))
	return doc, nil
}

const documentColumns = `d.id, d.name, d.root_id, d.root_class, d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM objects o WHERE o.document_id = d.id)`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	doc := &Document{}
	err := row.Scan(&doc.ID, &doc.Name, &doc.RootID, &doc.RootClass, &doc.CreatedAt, &doc.UpdatedAt, &doc.Objects)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument looks a document up by id or name.
func (s *SQLiteStore) GetDocument(ctx context.Context, ref string) (*Document, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents d WHERE d.id = ? OR d.name = ?`, ref, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns every document ordered by name.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents d ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type objectRow struct {
	id      string
	class   string
	owner   sql.NullString
	members string
}

// LoadDocument rebuilds the stored graph in rt and returns its root.
// Objects keep their stored GUIDs. References to objects outside the
// document are resolved against live objects of rt; references that
// cannot be resolved are left null and logged.
func (s *SQLiteStore) LoadDocument(ctx context.Context, rt *grt.Runtime, ref string) (*grt.Object, error) {
	doc, err := s.GetDocument(ctx, ref)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, class_name, owner_id, members FROM objects WHERE document_id = ? ORDER BY position`, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load objects: %w", err)
	}
	var stored []objectRow
	for rows.Next() {
		var r objectRow
		if err := rows.Scan(&r.id, &r.class, &r.owner, &r.members); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		stored = append(stored, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dec := &decoder{rt: rt, loaded: make(map[string]*grt.Object, len(stored))}
	for _, r := range stored {
		mc := rt.Class(r.class)
		if mc == nil {
			return nil, fmt.Errorf("document %s: unknown class %s", doc.Name, r.class)
		}
		o, err := mc.CreateWithID(r.id)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.Name, err)
		}
		dec.loaded[r.id] = o
	}
	for _, r := range stored {
		if err := dec.restore(dec.loaded[r.id], []byte(r.members)); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.Name, err)
		}
	}
	for _, r := range stored {
		o := dec.loaded[r.id]
		if o.Owner() != nil || !r.owner.Valid {
			continue
		}
		if owner := dec.resolve(r.owner.String); owner != nil {
			o.SetOwner(owner)
		}
	}

	for _, id := range dec.dangling {
		s.logger.Warn("unresolved reference", slog.String("document", doc.Name), slog.String("id", id))
	}

	root, ok := dec.loaded[doc.RootID]
	if !ok {
		return nil, fmt.Errorf("document %s: root %s is missing", doc.Name, doc.RootID)
	}
	s.logger.Debug("document loaded", slog.String("document", doc.Name), slog.Int("objects", len(stored)))
	return root, nil
}

// DeleteDocument removes a document and its objects.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, ref string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM objects WHERE document_id IN (SELECT id FROM documents WHERE id = ? OR name = ?)`, ref, ref,
	); err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ? OR name = ?`, ref, ref)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return tx.Commit()
}
