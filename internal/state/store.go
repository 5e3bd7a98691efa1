// Package state persists object graphs in SQLite. A document is the graph
// owned by one root object; every object of the graph is stored as a row
// keyed by its GUID, so identities survive a save and load round-trip.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leapgrt/pkg/grt"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document describes a stored graph.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RootID    string    `json:"root_id"`
	RootClass string    `json:"root_class"`
	Objects   int       `json:"objects"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence interface used by the CLI.
type Store interface {
	SaveDocument(ctx context.Context, name string, root *grt.Object) (*Document, error)
	LoadDocument(ctx context.Context, rt *grt.Runtime, ref string) (*grt.Object, error)
	GetDocument(ctx context.Context, ref string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, ref string) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
