// Package docstore defines the flat document model experiments and
// directories are stored in, plus the backend interface implemented by
// the shipped stores.
//
// Documents are keyed by their namespace path. Path selection (exact,
// subtree, children) is the backend's job so it can ride an index; field
// filtering, sorting, projection and limits share one in-process
// evaluator via Apply.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/labgo/docval"
)

var (
	// ErrNotFound is returned when no document exists at a path.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrConflict is returned when a write collides with an existing
	// document at the same path.
	ErrConflict = errors.New("docstore: document already exists")

	// ErrStorage wraps backend failures that are not a lookup miss or
	// a conflict.
	ErrStorage = errors.New("docstore: storage failure")
)

// Kind distinguishes the two document collections.
type Kind string

const (
	KindDirectory  Kind = "directory"
	KindExperiment Kind = "experiment"
)

// Document is one record in the flat store. Path is unique per
// collection.
type Document struct {
	ID        string
	Kind      Kind
	Path      string
	CreatedAt time.Time
	Notes     docval.Map
	Data      docval.Map
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := d
	out.Notes = d.Notes.Clone()
	out.Data = d.Data.Clone()
	return out
}

// Collection is one of the two per-kind document sets.
//
// Implementations must be safe for concurrent use. Insertion order must
// be preserved as the tie-break for equal sort keys.
type Collection interface {
	// Insert stores a new document. Returns ErrConflict if a document
	// already exists at doc.Path.
	Insert(ctx context.Context, doc Document) error

	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (Document, error)

	// Exists reports whether a document exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Find returns the documents matched by sel, post-processed per
	// opts.
	Find(ctx context.Context, sel Selector, opts FindOptions) ([]Document, error)

	// Count returns the number of documents matched by sel and
	// filters.
	Count(ctx context.Context, sel Selector, filters []Filter) (int, error)

	// SetField writes a dotted data field on the document at path,
	// creating intermediate objects. Returns ErrNotFound if the
	// document is missing.
	SetField(ctx context.Context, path, field string, value docval.Value) error

	// SetNotes replaces the notes of the document at path.
	SetNotes(ctx context.Context, path string, notes docval.Map) error

	// SetNote writes a single note key on the document at path.
	SetNote(ctx context.Context, path, key string, value docval.Value) error

	// Delete removes the document at path. Returns ErrNotFound if it
	// does not exist.
	Delete(ctx context.Context, path string) error

	// Rename moves the document at oldPath to newPath. Returns
	// ErrNotFound if oldPath is missing and ErrConflict if newPath is
	// taken.
	Rename(ctx context.Context, oldPath, newPath string) error
}

// Store is a document backend holding both collections plus store-level
// metadata.
type Store interface {
	Directories() Collection
	Experiments() Collection

	// SchemaVersion returns the stored schema version, or "" when the
	// store is brand new.
	SchemaVersion(ctx context.Context) (string, error)

	// SetSchemaVersion records the schema version.
	SetSchemaVersion(ctx context.Context, version string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
