// Package memstore is an in-memory docstore backend for tests and
// short-lived tooling.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docval"
)

// Store implements docstore.Store on plain maps. Safe for concurrent
// use.
type Store struct {
	mu            sync.RWMutex
	directories   *collection
	experiments   *collection
	schemaVersion string
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.directories = &collection{store: s, docs: make(map[string]record)}
	s.experiments = &collection{store: s, docs: make(map[string]record)}
	return s
}

func (s *Store) Directories() docstore.Collection { return s.directories }
func (s *Store) Experiments() docstore.Collection { return s.experiments }

func (s *Store) SchemaVersion(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemaVersion, nil
}

func (s *Store) SetSchemaVersion(_ context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaVersion = version
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// record pairs a document with its insertion sequence number, the
// tie-break for equal sort keys.
type record struct {
	doc docstore.Document
	seq uint64
}

type collection struct {
	store *Store
	docs  map[string]record
	seq   uint64
}

func (c *collection) Insert(_ context.Context, doc docstore.Document) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.docs[doc.Path]; ok {
		return docstore.ErrConflict
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	c.seq++
	c.docs[doc.Path] = record{doc: doc.Clone(), seq: c.seq}
	return nil
}

func (c *collection) Get(_ context.Context, path string) (docstore.Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	rec, ok := c.docs[path]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return rec.doc.Clone(), nil
}

func (c *collection) Exists(_ context.Context, path string) (bool, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	_, ok := c.docs[path]
	return ok, nil
}

func (c *collection) Find(_ context.Context, sel docstore.Selector, opts docstore.FindOptions) ([]docstore.Document, error) {
	c.store.mu.RLock()
	matched := c.selectLocked(sel)
	c.store.mu.RUnlock()

	return docstore.Apply(matched, opts), nil
}

func (c *collection) Count(_ context.Context, sel docstore.Selector, filters []docstore.Filter) (int, error) {
	c.store.mu.RLock()
	matched := c.selectLocked(sel)
	c.store.mu.RUnlock()

	return len(docstore.Apply(matched, docstore.FindOptions{Filters: filters})), nil
}

// selectLocked returns clones of the matching documents in insertion
// order. Caller holds at least a read lock.
func (c *collection) selectLocked(sel docstore.Selector) []docstore.Document {
	recs := make([]record, 0, len(c.docs))
	for _, rec := range c.docs {
		if sel.Matches(rec.doc.Path) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	docs := make([]docstore.Document, len(recs))
	for i, rec := range recs {
		docs[i] = rec.doc.Clone()
	}
	return docs
}

func (c *collection) SetField(_ context.Context, path, field string, value docval.Value) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	rec, ok := c.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	if rec.doc.Data == nil {
		rec.doc.Data = docval.Map{}
	}
	if err := docval.SetPath(rec.doc.Data, field, value.Clone()); err != nil {
		return err
	}
	c.docs[path] = rec
	return nil
}

func (c *collection) SetNotes(_ context.Context, path string, notes docval.Map) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	rec, ok := c.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	rec.doc.Notes = notes.Clone()
	c.docs[path] = rec
	return nil
}

func (c *collection) SetNote(_ context.Context, path, key string, value docval.Value) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	rec, ok := c.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	if rec.doc.Notes == nil {
		rec.doc.Notes = docval.Map{}
	}
	rec.doc.Notes[key] = value.Clone()
	c.docs[path] = rec
	return nil
}

func (c *collection) Delete(_ context.Context, path string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.docs[path]; !ok {
		return docstore.ErrNotFound
	}
	delete(c.docs, path)
	return nil
}

func (c *collection) Rename(_ context.Context, oldPath, newPath string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	rec, ok := c.docs[oldPath]
	if !ok {
		return docstore.ErrNotFound
	}
	if _, taken := c.docs[newPath]; taken {
		return docstore.ErrConflict
	}
	rec.doc.Path = newPath
	delete(c.docs, oldPath)
	c.docs[newPath] = rec
	return nil
}
