package labgo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docval"
	"github.com/hupe1980/labgo/treepath"
)

// Entry is one row of a directory listing. Data payloads are not loaded
// for listings.
type Entry struct {
	Path      string
	Name      string
	Kind      docstore.Kind
	CreatedAt time.Time
	Notes     docval.Map
}

// CreateDir creates a directory. Every proper ancestor must already
// exist; the root cannot be created.
func (s *Store) CreateDir(ctx context.Context, path string, notes docval.Map) error {
	p, err := normalize(path)
	if err != nil {
		return err
	}
	if p == treepath.Root {
		return fmt.Errorf("%w: root directory", ErrConflict)
	}

	exists, err := s.pathExists(ctx, p)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrConflict, p)
	}

	for _, ancestor := range treepath.Ancestors(p) {
		if err := s.requireDir(ctx, ancestor); err != nil {
			return err
		}
	}

	s.logger.Debug("creating directory", "path", p)

	return translateError(s.docs.Directories().Insert(ctx, docstore.Document{
		Kind:      docstore.KindDirectory,
		Path:      p,
		CreatedAt: time.Now().UTC(),
		Notes:     notes,
	}))
}

// PathExists reports whether path is the root, a directory or an
// experiment.
func (s *Store) PathExists(ctx context.Context, path string) (bool, error) {
	p, err := normalize(path)
	if err != nil {
		return false, err
	}
	return s.pathExists(ctx, p)
}

// DirExists reports whether path is the root or a directory.
func (s *Store) DirExists(ctx context.Context, path string) (bool, error) {
	p, err := normalize(path)
	if err != nil {
		return false, err
	}
	return s.dirExists(ctx, p)
}

// ListDir returns the direct children of a directory, directories and
// experiments merged, newest first.
func (s *Store) ListDir(ctx context.Context, path string) ([]Entry, error) {
	p, err := normalize(path)
	if err != nil {
		return nil, err
	}
	if err := s.requireDir(ctx, p); err != nil {
		return nil, err
	}

	sel := docstore.Selector{Prefix: p, Depth: docstore.DepthChildren}
	opts := docstore.FindOptions{OmitData: true}

	dirs, err := s.docs.Directories().Find(ctx, sel, opts)
	if err != nil {
		return nil, translateError(err)
	}
	exps, err := s.docs.Experiments().Find(ctx, sel, opts)
	if err != nil {
		return nil, translateError(err)
	}

	entries := make([]Entry, 0, len(dirs)+len(exps))
	for _, doc := range append(dirs, exps...) {
		entries = append(entries, Entry{
			Path:      doc.Path,
			Name:      treepath.Name(doc.Path),
			Kind:      doc.Kind,
			CreatedAt: doc.CreatedAt,
			Notes:     doc.Notes,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// UpdateDirNotes replaces a directory's notes wholesale.
func (s *Store) UpdateDirNotes(ctx context.Context, path string, notes docval.Map) error {
	p, err := normalize(path)
	if err != nil {
		return err
	}
	return translateError(s.docs.Directories().SetNotes(ctx, p, notes))
}
