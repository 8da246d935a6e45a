package labgo

import (
	"context"
	"fmt"

	"github.com/hupe1980/labgo/arrays"
	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/treepath"
)

// SchemaVersion is the persisted layout version this build reads and
// writes. A database recorded under a different major version is
// refused.
const SchemaVersion = "1.0.0"

// Store layers the hierarchical experiment namespace over a flat
// document backend. All operations are synchronous; multi-document move
// and delete are not atomic but are safe to re-run after a partial
// failure.
type Store struct {
	docs        docstore.Store
	serializer  *arrays.Serializer
	logger      *Logger
	parallelism int
}

// New opens a Store over backend, recording the schema version on first
// use and refusing databases written under a different major version.
func New(ctx context.Context, backend docstore.Store, opts ...Option) (*Store, error) {
	o := options{
		logger:      NoopLogger(),
		parallelism: 8,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.serializer == nil {
		s, err := arrays.New(arrays.Config{})
		if err != nil {
			return nil, translateError(err)
		}
		o.serializer = s
	}

	stored, err := backend.SchemaVersion(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	switch {
	case stored == "":
		if err := backend.SetSchemaVersion(ctx, SchemaVersion); err != nil {
			return nil, translateError(err)
		}
	case majorVersion(stored) != majorVersion(SchemaVersion):
		return nil, &ErrVersionMismatch{Stored: stored, Running: SchemaVersion}
	}

	return &Store{
		docs:        backend,
		serializer:  o.serializer,
		logger:      o.logger,
		parallelism: o.parallelism,
	}, nil
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return translateError(s.docs.Ping(ctx))
}

// Close releases the backend.
func (s *Store) Close() error {
	return translateError(s.docs.Close())
}

// normalize validates and canonicalizes a caller path, rejecting
// wildcards. Operations with wildcard forms parse those themselves.
func normalize(path string) (string, error) {
	p, err := treepath.Normalize(path)
	if err != nil {
		return "", translateError(err)
	}
	if treepath.IsWildcard(p) {
		return "", translateError(&treepath.PathError{
			Path:   path,
			Reason: "wildcard not allowed here",
		})
	}
	return p, nil
}

// pathExists reports whether path is the root, a directory or an
// experiment.
func (s *Store) pathExists(ctx context.Context, path string) (bool, error) {
	if path == treepath.Root {
		return true, nil
	}
	ok, err := s.docs.Directories().Exists(ctx, path)
	if err != nil || ok {
		return ok, translateError(err)
	}
	ok, err = s.docs.Experiments().Exists(ctx, path)
	return ok, translateError(err)
}

// dirExists reports whether path is the root or a directory.
func (s *Store) dirExists(ctx context.Context, path string) (bool, error) {
	if path == treepath.Root {
		return true, nil
	}
	ok, err := s.docs.Directories().Exists(ctx, path)
	return ok, translateError(err)
}

// requireDir fails with ErrNotFound unless path is a directory.
func (s *Store) requireDir(ctx context.Context, path string) error {
	ok, err := s.dirExists(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: directory %s", ErrNotFound, path)
	}
	return nil
}
