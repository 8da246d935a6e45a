package labgo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/labgo/arrays"
	"github.com/hupe1980/labgo/blobstore"
	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/treepath"
)

var (
	// ErrNotFound is returned when a path, document or payload does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with an existing
	// document.
	ErrConflict = errors.New("already exists")

	// ErrInvalidPath is returned for malformed or misplaced paths.
	ErrInvalidPath = errors.New("invalid path")

	// ErrConfiguration is returned when an operation needs storage the
	// store is not configured for.
	ErrConfiguration = errors.New("configuration error")

	// ErrStorage wraps backend failures.
	ErrStorage = errors.New("storage failure")
)

// ErrVersionMismatch indicates the database was written by an
// incompatible schema major version.
type ErrVersionMismatch struct {
	Stored  string
	Running string
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("schema version mismatch: database has %s, this build expects %s", e.Stored, e.Running)
}

// translateError unifies package-local errors onto the root sentinels so
// callers only test against labgo errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, docstore.ErrNotFound) ||
		errors.Is(err, blobstore.ErrNotFound) ||
		errors.Is(err, arrays.ErrPayloadMissing) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if errors.Is(err, docstore.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	if errors.Is(err, docstore.ErrStorage) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	var pe *treepath.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	var ce *arrays.ConfigurationError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return err
}

// majorVersion extracts the leading component of a semver-style string.
func majorVersion(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}
