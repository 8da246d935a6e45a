package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("blobstore: blob not found")

// BlobStore is an abstraction for storing opaque array payloads under
// caller-chosen locators. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Put writes a blob atomically. An existing blob with the same
	// locator is overwritten.
	Put(ctx context.Context, locator string, data []byte) error

	// Get reads a blob in full. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, locator string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, locator string) error

	// List returns all locators with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
