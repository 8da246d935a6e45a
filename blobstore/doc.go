// Package blobstore provides storage abstraction for offloaded array payloads.
//
// BlobStore is the interface for reading and writing whole blobs keyed by
// locator. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory store for testing
//   - minio.Store: MinIO and S3-compatible object storage
//   - s3.Store: Amazon S3 via the AWS SDK
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Put(ctx, locator, data) error
//	    Get(ctx, locator) ([]byte, error)
//	    Delete(ctx, locator) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
