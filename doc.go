// Package labgo is a hierarchical experiment metadata store.
//
// It layers a filesystem-like namespace of directories and experiments
// over a flat document backend, and transparently offloads large
// numeric-array payloads to a storage tier with local caching.
//
// # Basic Usage
//
//	backend, err := sqlitestore.Open("lab.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := labgo.New(ctx, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	_ = store.CreateDir(ctx, "/resnet", nil)
//	path, _ := store.CreateExperiment(ctx, "/resnet", "", docval.Map{
//	    "lr": docval.Float(0.01),
//	}, nil)
//	// path == "/resnet/0"
//
// # Packages
//
//   - treepath: path parsing, validation and range-pattern expansion
//   - docval: the typed value tree documents are made of
//   - docstore: the flat document backend (memstore, sqlitestore)
//   - arrays: tiered array offloading with compression
//   - blobstore: large-payload backends (memory, MinIO, S3)
//   - diskcache: bounded local cache for blob payloads
//   - config: YAML configuration and one-call store wiring
//
// # Errors
//
// Operations return errors testable with errors.Is against the root
// sentinels: ErrNotFound, ErrConflict, ErrInvalidPath,
// ErrConfiguration, ErrStorage. Schema incompatibility surfaces as
// *ErrVersionMismatch.
package labgo
