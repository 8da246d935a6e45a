// Package config loads the YAML configuration file and wires a ready
// store from it.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/labgo"
	"github.com/hupe1980/labgo/arrays"
	"github.com/hupe1980/labgo/blobstore"
	"github.com/hupe1980/labgo/diskcache"
	"github.com/hupe1980/labgo/docstore/sqlitestore"
)

// Storage selects where oversized array payloads live.
type Storage string

const (
	// StorageNone keeps every payload inside its document.
	StorageNone Storage = "none"
	// StorageLocal writes payloads to files under LocalFileStoragePath.
	StorageLocal Storage = "local"
	// StorageBlobStore writes payloads to an object store.
	StorageBlobStore Storage = "blobstore"
)

// Config is the on-disk configuration schema.
type Config struct {
	// ConnString is the directory holding the database file, or the
	// database file itself when DBName is empty.
	ConnString string `yaml:"conn_string"`
	DBName     string `yaml:"db_name,omitempty"`

	// LargeFileStorage selects the payload tier. Defaults to "none".
	LargeFileStorage     Storage `yaml:"large_file_storage,omitempty"`
	LocalFileStoragePath string  `yaml:"local_file_storage_path,omitempty"`

	// CompressArrays enables payload compression; the algorithm is
	// "zstd" (default) or "lz4".
	CompressArrays       bool   `yaml:"compress_arrays,omitempty"`
	CompressionAlgorithm string `yaml:"compression_algorithm,omitempty"`

	// Local read cache for blob-store payloads.
	LocalCacheEnabled   bool   `yaml:"local_cache_enabled,omitempty"`
	LocalCachePath      string `yaml:"local_cache_path,omitempty"`
	LocalCacheMaxSizeMB int64  `yaml:"local_cache_max_size_mb,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to path, validating it first.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the schema's conditional requirements. Tier-specific
// settings are only required for the tier that is actually selected.
func (c *Config) Validate() error {
	if c.ConnString == "" {
		return fmt.Errorf("conn_string is required")
	}

	switch c.storage() {
	case StorageNone, StorageBlobStore:
	case StorageLocal:
		if c.LocalFileStoragePath == "" {
			return fmt.Errorf("local_file_storage_path is required for large_file_storage %q", StorageLocal)
		}
	default:
		return fmt.Errorf("unknown large_file_storage %q", c.LargeFileStorage)
	}

	switch c.CompressionAlgorithm {
	case "", "zstd", "lz4":
	default:
		return fmt.Errorf("unknown compression_algorithm %q", c.CompressionAlgorithm)
	}

	if c.LocalCacheEnabled {
		if c.LocalCachePath == "" {
			return fmt.Errorf("local_cache_path is required when the cache is enabled")
		}
		if c.LocalCacheMaxSizeMB <= 0 {
			return fmt.Errorf("local_cache_max_size_mb must be positive when the cache is enabled")
		}
	}
	return nil
}

func (c *Config) storage() Storage {
	if c.LargeFileStorage == "" {
		return StorageNone
	}
	return c.LargeFileStorage
}

// DatabasePath returns the SQLite file the config points at.
func (c *Config) DatabasePath() string {
	if c.DBName == "" {
		return c.ConnString
	}
	return filepath.Join(c.ConnString, c.DBName+".db")
}

func (c *Config) codec() arrays.Codec {
	if c.CompressionAlgorithm == "lz4" {
		return arrays.CodecLZ4
	}
	return arrays.CodecZstd
}

// Open wires a ready store from the configuration: the SQLite backend,
// the payload tier and, when enabled, the local payload cache. blobs
// overrides the payload store when large_file_storage is "blobstore";
// when nil, payloads ride in the database's own blob table.
func Open(ctx context.Context, cfg *Config, blobs blobstore.BlobStore, opts ...labgo.Option) (*labgo.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := sqlitestore.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	serializerCfg := arrays.Config{
		Compress: cfg.CompressArrays,
		Codec:    cfg.codec(),
	}
	switch cfg.storage() {
	case StorageNone:
		serializerCfg.Mode = arrays.ModeNone
	case StorageLocal:
		serializerCfg.Mode = arrays.ModeLocal
		serializerCfg.LocalRoot = cfg.LocalFileStoragePath
	case StorageBlobStore:
		if blobs == nil {
			blobs = backend.Blobs()
		}
		serializerCfg.Mode = arrays.ModeBlobStore
		serializerCfg.Blobs = blobs

		if cfg.LocalCacheEnabled {
			cache, err := diskcache.New(diskcache.Options{
				Root:     cfg.LocalCachePath,
				MaxBytes: cfg.LocalCacheMaxSizeMB << 20,
			})
			if err != nil {
				_ = backend.Close()
				return nil, err
			}
			serializerCfg.Cache = cache
		}
	}

	serializer, err := arrays.New(serializerCfg)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	store, err := labgo.New(ctx, backend, append(opts, labgo.WithArraySerializer(serializer))...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}
