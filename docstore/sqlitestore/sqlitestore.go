// Package sqlitestore is the embedded docstore backend. It keeps each
// collection in its own table with a unique path index, serialized
// document data as JSON, and rides SQLite's rowid for insertion order.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hupe1980/labgo/blobstore"
	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docval"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS directories (
  id TEXT NOT NULL,
  path TEXT NOT NULL UNIQUE,
  created_at INTEGER NOT NULL,
  notes TEXT NOT NULL DEFAULT '{}',
  data TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS experiments (
  id TEXT NOT NULL,
  path TEXT NOT NULL UNIQUE,
  created_at INTEGER NOT NULL,
  notes TEXT NOT NULL DEFAULT '{}',
  data TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT
);
CREATE TABLE IF NOT EXISTS blobs (
  locator TEXT PRIMARY KEY,
  data BLOB NOT NULL
);
`

// Store implements docstore.Store on a SQLite database file.
type Store struct {
	db          *sql.DB
	directories *collection
	experiments *collection
	blobs       *blobFacility
}

// Open opens (and if needed initializes) the database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	s := &Store{db: db}
	s.directories = &collection{db: db, table: "directories", kind: docstore.KindDirectory}
	s.experiments = &collection{db: db, table: "experiments", kind: docstore.KindExperiment}
	s.blobs = &blobFacility{db: db}
	return s, nil
}

func (s *Store) Directories() docstore.Collection { return s.directories }
func (s *Store) Experiments() docstore.Collection { return s.experiments }

// Blobs returns the database's large-object facility: array payloads
// stored in a blobs table alongside the documents that reference them.
func (s *Store) Blobs() blobstore.BlobStore { return s.blobs }

func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var version sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr(err)
	}
	return version.String, nil
}

func (s *Store) SetSchemaVersion(ctx context.Context, version string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`, version)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", docstore.ErrStorage, err)
}

type collection struct {
	db    *sql.DB
	table string
	kind  docstore.Kind
}

func (c *collection) Insert(ctx context.Context, doc docstore.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	data, err := encodeMap(doc.Data)
	if err != nil {
		return err
	}
	notes, err := encodeMap(doc.Notes)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO `+c.table+` (id, path, created_at, notes, data) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Path, doc.CreatedAt.UnixNano(), notes, data,
	)
	if err != nil {
		// modernc/sqlite surfaces constraint violations only through
		// the message text.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return docstore.ErrConflict
		}
		return storageErr(err)
	}
	return nil
}

func (c *collection) Get(ctx context.Context, path string) (docstore.Document, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, path, created_at, notes, data FROM `+c.table+` WHERE path = ?`, path)
	return c.scanRow(row, false)
}

func (c *collection) Exists(ctx context.Context, path string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM `+c.table+` WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr(err)
	}
	return true, nil
}

// selectorClause turns a path selector into an indexed WHERE predicate.
// DepthChildren precision and IncludeRoot for the matched rows are left
// to Selector.Matches on the way out.
func selectorClause(sel docstore.Selector) (string, []any) {
	switch {
	case sel.Exact != "":
		return "path = ?", []any{sel.Exact}
	case len(sel.Paths) > 0:
		placeholders := strings.Repeat("?, ", len(sel.Paths))
		args := make([]any, len(sel.Paths))
		for i, p := range sel.Paths {
			args[i] = p
		}
		return "path IN (" + placeholders[:len(placeholders)-2] + ")", args
	case sel.Prefix != "":
		lo, hi := docstore.PathRange(sel.Prefix)
		if sel.IncludeRoot {
			return "(path = ? OR (path >= ? AND path < ?))", []any{sel.Prefix, lo, hi}
		}
		return "path >= ? AND path < ?", []any{lo, hi}
	default:
		return "1 = 1", nil
	}
}

func (c *collection) Find(ctx context.Context, sel docstore.Selector, opts docstore.FindOptions) ([]docstore.Document, error) {
	docs, err := c.query(ctx, sel, opts.OmitData && len(opts.Filters) == 0 && len(opts.Sort) == 0)
	if err != nil {
		return nil, err
	}
	return docstore.Apply(docs, opts), nil
}

func (c *collection) Count(ctx context.Context, sel docstore.Selector, filters []docstore.Filter) (int, error) {
	docs, err := c.query(ctx, sel, len(filters) == 0)
	if err != nil {
		return 0, err
	}
	return len(docstore.Apply(docs, docstore.FindOptions{Filters: filters})), nil
}

// query returns matching documents in insertion order. skipData elides
// payload decoding when nothing downstream needs it.
func (c *collection) query(ctx context.Context, sel docstore.Selector, skipData bool) ([]docstore.Document, error) {
	where, args := selectorClause(sel)

	cols := "id, path, created_at, notes, data"
	if skipData {
		cols = "id, path, created_at, notes"
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT `+cols+` FROM `+c.table+` WHERE `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := c.scanRows(rows, skipData)
		if err != nil {
			return nil, err
		}
		if sel.Matches(doc.Path) {
			docs = append(docs, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return docs, nil
}

func (c *collection) SetField(ctx context.Context, path, field string, value docval.Value) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT data FROM `+c.table+` WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return storageErr(err)
	}

	data, err := decodeMap(raw)
	if err != nil {
		return err
	}
	if err := docval.SetPath(data, field, value); err != nil {
		return err
	}

	encoded, err := encodeMap(data)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+c.table+` SET data = ? WHERE path = ?`, encoded, path); err != nil {
		return storageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

func (c *collection) SetNotes(ctx context.Context, path string, notes docval.Map) error {
	encoded, err := encodeMap(notes)
	if err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx, `UPDATE `+c.table+` SET notes = ? WHERE path = ?`, encoded, path)
	if err != nil {
		return storageErr(err)
	}
	return requireAffected(res)
}

func (c *collection) SetNote(ctx context.Context, path, key string, value docval.Value) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT notes FROM `+c.table+` WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return storageErr(err)
	}

	notes, err := decodeMap(raw)
	if err != nil {
		return err
	}
	notes[key] = value

	encoded, err := encodeMap(notes)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+c.table+` SET notes = ? WHERE path = ?`, encoded, path); err != nil {
		return storageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

func (c *collection) Delete(ctx context.Context, path string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM `+c.table+` WHERE path = ?`, path)
	if err != nil {
		return storageErr(err)
	}
	return requireAffected(res)
}

func (c *collection) Rename(ctx context.Context, oldPath, newPath string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE `+c.table+` SET path = ? WHERE path = ?`, newPath, oldPath)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return docstore.ErrConflict
		}
		return storageErr(err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (c *collection) scanRow(row *sql.Row, skipData bool) (docstore.Document, error) {
	doc, err := c.scan(row, skipData)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return doc, err
}

func (c *collection) scanRows(rows *sql.Rows, skipData bool) (docstore.Document, error) {
	return c.scan(rows, skipData)
}

func (c *collection) scan(r rowScanner, skipData bool) (docstore.Document, error) {
	var (
		doc       docstore.Document
		createdAt int64
		rawNotes  string
		rawData   string
	)
	doc.Kind = c.kind

	var err error
	if skipData {
		err = r.Scan(&doc.ID, &doc.Path, &createdAt, &rawNotes)
	} else {
		err = r.Scan(&doc.ID, &doc.Path, &createdAt, &rawNotes, &rawData)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, err
	}
	if err != nil {
		return docstore.Document{}, storageErr(err)
	}

	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	if doc.Notes, err = decodeMap(rawNotes); err != nil {
		return docstore.Document{}, err
	}
	if !skipData {
		if doc.Data, err = decodeMap(rawData); err != nil {
			return docstore.Document{}, err
		}
	}
	return doc, nil
}

func encodeMap(m docval.Map) (string, error) {
	if m == nil {
		m = docval.Map{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding document fields: %w", err)
	}
	return string(raw), nil
}

func decodeMap(raw string) (docval.Map, error) {
	if raw == "" {
		return docval.Map{}, nil
	}
	var m docval.Map
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decoding document fields: %w", err)
	}
	return m, nil
}

// blobFacility keeps array payloads in the blobs table, so documents and
// their large objects share one database file and one backup story.
type blobFacility struct {
	db *sql.DB
}

// Put stores data under locator. Locators are write-once in practice
// (callers allocate a fresh one per payload), so replacing is harmless.
func (b *blobFacility) Put(ctx context.Context, locator string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blobs (locator, data) VALUES (?, ?)`, locator, data)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// Get reads a blob in full.
func (b *blobFacility) Get(ctx context.Context, locator string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT data FROM blobs WHERE locator = ?`, locator).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return data, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (b *blobFacility) Delete(ctx context.Context, locator string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM blobs WHERE locator = ?`, locator); err != nil {
		return storageErr(err)
	}
	return nil
}

// List returns all locators with the given prefix, sorted.
func (b *blobFacility) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT locator FROM blobs ORDER BY locator`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var locators []string
	for rows.Next() {
		var locator string
		if err := rows.Scan(&locator); err != nil {
			return nil, storageErr(err)
		}
		if strings.HasPrefix(locator, prefix) {
			locators = append(locators, locator)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return locators, nil
}
