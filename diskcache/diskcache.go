// Package diskcache provides a bounded on-disk cache for offloaded array
// payloads. Entries are plain files named by locator; recency is tracked
// through file modification times so the cache survives process restarts.
//
// Eviction is randomized LRU: when over budget, the cache picks the
// CandidateGroup least recently used entries and removes one of them
// uniformly at random. This keeps several concurrent processes sharing a
// cache directory from all deleting the same file.
package diskcache

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCandidateGroup is the number of least recently used entries
// eviction chooses between.
const DefaultCandidateGroup = 2

// tmpPrefix marks in-flight writes; scan treats such files as garbage
// from a crashed process.
const tmpPrefix = ".tmp-"

// Options configures a Cache.
type Options struct {
	// Root is the cache directory. Created if it does not exist.
	Root string

	// MaxBytes is the cache size budget. Must be positive.
	MaxBytes int64

	// CandidateGroup is the number of least recently used entries the
	// evictor picks between. Defaults to DefaultCandidateGroup.
	CandidateGroup int
}

type entry struct {
	size     int64
	lastUsed time.Time
}

// Cache is a bounded disk cache. Safe for concurrent use.
type Cache struct {
	root       string
	maxBytes   int64
	candidates int

	mu      sync.Mutex
	entries map[string]*entry
	total   int64
	rng     *rand.Rand
}

// New opens a cache rooted at opts.Root, scanning any entries left by a
// previous process.
func New(opts Options) (*Cache, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("diskcache: root directory required")
	}
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("diskcache: max bytes must be positive, got %d", opts.MaxBytes)
	}
	if opts.CandidateGroup == 0 {
		opts.CandidateGroup = DefaultCandidateGroup
	}
	if opts.CandidateGroup < 1 {
		return nil, fmt.Errorf("diskcache: candidate group must be at least 1, got %d", opts.CandidateGroup)
	}

	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("diskcache: create root: %w", err)
	}

	c := &Cache{
		root:       opts.Root,
		maxBytes:   opts.MaxBytes,
		candidates: opts.CandidateGroup,
		entries:    make(map[string]*entry),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := c.scan(); err != nil {
		return nil, err
	}
	return c, nil
}

// scan rebuilds the in-memory index from files on disk.
func (c *Cache) scan() error {
	dirEntries, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("diskcache: scan root: %w", err)
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if strings.HasPrefix(de.Name(), tmpPrefix) {
			// Leftover from a crash mid-write; never a servable entry.
			_ = os.Remove(filepath.Join(c.root, de.Name()))
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue // removed concurrently
		}
		c.entries[de.Name()] = &entry{size: info.Size(), lastUsed: info.ModTime()}
		c.total += info.Size()
	}
	return nil
}

func (c *Cache) path(locator string) string {
	return filepath.Join(c.root, locator)
}

// Get returns the cached payload for locator, or ok=false on a miss.
// A hit refreshes the entry's recency.
func (c *Cache) Get(locator string) ([]byte, bool) {
	c.mu.Lock()
	e, ok := c.entries[locator]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	now := time.Now()
	e.lastUsed = now
	c.mu.Unlock()

	data, err := os.ReadFile(c.path(locator))
	if err != nil {
		// Deleted out from under us; drop the stale index entry.
		c.mu.Lock()
		if cur, still := c.entries[locator]; still {
			c.total -= cur.size
			delete(c.entries, locator)
		}
		c.mu.Unlock()
		return nil, false
	}

	// Best effort; recency survives in memory regardless.
	_ = os.Chtimes(c.path(locator), now, now)

	return data, true
}

// Put stores a payload under locator and evicts until the cache fits its
// budget. Payloads larger than the budget are silently skipped.
func (c *Cache) Put(locator string, data []byte) error {
	if int64(len(data)) > c.maxBytes {
		return nil
	}

	tmp, err := os.CreateTemp(c.root, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("diskcache: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("diskcache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("diskcache: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(locator)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("diskcache: rename: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[locator]; ok {
		c.total -= old.size
	}
	c.entries[locator] = &entry{size: int64(len(data)), lastUsed: time.Now()}
	c.total += int64(len(data))

	c.evictLocked()
	return nil
}

// Remove deletes an entry. Removing a missing entry is not an error.
func (c *Cache) Remove(locator string) error {
	c.mu.Lock()
	if e, ok := c.entries[locator]; ok {
		c.total -= e.size
		delete(c.entries, locator)
	}
	c.mu.Unlock()

	err := os.Remove(c.path(locator))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diskcache: remove: %w", err)
	}
	return nil
}

// Size returns the current total payload size in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether locator is cached, without refreshing recency.
func (c *Cache) Contains(locator string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[locator]
	return ok
}

// evictLocked removes entries until total <= maxBytes. Caller holds mu.
func (c *Cache) evictLocked() {
	for c.total > c.maxBytes && len(c.entries) > 0 {
		victim := c.pickVictimLocked()
		if e, ok := c.entries[victim]; ok {
			c.total -= e.size
			delete(c.entries, victim)
		}
		_ = os.Remove(c.path(victim))
	}
}

// pickVictimLocked returns one of the candidates least recently used
// locators, chosen uniformly at random.
func (c *Cache) pickVictimLocked() string {
	type cand struct {
		locator  string
		lastUsed time.Time
	}
	cands := make([]cand, 0, len(c.entries))
	for locator, e := range c.entries {
		cands = append(cands, cand{locator, e.lastUsed})
	}
	sort.Slice(cands, func(i, j int) bool {
		if !cands[i].lastUsed.Equal(cands[j].lastUsed) {
			return cands[i].lastUsed.Before(cands[j].lastUsed)
		}
		return cands[i].locator < cands[j].locator
	})

	k := c.candidates
	if k > len(cands) {
		k = len(cands)
	}
	return cands[c.rng.Intn(k)].locator
}
