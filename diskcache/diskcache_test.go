package diskcache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxBytes int64) *Cache {
	t.Helper()
	c, err := New(Options{Root: t.TempDir(), MaxBytes: maxBytes})
	require.NoError(t, err)
	return c
}

func TestCachePutGet(t *testing.T) {
	c := newTestCache(t, 100)

	require.NoError(t, c.Put("a", []byte("hello")))

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, int64(5), c.Size())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheOverwriteAccounting(t *testing.T) {
	c := newTestCache(t, 100)

	require.NoError(t, c.Put("a", make([]byte, 40)))
	require.NoError(t, c.Put("a", make([]byte, 10)))

	assert.Equal(t, int64(10), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictsLeastRecent(t *testing.T) {
	c := newTestCache(t, 50)
	c.candidates = 1 // deterministic eviction order

	require.NoError(t, c.Put("a", make([]byte, 20)))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Put("b", make([]byte, 20)))
	time.Sleep(2 * time.Millisecond)

	// 60 > 50, the oldest entry goes.
	require.NoError(t, c.Put("c", make([]byte, 20)))

	assert.False(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
	assert.Equal(t, int64(40), c.Size())
}

func TestCacheGetRefreshesRecency(t *testing.T) {
	c := newTestCache(t, 50)
	c.candidates = 1

	require.NoError(t, c.Put("a", make([]byte, 20)))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Put("b", make([]byte, 20)))
	time.Sleep(2 * time.Millisecond)

	_, ok := c.Get("a") // a is now the most recent
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, c.Put("c", make([]byte, 20)))

	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
}

// With the default candidate group of 2, the victim is always one of the
// two oldest entries, so at most one strictly older entry can outlive it.
func TestCacheEvictionStaysNearOldest(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		c := newTestCache(t, 100)

		var order []string
		for i := 0; i < 5; i++ {
			locator := fmt.Sprintf("e%d", i)
			require.NoError(t, c.Put(locator, make([]byte, 20)))
			order = append(order, locator)
			time.Sleep(2 * time.Millisecond)
		}

		require.NoError(t, c.Put("f", make([]byte, 20)))

		evicted := -1
		for i, locator := range order {
			if !c.Contains(locator) {
				evicted = i
			}
		}
		require.NotEqual(t, -1, evicted, "one entry must have been evicted")
		assert.LessOrEqual(t, evicted, 1, "victim must be among the 2 oldest")
	}
}

func TestCacheSkipsOversizedPayload(t *testing.T) {
	c := newTestCache(t, 10)

	require.NoError(t, c.Put("big", make([]byte, 11)))
	assert.False(t, c.Contains("big"))
	assert.Equal(t, int64(0), c.Size())
}

func TestCacheRemove(t *testing.T) {
	c := newTestCache(t, 100)

	require.NoError(t, c.Put("a", []byte("x")))
	require.NoError(t, c.Remove("a"))
	require.NoError(t, c.Remove("a"))

	assert.False(t, c.Contains("a"))
	assert.Equal(t, int64(0), c.Size())
}

func TestCacheScanRecoversEntries(t *testing.T) {
	root := t.TempDir()

	c1, err := New(Options{Root: root, MaxBytes: 100})
	require.NoError(t, err)
	require.NoError(t, c1.Put("a", []byte("hello")))

	c2, err := New(Options{Root: root, MaxBytes: 100})
	require.NoError(t, err)

	got, ok := c2.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, int64(5), c2.Size())
}

func TestCacheScanDiscardsAbandonedTempFiles(t *testing.T) {
	root := t.TempDir()
	leftover := filepath.Join(root, tmpPrefix+"123456")
	require.NoError(t, os.WriteFile(leftover, make([]byte, 60), 0o644))

	c, err := New(Options{Root: root, MaxBytes: 100})
	require.NoError(t, err)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size(), "abandoned writes must not count toward the budget")
	assert.NoFileExists(t, leftover)
}

func TestCacheScanUsesModTimes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "old"), make([]byte, 20), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "old"), past, past))
	require.NoError(t, os.WriteFile(filepath.Join(root, "new"), make([]byte, 20), 0o644))

	c, err := New(Options{Root: root, MaxBytes: 50})
	require.NoError(t, err)
	c.candidates = 1

	require.NoError(t, c.Put("fresh", make([]byte, 20)))

	assert.False(t, c.Contains("old"))
	assert.True(t, c.Contains("new"))
	assert.True(t, c.Contains("fresh"))
}

func TestCacheOptionValidation(t *testing.T) {
	_, err := New(Options{MaxBytes: 10})
	assert.Error(t, err)

	_, err = New(Options{Root: t.TempDir(), MaxBytes: 0})
	assert.Error(t, err)

	_, err = New(Options{Root: t.TempDir(), MaxBytes: 10, CandidateGroup: -1})
	assert.Error(t, err)
}
