// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances one nanosecond per call.
type fakeClock struct {
	mu sync.Mutex
	ns int64
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ns++
	return time.Unix(0, c.ns)
}

func openDisk(t *testing.T, root string, capacity int64, clock *fakeClock) *DiskCache {
	t.Helper()

	opts := DiskOptions{Root: root, Capacity: capacity, Logger: zerolog.Nop()}
	if clock != nil {
		opts.Now = clock.Now
	}

	d, err := OpenDiskCache(opts)
	require.NoError(t, err)

	return d
}

func readIndex(t *testing.T, d *DiskCache) map[string]indexEntry {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join(d.Dir(), IndexFile))
	require.NoError(t, err)

	var idx map[string]indexEntry
	require.NoError(t, json.Unmarshal(raw, &idx))

	return idx
}

func TestDiskCache_EvictsOldestAccess(t *testing.T) {
	t.Parallel()

	const x, y, z = 10, 20, 30

	d := openDisk(t, t.TempDir(), 100, &fakeClock{})

	require.NoError(t, d.Insert(x, blob(40, 'x')))
	require.NoError(t, d.Insert(y, blob(40, 'y')))
	require.NoError(t, d.Insert(z, blob(40, 'z')))

	assert.False(t, d.Contains(x))
	assert.True(t, d.Contains(y))
	assert.True(t, d.Contains(z))
	assert.NoFileExists(t, d.path(x))
	assert.Equal(t, int64(80), d.Stats().Bytes)

	idx := readIndex(t, d)
	assert.Len(t, idx, 2)
	assert.Equal(t, int64(2), idx["20"].Atime)
	assert.Equal(t, int64(3), idx["30"].Atime)
}

func TestDiskCache_GetRefreshesAccess(t *testing.T) {
	t.Parallel()

	d := openDisk(t, t.TempDir(), 100, &fakeClock{})

	require.NoError(t, d.Insert(1, blob(40, 'a')))
	require.NoError(t, d.Insert(2, blob(40, 'b')))

	data, ok := d.Get(1)
	require.True(t, ok)
	assert.Equal(t, blob(40, 'a'), data)

	require.NoError(t, d.Insert(3, blob(40, 'c')))
	assert.True(t, d.Contains(1))
	assert.False(t, d.Contains(2))
	assert.Equal(t, []uint64{3, 1}, d.Keys())
}

func TestDiskCache_RoundTripAndLayout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d := openDisk(t, root, 1<<20, nil)

	payload := []byte("ID3 not really an mp3")
	require.NoError(t, d.Insert(42, payload))

	assert.Equal(t, filepath.Join(root, SubDir), d.Dir())
	assert.FileExists(t, filepath.Join(root, SubDir, FileName(42)))
	assert.True(t, strings.HasSuffix(FileName(42), ".bin"))
	assert.Len(t, strings.TrimSuffix(FileName(42), ".bin"), 16)

	idx := readIndex(t, d)
	require.Contains(t, idx, "42")
	assert.Equal(t, int64(len(payload)), idx["42"].Bytes)
	assert.NotZero(t, idx["42"].Inserted)

	got, ok := d.Get(42)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestDiskCache_InsertIdempotent(t *testing.T) {
	t.Parallel()

	d := openDisk(t, t.TempDir(), 100, nil)

	require.NoError(t, d.Insert(7, blob(30, 'a')))
	require.NoError(t, d.Insert(7, blob(30, 'a')))

	st := d.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, int64(30), st.Bytes)
	assert.Zero(t, st.Evictions)
}

func TestDiskCache_TooLarge(t *testing.T) {
	t.Parallel()

	d := openDisk(t, t.TempDir(), 10, nil)
	assert.ErrorIs(t, d.Insert(1, blob(11, 'a')), ErrTooLarge)
	assert.Zero(t, d.Stats().Entries)
}

func TestDiskCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	d := openDisk(t, t.TempDir(), 1000, nil)
	require.NoError(t, d.Insert(1, blob(20, 'a')))
	require.NoError(t, d.Insert(2, blob(20, 'b')))

	// same length, different bytes
	require.NoError(t, os.WriteFile(d.path(1), blob(20, 'z'), 0o644))
	// truncated
	require.NoError(t, os.WriteFile(d.path(2), blob(5, 'b'), 0o644))

	for _, id := range []uint64{1, 2} {
		_, ok := d.Get(id)
		assert.False(t, ok, "track %d", id)
		assert.False(t, d.Contains(id))
		assert.NoFileExists(t, d.path(id))
	}

	st := d.Stats()
	assert.Equal(t, uint64(2), st.Corrupt)
	assert.Zero(t, st.Bytes)
}

func TestDiskCache_DiskFullEvictsAndRetries(t *testing.T) {
	t.Parallel()

	var failures int
	full := func(name string, data []byte, perm os.FileMode) error {
		if strings.HasSuffix(name, ".bin") && failures > 0 {
			failures--
			return &os.PathError{Op: "write", Path: name, Err: syscall.ENOSPC}
		}
		return os.WriteFile(name, data, perm)
	}

	d, err := OpenDiskCache(DiskOptions{
		Root:      t.TempDir(),
		Capacity:  1000,
		Logger:    zerolog.Nop(),
		Now:       (&fakeClock{}).Now,
		WriteFile: full,
	})
	require.NoError(t, err)

	require.NoError(t, d.Insert(1, blob(40, 'a')))
	require.NoError(t, d.Insert(2, blob(40, 'b')))

	failures = 1
	require.NoError(t, d.Insert(3, blob(40, 'c')))
	assert.False(t, d.Contains(1), "oldest evicted to make room")
	assert.True(t, d.Contains(2))
	assert.True(t, d.Contains(3))

	failures = 100
	err = d.Insert(4, blob(40, 'd'))
	require.ErrorIs(t, err, ErrDiskFull)
	assert.False(t, d.Contains(4))

	failures = 0
	require.NoError(t, d.Insert(5, blob(40, 'e')), "cache usable after a full disk")
	got, ok := d.Get(5)
	require.True(t, ok)
	assert.Equal(t, blob(40, 'e'), got)
}

func TestDiskCache_DiskFullKeepsPreviousValue(t *testing.T) {
	t.Parallel()

	fail := false
	d, err := OpenDiskCache(DiskOptions{
		Root:     t.TempDir(),
		Capacity: 1000,
		Logger:   zerolog.Nop(),
		WriteFile: func(name string, data []byte, perm os.FileMode) error {
			if fail && strings.HasSuffix(name, ".bin") {
				return syscall.ENOSPC
			}
			return os.WriteFile(name, data, perm)
		},
	})
	require.NoError(t, err)

	require.NoError(t, d.Insert(1, blob(40, 'a')))

	fail = true
	require.ErrorIs(t, d.Insert(1, blob(60, 'b')), ErrDiskFull)

	fail = false
	got, ok := d.Get(1)
	require.True(t, ok)
	assert.Equal(t, blob(40, 'a'), got)
	assert.Equal(t, int64(40), d.Stats().Bytes)
}

func TestDiskCache_ReopenRestoresOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	clock := &fakeClock{}

	d := openDisk(t, root, 100, clock)
	require.NoError(t, d.Insert(1, blob(40, 'a')))
	require.NoError(t, d.Insert(2, blob(40, 'b')))
	_, ok := d.Get(1)
	require.True(t, ok)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Insert(3, blob(1, 'c')), ErrClosed)

	d = openDisk(t, root, 100, clock)
	assert.Equal(t, []uint64{1, 2}, d.Keys())
	assert.Equal(t, int64(80), d.Stats().Bytes)

	// the survivor of the next eviction is the one read before restart
	require.NoError(t, d.Insert(3, blob(40, 'c')))
	assert.True(t, d.Contains(1))
	assert.False(t, d.Contains(2))
}

func TestDiskCache_ReopenDropsMissingAndOrphans(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d := openDisk(t, root, 1000, nil)
	require.NoError(t, d.Insert(1, blob(10, 'a')))
	require.NoError(t, d.Insert(2, blob(10, 'b')))
	require.NoError(t, d.Close())

	dir := filepath.Join(root, SubDir)
	require.NoError(t, os.Remove(filepath.Join(dir, FileName(2))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0123456789abcdef.bin"), []byte("stray"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".index.json12345"), []byte("{"), 0o644))

	d = openDisk(t, root, 1000, nil)
	assert.True(t, d.Contains(1))
	assert.False(t, d.Contains(2))
	assert.NoFileExists(t, filepath.Join(dir, "0123456789abcdef.bin"))
	assert.NoFileExists(t, filepath.Join(dir, ".index.json12345"))

	idx := readIndex(t, d)
	assert.Len(t, idx, 1)
}

func TestDiskCache_ReopenShrinksToCapacity(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	clock := &fakeClock{}

	d := openDisk(t, root, 100, clock)
	require.NoError(t, d.Insert(1, blob(30, 'a')))
	require.NoError(t, d.Insert(2, blob(30, 'b')))
	require.NoError(t, d.Insert(3, blob(30, 'c')))
	require.NoError(t, d.Close())

	d = openDisk(t, root, 60, clock)
	assert.Equal(t, []uint64{3, 2}, d.Keys())
	assert.Equal(t, int64(60), d.Stats().Bytes)
}

func TestDiskCache_CorruptIndexStartsEmpty(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d := openDisk(t, root, 1000, nil)
	require.NoError(t, d.Insert(1, blob(10, 'a')))
	require.NoError(t, d.Close())

	dir := filepath.Join(root, SubDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte("not json"), 0o644))

	d = openDisk(t, root, 1000, nil)
	assert.Zero(t, d.Stats().Entries)
	assert.NoFileExists(t, filepath.Join(dir, FileName(1)))
	assert.Empty(t, readIndex(t, d))
}

func TestDiskCache_MissingAtimeFromFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, SubDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName(7)), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte(`{"7":{"bytes":3}}`), 0o644))

	d := openDisk(t, root, 1000, nil)
	require.True(t, d.Contains(7))
	assert.NotZero(t, d.index[7].Atime)
	assert.NotZero(t, d.index[7].Inserted)

	got, ok := d.Get(7)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
}

func TestDiskCache_RemoveAndClear(t *testing.T) {
	t.Parallel()

	d := openDisk(t, t.TempDir(), 1000, nil)
	require.NoError(t, d.Insert(1, blob(10, 'a')))
	require.NoError(t, d.Insert(2, blob(10, 'b')))

	assert.True(t, d.Remove(1))
	assert.False(t, d.Remove(1))
	assert.NoFileExists(t, d.path(1))

	require.NoError(t, d.Clear())
	assert.Zero(t, d.Stats().Entries)
	assert.NoFileExists(t, d.path(2))
	assert.Empty(t, readIndex(t, d))
}

func TestDiskCache_CreateDirFails(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := OpenDiskCache(DiskOptions{Root: file, Capacity: 10, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrCreateDir)
}
