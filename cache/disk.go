// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/djherbis/times"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// WriteFileFunc writes a whole file, replacing any previous content.
type WriteFileFunc func(name string, data []byte, perm os.FileMode) error

// DiskOptions configures a DiskCache.
type DiskOptions struct {
	// Root is the cache root. Files are kept in Root/audio_l2.
	Root     string
	Capacity int64
	Logger   zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
	// WriteFile defaults to an atomic write through a temporary file in
	// the cache directory followed by a rename.
	WriteFile WriteFileFunc
}

// DiskCache is the L2 tier: a byte-budgeted LRU of files on disk with a
// persistent index. Access times survive restarts.
type DiskCache struct {
	mu        sync.Mutex
	dir       string
	capacity  int64
	size      int64
	index     map[uint64]*indexEntry
	dirty     bool
	closed    bool
	now       func() time.Time
	writeFile WriteFileFunc
	log       zerolog.Logger

	hits, misses, evictions, corrupt uint64
}

// OpenDiskCache opens or creates the L2 cache below opts.Root and
// reconciles the index with the files actually present.
func OpenDiskCache(opts DiskOptions) (*DiskCache, error) {
	dir := filepath.Join(opts.Root, SubDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCreateDir, dir, err)
	}

	d := &DiskCache{
		dir:       dir,
		capacity:  max(opts.Capacity, 0),
		now:       opts.Now,
		writeFile: opts.WriteFile,
		log:       opts.Logger.With().Str("component", "cache").Str("tier", "disk").Logger(),
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.writeFile == nil {
		d.writeFile = func(name string, data []byte, perm os.FileMode) error {
			return renameio.WriteFile(name, data, perm, renameio.WithTempDir(dir))
		}
	}

	if err := d.reconcile(); err != nil {
		return nil, err
	}

	d.log.Debug().Str("dir", dir).Int("entries", len(d.index)).Int64("bytes", d.size).Msg("disk cache opened")

	return d, nil
}

func (d *DiskCache) reconcile() error {
	index, err := loadIndex(d.dir)
	if err != nil {
		d.log.Warn().Err(err).Msg("cache index unreadable, starting empty")
		index = make(map[uint64]*indexEntry)
		d.dirty = true
	}

	known := make(map[string]bool, len(index))
	for id, e := range index {
		path := d.path(id)

		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() || fi.Size() != e.Bytes {
			delete(index, id)
			d.dirty = true
			continue
		}

		if e.Atime == 0 {
			e.Atime = times.Get(fi).AccessTime().UnixNano()
			d.dirty = true
		}
		if e.Inserted == 0 {
			e.Inserted = fi.ModTime().UnixNano()
			d.dirty = true
		}

		known[filepath.Base(path)] = true
		d.size += e.Bytes
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}

	var orphans int
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || name == IndexFile || known[name] {
			continue
		}

		// unindexed files and interrupted writes
		if strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
				d.log.Warn().Err(err).Str("file", name).Msg("cannot remove orphan")
				continue
			}
			orphans++
		}
	}
	if orphans > 0 {
		d.log.Info().Int("files", orphans).Msg("removed orphaned cache files")
	}

	d.index = index
	d.makeRoom(0, nil)

	if d.dirty {
		d.saveIndex()
	}

	return nil
}

// Dir returns the directory holding the cache files.
func (d *DiskCache) Dir() string { return d.dir }

func (d *DiskCache) path(id uint64) string { return filepath.Join(d.dir, FileName(id)) }

// Get reads id from disk and marks it most recently used. Unreadable or
// damaged entries are deleted and reported as a miss.
func (d *DiskCache) Get(id uint64) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[id]
	if d.closed || !ok {
		d.misses++
		return nil, false
	}

	path := d.path(id)
	data, err := os.ReadFile(path)
	if err == nil && int64(len(data)) != e.Bytes {
		err = fmt.Errorf("size %d, expected %d", len(data), e.Bytes)
	}
	if err == nil && e.Sum != 0 && checksum(data) != e.Sum {
		err = errors.New("checksum mismatch")
	}
	if err != nil {
		d.log.Warn().Err(err).Uint64("track_id", id).Msg("dropping corrupt cache entry")
		d.corrupt++
		d.misses++
		if err := d.evict(id); err != nil {
			d.log.Warn().Err(err).Uint64("track_id", id).Msg("cannot remove corrupt entry")
		}
		d.saveIndex()

		return nil, false
	}

	now := d.now()
	e.Atime = now.UnixNano()
	d.dirty = true
	if err := os.Chtimes(path, now, now); err != nil {
		d.log.Debug().Err(err).Str("file", path).Msg("cannot update file times")
	}
	d.hits++

	return data, true
}

// Contains reports whether id is indexed without touching it.
func (d *DiskCache) Contains(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.index[id]
	return ok
}

// Insert writes data under id, evicting the least recently accessed
// entries until it fits. When the disk itself is full more entries are
// evicted and the write retried; if nothing is left to evict the insert
// fails with ErrDiskFull and a previous value for id is left untouched.
func (d *DiskCache) Insert(id uint64, data []byte) error {
	n := int64(len(data))

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if n > d.capacity {
		return fmt.Errorf("%w: %d bytes, disk capacity %d", ErrTooLarge, n, d.capacity)
	}

	var old int64
	if prev, ok := d.index[id]; ok {
		old = prev.Bytes
	}

	exclude := map[uint64]bool{id: true}
	if !d.makeRoom(n-old, exclude) {
		d.saveIndex()
		return fmt.Errorf("%w: cannot free %d bytes", ErrDiskFull, n)
	}

	path := d.path(id)
	for {
		err := d.writeFile(path, data, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.ENOSPC) {
			d.saveIndex()
			return fmt.Errorf("write %s: %w", path, err)
		}

		victim, ok := d.oldest(exclude)
		if !ok {
			d.saveIndex()
			return fmt.Errorf("%w: %w", ErrDiskFull, err)
		}

		d.log.Debug().Uint64("track_id", victim).Msg("disk full, evicting")
		if err := d.evict(victim); err != nil {
			d.log.Warn().Err(err).Uint64("track_id", victim).Msg("cannot evict")
			exclude[victim] = true
		}
	}

	now := d.now().UnixNano()
	d.index[id] = &indexEntry{Bytes: n, Atime: now, Inserted: now, Sum: checksum(data)}
	d.size += n - old
	d.dirty = true
	d.saveIndex()

	return nil
}

// makeRoom evicts least recently accessed entries, skipping exclude, until
// need more bytes fit. It reports whether they do.
func (d *DiskCache) makeRoom(need int64, exclude map[uint64]bool) bool {
	if exclude == nil {
		exclude = make(map[uint64]bool)
	}

	for d.size+need > d.capacity {
		victim, ok := d.oldest(exclude)
		if !ok {
			return false
		}
		if err := d.evict(victim); err != nil {
			d.log.Warn().Err(err).Uint64("track_id", victim).Msg("cannot evict")
			exclude[victim] = true
		}
	}

	return true
}

// oldest returns the indexed id with the smallest access time.
func (d *DiskCache) oldest(exclude map[uint64]bool) (uint64, bool) {
	var (
		best  uint64
		bestE *indexEntry
	)

	for id, e := range d.index {
		if exclude[id] {
			continue
		}
		if bestE == nil || e.Atime < bestE.Atime ||
			(e.Atime == bestE.Atime && (e.Inserted < bestE.Inserted ||
				(e.Inserted == bestE.Inserted && id < best))) {
			best, bestE = id, e
		}
	}

	return best, bestE != nil
}

// evict deletes id's file and index record. A file that is already gone
// counts as deleted.
func (d *DiskCache) evict(id uint64) error {
	e, ok := d.index[id]
	if !ok {
		return nil
	}

	if err := os.Remove(d.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	delete(d.index, id)
	d.size -= e.Bytes
	d.evictions++
	d.dirty = true

	return nil
}

// Remove deletes id, reporting whether it was indexed.
func (d *DiskCache) Remove(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[id]
	if !ok {
		return false
	}

	if err := os.Remove(d.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		d.log.Warn().Err(err).Uint64("track_id", id).Msg("cannot remove cache file")
	}

	delete(d.index, id)
	d.size -= e.Bytes
	d.dirty = true
	d.saveIndex()

	return true
}

// Clear deletes every entry.
func (d *DiskCache) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for id := range d.index {
		if err := os.Remove(d.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	d.index = make(map[uint64]*indexEntry)
	d.size = 0
	d.dirty = true

	return errors.Join(append(errs, d.saveIndex())...)
}

// Keys returns indexed ids, most recently accessed first.
func (d *DiskCache) Keys() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]uint64, 0, len(d.index))
	for id := range d.index {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool {
		return d.index[keys[i]].Atime > d.index[keys[j]].Atime
	})

	return keys
}

// Stats returns a snapshot of the tier counters.
func (d *DiskCache) Stats() TierStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return TierStats{
		Entries:   len(d.index),
		Bytes:     d.size,
		Capacity:  d.capacity,
		Hits:      d.hits,
		Misses:    d.misses,
		Evictions: d.evictions,
		Corrupt:   d.corrupt,
	}
}

// Flush writes the index if access times changed since the last write.
func (d *DiskCache) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.dirty {
		return nil
	}

	return d.saveIndex()
}

// Close flushes the index. Further inserts fail with ErrClosed.
func (d *DiskCache) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if !d.dirty {
		return nil
	}

	return d.saveIndex()
}

// saveIndex must be called with d.mu held. Failures are logged and
// returned; the in-memory index stays authoritative.
func (d *DiskCache) saveIndex() error {
	raw, err := encodeIndex(d.index)
	if err == nil {
		err = d.writeFile(filepath.Join(d.dir, IndexFile), raw, 0o644)
	}
	if err != nil {
		d.log.Warn().Err(err).Msg("cannot write cache index")
		return fmt.Errorf("write %s: %w", IndexFile, err)
	}

	d.dirty = false

	return nil
}
