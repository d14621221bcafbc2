// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Spiller receives entries evicted from a MemoryCache.
type Spiller interface {
	Insert(id uint64, data []byte) error
}

type memEntry struct {
	id     uint64
	data   []byte
	access uint64
}

// MemoryCache is the L1 tier: a byte-budgeted LRU held in memory.
// Evicted entries are handed to the Spiller, if any, after the cache lock
// has been released.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	clock    uint64
	entries  map[uint64]*list.Element
	lru      *list.List // front is most recent

	spill Spiller
	log   zerolog.Logger

	hits, misses, evictions uint64
	spilled, spillFailures  uint64
}

// NewMemoryCache creates an L1 cache holding at most capacity bytes.
// spill may be nil, in which case evicted entries are discarded.
func NewMemoryCache(capacity int64, spill Spiller, log zerolog.Logger) *MemoryCache {
	return &MemoryCache{
		capacity: max(capacity, 0),
		entries:  make(map[uint64]*list.Element),
		lru:      list.New(),
		spill:    spill,
		log:      log.With().Str("component", "cache").Str("tier", "memory").Logger(),
	}
}

// Get returns the bytes for id and marks it most recently used. The
// returned slice is shared and must not be modified.
func (c *MemoryCache) Get(id uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	c.touch(el)

	return el.Value.(*memEntry).data, true
}

// Contains reports whether id is resident without touching it.
func (c *MemoryCache) Contains(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[id]
	return ok
}

// Insert stores data under id, evicting least recently used entries until
// it fits. Entries larger than the whole cache are refused with
// ErrTooLarge and nothing is evicted.
func (c *MemoryCache) Insert(id uint64, data []byte) error {
	n := int64(len(data))
	if n > c.capacity {
		return fmt.Errorf("%w: %d bytes, memory capacity %d", ErrTooLarge, n, c.capacity)
	}

	c.mu.Lock()

	if el, ok := c.entries[id]; ok {
		e := el.Value.(*memEntry)
		c.size += n - int64(len(e.data))
		e.data = data
		c.touch(el)
	} else {
		c.clock++
		e := &memEntry{id: id, data: data, access: c.clock}
		c.entries[id] = c.lru.PushFront(e)
		c.size += n
	}

	var victims []*memEntry
	for c.size > c.capacity {
		el := c.lru.Back()
		e := el.Value.(*memEntry)
		if e.id == id {
			break
		}
		c.lru.Remove(el)
		delete(c.entries, e.id)
		c.size -= int64(len(e.data))
		c.evictions++
		victims = append(victims, e)
	}

	c.mu.Unlock()

	c.spillAll(victims)

	return nil
}

func (c *MemoryCache) spillAll(victims []*memEntry) {
	for _, e := range victims {
		if c.spill == nil {
			c.log.Debug().Uint64("track_id", e.id).Int("bytes", len(e.data)).Msg("evicted")
			continue
		}

		err := c.spill.Insert(e.id, e.data)

		c.mu.Lock()
		if err != nil {
			c.spillFailures++
		} else {
			c.spilled++
		}
		c.mu.Unlock()

		if err != nil {
			c.log.Warn().Err(err).Uint64("track_id", e.id).Msg("could not spill evicted entry")
			continue
		}
		c.log.Debug().Uint64("track_id", e.id).Int("bytes", len(e.data)).Msg("spilled to disk")
	}
}

// Remove drops id, reporting whether it was resident.
func (c *MemoryCache) Remove(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return false
	}

	c.lru.Remove(el)
	delete(c.entries, id)
	c.size -= int64(len(el.Value.(*memEntry).data))

	return true
}

// Clear drops every entry without spilling.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint64]*list.Element)
	c.lru.Init()
	c.size = 0
}

// Keys returns resident ids, most recently used first.
func (c *MemoryCache) Keys() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]uint64, 0, len(c.entries))
	for el := c.lru.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*memEntry).id)
	}

	return keys
}

// Stats returns a snapshot of the tier counters.
func (c *MemoryCache) Stats() TierStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return TierStats{
		Entries:       len(c.entries),
		Bytes:         c.size,
		Capacity:      c.capacity,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Spilled:       c.spilled,
		SpillFailures: c.spillFailures,
	}
}

func (c *MemoryCache) touch(el *list.Element) {
	c.clock++
	el.Value.(*memEntry).access = c.clock
	c.lru.MoveToFront(el)
}
