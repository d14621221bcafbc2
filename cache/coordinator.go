// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMemoryBytes = 256 << 20
	DefaultDiskBytes   = 2 << 30
)

// Tier identifies where an entry lives.
type Tier int

const (
	TierNone Tier = iota
	TierMemory
	TierDisk
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDisk:
		return "disk"
	default:
		return "none"
	}
}

// Options configures Open.
type Options struct {
	// Root is the cache root directory. Empty selects
	// <user cache dir>/audtap. Ignored when DiskBytes is negative.
	Root string
	// MemoryBytes and DiskBytes are the tier budgets. Zero selects the
	// defaults; a negative DiskBytes disables the disk tier.
	MemoryBytes int64
	DiskBytes   int64
	Logger      zerolog.Logger

	Now       func() time.Time
	WriteFile WriteFileFunc
}

// DefaultRoot returns the cache root used when Options.Root is empty.
func DefaultRoot() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "audtap"), nil
}

// Coordinator looks tracks up in memory, then on disk, promoting disk
// hits into memory. An id is never kept in both tiers after an operation
// completes.
type Coordinator struct {
	mem  *MemoryCache
	disk *DiskCache // nil when memory only
	log  zerolog.Logger

	// mu serializes operations that move entries between tiers, so a
	// promotion cannot remove a copy another caller just spilled.
	mu sync.Mutex

	promotions atomic.Uint64
}

// Open builds both tiers from opts, wiring memory evictions into the disk
// tier.
func Open(opts Options) (*Coordinator, error) {
	if opts.MemoryBytes == 0 {
		opts.MemoryBytes = DefaultMemoryBytes
	}
	if opts.DiskBytes == 0 {
		opts.DiskBytes = DefaultDiskBytes
	}

	var disk *DiskCache
	if opts.DiskBytes > 0 {
		root := opts.Root
		if root == "" {
			var err error
			if root, err = DefaultRoot(); err != nil {
				return nil, errors.Join(ErrCreateDir, err)
			}
		}

		var err error
		disk, err = OpenDiskCache(DiskOptions{
			Root:      root,
			Capacity:  opts.DiskBytes,
			Logger:    opts.Logger,
			Now:       opts.Now,
			WriteFile: opts.WriteFile,
		})
		if err != nil {
			return nil, err
		}
	}

	var spill Spiller
	if disk != nil {
		spill = disk
	}

	return NewCoordinator(NewMemoryCache(opts.MemoryBytes, spill, opts.Logger), disk, opts.Logger), nil
}

// NewCoordinator combines existing tiers. disk may be nil. mem should spill
// into disk.
func NewCoordinator(mem *MemoryCache, disk *DiskCache, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		mem:  mem,
		disk: disk,
		log:  log.With().Str("component", "cache").Logger(),
	}
}

// Memory returns the L1 tier.
func (c *Coordinator) Memory() *MemoryCache { return c.mem }

// Disk returns the L2 tier, or nil.
func (c *Coordinator) Disk() *DiskCache { return c.disk }

// Get returns the bytes for id from whichever tier holds them. Disk hits
// move to memory unless memory refuses them.
func (c *Coordinator) Get(id uint64) ([]byte, bool) {
	if data, ok := c.mem.Get(id); ok {
		return data, true
	}
	if c.disk == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// promoted by another caller while we waited
	if data, ok := c.mem.Get(id); ok {
		return data, true
	}

	data, ok := c.disk.Get(id)
	if !ok {
		return nil, false
	}

	if err := c.mem.Insert(id, data); err != nil {
		c.log.Debug().Err(err).Uint64("track_id", id).Msg("served from disk")
		return data, true
	}

	c.disk.Remove(id)
	c.promotions.Add(1)
	c.log.Debug().Uint64("track_id", id).Int("bytes", len(data)).Msg("promoted to memory")

	return data, true
}

// Insert stores data under id. Entries too large for memory go straight
// to disk.
func (c *Coordinator) Insert(id uint64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.mem.Insert(id, data)
	switch {
	case err == nil:
		if c.disk != nil {
			c.disk.Remove(id)
		}
		return nil
	case errors.Is(err, ErrTooLarge) && c.disk != nil:
		c.mem.Remove(id)
		return c.disk.Insert(id, data)
	default:
		return err
	}
}

// Where reports which tier holds id, without touching it.
func (c *Coordinator) Where(id uint64) Tier {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mem.Contains(id) {
		return TierMemory
	}
	if c.disk != nil && c.disk.Contains(id) {
		return TierDisk
	}

	return TierNone
}

// Remove drops id from both tiers.
func (c *Coordinator) Remove(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.mem.Remove(id)
	if c.disk != nil && c.disk.Remove(id) {
		removed = true
	}

	return removed
}

// Clear empties both tiers.
func (c *Coordinator) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Clear()
	if c.disk == nil {
		return nil
	}

	return c.disk.Clear()
}

// Stats returns a snapshot of both tiers.
func (c *Coordinator) Stats() Stats {
	s := Stats{
		Memory:     c.mem.Stats(),
		Promotions: c.promotions.Load(),
	}
	if c.disk != nil {
		s.Disk = c.disk.Stats()
	}

	return s
}

// Flush persists the disk index.
func (c *Coordinator) Flush() error {
	if c.disk == nil {
		return nil
	}

	return c.disk.Flush()
}

// Close flushes and closes the disk tier. Memory contents are discarded.
func (c *Coordinator) Close() error {
	c.mem.Clear()
	if c.disk == nil {
		return nil
	}

	return c.disk.Close()
}
