// SPDX-License-Identifier: EPL-2.0

// Package cache keeps fully downloaded tracks so replays do not hit the
// network.
//
// There are two tiers. MemoryCache holds recently used tracks in memory
// under a byte budget; entries it evicts spill into DiskCache. DiskCache
// stores one file per track below <root>/audio_l2 together with an
// index.json recording size and access times, so LRU order survives a
// restart. The index is always replaced atomically.
//
// Coordinator ties the tiers together:
//
//	c, err := cache.Open(cache.Options{Root: dir})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if data, ok := c.Get(trackID); ok {
//		return play(data)
//	}
//
// Returned slices are shared with the cache and must not be modified.
package cache
