// SPDX-License-Identifier: EPL-2.0

package cache

// TierStats describes one cache tier.
type TierStats struct {
	Entries   int
	Bytes     int64
	Capacity  int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Spilled counts L1 evictions handed to L2; SpillFailures those L2
	// refused. Only set for the memory tier.
	Spilled       uint64
	SpillFailures uint64
	// Corrupt counts unreadable entries dropped on read. Disk tier only.
	Corrupt uint64
}

// Stats combines both tiers.
type Stats struct {
	Memory     TierStats
	Disk       TierStats
	Promotions uint64
}

// Bytes returns the bytes held across both tiers.
func (s Stats) Bytes() int64 { return s.Memory.Bytes + s.Disk.Bytes }
