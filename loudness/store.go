// SPDX-License-Identifier: EPL-2.0

package loudness

import (
	"context"
	"sync"
	"time"
)

// Measurement sources recorded in an Entry.
const (
	SourceEBUR128    = "ebur128"
	SourceReplayGain = "replaygain"
)

// Entry is the remembered loudness of one track. The correction is
// derived from it against whatever target the track is played with.
type Entry struct {
	// LUFS is the integrated programme loudness.
	LUFS      float64
	Peak      float64
	Source    string
	UpdatedAt time.Time
}

// Store remembers per-track corrections so replayed tracks are corrected
// from their first sample.
type Store interface {
	Get(ctx context.Context, trackID uint64) (Entry, bool, error)
	Set(ctx context.Context, trackID uint64, e Entry) error
}

// MemoryStore is a Store that lives for the process lifetime.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uint64]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, trackID uint64) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[trackID]
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, trackID uint64, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	s.entries[trackID] = e

	return nil
}

// Len returns the number of remembered tracks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
