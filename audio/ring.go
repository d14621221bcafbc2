// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"math"
	"sync/atomic"
)

// DefaultRingSize is twice the default FFT size so a stereo stream fills
// one full analysis window.
const DefaultRingSize = 2048

// RingBuffer is a lock-free single-producer single-consumer sample buffer.
//
// The producer (audio goroutine) is the only caller of Push, the consumer
// (visualizer goroutine) the only caller of Snapshot. The write index only
// grows; the physical slot is w mod size. Every slot is a single atomic
// word, so a racing reader sees either the old or the new sample, never a
// torn value.
type RingBuffer struct {
	slots []atomic.Uint32
	w     atomic.Uint64
}

// NewRingBuffer returns a ring holding the newest size samples.
// A non-positive size selects DefaultRingSize.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}

	return &RingBuffer{
		slots: make([]atomic.Uint32, size),
	}
}

// Cap returns the fixed capacity.
func (r *RingBuffer) Cap() int { return len(r.slots) }

// Written returns how many samples were ever pushed.
func (r *RingBuffer) Written() uint64 { return r.w.Load() }

// Push appends one sample, overwriting the oldest once the ring is full.
func (r *RingBuffer) Push(sample float32) {
	pos := (r.w.Add(1) - 1) % uint64(len(r.slots))
	r.slots[pos].Store(math.Float32bits(sample))
}

// Snapshot copies the most recent min(len(dest), Cap()) samples into dest
// oldest-first and returns the count. Slots never written read as zero.
func (r *RingBuffer) Snapshot(dest []float32) int {
	size := uint64(len(r.slots))
	n := min(uint64(len(dest)), size)
	w := r.w.Load()

	start := w + size - n
	for i := range n {
		dest[i] = math.Float32frombits(r.slots[(start+i)%size].Load())
	}

	return int(n)
}

// Reset zeroes the ring. Only safe while no producer is running.
func (r *RingBuffer) Reset() {
	for i := range r.slots {
		r.slots[i].Store(0)
	}
	r.w.Store(0)
}
