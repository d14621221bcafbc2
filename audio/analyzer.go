// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	// DefaultBatchSize is the number of samples per analyzer batch.
	DefaultBatchSize = 4096
	// DefaultAnalyzerQueue is the analyzer channel capacity in batches.
	DefaultAnalyzerQueue = 32
)

// Message is what the analyzer tap and the player send to the loudness
// worker. The concrete types are Samples, NewTrack, Reset and Shutdown.
type Message interface {
	analyzerMessage()
}

// Samples is a batch of interleaved samples. Ownership passes to the
// receiver.
type Samples []float32

// NewTrack announces the track whose samples follow.
type NewTrack struct {
	TrackID    uint64
	SampleRate int
	Channels   int
	TargetLUFS float64
	// Gain is written by the worker and read by the track's GainStage.
	Gain *Gain
}

// Reset drops accumulated loudness state (seek) but keeps the gain.
type Reset struct{}

// Shutdown stops the worker.
type Shutdown struct{}

func (Samples) analyzerMessage()  {}
func (NewTrack) analyzerMessage() {}
func (Reset) analyzerMessage()    {}
func (Shutdown) analyzerMessage() {}

// AnalyzerFeed is the shared handle between analyzer taps and the
// loudness worker: a bounded channel, an enabled flag and a counter of
// batches dropped because the channel was full.
type AnalyzerFeed struct {
	ch        chan Message
	enabled   atomic.Bool
	dropped   atomic.Uint64
	sent      atomic.Uint64
	batchSize int
}

// NewAnalyzerFeed creates a feed with room for queue messages. Non-positive
// arguments select the defaults. The feed starts enabled.
func NewAnalyzerFeed(queue, batchSize int) *AnalyzerFeed {
	if queue <= 0 {
		queue = DefaultAnalyzerQueue
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	f := &AnalyzerFeed{
		ch:        make(chan Message, queue),
		batchSize: batchSize,
	}
	f.enabled.Store(true)

	return f
}

// C is the receive side for the worker.
func (f *AnalyzerFeed) C() <-chan Message { return f.ch }

func (f *AnalyzerFeed) BatchSize() int     { return f.batchSize }
func (f *AnalyzerFeed) SetEnabled(on bool) { f.enabled.Store(on) }
func (f *AnalyzerFeed) Enabled() bool      { return f.enabled.Load() }
func (f *AnalyzerFeed) Dropped() uint64    { return f.dropped.Load() }
func (f *AnalyzerFeed) Sent() uint64       { return f.sent.Load() }

// Send offers m without blocking. It returns false, and counts a drop for
// sample batches, when the channel is full.
func (f *AnalyzerFeed) Send(m Message) bool {
	select {
	case f.ch <- m:
		f.sent.Add(1)
		return true
	default:
		if _, ok := m.(Samples); ok {
			f.dropped.Add(1)
		}
		return false
	}
}

// SendWait enqueues m, waiting for room until ctx is done. It is for
// producers that may stall, never for the audio goroutine.
func (f *AnalyzerFeed) SendWait(ctx context.Context, m Message) error {
	select {
	case f.ch <- m:
		f.sent.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AnalyzerTap copies every sample it passes into fixed-size batches and
// offers each full batch to the loudness worker. Output is untouched.
type AnalyzerTap struct {
	src   Source
	feed  *AnalyzerFeed
	batch []float32
}

func NewAnalyzerTap(src Source, feed *AnalyzerFeed) *AnalyzerTap {
	return &AnalyzerTap{
		src:   src,
		feed:  feed,
		batch: make([]float32, 0, feed.batchSize),
	}
}

func (t *AnalyzerTap) SampleRate() int                      { return t.src.SampleRate() }
func (t *AnalyzerTap) Channels() int                        { return t.src.Channels() }
func (t *AnalyzerTap) SpanLen() (int, bool)                 { return t.src.SpanLen() }
func (t *AnalyzerTap) TotalDuration() (time.Duration, bool) { return t.src.TotalDuration() }
func (t *AnalyzerTap) BufSize() int                         { return t.src.BufSize() }
func (t *AnalyzerTap) Close() error                         { return t.src.Close() }

func (t *AnalyzerTap) ReadSamples(dst []float32) (int, error) {
	n, err := t.src.ReadSamples(dst)
	if !t.feed.Enabled() {
		// A partial batch must not join samples from either side of a gap.
		t.batch = t.batch[:0]
		return n, err
	}
	if n == 0 {
		return n, err
	}

	in := dst[:n]
	for len(in) > 0 {
		room := t.feed.batchSize - len(t.batch)
		k := min(room, len(in))
		t.batch = append(t.batch, in[:k]...)
		in = in[k:]

		if len(t.batch) == t.feed.batchSize {
			if t.feed.Send(Samples(t.batch)) {
				t.batch = make([]float32, 0, t.feed.batchSize)
			} else {
				// Dropped: nobody else holds the batch, so reuse it.
				t.batch = t.batch[:0]
			}
		}
	}

	return n, err
}
