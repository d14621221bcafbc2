// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"sync/atomic"
	"time"
)

// VisualizerFeed is the state shared between visualizer taps and the FFT
// worker: the sample ring, an enabled flag and the stream format.
type VisualizerFeed struct {
	ring       *RingBuffer
	enabled    atomic.Bool
	sampleRate atomic.Uint32
	channels   atomic.Uint32
}

// NewVisualizerFeed creates a disabled feed around a ring of ringSize
// samples, assuming 44.1 kHz stereo until a tap reports otherwise.
func NewVisualizerFeed(ringSize int) *VisualizerFeed {
	f := &VisualizerFeed{ring: NewRingBuffer(ringSize)}
	f.sampleRate.Store(44100)
	f.channels.Store(2)

	return f
}

func (f *VisualizerFeed) Ring() *RingBuffer      { return f.ring }
func (f *VisualizerFeed) SetEnabled(on bool)     { f.enabled.Store(on) }
func (f *VisualizerFeed) Enabled() bool          { return f.enabled.Load() }
func (f *VisualizerFeed) SampleRate() int        { return int(f.sampleRate.Load()) }
func (f *VisualizerFeed) Channels() int          { return int(f.channels.Load()) }
func (f *VisualizerFeed) SetSampleRate(rate int) { f.sampleRate.Store(uint32(max(rate, 0))) }
func (f *VisualizerFeed) SetChannels(n int)      { f.channels.Store(uint32(max(n, 0))) }

// Push stores one sample when the feed is enabled.
func (f *VisualizerFeed) Push(sample float32) {
	if f.enabled.Load() {
		f.ring.Push(sample)
	}
}

// VisualizerTap writes every sample it passes into the feed's ring and
// keeps the feed's format in step with the source. Output is untouched.
type VisualizerTap struct {
	src      Source
	feed     *VisualizerFeed
	rate     int
	channels int
}

func NewVisualizerTap(src Source, feed *VisualizerFeed) *VisualizerTap {
	t := &VisualizerTap{src: src, feed: feed}
	t.syncFormat()

	return t
}

func (t *VisualizerTap) SampleRate() int                      { return t.src.SampleRate() }
func (t *VisualizerTap) Channels() int                        { return t.src.Channels() }
func (t *VisualizerTap) SpanLen() (int, bool)                 { return t.src.SpanLen() }
func (t *VisualizerTap) TotalDuration() (time.Duration, bool) { return t.src.TotalDuration() }
func (t *VisualizerTap) BufSize() int                         { return t.src.BufSize() }
func (t *VisualizerTap) Close() error                         { return t.src.Close() }

func (t *VisualizerTap) ReadSamples(dst []float32) (int, error) {
	n, err := t.src.ReadSamples(dst)
	if n == 0 {
		return n, err
	}

	t.syncFormat()

	if !t.feed.Enabled() {
		return n, err
	}

	for _, s := range dst[:n] {
		t.feed.ring.Push(s)
	}

	return n, err
}

func (t *VisualizerTap) syncFormat() {
	rate, chans := t.src.SampleRate(), t.src.Channels()
	if rate != t.rate {
		t.rate = rate
		t.feed.SetSampleRate(rate)
	}
	if chans != t.channels {
		t.channels = chans
		t.feed.SetChannels(chans)
	}
}
