// SPDX-License-Identifier: EPL-2.0

package visualizer

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sync"
	"sync/atomic"
	"time"

	"github.com/madelynnblue/go-dsp/fft"
	"github.com/rs/zerolog"

	"github.com/ik5/audtap/audio"
)

const (
	DefaultFFTSize   = 1024
	DefaultNumBars   = 16
	DefaultFPS       = 30
	DefaultMinFreq   = 40.0
	DefaultSmoothing = 0.65

	// WaveformPoints is the number of waveform points per channel.
	WaveformPoints = 256

	transientThreshold = 0.04
	transientCooldown  = 3 // frames, about 100 ms at 30 fps
)

// Options configures a Processor. Zero values select the defaults.
type Options struct {
	FFTSize int
	NumBars int
	FPS     int
	MinFreq float64
	// Smoothing is the decay factor applied when a bar falls. Negative
	// disables smoothing.
	Smoothing float64
	Logger    zerolog.Logger
}

// Frame is one visualizer update.
type Frame struct {
	Seq        uint64
	SampleRate int
	// Bars are NumBars log-spaced magnitudes in [0, 1].
	Bars []float32
	// Energy holds sub-bass, bass, mids, presence and air in [0, 1].
	Energy [NumEnergyBands]float32
	// Transient is the intensity of an onset detected in this frame, or 0.
	Transient float32
	// Waveform holds WaveformPoints left samples followed by as many right
	// samples. Mono input is duplicated.
	Waveform []float32
}

// Processor is the FFT worker. It snapshots the feed's ring at a fixed
// rate and hands each Frame to its subscribers.
type Processor struct {
	feed *audio.VisualizerFeed
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	subs   map[uint64]func(Frame)
	nextID uint64

	running atomic.Bool
	seq     atomic.Uint64

	// analysis state, owned by the goroutine calling Analyze
	snap     []float32
	mono     []float64
	window   []float64
	smoothed []float32
	energy   [NumEnergyBands]float32
	prevRMS  float32
	cooldown int
}

// New creates a processor reading from feed.
func New(feed *audio.VisualizerFeed, opts Options) *Processor {
	if opts.FFTSize <= 0 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.NumBars <= 0 {
		opts.NumBars = DefaultNumBars
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.MinFreq <= 0 {
		opts.MinFreq = DefaultMinFreq
	}
	if opts.Smoothing == 0 {
		opts.Smoothing = DefaultSmoothing
	}

	window := make([]float64, opts.FFTSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(opts.FFTSize-1)))
	}

	return &Processor{
		feed:     feed,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "visualizer").Logger(),
		subs:     make(map[uint64]func(Frame)),
		snap:     make([]float32, feed.Ring().Cap()),
		mono:     make([]float64, opts.FFTSize),
		window:   window,
		smoothed: make([]float32, opts.NumBars),
	}
}

// Subscribe registers cb for every frame. cb runs on the worker goroutine
// and must return quickly. The returned func removes the subscription.
func (p *Processor) Subscribe(cb func(Frame)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = cb
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Frames returns the number of frames produced so far.
func (p *Processor) Frames() uint64 { return p.seq.Load() }

// Run drives the processor until ctx is done. Ticks missed while a frame
// is being computed are dropped.
func (p *Processor) Run(ctx context.Context) (err error) {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("visualizer aborted")
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(p.opts.FPS))
	defer ticker.Stop()

	p.log.Info().Int("fps", p.opts.FPS).Int("fft_size", p.opts.FFTSize).Msg("visualizer started")
	defer p.log.Info().Msg("visualizer stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if f, ok := p.Analyze(); ok {
				p.publish(f)
			}
		}
	}
}

func (p *Processor) publish(f Frame) {
	p.mu.Lock()
	subs := make([]func(Frame), 0, len(p.subs))
	for _, cb := range p.subs {
		subs = append(subs, cb)
	}
	p.mu.Unlock()

	for _, cb := range subs {
		cb(f)
	}
}

// Analyze computes one frame from the current ring contents. It reports
// false, doing nothing, while the feed is disabled or has no sample rate.
// Not safe to call concurrently with Run.
func (p *Processor) Analyze() (Frame, bool) {
	if !p.feed.Enabled() {
		return Frame{}, false
	}

	rate := p.feed.SampleRate()
	channels := max(p.feed.Channels(), 1)
	if rate <= 0 {
		return Frame{}, false
	}

	// newest FFTSize frames, interleaved
	want := min(len(p.snap), p.opts.FFTSize*channels)
	want -= want % channels
	n := p.feed.Ring().Snapshot(p.snap[:want])
	snap := p.snap[:n]

	frames := downmix(p.mono, snap, channels)
	for i := range p.mono {
		if i >= frames {
			p.mono[i] = 0
			continue
		}
		p.mono[i] *= p.window[i]
	}

	spectrum := fft.FFTReal(p.mono)
	binHz := float64(rate) / float64(p.opts.FFTSize)
	norm := 1 / math.Sqrt(float64(p.opts.FFTSize))

	mag := func(k int) float64 { return cmplx.Abs(spectrum[k]) * norm }

	f := Frame{
		Seq:        p.seq.Add(1),
		SampleRate: rate,
		Bars:       p.bars(mag, rate, binHz),
		Waveform:   waveform(snap, channels),
	}
	f.Energy, f.Transient = p.energyAndTransient(mag, binHz)

	return f, true
}

func (p *Processor) bars(mag func(int) float64, rate int, binHz float64) []float32 {
	edges := BarEdges(rate, p.opts.NumBars, p.opts.MinFreq)
	out := make([]float32, p.opts.NumBars)

	for b := range out {
		first, last := binRange(edges[b], edges[b+1], binHz, p.opts.FFTSize)

		var sum float64
		var count int
		for k := first; k <= last; k++ {
			sum += mag(k) * bassWeight(float64(k)*binHz)
			count++
		}

		var v float32
		if count > 0 {
			v = float32(math.Min(math.Pow(sum/float64(count)*4, 0.6), 1))
		}

		if p.opts.Smoothing > 0 {
			s := p.smoothed[b]
			if v > s {
				s = s*0.3 + v*0.7 // fast attack
			} else {
				d := float32(p.opts.Smoothing)
				s = s*d + v*(1-d)
			}
			p.smoothed[b] = s
			v = s
		}

		out[b] = v
	}

	return out
}

func (p *Processor) energyAndTransient(mag func(int) float64, binHz float64) ([NumEnergyBands]float32, float32) {
	var raw float32

	for b, band := range energyBands {
		first := max(int(math.Ceil(band[0]/binHz)), 1)
		last := min(int(math.Ceil(band[1]/binHz))-1, p.opts.FFTSize/2)

		var sumSq float64
		var count int
		for k := first; k <= last; k++ {
			m := mag(k)
			sumSq += m * m
			count++
		}

		var level float32
		if count > 0 {
			rms := math.Sqrt(sumSq / float64(count))
			level = float32(math.Min(math.Sqrt(rms*6), 1))
		}

		weight := float32(1)
		if b < 2 {
			weight = 2
		}
		raw += level * weight

		e := p.energy[b]
		if level > e {
			e = e*0.2 + level*0.8
		} else {
			e = e*0.85 + level*0.15
		}
		p.energy[b] = e
	}

	raw /= NumEnergyBands + 2 // bass bands count twice

	delta := raw - p.prevRMS
	p.prevRMS = raw

	if p.cooldown > 0 {
		p.cooldown--
	}

	var transient float32
	if delta > transientThreshold && p.cooldown == 0 {
		transient = min(delta*5, 1)
		p.cooldown = transientCooldown
	}

	return p.energy, transient
}

// downmix averages interleaved frames from src into dst, returning the
// number of frames written.
func downmix(dst []float64, src []float32, channels int) int {
	frames := min(len(src)/channels, len(dst))

	if channels == 1 {
		for i := range frames {
			dst[i] = float64(src[i])
		}
		return frames
	}

	if channels == 2 {
		for i := range frames {
			dst[i] = (float64(src[2*i]) + float64(src[2*i+1])) * 0.5
		}
		return frames
	}

	inv := 1 / float64(channels)
	for i := range frames {
		var sum float64
		for _, s := range src[i*channels : (i+1)*channels] {
			sum += float64(s)
		}
		dst[i] = sum * inv
	}

	return frames
}

func waveform(snap []float32, channels int) []float32 {
	out := make([]float32, 2*WaveformPoints)
	frames := len(snap) / channels
	if frames == 0 {
		return out
	}

	step := max(frames/WaveformPoints, 1)
	for i := range WaveformPoints {
		idx := i * step
		if idx >= frames {
			break
		}

		l := snap[idx*channels]
		r := l
		if channels > 1 {
			r = snap[idx*channels+1]
		}
		out[i] = l
		out[WaveformPoints+i] = r
	}

	return out
}
