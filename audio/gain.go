// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// DefaultRampDuration is the length of a gain transition.
const DefaultRampDuration = 50 * time.Millisecond

// Gain is a shared target gain stored as float32 bits in one word.
// Zero is the "not measured yet" sentinel: readers keep whatever gain
// they currently apply.
//
// One goroutine writes (the loudness worker), one reads (the gain stage).
type Gain struct {
	bits atomic.Uint32
}

// NewGain returns a Gain holding v.
func NewGain(v float32) *Gain {
	g := &Gain{}
	g.Store(v)

	return g
}

func (g *Gain) Store(v float32) { g.bits.Store(math.Float32bits(v)) }
func (g *Gain) Load() float32   { return math.Float32frombits(g.bits.Load()) }

// Clear writes the sentinel.
func (g *Gain) Clear() { g.bits.Store(0) }

// RampLength returns the number of interleaved samples spanning d.
func RampLength(sampleRate, channels int, d time.Duration) int {
	if sampleRate <= 0 || channels <= 0 || d <= 0 {
		return 0
	}

	return int(int64(sampleRate) * int64(channels) * int64(d) / int64(time.Second))
}

// GainStage multiplies every sample by a gain that follows a shared Gain
// target, moving between values along a linear ramp so changes never click.
type GainStage struct {
	src  Source
	gain *Gain

	current   float32
	target    float32
	step      float32
	remaining int
	rampLen   int
	rampDur   time.Duration
	rampRate  int
	rampChans int
}

// NewGainStage wraps src. initial is the gain applied until the shared
// target first holds a non-sentinel value. A non-positive ramp selects
// DefaultRampDuration.
func NewGainStage(src Source, gain *Gain, initial float32, ramp time.Duration) *GainStage {
	if ramp <= 0 {
		ramp = DefaultRampDuration
	}

	g := &GainStage{
		src:     src,
		gain:    gain,
		current: initial,
		target:  initial,
		rampDur: ramp,
	}
	g.updateRampLen()

	return g
}

func (g *GainStage) SampleRate() int                      { return g.src.SampleRate() }
func (g *GainStage) Channels() int                        { return g.src.Channels() }
func (g *GainStage) SpanLen() (int, bool)                 { return g.src.SpanLen() }
func (g *GainStage) TotalDuration() (time.Duration, bool) { return g.src.TotalDuration() }
func (g *GainStage) BufSize() int                         { return g.src.BufSize() }
func (g *GainStage) Close() error                         { return g.src.Close() }

// Current returns the gain that will multiply the next sample once any
// pending ramp step is applied. Must be called from the reading goroutine.
func (g *GainStage) Current() float32 { return g.current }

// Target returns the gain the stage is ramping towards.
func (g *GainStage) Target() float32 { return g.target }

// RampLen returns the ramp length in interleaved samples.
func (g *GainStage) RampLen() int { return g.rampLen }

func (g *GainStage) ReadSamples(dst []float32) (int, error) {
	n, err := g.src.ReadSamples(dst)

	for i := range n {
		if g.remaining == 0 {
			g.poll()
		}

		if g.remaining > 0 {
			g.current += g.step
			g.remaining--
			if g.remaining == 0 {
				// snap: accumulated float error must not outlive the ramp
				g.current = g.target
			}
		}

		dst[i] *= g.current
	}

	return n, err
}

func (g *GainStage) updateRampLen() {
	rate, chans := g.src.SampleRate(), g.src.Channels()
	if rate == g.rampRate && chans == g.rampChans {
		return
	}

	g.rampRate, g.rampChans = rate, chans
	g.rampLen = RampLength(rate, chans, g.rampDur)
}

func (g *GainStage) poll() {
	if g.gain == nil {
		return
	}

	v := g.gain.Load()
	if v == 0 {
		return
	}

	if withinULP(v, g.target) {
		return
	}

	g.updateRampLen()
	g.target = v

	if g.rampLen == 0 {
		g.current = v
		return
	}

	g.step = (g.target - g.current) / float32(g.rampLen)
	g.remaining = g.rampLen
}

// withinULP reports whether a and b are equal or adjacent float32 values.
func withinULP(a, b float32) bool {
	if a == b {
		return true
	}

	return math.Nextafter32(b, a) == a
}
