// SPDX-License-Identifier: EPL-2.0

package loudness

import (
	"math"
)

const (
	// AbsoluteGate is the EBU R128 absolute gating threshold in LUFS.
	AbsoluteGate = -70.0
	// RelativeGate is the offset below the ungated mean, in LU.
	RelativeGate = -10.0

	blockHops = 4 // 400 ms gating block
	hopsPerS  = 10
)

// biquad is a transposed direct form II second order section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y

	return y
}

func (f *biquad) reset() { f.z1, f.z2 = 0, 0 }

// kWeighting returns the two BS.1770 stages for sampleRate: the high
// shelf modelling the head, then the RLB high-pass.
func kWeighting(sampleRate int) (shelf, highpass biquad) {
	fs := float64(sampleRate)

	f0 := 1681.974450955533
	g := 3.999843853973347
	q := 0.7071752369554196

	k := math.Tan(math.Pi * f0 / fs)
	vh := math.Pow(10, g/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/q + k*k

	shelf = biquad{
		b0: (vh + vb*k/q + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/q + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/q + k*k) / a0,
	}

	f0 = 38.13547087602444
	q = 0.5003270373238773
	k = math.Tan(math.Pi * f0 / fs)
	a0 = 1 + k/q + k*k

	highpass = biquad{
		b0: 1,
		b1: -2,
		b2: 1,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/q + k*k) / a0,
	}

	return shelf, highpass
}

// channelWeights follows BS.1770 for the 5.1 layout (L R C LFE Ls Rs).
// Other layouts weigh every channel equally.
func channelWeights(channels int) []float64 {
	w := make([]float64, channels)
	for i := range w {
		w[i] = 1
	}

	if channels == 6 {
		w[3] = 0
		w[4] = 1.41
		w[5] = 1.41
	}

	return w
}

// Meter measures integrated loudness (EBU R128, gated) of an interleaved
// stream. Batches need not hold whole frames; a partial frame is carried
// to the next call. Not safe for concurrent use.
type Meter struct {
	rate     int
	channels int
	weights  []float64
	shelf    []biquad
	highpass []biquad

	hopLen    int // frames per 100 ms
	hopFrames int
	hopEnergy float64
	hops      [blockHops]float64
	hopCount  int

	carry  []float32
	frames uint64
	blocks []float64 // mean square per gating block
}

// NewMeter creates a meter for the given stream format.
func NewMeter(sampleRate, channels int) (*Meter, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, ErrInvalidFormat
	}

	m := &Meter{
		rate:     sampleRate,
		channels: channels,
		weights:  channelWeights(channels),
		shelf:    make([]biquad, channels),
		highpass: make([]biquad, channels),
		hopLen:   max(sampleRate/hopsPerS, 1),
		carry:    make([]float32, 0, channels),
	}

	shelf, hp := kWeighting(sampleRate)
	for ch := range channels {
		m.shelf[ch] = shelf
		m.highpass[ch] = hp
	}

	return m, nil
}

func (m *Meter) SampleRate() int { return m.rate }
func (m *Meter) Channels() int   { return m.channels }

// Frames returns the number of whole frames integrated since the last reset.
func (m *Meter) Frames() uint64 { return m.frames }

// Duration returns the integrated audio length in seconds.
func (m *Meter) Duration() float64 { return float64(m.frames) / float64(m.rate) }

// Add feeds interleaved samples.
func (m *Meter) Add(samples []float32) {
	if len(m.carry) > 0 {
		need := m.channels - len(m.carry)
		k := min(need, len(samples))
		m.carry = append(m.carry, samples[:k]...)
		samples = samples[k:]

		if len(m.carry) < m.channels {
			return
		}
		m.addFrame(m.carry)
		m.carry = m.carry[:0]
	}

	whole := len(samples) - len(samples)%m.channels
	for i := 0; i < whole; i += m.channels {
		m.addFrame(samples[i : i+m.channels])
	}

	m.carry = append(m.carry, samples[whole:]...)
}

func (m *Meter) addFrame(frame []float32) {
	var e float64
	for ch, s := range frame {
		y := m.highpass[ch].process(m.shelf[ch].process(float64(s)))
		e += m.weights[ch] * y * y
	}

	m.hopEnergy += e
	m.hopFrames++
	m.frames++

	if m.hopFrames < m.hopLen {
		return
	}

	m.hops[m.hopCount%blockHops] = m.hopEnergy
	m.hopCount++
	m.hopEnergy = 0
	m.hopFrames = 0

	if m.hopCount < blockHops {
		return
	}

	var sum float64
	for _, h := range m.hops {
		sum += h
	}
	m.blocks = append(m.blocks, sum/float64(blockHops*m.hopLen))
}

// Integrated returns the gated integrated loudness in LUFS, or -Inf when
// no block passes the absolute gate (silence, or less than 400 ms fed).
func (m *Meter) Integrated() float64 {
	absThreshold := energyOf(AbsoluteGate)

	var sum float64
	var n int
	for _, z := range m.blocks {
		if z > absThreshold {
			sum += z
			n++
		}
	}
	if n == 0 {
		return math.Inf(-1)
	}

	relThreshold := sum / float64(n) * math.Pow(10, RelativeGate/10)
	threshold := max(absThreshold, relThreshold)

	sum, n = 0, 0
	for _, z := range m.blocks {
		if z > threshold {
			sum += z
			n++
		}
	}
	if n == 0 {
		return math.Inf(-1)
	}

	return loudnessOf(sum / float64(n))
}

// Reset drops all accumulated state.
func (m *Meter) Reset() {
	for ch := range m.channels {
		m.shelf[ch].reset()
		m.highpass[ch].reset()
	}

	m.hopEnergy = 0
	m.hopFrames = 0
	m.hopCount = 0
	m.hops = [blockHops]float64{}
	m.carry = m.carry[:0]
	m.frames = 0
	m.blocks = m.blocks[:0]
}

func loudnessOf(z float64) float64  { return -0.691 + 10*math.Log10(z) }
func energyOf(lufs float64) float64 { return math.Pow(10, (lufs+0.691)/10) }
