// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"io"
	"math"
	"time"
)

// MockSource is a test helper that generates audio data for testing.
// It implements the audio.Source interface (without importing it to avoid cycles).
// A negative totalSamples makes the source endless.
type MockSource struct {
	sampleRate   int
	channels     int
	totalSamples int // Total samples to generate (per channel)
	generated    int // Samples generated so far (per channel)
	waveform     func(sample int, channel int) float32
	closed       bool
}

// NewMockSource creates a new mock audio source.
// totalSamples is the total number of samples per channel to generate.
// waveform is a function that generates sample values given sample index and channel.
func NewMockSource(sampleRate, channels, totalSamples int, waveform func(sample int, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate:   sampleRate,
		channels:     channels,
		totalSamples: totalSamples,
		generated:    0,
		waveform:     waveform,
	}
}

// NewSilentSource creates a mock source that generates silence (all zeros).
func NewSilentSource(sampleRate, channels, totalSamples int) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		return 0.0
	})
}

// NewSineSource creates a mock source that generates a sine wave.
func NewSineSource(sampleRate, channels, totalSamples int, frequency float64) *MockSource {
	return NewSineSourceAmp(sampleRate, channels, totalSamples, frequency, 1.0)
}

// NewSineSourceAmp creates a sine source with peak amplitude amp.
func NewSineSourceAmp(sampleRate, channels, totalSamples int, frequency, amp float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		t := float64(sample) / float64(sampleRate)
		return float32(amp * math.Sin(2*math.Pi*frequency*t))
	})
}

// NewConstantSource creates a mock source with constant value.
func NewConstantSource(sampleRate, channels, totalSamples int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		return value
	})
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return 4096 }
func (m *MockSource) Close() error    { m.closed = true; return nil }

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool { return m.closed }

func (m *MockSource) SpanLen() (int, bool) {
	if m.totalSamples < 0 {
		return 0, false
	}
	return (m.totalSamples - m.generated) * m.channels, true
}

func (m *MockSource) TotalDuration() (time.Duration, bool) {
	if m.totalSamples < 0 || m.sampleRate <= 0 {
		return 0, false
	}
	return time.Duration(m.totalSamples) * time.Second / time.Duration(m.sampleRate), true
}

// Reset resets the generated sample counter to allow re-reading
func (m *MockSource) Reset() {
	m.generated = 0
}

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	if m.totalSamples >= 0 && m.generated >= m.totalSamples {
		return 0, io.EOF
	}

	// Calculate how many frames we can write
	framesToWrite := len(dst) / m.channels
	if m.totalSamples >= 0 {
		framesToWrite = min(framesToWrite, m.totalSamples-m.generated)
	}

	// Generate samples
	for frame := range framesToWrite {
		sampleIndex := m.generated + frame
		for ch := range m.channels {
			dst[frame*m.channels+ch] = m.waveform(sampleIndex, ch)
		}
	}

	m.generated += framesToWrite
	samplesWritten := framesToWrite * m.channels

	if m.totalSamples >= 0 && m.generated >= m.totalSamples {
		return samplesWritten, io.EOF
	}

	return samplesWritten, nil
}

// SliceSource plays back a fixed interleaved sample slice.
type SliceSource struct {
	sampleRate int
	channels   int
	data       []float32
	pos        int
}

// NewSliceSource returns a source yielding exactly data.
func NewSliceSource(sampleRate, channels int, data []float32) *SliceSource {
	return &SliceSource{sampleRate: sampleRate, channels: channels, data: data}
}

func (s *SliceSource) SampleRate() int      { return s.sampleRate }
func (s *SliceSource) Channels() int        { return s.channels }
func (s *SliceSource) BufSize() int         { return 4096 }
func (s *SliceSource) Close() error         { return nil }
func (s *SliceSource) SpanLen() (int, bool) { return len(s.data) - s.pos, true }

func (s *SliceSource) TotalDuration() (time.Duration, bool) {
	frames := len(s.data) / s.channels
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate), true
}

func (s *SliceSource) ReadSamples(dst []float32) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}

	n := copy(dst, s.data[s.pos:])
	s.pos += n

	if s.pos >= len(s.data) {
		return n, io.EOF
	}

	return n, nil
}

// ReadAll drains src through a buffer of bufSize samples.
func ReadAll(src interface {
	ReadSamples([]float32) (int, error)
}, bufSize int) ([]float32, error) {
	var out []float32
	buf := make([]float32, bufSize)

	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)

		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
