// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"errors"
	"io"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/ik5/audtap/audio"
)

// Streamer plays an audio.Source through beep. Mono is duplicated to both
// sides; channels past the second are dropped.
type Streamer struct {
	src audio.Source
	buf []float32
	err error
}

func NewStreamer(src audio.Source) *Streamer {
	return &Streamer{src: src}
}

func (s *Streamer) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(s.src.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
}

func (s *Streamer) Err() error { return s.err }

func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}

	ch := s.src.Channels()
	if ch <= 0 {
		s.err = ErrNoChannels
		return 0, false
	}

	want := len(samples) * ch
	if cap(s.buf) < want {
		s.buf = make([]float32, want)
	}

	filled := 0
	for filled < len(samples) {
		n, err := s.src.ReadSamples(s.buf[:(len(samples)-filled)*ch])
		for i := range n / ch {
			frame := s.buf[i*ch:]
			l := float64(frame[0])
			r := l
			if ch > 1 {
				r = float64(frame[1])
			}
			samples[filled+i] = [2]float64{l, r}
		}
		filled += n / ch

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.err = err
			break
		}
		if n == 0 {
			break
		}
	}

	return filled, filled > 0
}

// source reads a beep.Streamer back as interleaved stereo.
type source struct {
	st     beep.Streamer
	format beep.Format
	frames [][2]float64
	done   bool
}

// FromStreamer exposes st as an audio.Source, so beep's effects and
// resampler can sit in front of the taps or a sink.
func FromStreamer(st beep.Streamer, format beep.Format) audio.Source {
	return &source{st: st, format: format}
}

func (s *source) SampleRate() int                      { return int(s.format.SampleRate) }
func (s *source) Channels() int                        { return 2 }
func (s *source) SpanLen() (int, bool)                 { return 0, false }
func (s *source) TotalDuration() (time.Duration, bool) { return 0, false }
func (s *source) BufSize() int                         { return cap(s.frames) * 2 }

func (s *source) Close() error {
	if c, ok := s.st.(beep.StreamCloser); ok {
		return c.Close()
	}
	return nil
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	frames := len(dst) / 2
	if frames == 0 {
		return 0, nil
	}
	if cap(s.frames) < frames {
		s.frames = make([][2]float64, frames)
	}

	n, ok := s.st.Stream(s.frames[:frames])
	for i, f := range s.frames[:n] {
		dst[2*i] = float32(f[0])
		dst[2*i+1] = float32(f[1])
	}

	if !ok {
		s.done = true
		if err := s.st.Err(); err != nil {
			return 2 * n, err
		}
		if n == 0 {
			return 0, io.EOF
		}
	}

	return 2 * n, nil
}

// Resample converts src to rate with beep's resampler. quality is beep's
// interpolation window, 1 to 64; 4 is a good default.
func Resample(src audio.Source, rate, quality int) audio.Source {
	if src.SampleRate() == rate {
		return src
	}

	quality = min(max(quality, 1), 64)
	st := NewStreamer(src)
	r := beep.Resample(quality, beep.SampleRate(src.SampleRate()), beep.SampleRate(rate), st)

	return &resampled{
		Source: FromStreamer(r, beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 2, Precision: 2}),
		orig:   src,
	}
}

// resampled closes the original source along with the beep chain.
type resampled struct {
	audio.Source
	orig audio.Source
}

func (r *resampled) Close() error { return r.orig.Close() }
