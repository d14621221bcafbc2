// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"fmt"
	"io"
	"time"

	"github.com/jfreymuth/oggvorbis"

	"github.com/ik5/audtap/audio"
)

// oggReader is the part of oggvorbis.Reader the source reads from.
// Read counts values, not frames.
type oggReader interface {
	Read([]float32) (int, error)
	Length() int64
}

type source struct {
	dec        oggReader
	sampleRate int
	channels   int
	read       int64 // samples
	bufSize    int
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return s.bufSize }

func (s *source) SpanLen() (int, bool) {
	frames := s.dec.Length()
	if frames <= 0 {
		return 0, false
	}
	return int(max(frames*int64(s.channels)-s.read, 0)), true
}

func (s *source) TotalDuration() (time.Duration, bool) {
	frames := s.dec.Length()
	if frames <= 0 || s.sampleRate <= 0 {
		return 0, false
	}
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate), true
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if len(dst) < s.channels {
		return 0, io.ErrShortBuffer
	}

	n, err := s.dec.Read(dst[:len(dst)/s.channels*s.channels])
	s.read += int64(n)
	return n, err
}

type Decoder struct{}

// Decode reads the three Vorbis headers and returns a float source.
// Length is only known when r is an io.Seeker.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotVorbisFile, err)
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		channels:   dec.Channels(),
		bufSize:    4096,
	}, nil
}
